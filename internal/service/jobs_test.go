package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(config.Job{Corpus: "c"})

	assert.Len(t, job.ID, 8)
	assert.Equal(t, JobStatusPending, job.Snapshot().Status)

	job.setLoaded(3, 2)
	job.recordSuccess()
	job.recordWritten()
	job.recordFailure("q1: boom")

	snap := job.Snapshot()
	assert.Equal(t, JobStatusRunning, snap.Status)
	assert.Equal(t, 2, snap.Progress)
	assert.Equal(t, 1, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, []string{"q1: boom"}, snap.Errors)
	assert.False(t, snap.Status.Terminal())

	job.finish(JobStatusFailed, errors.New("aborted"))
	snap = job.Snapshot()
	assert.True(t, snap.Status.Terminal())
	assert.Equal(t, "aborted", snap.Error)
	require.NotNil(t, snap.CompletedAt)
}

func TestJob_ErrorsAreBounded(t *testing.T) {
	job := NewJob(config.Job{})
	for i := range maxJobErrors + 5 {
		job.recordFailure(fmt.Sprintf("q%d", i))
	}

	snap := job.Snapshot()
	assert.Equal(t, maxJobErrors+5, snap.Failed)
	assert.Len(t, snap.Errors, maxJobErrors)
}

func TestJob_SnapshotIsACopy(t *testing.T) {
	job := NewJob(config.Job{})
	job.recordFailure("first")

	snap := job.Snapshot()
	snap.Errors[0] = "mutated"

	assert.Equal(t, "first", job.Snapshot().Errors[0])
}
