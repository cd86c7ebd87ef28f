// Package service runs document-compression jobs.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/ctxcompress/internal/config"
)

// JobStatus represents the state of a compression job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusLoading   JobStatus = "loading"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// maxJobErrors bounds how many failure messages a job keeps for its summary.
const maxJobErrors = 10

// Job tracks the progress of one compression run. It is updated by the
// service and read concurrently through Snapshot.
type Job struct {
	ID     string
	Config config.Job

	Status      JobStatus
	Documents   int
	Total       int
	Progress    int // Requests finished, successful or not
	Succeeded   int
	Failed      int
	Written     int
	Errors      []string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu sync.RWMutex
}

// NewJob creates a pending job for cfg.
func NewJob(cfg config.Job) *Job {
	return &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Config:    cfg,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.Status = s
	j.mu.Unlock()
}

func (j *Job) setLoaded(documents, total int) {
	j.mu.Lock()
	j.Documents = documents
	j.Total = total
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

func (j *Job) recordSuccess() {
	j.mu.Lock()
	j.Progress++
	j.Succeeded++
	j.mu.Unlock()
}

func (j *Job) recordFailure(msg string) {
	j.mu.Lock()
	j.Progress++
	j.Failed++
	if len(j.Errors) < maxJobErrors {
		j.Errors = append(j.Errors, msg)
	}
	j.mu.Unlock()
}

func (j *Job) recordWritten() {
	j.mu.Lock()
	j.Written++
	j.mu.Unlock()
}

func (j *Job) finish(status JobStatus, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if err != nil {
		j.Error = err.Error()
	}
	now := time.Now()
	j.CompletedAt = &now
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Config:      j.Config,
		Status:      j.Status,
		Documents:   j.Documents,
		Total:       j.Total,
		Progress:    j.Progress,
		Succeeded:   j.Succeeded,
		Failed:      j.Failed,
		Written:     j.Written,
		Errors:      append([]string(nil), j.Errors...),
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
