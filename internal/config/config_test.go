package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "http://a:1/x", []string{"http://a:1/x"}},
		{"trims and drops empties", " http://a , ,http://b,", []string{"http://a", "http://b"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitURLs(tt.in))
		})
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CTXCOMPRESS_SERVER_URLS", "http://e0,http://e1")
	t.Setenv("CTXCOMPRESS_REQUEST_TIMEOUT", "45s")
	t.Setenv("CTXCOMPRESS_LOG_LEVEL", "warning")
	t.Setenv("CTXCOMPRESS_BACKEND", "OpenAI")

	cfg := Load()

	assert.Equal(t, []string{"http://e0", "http://e1"}, cfg.ServerURLs)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("CTXCOMPRESS_REQUEST_TIMEOUT", "soon")
	assert.Equal(t, DefaultRequestTimeout, Load().RequestTimeout)
}

func TestJob_ResolveDerivesPaths(t *testing.T) {
	cfg := Config{CorpusRoot: "/data/levels", QuestionRoot: "/data/q", OutputDir: "out"}
	job := NewJob(cfg)
	job.Corpus = "medical_en"
	job.Level = 3

	job.Resolve(cfg)

	assert.Equal(t, filepath.Join("/data/levels", "medical_en", "level3"), job.DocDir)
	assert.Equal(t, filepath.Join("/data/q", "questions_medical_en.jsonl"), job.Questions)
	assert.Equal(t, filepath.Join("out", "medical_en_level3_compressed.jsonl"), job.Output)
	assert.Equal(t, ".md", job.DocExt)
	assert.Equal(t, DefaultPrompt, job.Prompt)
}

func TestJob_ResolveKeepsOverrides(t *testing.T) {
	cfg := Config{CorpusRoot: "/data/levels"}
	job := Job{Corpus: "c", Level: 1, DocDir: "/custom/docs", Output: "/tmp/x.jsonl"}

	job.Resolve(cfg)

	assert.Equal(t, "/custom/docs", job.DocDir)
	assert.Equal(t, "/tmp/x.jsonl", job.Output)
	assert.Equal(t, OnErrorRecord, job.OnError)
	assert.Equal(t, BackendHTTP, job.Backend)
}

func TestJob_Validate(t *testing.T) {
	valid := func() Job {
		j := Job{Corpus: "c", Level: 1, ServerURLs: []string{"http://e0"}}
		j.Resolve(Config{})
		return j
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Job)
		wantErr string
	}{
		{"no urls", func(j *Job) { j.ServerURLs = nil }, "server URL"},
		{"bad backend", func(j *Job) { j.Backend = "grpc" }, "unsupported backend"},
		{"llm without model", func(j *Job) { j.Backend = BackendOllama }, "requires a model"},
		{"bad policy", func(j *Job) { j.OnError = "retry" }, "unknown error policy"},
		{"negative rate", func(j *Job) { j.RateLimit = -1 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := valid()
			tt.mutate(&j)
			err := j.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseErrorPolicy(t *testing.T) {
	p, err := ParseErrorPolicy(" ABORT ")
	require.NoError(t, err)
	assert.Equal(t, OnErrorAbort, p)

	p, err = ParseErrorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OnErrorRecord, p)

	_, err = ParseErrorPolicy("retry")
	assert.Error(t, err)
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	content := `corpus: legal_en
level: 4
server_urls:
  - http://gpu0:8091/compress
  - http://gpu1:8091/compress
request_timeout: 90s
on_error: skip
include_question: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	job := NewJob(Config{Backend: BackendHTTP, ServerURLs: []string{"http://default"}})
	require.NoError(t, LoadFile(path, &job))

	assert.Equal(t, "legal_en", job.Corpus)
	assert.Equal(t, 4, job.Level)
	assert.Len(t, job.ServerURLs, 2)
	assert.Equal(t, 90*time.Second, job.RequestTimeout)
	assert.Equal(t, OnErrorSkip, job.OnError)
	assert.False(t, job.IncludeQuestion)
	assert.Equal(t, DefaultPrompt, job.Prompt, "keys absent from the file keep their values")
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: [oops"), 0o644))

	job := Job{}
	err := LoadFile(path, &job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestJob_ResolveKeepsZeroTimeout(t *testing.T) {
	t.Setenv("CTXCOMPRESS_REQUEST_TIMEOUT", "0")
	cfg := Load()
	job := NewJob(cfg)
	job.Resolve(cfg)
	assert.Zero(t, job.RequestTimeout)
	assert.NoError(t, job.Validate())
}

func TestJob_MarshalRoundTrip(t *testing.T) {
	job := Job{Corpus: "c", Level: 2, ServerURLs: []string{"http://e0"}, RequestTimeout: time.Minute}
	data, err := job.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_timeout: 1m0s")

	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	var back Job
	require.NoError(t, LoadFile(path, &back))
	assert.Equal(t, job, back)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("request completed", "endpoint", "http://e0")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "request completed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry))
	assert.Equal(t, "http://e0", entry["endpoint"])
}

func TestSetupLogger_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, cleanup := SetupLogger(Config{LogFile: logFile, LogLevel: slog.LevelInfo}, LoggerOptions{Verbose: true, QuietStderr: true})

	logger.Debug("debug enabled by verbose")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "debug enabled by verbose"))
}
