package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raphaelgruber/ctxcompress/internal/client"
	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/raphaelgruber/ctxcompress/internal/corpus"
	"github.com/raphaelgruber/ctxcompress/internal/llm"
	"github.com/raphaelgruber/ctxcompress/internal/metrics"
	"github.com/raphaelgruber/ctxcompress/internal/models"
	"github.com/raphaelgruber/ctxcompress/internal/sink"
)

var (
	// ErrAborted is returned when a job stops early because of a request failure.
	ErrAborted = errors.New("job aborted")
	// ErrRequestsFailed is returned when a job completed but some requests failed.
	ErrRequestsFailed = errors.New("compression requests failed")
)

// CompressorFactory builds the compressor for one endpoint.
type CompressorFactory func(endpoint string) (Compressor, error)

// NewCompressorFactory returns the factory for the job's backend.
func NewCompressorFactory(cfg config.Config, job config.Job) (CompressorFactory, error) {
	switch job.Backend {
	case config.BackendHTTP:
		return func(endpoint string) (Compressor, error) {
			// The dispatcher applies the per-request timeout through the context.
			return client.New(endpoint, 0), nil
		}, nil
	case config.BackendOpenAI, config.BackendOllama, config.BackendAnthropic:
		return func(endpoint string) (Compressor, error) {
			return llm.NewModel(cfg, job.Backend, job.Model, endpoint)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", job.Backend)
	}
}

// Summary describes a finished job.
type Summary struct {
	JobID        string
	Output       string
	Documents    int
	Total        int
	Succeeded    int
	Failed       int
	Written      int
	NotAttempted int // Questions never sent because the job stopped early
	Errors       []string
	Metrics      metrics.Snapshot
}

// CompressService runs compression jobs.
type CompressService struct {
	factory CompressorFactory
	logger  *slog.Logger
}

// NewCompressService creates a compression service.
func NewCompressService(factory CompressorFactory, logger *slog.Logger) *CompressService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompressService{factory: factory, logger: logger}
}

// Run executes job: load corpus and questions, dispatch one request per
// question, and write each result as it completes.
//
// Configuration and parse errors are returned before the output file is
// created. Request failures follow job.Config.OnError. The summary is
// returned whenever dispatch started, even alongside an error.
func (s *CompressService) Run(ctx context.Context, job *Job) (*Summary, error) {
	cfg := job.Config
	logger := s.logger.With("job_id", job.ID)

	policy, err := config.ParseErrorPolicy(string(cfg.OnError))
	if err != nil {
		job.finish(JobStatusFailed, err)
		return nil, err
	}

	job.setStatus(JobStatusLoading)
	prompt, docCount, err := corpus.LoadPrompt(cfg.DocDir, cfg.DocExt)
	if err != nil {
		err = fmt.Errorf("load documents: %w", err)
		job.finish(JobStatusFailed, err)
		return nil, err
	}
	questions, err := corpus.LoadQuestions(cfg.Questions)
	if err != nil {
		err = fmt.Errorf("load questions: %w", err)
		job.finish(JobStatusFailed, err)
		return nil, err
	}
	logger.Info("corpus loaded",
		"documents", docCount,
		"prompt_len", len(prompt),
		"questions", len(questions))

	compressors := make([]Compressor, 0, len(cfg.ServerURLs))
	for _, endpoint := range cfg.ServerURLs {
		c, err := s.factory(endpoint)
		if err != nil {
			err = fmt.Errorf("create compressor for %s: %w", endpoint, err)
			job.finish(JobStatusFailed, err)
			return nil, err
		}
		compressors = append(compressors, c)
	}

	collector := metrics.NewCollector()
	dispatcher, err := NewDispatcher(compressors, cfg.Prompt, DispatcherOptions{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		Metrics:        collector,
		Logger:         logger,
	})
	if err != nil {
		job.finish(JobStatusFailed, err)
		return nil, err
	}

	out, err := sink.Create(cfg.Output)
	if err != nil {
		job.finish(JobStatusFailed, err)
		return nil, err
	}

	job.setLoaded(docCount, len(questions))
	logger.Info("dispatching",
		"endpoints", dispatcher.Workers(),
		"output", out.Path(),
		"on_error", policy)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stopErr error
	stop := func(err error) {
		if stopErr == nil {
			stopErr = err
			cancel()
		}
	}

	received := 0
	for res := range dispatcher.Dispatch(runCtx, prompt, questions) {
		id := res.Question.IDString()

		// Calls interrupted by our own cancellation are not remote failures.
		if cancelledByJob(runCtx, res.Err) {
			logger.Debug("request cancelled", "id", id, "endpoint", res.Endpoint)
			continue
		}
		received++

		rec := models.NewRecord(cfg.Level, res.Question, cfg.IncludeQuestion)

		if res.Err != nil {
			job.recordFailure(fmt.Sprintf("%s: %v", id, res.Err))
			logger.Warn("compression failed",
				"id", id,
				"endpoint", res.Endpoint,
				"duration_ms", res.Duration.Milliseconds(),
				"error", res.Err)

			if isFatal(res.Err) || policy == config.OnErrorAbort {
				stop(fmt.Errorf("%w: question %s: %w", ErrAborted, id, res.Err))
				continue
			}
			if policy == config.OnErrorSkip {
				continue
			}
			rec.Error = res.Err.Error()
		} else {
			job.recordSuccess()
			rec.Compressed = res.Compressed
		}

		if err := out.Write(rec); err != nil {
			stop(fmt.Errorf("%w: %w", ErrAborted, err))
			continue
		}
		job.recordWritten()

		snap := job.Snapshot()
		logger.Info("request completed",
			"id", id,
			"endpoint", res.Endpoint,
			"duration_ms", res.Duration.Milliseconds(),
			"failed", rec.Failed(),
			"done", snap.Progress,
			"total", snap.Total)
	}

	closeErr := out.Close()

	snap := job.Snapshot()
	summary := &Summary{
		JobID:        job.ID,
		Output:       out.Path(),
		Documents:    docCount,
		Total:        len(questions),
		Succeeded:    snap.Succeeded,
		Failed:       snap.Failed,
		Written:      snap.Written,
		NotAttempted: len(questions) - received,
		Errors:       snap.Errors,
		Metrics:      collector.Snapshot(),
	}

	var runErr error
	status := JobStatusCompleted
	switch {
	case stopErr != nil:
		runErr, status = stopErr, JobStatusFailed
	case ctx.Err() != nil:
		runErr, status = fmt.Errorf("job cancelled: %w", ctx.Err()), JobStatusCancelled
	case closeErr != nil:
		runErr, status = closeErr, JobStatusFailed
	case summary.Failed > 0:
		runErr = fmt.Errorf("%w: %d of %d", ErrRequestsFailed, summary.Failed, summary.Total)
	}
	if runErr != nil && closeErr != nil && !errors.Is(runErr, closeErr) {
		runErr = errors.Join(runErr, closeErr)
	}
	job.finish(status, runErr)

	logger.Info("job finished",
		"status", status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"not_attempted", summary.NotAttempted,
		"elapsed_s", summary.Metrics.ElapsedSeconds)

	return summary, runErr
}

// isFatal reports errors that would fail every remaining request.
func isFatal(err error) bool {
	if errors.Is(err, llm.ErrFatalAPI) {
		return true
	}
	var serr *client.StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode == http.StatusUnauthorized || serr.StatusCode == http.StatusForbidden
	}
	return false
}
