package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/ctxcompress/internal/metrics"
	"github.com/raphaelgruber/ctxcompress/internal/models"
	"golang.org/x/time/rate"
)

// Compressor is one instance of the remote compression service.
type Compressor interface {
	Compress(ctx context.Context, msgs []models.Message) (string, error)
	Endpoint() string
}

// Result is the outcome of one compression request.
type Result struct {
	Index      int // Position of the question in the input
	Question   models.Question
	Endpoint   string
	Compressed string
	Err        error
	Duration   time.Duration
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// RequestTimeout bounds each remote call; zero means no timeout.
	RequestTimeout time.Duration
	// RateLimit caps requests per second per endpoint; zero means unlimited.
	RateLimit float64
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Dispatcher fans compression requests out over a fixed set of endpoints.
// Question i goes to endpoint i mod N and at most N requests are in flight.
type Dispatcher struct {
	compressors []Compressor
	limiters    []*rate.Limiter
	instruction string
	timeout     time.Duration
	metrics     *metrics.Collector
	logger      *slog.Logger
}

type task struct {
	index    int
	question models.Question
}

// NewDispatcher creates a dispatcher with one worker slot per compressor.
func NewDispatcher(compressors []Compressor, instruction string, opts DispatcherOptions) (*Dispatcher, error) {
	if len(compressors) == 0 {
		return nil, errors.New("dispatcher needs at least one endpoint")
	}

	limiters := make([]*rate.Limiter, len(compressors))
	if opts.RateLimit > 0 {
		for i := range limiters {
			limiters[i] = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		compressors: compressors,
		limiters:    limiters,
		instruction: instruction,
		timeout:     opts.RequestTimeout,
		metrics:     opts.Metrics,
		logger:      logger,
	}, nil
}

// Workers returns the concurrency bound.
func (d *Dispatcher) Workers() int {
	return len(d.compressors)
}

// Dispatch submits one request per question and streams results in
// completion order. The channel is closed once every started request has
// finished; the caller must drain it.
//
// After ctx is cancelled no new requests start. Requests already in flight see
// the cancelled context and are reported with its error.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, questions []models.Question) <-chan Result {
	n := len(d.compressors)
	tasks := make(chan task)
	results := make(chan Result, n)

	go func() {
		defer close(tasks)
		for i, q := range questions {
			select {
			case tasks <- task{index: i, question: q}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if ctx.Err() != nil {
					continue
				}
				results <- d.process(ctx, prompt, t)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// process runs a single request. Panics in a compressor become request errors.
func (d *Dispatcher) process(ctx context.Context, prompt string, t task) (res Result) {
	slot := t.index % len(d.compressors)
	c := d.compressors[slot]

	res = Result{
		Index:    t.index,
		Question: t.question,
		Endpoint: c.Endpoint(),
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("compressor panicked", "endpoint", res.Endpoint, "id", t.question.IDString(), "panic", r)
			res.Compressed = ""
			res.Err = fmt.Errorf("internal panic: %v", r)
		}
	}()

	if lim := d.limiters[slot]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("wait for rate limit: %w", err)
			return res
		}
	}

	reqCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msgs := models.CompressionMessages(d.instruction, t.question.Question, prompt)

	start := time.Now()
	res.Compressed, res.Err = c.Compress(reqCtx, msgs)
	res.Duration = time.Since(start)

	if d.metrics != nil && !cancelledByJob(ctx, res.Err) {
		d.metrics.RecordRequest(res.Endpoint, res.Duration, len(res.Compressed), res.Err != nil)
	}

	d.logger.Debug("compression request finished",
		"id", t.question.IDString(),
		"index", t.index,
		"endpoint", res.Endpoint,
		"duration_ms", res.Duration.Milliseconds(),
		"error", res.Err)

	return res
}

// cancelledByJob reports whether err came from cancelling the job rather than
// from the remote call.
func cancelledByJob(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)
}
