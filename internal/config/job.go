package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrorPolicy decides what happens to a question whose remote call fails.
type ErrorPolicy string

const (
	// OnErrorRecord writes a record carrying the error and continues.
	OnErrorRecord ErrorPolicy = "record"
	// OnErrorSkip logs the failure, writes nothing, and continues.
	OnErrorSkip ErrorPolicy = "skip"
	// OnErrorAbort cancels the job on the first failure.
	OnErrorAbort ErrorPolicy = "abort"
)

// ParseErrorPolicy validates a policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OnErrorRecord, OnErrorSkip, OnErrorAbort:
		return p, nil
	case "":
		return OnErrorRecord, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want record, skip or abort)", s)
	}
}

// Job is the configuration of one compression run. Empty path fields are
// derived from Corpus and Level by Resolve.
type Job struct {
	Corpus string `yaml:"corpus"`
	Level  int    `yaml:"level"`

	DocDir    string `yaml:"doc_dir,omitempty"`
	DocExt    string `yaml:"doc_ext,omitempty"`
	Questions string `yaml:"questions,omitempty"`
	Output    string `yaml:"output,omitempty"`

	Prompt     string   `yaml:"prompt,omitempty"`
	ServerURLs []string `yaml:"server_urls,omitempty"`
	Backend    string   `yaml:"backend,omitempty"`
	Model      string   `yaml:"model,omitempty"`

	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	// RateLimit caps requests per second per endpoint; zero means unlimited.
	RateLimit       float64     `yaml:"rate_limit,omitempty"`
	OnError         ErrorPolicy `yaml:"on_error,omitempty"`
	IncludeQuestion bool        `yaml:"include_question"`
}

// NewJob returns a job seeded from the process configuration.
func NewJob(cfg Config) Job {
	return Job{
		Corpus:          DefaultCorpus,
		Level:           DefaultLevel,
		Prompt:          DefaultPrompt,
		ServerURLs:      append([]string(nil), cfg.ServerURLs...),
		Backend:         cfg.Backend,
		Model:           cfg.Model,
		RequestTimeout:  cfg.RequestTimeout,
		OnError:         OnErrorRecord,
		IncludeQuestion: true,
	}
}

// Resolve fills derived paths and defaults in place.
func (j *Job) Resolve(cfg Config) {
	if j.DocDir == "" {
		j.DocDir = filepath.Join(cfg.CorpusRoot, j.Corpus, fmt.Sprintf("level%d", j.Level))
	}
	if j.Questions == "" {
		j.Questions = filepath.Join(cfg.QuestionRoot, fmt.Sprintf("questions_%s.jsonl", j.Corpus))
	}
	if j.Output == "" {
		j.Output = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_level%d_compressed.jsonl", j.Corpus, j.Level))
	}
	if j.DocExt == "" {
		j.DocExt = ".md"
	}
	if j.Prompt == "" {
		j.Prompt = DefaultPrompt
	}
	if j.Backend == "" {
		j.Backend = BackendHTTP
	}
	j.Backend = strings.ToLower(j.Backend)
	if j.OnError == "" {
		j.OnError = OnErrorRecord
	}
}

// Validate reports every configuration problem at once.
func (j Job) Validate() error {
	var errs []error
	if j.Corpus == "" {
		errs = append(errs, errors.New("corpus is required"))
	}
	if len(j.ServerURLs) == 0 {
		errs = append(errs, errors.New("at least one server URL is required"))
	}
	switch j.Backend {
	case BackendHTTP, BackendOpenAI, BackendOllama, BackendAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unsupported backend %q", j.Backend))
	}
	if j.Backend != BackendHTTP && j.Model == "" {
		errs = append(errs, fmt.Errorf("backend %s requires a model", j.Backend))
	}
	if _, err := ParseErrorPolicy(string(j.OnError)); err != nil {
		errs = append(errs, err)
	}
	if j.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout must not be negative"))
	}
	if j.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	return errors.Join(errs...)
}
