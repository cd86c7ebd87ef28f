// Package config resolves process and job configuration for ctxcompress.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Backends supported for the compression call.
const (
	BackendHTTP      = "http"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
)

// Defaults mirror the layout used by the evaluation cluster.
const (
	DefaultCorpus         = "financial_zh"
	DefaultLevel          = 2
	DefaultCorpusRoot     = "/mnt/workspace/zhiyuan/corpus-eval_/corpus_levels"
	DefaultQuestionRoot   = "/mnt/workspace/zhiyuan/corpus-eval_/question"
	DefaultOutputDir      = "output"
	DefaultServerURL      = "http://0.0.0.0:8091/qwen_long_compress_server"
	DefaultRequestTimeout = 10 * time.Minute
)

// DefaultPrompt is the compression instruction sent as the system message.
const DefaultPrompt = "You are an expert for information extraction, your task is to compress the given document to answer the user question.\n" +
	"## tagging rule:\n" +
	"- tag the supporting facts with \"fact\""

// Config holds process-wide settings read from the environment.
type Config struct {
	// Default locations used to derive job paths
	CorpusRoot   string
	QuestionRoot string
	OutputDir    string

	// Compression service
	ServerURLs     []string
	Backend        string
	Model          string
	RequestTimeout time.Duration

	// Provider credentials for LLM backends
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		CorpusRoot:   getEnv("CTXCOMPRESS_CORPUS_ROOT", DefaultCorpusRoot),
		QuestionRoot: getEnv("CTXCOMPRESS_QUESTION_ROOT", DefaultQuestionRoot),
		OutputDir:    getEnv("CTXCOMPRESS_OUTPUT_DIR", DefaultOutputDir),

		ServerURLs:     SplitURLs(getEnv("CTXCOMPRESS_SERVER_URLS", DefaultServerURL)),
		Backend:        strings.ToLower(getEnv("CTXCOMPRESS_BACKEND", BackendHTTP)),
		Model:          getEnv("CTXCOMPRESS_MODEL", ""),
		RequestTimeout: parseDuration(getEnv("CTXCOMPRESS_REQUEST_TIMEOUT", ""), DefaultRequestTimeout),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		LogFile:  getEnv("CTXCOMPRESS_LOG_FILE", "/tmp/ctxcompress.log"),
		LogLevel: parseLogLevel(getEnv("CTXCOMPRESS_LOG_LEVEL", "INFO")),
	}
}

// SplitURLs parses a comma-separated endpoint list, trimming whitespace and
// dropping empty entries.
func SplitURLs(s string) []string {
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("invalid duration, using default", "value", s, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
