package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/raphaelgruber/ctxcompress/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

type fakeLLM struct {
	got  []llms.MessageContent
	resp *llms.ContentResponse
	err  error
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	return f.resp, f.err
}

func (f *fakeLLM) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestChatMessages(t *testing.T) {
	msgs := models.CompressionMessages("tag facts", "what changed?", "## Document1:\nQ3 report\n\n")

	chat := ChatMessages(msgs)

	require.Len(t, chat, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, chat[0].Role)
	assert.Equal(t, llms.TextContent{Text: "tag facts"}, chat[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, chat[1].Role)

	human := chat[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "Q3 report")
	assert.Contains(t, human, "Question: what changed?")
}

func TestModel_Compress(t *testing.T) {
	t.Run("returns first choice", func(t *testing.T) {
		fake := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "<fact>x</fact>"}}}}
		m := New(fake, "qwen-long", "http://gpu0:8000/v1")

		out, err := m.Compress(context.Background(), models.CompressionMessages("i", "q", "c"))
		require.NoError(t, err)
		assert.Equal(t, "<fact>x</fact>", out)
		assert.Len(t, fake.got, 2)
		assert.Equal(t, "http://gpu0:8000/v1", m.Endpoint())
		assert.Equal(t, "qwen-long", m.Model())
	})

	t.Run("no choices", func(t *testing.T) {
		m := New(&fakeLLM{resp: &llms.ContentResponse{}}, "m", "e")
		_, err := m.Compress(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("fatal provider error", func(t *testing.T) {
		m := New(&fakeLLM{err: errors.New("HTTP 401: invalid api key")}, "m", "e")
		_, err := m.Compress(context.Background(), nil)
		assert.ErrorIs(t, err, ErrFatalAPI)
	})

	t.Run("transient provider error", func(t *testing.T) {
		m := New(&fakeLLM{err: errors.New("connection reset by peer")}, "m", "e")
		_, err := m.Compress(context.Background(), nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrFatalAPI)
	})
}

func TestNewModel_Backends(t *testing.T) {
	t.Run("openai compatible without key", func(t *testing.T) {
		m, err := NewModel(config.Config{}, config.BackendOpenAI, "qwen-long", "http://gpu0:8000/v1")
		require.NoError(t, err)
		assert.Equal(t, "http://gpu0:8000/v1", m.Endpoint())
	})

	t.Run("ollama", func(t *testing.T) {
		_, err := NewModel(config.Config{}, config.BackendOllama, "qwen2.5", "http://localhost:11434")
		require.NoError(t, err)
	})

	t.Run("anthropic requires key", func(t *testing.T) {
		_, err := NewModel(config.Config{}, config.BackendAnthropic, "claude", "https://api.anthropic.com/v1")
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewModel(config.Config{}, "grpc", "m", "e")
		assert.Error(t, err)
	})
}
