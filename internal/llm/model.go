// Package llm compresses contexts through chat-completion APIs using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/raphaelgruber/ctxcompress/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model sends compression requests to one chat endpoint.
type Model struct {
	llm       llms.Model
	modelName string
	endpoint  string
}

// NewModel creates a model for the given backend, reached at endpoint.
// For openai the endpoint is the API base URL of any OpenAI-compatible server.
func NewModel(cfg config.Config, backend, modelName, endpoint string) (*Model, error) {
	var model llms.Model
	var err error

	switch backend {
	case config.BackendOllama:
		model, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(endpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.BackendOpenAI:
		// Self-hosted OpenAI-compatible servers accept any token.
		token := cfg.OpenAIAPIKey
		if token == "" {
			token = "EMPTY"
		}
		model, err = openai.New(
			openai.WithToken(token),
			openai.WithModel(modelName),
			openai.WithBaseURL(endpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.BackendAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(modelName),
			anthropic.WithBaseURL(endpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}

	return New(model, modelName, endpoint), nil
}

// New wraps an existing langchaingo model.
func New(model llms.Model, modelName, endpoint string) *Model {
	return &Model{llm: model, modelName: modelName, endpoint: endpoint}
}

// Endpoint returns the API base URL this model talks to.
func (m *Model) Endpoint() string {
	return m.endpoint
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Compress maps the three-part request onto a chat exchange. Chat APIs have
// no context role, so the documents and the question share the human turn.
func (m *Model) Compress(ctx context.Context, msgs []models.Message) (string, error) {
	messages := ChatMessages(msgs)

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	slog.Debug("compression generated",
		"model", m.modelName,
		"endpoint", m.endpoint,
		"output_len", len(response.Choices[0].Content),
		"duration_ms", time.Since(start).Milliseconds())

	return response.Choices[0].Content, nil
}

// ChatMessages converts a compression request into langchaingo messages.
func ChatMessages(msgs []models.Message) []llms.MessageContent {
	instruction := models.Content(msgs, models.RoleInstruction)
	question := models.Content(msgs, models.RoleUser)
	docs := models.Content(msgs, models.RoleContext)

	userPrompt := fmt.Sprintf(`Documents:
%s
Question: %s`, docs, question)

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
}
