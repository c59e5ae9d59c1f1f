// Package llm is the text-completion adapter: a prompt goes in, raw text comes out.
// Providers are wired through CloudWeGo Eino chat models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

var (
	// ErrTransport covers network, auth and timeout failures reaching the model.
	ErrTransport = errors.New("llm: transport error")
	// ErrQuota is returned when the provider rejects the call for rate or quota reasons.
	ErrQuota = errors.New("llm: quota exceeded")
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Completer turns a prompt into raw model text. Output has no guaranteed structure.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string // Required for everything except Ollama
	BaseURL  string // Ollama server, or an OpenAI-compatible endpoint
	Timeout  time.Duration
}

// NewChatModel creates an Eino chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: 1024,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})

	default:
		return nil, &UnsupportedProviderError{Provider: string(cfg.Provider)}
	}
}

// ChatCompleter sends single-turn user prompts to an Eino chat model.
type ChatCompleter struct {
	chat    model.BaseChatModel
	timeout time.Duration
}

// NewChatCompleter wraps chat. A positive timeout bounds every Complete call.
func NewChatCompleter(chat model.BaseChatModel, timeout time.Duration) *ChatCompleter {
	return &ChatCompleter{chat: chat, timeout: timeout}
}

// New builds the provider model and wraps it in a ChatCompleter.
func New(ctx context.Context, cfg Config) (*ChatCompleter, error) {
	chat, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatCompleter(chat, cfg.Timeout), nil
}

func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

var quotaMarkers = []string{"429", "quota", "rate limit", "resource_exhausted", "resource exhausted", "too many requests"}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrQuota, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
