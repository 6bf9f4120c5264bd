package translate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion is returned when the backend answers without choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Role names the author of one chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn sent to the backend.
type Message struct {
	Role    Role
	Content string
}

// Backend produces one completion for a conversation.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// BackendConfig selects the chat-completion endpoint and model.
type BackendConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// OpenAIBackend talks to any OpenAI-compatible chat-completion endpoint.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a backend without automatic retries.
func NewOpenAIBackend(cfg BackendConfig) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Complete sends messages and returns the first choice verbatim.
func (b *OpenAIBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    b.model,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
