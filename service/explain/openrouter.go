package explain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenRouterTimeout bounds a single OpenRouter call.
const DefaultOpenRouterTimeout = 60 * time.Second

// OpenRouterProvider calls the OpenRouter chat-completions API.
type OpenRouterProvider struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenRouterProvider creates an OpenRouter provider. An empty apiKey yields
// an unconfigured provider.
func NewOpenRouterProvider(apiKey, model, baseURL string, timeout time.Duration) *OpenRouterProvider {
	if timeout <= 0 {
		timeout = DefaultOpenRouterTimeout
	}
	apiKey = strings.TrimSpace(apiKey)

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenRouterProvider{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenRouterProvider) Name() string          { return "OpenRouter" }
func (p *OpenRouterProvider) CredentialEnv() string { return "OPENROUTER_API_KEY" }
func (p *OpenRouterProvider) Configured() bool      { return p.apiKey != "" }

func (p *OpenRouterProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", describeOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &EmptyReplyError{}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &EmptyReplyError{}
	}
	return content, nil
}

// describeOpenAIError flattens API errors to "HTTP <status>: <message>".
func describeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.HTTPStatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", apiErr.HTTPStatusCode, truncate(msg, 200))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return fmt.Errorf("HTTP %d: %s", reqErr.HTTPStatusCode, truncate(msg, 200))
	}
	return errors.New(truncate(err.Error(), 200))
}
