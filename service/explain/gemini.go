package explain

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption customizes a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiBaseURL points the provider at a different API host.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = baseURL }
}

// WithGeminiHTTPClient sets the HTTP client used for API calls.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = c }
}

// NewGeminiProvider creates a Gemini provider. An empty apiKey yields an
// unconfigured provider.
func NewGeminiProvider(apiKey, model string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string          { return "Gemini" }
func (p *GeminiProvider) CredentialEnv() string { return "GEMINI_API_KEY" }
func (p *GeminiProvider) Configured() bool      { return p.apiKey != "" }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		reason := "no content"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return "", &EmptyReplyError{Reason: reason}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &EmptyReplyError{}
	}
	return text, nil
}
