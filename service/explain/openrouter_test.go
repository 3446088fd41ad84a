package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterProvider_Complete(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "gen-1",
			"object": "chat.completion",
			"model": "google/gemini-2.0-flash",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  SUMMARY: ok  "}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider("sk-or-test", "google/gemini-2.0-flash", srv.URL+"/api/v1", time.Second)
	require.True(t, p.Configured())

	text, err := p.Complete(context.Background(), "explain this")
	require.NoError(t, err)

	assert.Equal(t, "SUMMARY: ok", text)
	assert.Equal(t, "Bearer sk-or-test", gotAuth)
	assert.Equal(t, "google/gemini-2.0-flash", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "explain this", gotBody.Messages[0].Content)
}

func TestOpenRouterProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantEmpty  bool
		wantPrefix string
	}{
		{
			name:       "api error",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "No auth credentials found", "code": 401}}`,
			wantPrefix: "HTTP 401: No auth credentials found",
		},
		{
			name:       "non-json error",
			status:     http.StatusBadGateway,
			body:       `upstream down`,
			wantPrefix: "HTTP 502: ",
		},
		{
			name:      "empty content",
			status:    http.StatusOK,
			body:      `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "   "}}]}`,
			wantEmpty: true,
		},
		{
			name:      "no choices",
			status:    http.StatusOK,
			body:      `{"choices": []}`,
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenRouterProvider("sk-or-test", "m", srv.URL, time.Second)
			_, err := p.Complete(context.Background(), "prompt")
			require.Error(t, err)

			var empty *EmptyReplyError
			assert.Equal(t, tt.wantEmpty, errors.As(err, &empty))
			if tt.wantPrefix != "" {
				assert.Contains(t, err.Error(), tt.wantPrefix)
			}
		})
	}
}

func TestOpenRouterProvider_Unconfigured(t *testing.T) {
	p := NewOpenRouterProvider("   ", "m", "https://openrouter.ai/api/v1", 0)
	assert.False(t, p.Configured())
	assert.Equal(t, "OPENROUTER_API_KEY", p.CredentialEnv())
}
