package explain

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Provider is a text-completion backend.
type Provider interface {
	// Name is the human-readable provider name used in messages.
	Name() string
	// CredentialEnv is the environment variable holding the provider's credential.
	CredentialEnv() string
	// Configured reports whether a credential is present.
	Configured() bool
	// Complete sends prompt and returns the reply text.
	// An empty or blocked reply is reported as *EmptyReplyError.
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmptyReplyError is returned when a provider answers without usable text.
type EmptyReplyError struct {
	// Reason is the block reason reported by the provider, empty when the
	// reply simply had no text.
	Reason string
}

func (e *EmptyReplyError) Error() string {
	if e.Reason != "" {
		return "blocked or empty: " + e.Reason
	}
	return "empty response"
}

// IsQuotaError reports whether err signals rate limiting or exhausted quota.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource exhausted", "resource_exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isEmptyReply(err error) (*EmptyReplyError, bool) {
	var empty *EmptyReplyError
	if errors.As(err, &empty) {
		return empty, true
	}
	return nil, false
}
