package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/txplain/service/metrics"
	"github.com/brojonat/txplain/service/solana"
)

const maxProviderErrorChars = 300

// Explainer turns transaction summaries into explanations. Quota errors from
// the primary provider are retried once, with the same prompt, on the secondary.
type Explainer struct {
	primary   Provider
	secondary Provider
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewExplainer creates an Explainer. secondary may be nil, which disables the fallback.
func NewExplainer(primary, secondary Provider, m *metrics.Metrics, logger *slog.Logger) *Explainer {
	return &Explainer{
		primary:   primary,
		secondary: secondary,
		metrics:   m,
		logger:    logger,
	}
}

// Explain asks the providers to explain summary. It never returns an error:
// failures are reported through Result.Failure.
func (e *Explainer) Explain(ctx context.Context, summary solana.Summary, simple bool) Result {
	result := e.explain(ctx, summary, simple)
	outcome := "ok"
	if result.Failure != nil {
		outcome = string(result.Failure.Kind)
	}
	e.metrics.RecordExplanation(outcome)
	return result
}

func (e *Explainer) explain(ctx context.Context, summary solana.Summary, simple bool) Result {
	if e.primary == nil || !e.primary.Configured() {
		env := "GEMINI_API_KEY"
		if e.primary != nil {
			env = e.primary.CredentialEnv()
		}
		e.logger.WarnContext(ctx, "primary provider not configured", "credential", env)
		return failed(KindConfig, env+" not set.")
	}

	prompt, err := BuildPrompt(summary, simple)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to build prompt", "error", err)
		return failed(KindProvider, truncate(err.Error(), maxProviderErrorChars))
	}

	text, err := e.call(ctx, e.primary, prompt)
	if err == nil {
		return answered(e.primary, text)
	}

	primaryName := e.primary.Name()
	if empty, ok := isEmptyReply(err); ok {
		if empty.Reason != "" {
			return failed(KindConfig, fmt.Sprintf("%s blocked or empty: %s", primaryName, empty.Reason))
		}
		return failed(KindConfig, primaryName+" returned empty response.")
	}

	if !IsQuotaError(err) {
		return failed(KindProvider, truncate(err.Error(), maxProviderErrorChars))
	}

	return e.fallback(ctx, prompt, primaryName)
}

func (e *Explainer) fallback(ctx context.Context, prompt, primaryName string) Result {
	if e.secondary == nil || !e.secondary.Configured() {
		env := "OPENROUTER_API_KEY"
		if e.secondary != nil {
			env = e.secondary.CredentialEnv()
		}
		e.metrics.RecordFallback("unconfigured")
		e.logger.InfoContext(ctx, "primary quota exceeded and no fallback configured", "credential", env)
		return failed(KindQuota, fmt.Sprintf(
			"%s quota exceeded. Set %s to enable the fallback provider, then check /debug to confirm it is loaded.",
			primaryName, env,
		))
	}

	e.logger.InfoContext(ctx, "primary quota exceeded, trying fallback",
		"primary", primaryName,
		"fallback", e.secondary.Name(),
	)

	text, err := e.call(ctx, e.secondary, prompt)
	if err != nil {
		reason := err.Error()
		if _, ok := isEmptyReply(err); ok {
			reason = "Empty response from " + e.secondary.Name()
		}
		reason = strings.TrimSuffix(truncate(reason, 200), ".")
		e.metrics.RecordFallback("failed")
		return failed(KindQuota, fmt.Sprintf("%s quota exceeded. %s fallback failed: %s.",
			primaryName, e.secondary.Name(), reason))
	}

	e.metrics.RecordFallback("success")
	return answered(e.secondary, text)
}

// call invokes one provider and records its latency and outcome.
func (e *Explainer) call(ctx context.Context, p Provider, prompt string) (string, error) {
	start := time.Now()
	text, err := p.Complete(ctx, prompt)
	duration := metrics.Since(start)

	status := "success"
	switch {
	case err == nil:
	case IsQuotaError(err):
		status = "quota"
	default:
		if _, ok := isEmptyReply(err); ok {
			status = "empty"
		} else {
			status = "error"
		}
	}
	e.metrics.RecordLLMCall(strings.ToLower(p.Name()), status, duration)

	if err != nil {
		e.logger.WarnContext(ctx, "provider call failed",
			"provider", p.Name(),
			"status", status,
			"error", err,
			"duration_seconds", duration,
		)
		return "", err
	}
	e.logger.DebugContext(ctx, "provider answered",
		"provider", p.Name(),
		"chars", len(text),
		"duration_seconds", duration,
	)
	return text, nil
}

func answered(p Provider, text string) Result {
	result := ParseReply(text)
	result.Provider = strings.ToLower(p.Name())
	return result
}
