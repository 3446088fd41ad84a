package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txplain/service/metrics"
	"github.com/nats-io/nats.go"
)

// Publisher defines the interface for publishing explanation events.
type Publisher interface {
	// PublishExplanation publishes one event on its intent subject.
	PublishExplanation(ctx context.Context, event *ExplanationEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// CorePublisher publishes events with core NATS. Events are fire-and-forget:
// nothing is persisted and subscribers only see events published while connected.
type CorePublisher struct {
	nc      *nats.Conn
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher connects to NATS.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*CorePublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("txplain-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS publisher initialized", "url", natsURL)

	return &CorePublisher{
		nc:      nc,
		metrics: m,
		logger:  logger,
	}, nil
}

// PublishExplanation publishes a single explanation event.
func (p *CorePublisher) PublishExplanation(ctx context.Context, event *ExplanationEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal explanation event: %w", err)
	}

	start := time.Now()
	err = p.nc.Publish(subject, data)
	p.metrics.RecordNATSPublish(subject, publishStatus(err), metrics.Since(start))
	if err != nil {
		return fmt.Errorf("failed to publish explanation: %w", err)
	}

	p.logger.DebugContext(ctx, "published explanation event",
		"subject", subject,
		"signature", event.Signature,
	)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *CorePublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	p.logger.Info("NATS publisher closed")
	return nil
}

func publishStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
