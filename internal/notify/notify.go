// Package notify announces finished collection runs over NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// ErrMissingSubject is returned when a notifier is created without a subject.
var ErrMissingSubject = errors.New("notify subject is required")

// publisher is the subset of *nats.Conn used by the notifier.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Event is the message published for each run.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Summary   models.RunSummary `json:"summary"`
}

// Notifier publishes run events. The zero value, and a nil *Notifier, are no-ops.
type Notifier struct {
	conn    publisher
	close   func()
	log     *logger.Logger
	subject string
}

// Connect dials the NATS server. An empty url yields a no-op notifier.
func Connect(url, subject string, log *logger.Logger) (*Notifier, error) {
	if log == nil {
		log = logger.Discard()
	}

	if url == "" {
		log.Debug("notifications disabled")

		return &Notifier{log: log}, nil
	}

	nc, err := nats.Connect(url,
		nats.Name("hnsort"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	n, err := New(nc, subject, log)
	if err != nil {
		nc.Close()

		return nil, err
	}

	n.close = nc.Close

	log.Info("connected to nats", "url", nc.ConnectedUrlRedacted(), "subject", subject)

	return n, nil
}

// New wraps an existing connection.
func New(conn publisher, subject string, log *logger.Logger) (*Notifier, error) {
	if subject == "" {
		return nil, ErrMissingSubject
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Notifier{conn: conn, subject: subject, log: log}, nil
}

// Enabled reports whether events are actually published.
func (n *Notifier) Enabled() bool {
	return n != nil && n.conn != nil
}

// RunCompleted publishes the summary and waits for the server to receive it.
func (n *Notifier) RunCompleted(ctx context.Context, summary models.RunSummary) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(Event{
		Timestamp: time.Now().UTC(),
		Type:      "run.completed",
		Source:    "hnsort",
		Summary:   summary,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", n.subject, err)
	}

	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}

	n.log.Info("run event published", "subject", n.subject, "run_id", summary.RunID)

	return nil
}

// Close closes the underlying connection if this notifier opened it.
func (n *Notifier) Close() {
	if n != nil && n.close != nil {
		n.close()
	}
}
