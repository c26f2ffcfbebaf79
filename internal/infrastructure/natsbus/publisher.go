// Package natsbus publishes accepted alerts onto a NATS subject.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/resilience"
)

// Options tune the connection; zero values take defaults.
type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Executor             *resilience.Executor
	Logger               *slog.Logger
}

// Publisher sends alert envelopes to a single subject.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

// Message is the wire envelope consumers decode.
type Message struct {
	ID           string    `json:"id"`
	Ticker       string    `json:"ticker"`
	FormType     string    `json:"form_type"`
	RegistrantID string    `json:"registrant_id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Categories   []string  `json:"categories"`
	Composite    float64   `json:"composite"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Connect dials the server and returns a ready publisher.
func Connect(url, subject string, options Options) (*Publisher, error) {
	if subject == "" {
		return nil, errors.New("nats subject is empty")
	}
	name := options.Name
	if name == "" {
		name = "filing-scanner"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject, executor: options.Executor}, nil
}

// Close flushes pending publishes and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
}

// SaveAlert publishes the alert so the publisher can sit behind
// usecase.RepositoryDispatcher.
func (p *Publisher) SaveAlert(ctx context.Context, alert domain.Alert) error {
	payload, err := Encode(alert)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		return p.executor.Execute(ctx, "nats.publish", call, classify)
	}
	return call(ctx)
}

// Encode builds the wire payload for an alert.
func Encode(alert domain.Alert) ([]byte, error) {
	in := alert.Decision.Inputs
	msg := Message{
		ID:           alert.ID,
		Ticker:       in.Entity.Ticker,
		FormType:     in.Signals.FormType,
		RegistrantID: in.Filing.RegistrantID,
		Title:        in.Filing.Title,
		URL:          in.Filing.DocumentURL,
		Categories:   in.Signals.Categories(),
		Composite:    in.Score.Composite,
		Reason:       alert.Decision.Reason,
		CreatedAt:    alert.CreatedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return payload, nil
}

func classify(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrMaxPayload):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	default:
		return resilience.TransientClassifier(err)
	}
}
