package natsbus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"FilingScanner/internal/domain"
)

func TestEncodeFlattensAlert(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	alert := domain.Alert{
		ID:        "a-1",
		CreatedAt: at,
		Decision: domain.GateDecision{
			Reason: "two directional signals",
			Inputs: domain.DecisionInputs{
				Filing:  domain.FilingReference{RegistrantID: "1234567", DocumentURL: "https://example.test/x"},
				Entity:  domain.EntityInfo{Ticker: "ACME"},
				Signals: domain.SignalSet{FormType: "6-K", Signals: []domain.Signal{{Category: domain.CategoryOffering}, {Category: "Reverse Split"}}},
				Score:   domain.ScoreBreakdown{Composite: 0.74},
			},
		},
	}

	raw, err := Encode(alert)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Ticker != "ACME" || msg.FormType != "6-K" || msg.URL != "https://example.test/x" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(msg.Categories) != 2 || msg.Categories[0] != domain.CategoryOffering {
		t.Fatalf("unexpected categories %v", msg.Categories)
	}
	if !msg.CreatedAt.Equal(at) {
		t.Fatalf("unexpected time %v", msg.CreatedAt)
	}
}

func TestClassifyStopsOnClosedConnection(t *testing.T) {
	if classify(nats.ErrConnectionClosed).Retryable {
		t.Fatal("closed connection must not be retried")
	}
	if !classify(errors.New("i/o timeout")).Retryable {
		t.Fatal("generic failure should be retried")
	}
}

func TestNilPublisherCloseIsSafe(t *testing.T) {
	var p *Publisher
	p.Close()
}
