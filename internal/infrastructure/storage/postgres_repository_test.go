package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"FilingScanner/internal/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPostgresRepository(db), mock, func() { _ = db.Close() }
}

func sampleAlert() domain.Alert {
	at := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	return domain.Alert{
		ID:        "a-1",
		CreatedAt: at,
		Decision: domain.GateDecision{
			Accepted: true,
			Stage:    "accepted",
			Reason:   "composite 0.82",
			Inputs: domain.DecisionInputs{
				Filing: domain.FilingReference{
					RegistrantID: "1234567",
					Title:        "8-K - ACME CORP (0001234567) (Filer)",
					DocumentURL:  "https://www.sec.gov/Archives/edgar/data/1234567/x-index.htm",
				},
				Entity:  domain.EntityInfo{Ticker: "ACME"},
				Signals: domain.SignalSet{FormType: "8-K", Signals: []domain.Signal{{Category: domain.CategoryOffering}}},
				Score:   domain.ScoreBreakdown{Composite: 0.82},
			},
		},
	}
}

func TestSaveAlertInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	alert := sampleAlert()
	mock.ExpectExec("INSERT INTO alerts").
		WithArgs("a-1", "ACME", "1234567", "8-K",
			alert.Decision.Inputs.Filing.Title, alert.Decision.Inputs.Filing.DocumentURL,
			sqlmock.AnyArg(), 0.82, "accepted", "composite 0.82", sqlmock.AnyArg(), alert.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveAlert(context.Background(), alert); err != nil {
		t.Fatalf("SaveAlert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAlertWrapsExecError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO alerts").WillReturnError(errors.New("connection reset"))

	if err := repo.SaveAlert(context.Background(), sampleAlert()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentDecisionsOldestFirst(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	older := sampleAlert().Decision.Inputs
	newer := older
	newer.Entity.Ticker = "BETA"
	olderJSON, _ := json.Marshal(older)
	newerJSON, _ := json.Marshal(newer)

	t1 := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"stage", "reason", "inputs", "created_at"}).
		AddRow("accepted", "r2", newerJSON, t1.Add(time.Hour)).
		AddRow("accepted", "r1", olderJSON, t1)
	mock.ExpectQuery("SELECT stage, reason, inputs, created_at FROM alerts ORDER BY created_at DESC LIMIT 50").
		WillReturnRows(rows)

	got, err := repo.RecentDecisions(context.Background(), 50)
	if err != nil {
		t.Fatalf("RecentDecisions error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(got))
	}
	if got[0].Inputs.Entity.Ticker != "ACME" || got[1].Inputs.Entity.Ticker != "BETA" {
		t.Fatalf("unexpected order: %s, %s", got[0].Inputs.Entity.Ticker, got[1].Inputs.Entity.Ticker)
	}
	if !got[0].Accepted || got[0].Inputs.Score.Composite != 0.82 {
		t.Fatalf("unexpected decision %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNilDatabaseIsNoop(t *testing.T) {
	repo := NewPostgresRepository(nil)
	if err := repo.SaveAlert(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
