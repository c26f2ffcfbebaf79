package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const schema = `CREATE TABLE IF NOT EXISTS alerts (
    id            TEXT PRIMARY KEY,
    ticker        TEXT NOT NULL,
    registrant_id TEXT NOT NULL,
    form_type     TEXT NOT NULL,
    title         TEXT NOT NULL,
    document_url  TEXT NOT NULL,
    categories    TEXT[] NOT NULL,
    composite     DOUBLE PRECISION NOT NULL,
    stage         TEXT NOT NULL,
    reason        TEXT NOT NULL,
    inputs        JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
)`

// PostgresRepository persists accepted alerts into Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.AlertRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the alerts table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveAlert inserts the alert with its full decision inputs. Re-saving the
// same alert id is a no-op.
func (r *PostgresRepository) SaveAlert(ctx context.Context, alert domain.Alert) error {
	if r.db == nil {
		return nil
	}

	in := alert.Decision.Inputs
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query, args, err := r.builder.
		Insert("alerts").
		Columns("id", "ticker", "registrant_id", "form_type", "title", "document_url",
			"categories", "composite", "stage", "reason", "inputs", "created_at").
		Values(
			alert.ID,
			in.Entity.Ticker,
			in.Filing.RegistrantID,
			in.Signals.FormType,
			in.Filing.Title,
			in.Filing.DocumentURL,
			pq.StringArray(in.Signals.Categories()),
			in.Score.Composite,
			alert.Decision.Stage,
			alert.Decision.Reason,
			string(payload),
			alert.CreatedAt,
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentDecisions loads the latest accepted decisions, oldest first, so a
// restarted gate can rebuild its duplicate history.
func (r *PostgresRepository) RecentDecisions(ctx context.Context, limit uint64) ([]domain.GateDecision, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := r.builder.
		Select("stage", "reason", "inputs", "created_at").
		From("alerts").
		OrderBy("created_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	var result []domain.GateDecision
	for rows.Next() {
		var (
			decision domain.GateDecision
			payload  []byte
		)
		if err := rows.Scan(&decision.Stage, &decision.Reason, &payload, &decision.DecidedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if err := json.Unmarshal(payload, &decision.Inputs); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode inputs: %w", err)
		}
		decision.Accepted = true
		result = append(result, decision)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}
