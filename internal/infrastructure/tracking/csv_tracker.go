// Package tracking appends accepted alerts to a CSV file that the price
// follow-up script reads.
package tracking

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

var header = []string{"Ticker", "Price", "Score", "Form", "Filed", "URL"}

// CSVTracker writes one row per alert. Safe for concurrent use.
type CSVTracker struct {
	path string
	mu   sync.Mutex
}

var _ ports.AlertRepository = (*CSVTracker)(nil)

func NewCSVTracker(path string) *CSVTracker {
	return &CSVTracker{path: path}
}

// SaveAlert appends the alert row, writing the header when the file is new.
func (t *CSVTracker) SaveAlert(_ context.Context, alert domain.Alert) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dir := filepath.Dir(t.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tracking dir: %w", err)
		}
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tracking file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat tracking file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(row(alert)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush tracking file: %w", err)
	}
	return nil
}

func row(alert domain.Alert) []string {
	in := alert.Decision.Inputs

	price := ""
	if in.Snapshot.Price.Known {
		price = strconv.FormatFloat(in.Snapshot.Price.Value, 'f', 4, 64)
	}

	filed := in.Filing.PublishedAt
	if filed.IsZero() {
		filed = alert.CreatedAt
	}

	return []string{
		in.Entity.Ticker,
		price,
		strconv.FormatFloat(in.Score.Composite, 'f', 2, 64),
		in.Signals.FormType,
		filed.UTC().Format(time.RFC3339),
		in.Filing.DocumentURL,
	}
}
