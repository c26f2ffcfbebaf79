package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewForwardsToSlog(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	New(base, "metrics").Printf("listener closed")

	out := buf.String()
	if !strings.Contains(out, "component=metrics") || !strings.Contains(out, "listener closed") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected error level, got %q", out)
	}
}
