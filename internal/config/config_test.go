package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(dotenvPathEnv, filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()
	if cfg.Poller.Freshness != 15*time.Minute {
		t.Fatalf("unexpected freshness %s", cfg.Poller.Freshness)
	}
	if cfg.Fetch.MaxDocuments != 2 {
		t.Fatalf("unexpected max documents %d", cfg.Fetch.MaxDocuments)
	}
	if len(cfg.SEC.Feeds) == 0 || cfg.SEC.Feeds[0].Scanner != "atom" {
		t.Fatalf("expected default atom feeds, got %+v", cfg.SEC.Feeds)
	}
	if cfg.Scheduler.Location().String() != "America/New_York" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
poller:
  maxPerCycle: 5
fetch:
  retry:
    delay: 500ms
marketData:
  chains:
    price: [fmp]
gate:
  volumeFloor: 1000
scheduler:
  timezone: Not/AZone
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(dotenvPathEnv, filepath.Join(dir, "missing.env"))

	cfg := Load()
	if cfg.Poller.MaxPerCycle != 5 {
		t.Fatalf("expected override maxPerCycle=5, got %d", cfg.Poller.MaxPerCycle)
	}
	if cfg.Poller.Freshness != 15*time.Minute {
		t.Fatalf("absent key should keep default, got %s", cfg.Poller.Freshness)
	}
	if cfg.Fetch.Retry.Delay != 500*time.Millisecond || cfg.Fetch.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected retry config %+v", cfg.Fetch.Retry)
	}
	if got := cfg.MarketData.Chains["price"]; len(got) != 1 || got[0] != "fmp" {
		t.Fatalf("unexpected price chain %v", got)
	}
	if cfg.Gate.VolumeFloor != 1000 {
		t.Fatalf("unexpected volume floor %v", cfg.Gate.VolumeFloor)
	}
	if cfg.Scheduler.Timezone != defaultTimezone {
		t.Fatalf("invalid timezone should revert to default, got %s", cfg.Scheduler.Timezone)
	}
}

func TestEnvOverridesAndDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("FINNHUB_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv(configPathEnv, "")
	t.Setenv(dotenvPathEnv, envFile)
	t.Setenv(finnhubKeyEnv, "")
	os.Unsetenv(finnhubKeyEnv)
	t.Setenv(fmpKeyEnv, "fmp-key")
	t.Setenv(secUserAgentEnv, "Tester tester@example.com")

	cfg := Load()
	if cfg.MarketData.Finnhub.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.MarketData.Finnhub.APIKey)
	}
	if cfg.MarketData.FMP.APIKey != "fmp-key" {
		t.Fatalf("expected env key, got %q", cfg.MarketData.FMP.APIKey)
	}
	if cfg.SEC.UserAgent != "Tester tester@example.com" {
		t.Fatalf("unexpected user agent %q", cfg.SEC.UserAgent)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	if _, err := parse([]byte("poller: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
