package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/penny-newsletter-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.MaxRetries)
	}
	if len(cfg.MarketTickers) != 3 || cfg.MarketTickers[0] != "^GSPC" {
		t.Errorf("unexpected default tickers: %v", cfg.MarketTickers)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_TIMEOUT", "3s")
	t.Setenv("MARKET_TICKERS", "AAPL, MSFT ,,")
	t.Setenv("SEED_RATE_PER_SEC", "0.5")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LLMTimeout != 3*time.Second {
		t.Errorf("expected 3s LLM timeout, got %s", cfg.LLMTimeout)
	}
	if len(cfg.MarketTickers) != 2 || cfg.MarketTickers[1] != "MSFT" {
		t.Errorf("unexpected tickers: %v", cfg.MarketTickers)
	}
	if cfg.SeedRatePerSec != 0.5 {
		t.Errorf("expected seed rate 0.5, got %f", cfg.SeedRatePerSec)
	}
}

func TestLoad_UnsubscribeSecret(t *testing.T) {
	t.Setenv("UNSUBSCRIBE_SECRET", "")
	if cfg := config.Load(); !cfg.DefaultSecret() || cfg.UnsubscribeSecret != config.DefaultUnsubscribeSecret {
		t.Errorf("expected the development secret, got %q", cfg.UnsubscribeSecret)
	}

	t.Setenv("UNSUBSCRIBE_SECRET", "s3cret")
	if cfg := config.Load(); cfg.DefaultSecret() || cfg.UnsubscribeSecret != "s3cret" {
		t.Errorf("expected the configured secret, got %q", cfg.UnsubscribeSecret)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "PENNY_TEST_A=from-file\nPENNY_TEST_B=\"quoted\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PENNY_TEST_A", "from-env")
	os.Unsetenv("PENNY_TEST_B")
	t.Cleanup(func() { os.Unsetenv("PENNY_TEST_B") })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("PENNY_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("PENNY_TEST_B"); got != "quoted" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
