package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cashflow/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CASHFLOW_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CASHFLOW_TEST_VALUE", "")
	os.Unsetenv("CASHFLOW_TEST_VALUE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("CASHFLOW_TEST_VALUE"); got != "from-file" {
		t.Errorf("CASHFLOW_TEST_VALUE = %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	logger, err := SetupLogger("debug", "worker")
	if err != nil {
		t.Fatalf("SetupLogger() error = %v", err)
	}
	if logger.Component() != "worker" {
		t.Errorf("Component() = %q", logger.Component())
	}

	if _, err := SetupLogger("loud", "worker"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestOpenBackend(t *testing.T) {
	logger, err := SetupLogger("error", "cli")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{DataBackend: config.BackendMemory}
	result, err := OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	defer result.Cleanup()

	if result.Publisher() != nil {
		t.Error("expected no publisher without an AMQP URL")
	}

	if _, err := OpenBackend(context.Background(), logger, &config.Config{DataBackend: "bogus"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
