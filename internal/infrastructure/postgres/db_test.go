package postgres

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewPoolWithConfigInvalidURL(t *testing.T) {
	if _, err := NewPoolWithConfig(context.Background(), PoolConfig{DatabaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestNewPoolWithConfigPingFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}

	cfg := PoolConfig{
		DatabaseURL: "postgres://invalid:5432/db",
		MaxConns:    1,
	}
	if _, err := NewPoolWithConfig(context.Background(), cfg); err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}

func TestRunMigrationsMissingSource(t *testing.T) {
	err := RunMigrations("postgres://localhost:5432/db", t.TempDir()+"/absent", zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for a missing migrations directory")
	}
}
