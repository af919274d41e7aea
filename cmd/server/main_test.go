package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/iho/storeledger/internal/infrastructure/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{
		HTTPPort:         "9090",
		HTTPReadTimeout:  5 * time.Second,
		HTTPWriteTimeout: 6 * time.Second,
		HTTPIdleTimeout:  7 * time.Second,
	}

	srv := newHTTPServer(cfg, http.NotFoundHandler())

	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %s", srv.Addr)
	}
	if srv.ReadTimeout != 5*time.Second || srv.WriteTimeout != 6*time.Second || srv.IdleTimeout != 7*time.Second {
		t.Fatalf("unexpected timeouts: %v %v %v", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
	if srv.Handler == nil {
		t.Fatal("handler not set")
	}
}
