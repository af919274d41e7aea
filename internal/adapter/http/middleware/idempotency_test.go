package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/usecase"
)

type fakeIdempotencyStore struct {
	checkAndSetFn func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	updateFn      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	released      []string
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if f.checkAndSetFn != nil {
		return f.checkAndSetFn(ctx, key, response, ttl)
	}
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, key, response, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func newIdempotencyRequest(method, key string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/customers/c-1/balance", bytes.NewBufferString(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotencyMiddleware_StoreErrorFailsRequest(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(context.Context, string, []byte, time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}

	rr := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop()).Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	var updated bool
	store := &fakeIdempotencyStore{
		updateFn: func(context.Context, string, []byte, time.Duration) error {
			updated = true
			return nil
		},
	}

	rr := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop()).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-fail"))

	if updated {
		t.Fatalf("expected error responses not to be cached")
	}
	if len(store.released) != 1 || !strings.HasSuffix(store.released[0], "key-fail") {
		t.Fatalf("expected key to be released, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_SkipsReadsAndKeylessRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		key    string
	}{
		{name: "get", method: http.MethodGet, key: "k"},
		{name: "post without key", method: http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeIdempotencyStore{
				checkAndSetFn: func(context.Context, string, []byte, time.Duration) (bool, []byte, error) {
					t.Fatal("store must not be consulted")
					return false, nil, nil
				},
			}

			called := false
			NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop()).Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			})).ServeHTTP(httptest.NewRecorder(), newIdempotencyRequest(tt.method, tt.key))

			if !called {
				t.Fatalf("expected next handler to be called")
			}
		})
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	stored, _ := json.Marshal(storedResponse{
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"balance":300.00}`),
	})
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(context.Context, string, []byte, time.Duration) (bool, []byte, error) {
			return true, stored, nil
		},
	}

	rr := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop()).Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called when a stored response exists")
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-123"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", rr.Code)
	}
	if rr.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected %s header to be set", IdempotencyReplayHeader)
	}
	if got := rr.Body.String(); got != `{"balance":300.00}` {
		t.Fatalf("unexpected replayed body: %s", got)
	}
}

func TestIdempotencyMiddleware_InFlightKeyConflicts(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(context.Context, string, []byte, time.Duration) (bool, []byte, error) {
			return true, []byte(usecase.IdempotencyPending), nil
		},
	}

	rr := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop()).Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not run while the first request is in flight")
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-busy"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	var (
		storedKey  string
		storedBody []byte
		storedTTL  time.Duration
	)
	store := &fakeIdempotencyStore{
		updateFn: func(_ context.Context, key string, response []byte, ttl time.Duration) error {
			storedKey, storedBody, storedTTL = key, append([]byte(nil), response...), ttl
			return nil
		},
	}

	rr := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, 5*time.Minute, zerolog.Nop()).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, newIdempotencyRequest(http.MethodPost, "key-456"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}
	if storedKey != "POST /api/v1/customers/c-1/balance key-456" {
		t.Fatalf("key not scoped to method and path: %q", storedKey)
	}
	if storedTTL != 5*time.Minute {
		t.Fatalf("ttl = %s", storedTTL)
	}

	var got storedResponse
	if err := json.Unmarshal(storedBody, &got); err != nil {
		t.Fatalf("stored record is not JSON: %v", err)
	}
	if got.Status != http.StatusCreated || string(got.Body) != `{"ok":true}` || got.ContentType != "application/json" {
		t.Fatalf("stored record = %+v", got)
	}
}
