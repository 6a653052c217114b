package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/handle"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

// ctxStore fails every call made with a finished context, the way a network
// client does.
type ctxStore struct {
	mu       sync.Mutex
	stored   map[string]ports.StoredResponse
	locked   map[string]bool
	released int
}

func newCtxStore() *ctxStore {
	return &ctxStore{stored: map[string]ports.StoredResponse{}, locked: map[string]bool{}}
}

func (s *ctxStore) Begin(ctx context.Context, key string) (*ports.StoredResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.stored[key]; ok {
		return &res, false, nil
	}
	if s.locked[key] {
		return nil, false, nil
	}
	s.locked[key] = true
	return nil, true, nil
}

func (s *ctxStore) Finish(ctx context.Context, key string, res ports.StoredResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, key)
	s.stored[key] = res
	return nil
}

func (s *ctxStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, key)
	s.released++
	return nil
}

// serveGone runs one request whose client disconnects while the handler works.
func serveGone(t *testing.T, im *Idempotency, status int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := im.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/trips", nil).WithContext(ctx)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	req.Header.Set(handle.HeaderUserId, "P_1")
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestIdempotencyStoresResponseAfterClientLeaves(t *testing.T) {
	store := newCtxStore()
	im := NewIdempotency(store, mylogger.Discard())

	serveGone(t, im, http.StatusAccepted)

	res, ok := store.stored["P_1:POST:/trips:k1"]
	if !ok || res.Status != http.StatusAccepted || string(res.Body) != `{"ok":true}` {
		t.Fatalf("stored = %+v, %v; want the 202 response", res, ok)
	}

	replay := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trips", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	req.Header.Set(handle.HeaderUserId, "P_1")
	im.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler ran for a replayed key")
	})).ServeHTTP(replay, req)
	if replay.Code != http.StatusAccepted || replay.Header().Get(HeaderIdempotencyHit) != "true" {
		t.Fatalf("replay = %d hit=%q", replay.Code, replay.Header().Get(HeaderIdempotencyHit))
	}
}

func TestIdempotencyReleasesKeyAfterClientLeaves(t *testing.T) {
	store := newCtxStore()
	im := NewIdempotency(store, mylogger.Discard())

	serveGone(t, im, http.StatusBadRequest)

	if store.released != 1 || store.locked["P_1:POST:/trips:k1"] {
		t.Fatalf("released = %d locked = %v; want the key freed", store.released, store.locked)
	}
	if _, ok := store.stored["P_1:POST:/trips:k1"]; ok {
		t.Fatalf("failed response must not be stored")
	}
}
