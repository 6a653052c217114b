package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/handle"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/mylogger"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderIdempotencyHit = "X-Idempotency-Hit"
)

type Idempotency struct {
	store ports.IIdempotencyStore
	log   mylogger.Logger
}

// NewIdempotency returns a pass-through middleware when store is nil.
func NewIdempotency(store ports.IIdempotencyStore, log mylogger.Logger) *Idempotency {
	return &Idempotency{
		store: store,
		log:   log,
	}
}

// Wrap replays the first successful response for a repeated key. Keys are
// scoped to the caller, so it must run after the auth middleware.
func (im *Idempotency) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		if im.store == nil || key == "" || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		log := im.log.Action("idempotency")
		key = r.Header.Get(handle.HeaderUserId) + ":" + r.Method + ":" + r.URL.Path + ":" + key
		ctx := r.Context()

		stored, acquired, err := im.store.Begin(ctx, key)
		if err != nil {
			// store down: serve without protection
			log.Error("idempotency store unavailable", err)
			next.ServeHTTP(w, r)
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(HeaderIdempotencyHit, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}
		if !acquired {
			handle.JsonError(w, http.StatusConflict, errors.New("concurrent request with the same Idempotency-Key"))
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// the client may be gone already; the key must still settle
		ctx = context.WithoutCancel(ctx)
		if rec.status >= 200 && rec.status < 300 {
			if err := im.store.Finish(ctx, key, ports.StoredResponse{Status: rec.status, Body: rec.body.Bytes()}); err != nil {
				log.Error("cannot store response", err)
			}
			return
		}
		if err := im.store.Release(ctx, key); err != nil {
			log.Error("cannot release idempotency key", err)
		}
	})
}

// recorder copies the response while writing it through.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rr *recorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *recorder) Write(b []byte) (int, error) {
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}
