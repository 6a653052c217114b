package ports

import "context"

type StoredResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IIdempotencyStore remembers responses per Idempotency-Key.
type IIdempotencyStore interface {
	// Begin returns the stored response when the key was already answered.
	// acquired is true when the caller now owns the key and must Finish or
	// Release it.
	Begin(ctx context.Context, key string) (stored *StoredResponse, acquired bool, err error)
	Finish(ctx context.Context, key string, res StoredResponse) error
	Release(ctx context.Context, key string) error
}
