package ports

import (
	"context"

	"transit-ledger/internal/ledger-service/core/domain/model"
)

type IDB interface {
	IsAlive() error
	Close() error
}

// ILedgerRepo persists the simulator between restarts.
type ILedgerRepo interface {
	// Load returns nil state and no error when nothing was saved yet.
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, state *model.State) error
}
