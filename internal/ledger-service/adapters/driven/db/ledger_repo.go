package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"transit-ledger/internal/ledger-service/core/domain/model"
	"transit-ledger/internal/ledger-service/core/ports"

	"github.com/jackc/pgx/v5"
)

const snapshotId = 1

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) ports.ILedgerRepo {
	return &LedgerRepo{
		db: db,
	}
}

func (lr *LedgerRepo) Load(ctx context.Context) (*model.State, error) {
	q := `SELECT state FROM ledger_snapshots WHERE snapshot_id = $1`

	var raw []byte
	err := lr.db.withConn(func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, q, snapshotId).Scan(&raw)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}

	state := &model.State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return state, nil
}

// Save writes the snapshot and upserts every event row in one transaction.
func (lr *LedgerRepo) Save(ctx context.Context, state *model.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return lr.db.withConn(func(conn *pgx.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) // Safe rollback if not committed

		q1 := `
		INSERT INTO ledger_snapshots (snapshot_id, state, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (snapshot_id) DO UPDATE
		SET
			state = EXCLUDED.state,
			version = ledger_snapshots.version + 1,
			updated_at = NOW()`
		if _, err := tx.Exec(ctx, q1, snapshotId, raw); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		q2 := `
		INSERT INTO ledger_events (event_id, event_type, payload, status, error, passenger_id, ts)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
		ON CONFLICT (event_id) DO UPDATE
		SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			passenger_id = EXCLUDED.passenger_id
		WHERE ledger_events.status IS DISTINCT FROM EXCLUDED.status
			OR ledger_events.passenger_id IS DISTINCT FROM EXCLUDED.passenger_id`

		batch := &pgx.Batch{}
		for _, ev := range state.Events {
			batch.Queue(q2, ev.ID, string(ev.Type), []byte(ev.Payload), string(ev.Status), ev.Error, ev.PassengerID, ev.Ts)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("upsert events: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}
