package db

import (
	"context"
	"fmt"
	"sync"

	"transit-ledger/internal/config"
	"transit-ledger/internal/mylogger"

	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	snapshot_id INT PRIMARY KEY,
	state       JSONB NOT NULL,
	version     BIGINT NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_events (
	event_id     TEXT PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	passenger_id TEXT,
	ts           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_events_status_idx ON ledger_events (status, ts);
`

// DB wraps a single pgx connection. pgx.Conn is not safe for concurrent use,
// so every access goes through the mutex.
type DB struct {
	ctx   context.Context
	cfg   config.DBconfig
	mylog mylogger.Logger
	conn  *pgx.Conn
	mu    *sync.Mutex
}

// New connects and makes sure the ledger tables exist.
func New(ctx context.Context, dbCfg config.DBconfig, mylog mylogger.Logger) (*DB, error) {
	d := &DB{
		cfg:   dbCfg,
		ctx:   ctx,
		mylog: mylog,
		mu:    &sync.Mutex{},
	}

	if err := d.connect(); err != nil {
		return nil, err
	}
	if err := d.migrate(); err != nil {
		d.conn.Close(ctx)
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	if err := d.conn.Close(d.ctx); err != nil {
		return fmt.Errorf("close database connection: %v", err)
	}
	return nil
}

// IsAlive pings the DB and reconnects once when the ping fails.
func (d *DB) IsAlive() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return fmt.Errorf("DB is not initialized")
	}
	if err := d.conn.Ping(d.ctx); err != nil {
		if connectionErr := d.connect(); connectionErr != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		d.mylog.Action("db_reconnected").Info("database connection re-established")
	}
	return nil
}

// withConn runs fn holding the connection lock.
func (d *DB) withConn(fn func(conn *pgx.Conn) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil || d.conn.IsClosed() {
		if err := d.connect(); err != nil {
			return err
		}
	}
	return fn(d.conn)
}

func (d *DB) migrate() error {
	return d.withConn(func(conn *pgx.Conn) error {
		if _, err := conn.Exec(d.ctx, schema); err != nil {
			return fmt.Errorf("create ledger schema: %w", err)
		}
		return nil
	})
}

func (d *DB) connect() error {
	conn, err := pgx.Connect(d.ctx, fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.cfg.User,
		d.cfg.Password,
		d.cfg.Host,
		d.cfg.Port,
		d.cfg.Database,
	))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	d.conn = conn
	return nil
}
