package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
)

const leaseSchema = `
CREATE TABLE IF NOT EXISTS leases (
	root        INTEGER NOT NULL,
	address     INTEGER NOT NULL,
	parent      INTEGER NOT NULL,
	request_id  INTEGER NOT NULL,
	granted_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	PRIMARY KEY (root, address)
);`

// SQLiteLeaseStore persists lease tables in a SQLite database. Several roots
// may share one database.
type SQLiteLeaseStore struct {
	db   *sql.DB
	root address.Logical
}

var _ dhcp.Store = (*SQLiteLeaseStore)(nil)

// OpenSQLite opens (or creates) the lease database at path for root.
func OpenSQLite(ctx context.Context, path string, root address.Logical) (*SQLiteLeaseStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, leaseSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create lease table: %w", err)
	}

	return &SQLiteLeaseStore{db: db, root: root}, nil
}

// Close closes the database.
func (s *SQLiteLeaseStore) Close() error {
	return s.db.Close()
}

// Save implements dhcp.Store.
func (s *SQLiteLeaseStore) Save(leases []dhcp.Lease) error {
	return s.SaveContext(context.Background(), leases)
}

// Load implements dhcp.Store.
func (s *SQLiteLeaseStore) Load() ([]dhcp.Lease, error) {
	return s.LoadContext(context.Background())
}

// SaveContext replaces the stored table of the root with leases.
func (s *SQLiteLeaseStore) SaveContext(ctx context.Context, leases []dhcp.Lease) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leases WHERE root = ?`, int64(s.root)); err != nil {
		return fmt.Errorf("clear leases: %w", err)
	}
	for _, l := range leases {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leases(root, address, parent, request_id, granted_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, int64(s.root), int64(l.Address), int64(l.Parent), int64(l.RequestID),
			timeToUnixMillis(l.GrantedAt), timeToUnixMillis(l.ExpiresAt))
		if err != nil {
			return fmt.Errorf("insert lease %v: %w", l.Address, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leases: %w", err)
	}
	return nil
}

// LoadContext returns the stored table of the root ordered by address.
func (s *SQLiteLeaseStore) LoadContext(ctx context.Context) ([]dhcp.Lease, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, parent, request_id, granted_at, expires_at
		FROM leases
		WHERE root = ?
		ORDER BY address
	`, int64(s.root))
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	var out []dhcp.Lease
	for rows.Next() {
		var (
			addr, parent, reqID int64
			grantedMs, expMs    int64
		)
		if err := rows.Scan(&addr, &parent, &reqID, &grantedMs, &expMs); err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		out = append(out, dhcp.Lease{
			Address:   address.Logical(addr),
			Parent:    address.Logical(parent),
			RequestID: uint32(reqID),
			GrantedAt: unixMillisToTime(grantedMs),
			ExpiresAt: unixMillisToTime(expMs),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leases: %w", err)
	}
	return out, nil
}

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
