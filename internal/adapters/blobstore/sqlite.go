package blobstore

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const defaultPoolSize = 4

const schema = `CREATE TABLE IF NOT EXISTS blobs (
	name    TEXT PRIMARY KEY NOT NULL,
	data    BLOB NOT NULL,
	updated INTEGER NOT NULL
) WITHOUT ROWID`

// SQLiteStore implements ports.BlobStore in a single sqlite database, so that
// several workspaces on one machine can share a cache.
type SQLiteStore struct {
	pool *sqlitex.Pool
	path string
}

// OpenSQLite opens (creating if necessary) the database at path.
func OpenSQLite(path string, poolSize int) (*SQLiteStore, error) {
	if path == "" {
		return nil, zerr.With(domain.ErrBlobStoreOpenFailed, "reason", "empty path")
	}
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrBlobStoreOpenFailed.Error()), "path", path)
	}
	return &SQLiteStore{pool: pool, path: path}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to apply pragma"), "pragma", pragma)
		}
	}
	return sqlitex.ExecuteTransient(conn, schema, nil)
}

// Get reads the blob stored under name.
func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrBlobReadFailed.Error()), "blob", name)
	}
	defer s.pool.Put(conn)

	var (
		data  []byte
		found bool
	)
	err = sqlitex.Execute(conn, "SELECT data FROM blobs WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrBlobReadFailed.Error()), "blob", name)
	}
	return data, found, nil
}

// Put replaces the blob stored under name inside an immediate transaction.
// A context cancelled before commit rolls the write back.
func (s *SQLiteStore) Put(ctx context.Context, name string, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	defer endTransaction(&err)

	if data == nil {
		data = []byte{}
	}
	err = sqlitex.Execute(conn, `INSERT INTO blobs (name, data, updated) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated = excluded.updated`,
		&sqlitex.ExecOptions{
			Args: []any{name, data, time.Now().UnixNano()},
		})
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}

	return ctx.Err()
}

// Delete removes the blob stored under name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM blobs WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	return nil
}

// Close closes every pooled connection.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return errors.Join(zerr.With(zerr.New("failed to close sqlite store"), "path", s.path), err)
	}
	return nil
}
