package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/allshop-fulfillment/internal/port"
)

const (
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

// MySQLAdapter keeps documents in a single documents table. Transactions
// lock every row they read with SELECT ... FOR UPDATE, so concurrent
// fulfillments touching the same lot or order are serialised by InnoDB.
type MySQLAdapter struct {
	db          *sql.DB
	maxAttempts int
}

func NewMySQLAdapter(db *sql.DB, maxAttempts int) *MySQLAdapter {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	return &MySQLAdapter{db: db, maxAttempts: maxAttempts}
}

func (m *MySQLAdapter) Get(ctx context.Context, collection, id string, dst any) error {
	var data []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", port.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("query document: %w", err)
	}
	return port.Document{ID: id, Data: data}.Decode(dst)
}

func (m *MySQLAdapter) Set(ctx context.Context, collection, id string, doc any) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	return upsertDocument(ctx, m.db, collection, id, data)
}

func (m *MySQLAdapter) List(ctx context.Context, collection string) ([]port.Document, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, data FROM documents WHERE collection = ? ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []port.Document
	for rows.Next() {
		var d port.Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RunTransaction retries the body when InnoDB picks it as a deadlock victim
// or a row lock wait times out.
func (m *MySQLAdapter) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx port.Transaction) error) error {
	for attempt := 1; ; attempt++ {
		err := m.runOnce(ctx, fn)
		if isRetryableLockError(err) {
			if attempt < m.maxAttempts {
				continue
			}
			return fmt.Errorf("%w: gave up after %d attempts: %v", port.ErrTransactionConflict, attempt, err)
		}
		return err
	}
}

func (m *MySQLAdapter) runOnce(ctx context.Context, fn func(ctx context.Context, tx port.Transaction) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	buf := newTxBuffer(func(ctx context.Context, key docKey) ([]byte, bool, error) {
		var data []byte
		err := tx.QueryRowContext(ctx, `
			SELECT data FROM documents WHERE collection = ? AND id = ? FOR UPDATE`,
			key.collection, key.id,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	})

	if err := fn(ctx, buf); err != nil {
		return err
	}

	writes, err := buf.writes()
	if err != nil {
		return err
	}
	for _, w := range writes {
		if err := upsertDocument(ctx, tx, w.key.collection, w.key.id, w.data); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDocument(ctx context.Context, db execer, collection, id string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE data = VALUES(data), version = version + 1, updated_at = NOW()`,
		collection, id, data,
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func isRetryableLockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
}
