package port

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrTransactionConflict = errors.New("transaction conflict")
)

// Document is a raw stored document returned by List.
type Document struct {
	ID   string
	Data []byte
}

func (d Document) Decode(dst any) error {
	return json.Unmarshal(d.Data, dst)
}

type DocumentStore interface {
	// Get decodes the document into dst, or returns ErrDocumentNotFound
	Get(ctx context.Context, collection, id string, dst any) error

	// Set writes the whole document, creating it if needed
	Set(ctx context.Context, collection, id string, doc any) error

	// List returns every document of a collection ordered by id
	List(ctx context.Context, collection string) ([]Document, error)

	// RunTransaction runs fn against a consistent snapshot and commits all of
	// its writes atomically. An error returned by fn aborts the transaction
	// with no writes applied and is returned unchanged.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction reads see the transaction's own writes. Writes are buffered
// and applied only when the transaction commits.
type Transaction interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Set(collection, id string, doc any) error

	// Update overwrites the given top-level fields of an existing document
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// ArrayAppend appends values to an array field of an existing document
	ArrayAppend(ctx context.Context, collection, id, field string, values ...any) error
}
