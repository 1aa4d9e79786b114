package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rl1809/allshop-fulfillment/internal/port"
)

type docKey struct {
	collection string
	id         string
}

func (k docKey) String() string {
	return k.collection + "/" + k.id
}

// loadFunc reads a document as seen by the running transaction. It reports
// found=false for a missing document.
type loadFunc func(ctx context.Context, key docKey) (data []byte, found bool, err error)

type pendingWrite struct {
	key  docKey
	data []byte
}

// txBuffer implements port.Transaction on top of an adapter-specific loader.
// Writes are buffered in first-write order and applied by the adapter at
// commit. Reads see buffered writes.
type txBuffer struct {
	load    loadFunc
	docs    map[docKey]map[string]json.RawMessage
	missing map[docKey]bool
	dirty   map[docKey]bool
	order   []docKey
}

func newTxBuffer(load loadFunc) *txBuffer {
	return &txBuffer{
		load:    load,
		docs:    make(map[docKey]map[string]json.RawMessage),
		missing: make(map[docKey]bool),
		dirty:   make(map[docKey]bool),
	}
}

func (b *txBuffer) Get(ctx context.Context, collection, id string, dst any) error {
	doc, err := b.fetch(ctx, docKey{collection, id})
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(data, dst)
}

func (b *txBuffer) Set(collection, id string, doc any) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	key := docKey{collection, id}
	b.docs[key] = fields
	delete(b.missing, key)
	b.markDirty(key)
	return nil
}

func (b *txBuffer) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	key := docKey{collection, id}
	doc, err := b.fetch(ctx, key)
	if err != nil {
		return err
	}
	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		doc[name] = raw
	}
	b.markDirty(key)
	return nil
}

func (b *txBuffer) ArrayAppend(ctx context.Context, collection, id, field string, values ...any) error {
	key := docKey{collection, id}
	doc, err := b.fetch(ctx, key)
	if err != nil {
		return err
	}

	var items []json.RawMessage
	if raw, ok := doc[field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("field %s of %s is not an array: %w", field, key, err)
		}
	}
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s element: %w", field, err)
		}
		items = append(items, raw)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	doc[field] = raw
	b.markDirty(key)
	return nil
}

// writes returns the encoded documents to persist, in first-write order.
func (b *txBuffer) writes() ([]pendingWrite, error) {
	out := make([]pendingWrite, 0, len(b.order))
	for _, key := range b.order {
		data, err := json.Marshal(b.docs[key])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out = append(out, pendingWrite{key: key, data: data})
	}
	return out, nil
}

func (b *txBuffer) fetch(ctx context.Context, key docKey) (map[string]json.RawMessage, error) {
	if doc, ok := b.docs[key]; ok {
		return doc, nil
	}
	if b.missing[key] {
		return nil, fmt.Errorf("%w: %s", port.ErrDocumentNotFound, key)
	}

	data, found, err := b.load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		b.missing[key] = true
		return nil, fmt.Errorf("%w: %s", port.ErrDocumentNotFound, key)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	b.docs[key] = doc
	return doc, nil
}

func (b *txBuffer) markDirty(key docKey) {
	if !b.dirty[key] {
		b.dirty[key] = true
		b.order = append(b.order, key)
	}
}

func toFields(doc any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("document must encode as a JSON object: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return fields, nil
}
