package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/allshop-fulfillment/internal/port"
)

const (
	docKeyPrefix   = "doc:"
	indexKeyPrefix = "idx:"

	defaultMaxAttempts = 5
)

// RedisAdapter stores JSON documents under doc:{collection}:{id} and keeps
// one set of ids per collection. Transactions are optimistic: every key read
// inside the transaction is WATCHed and the buffered writes go out in a
// single MULTI/EXEC.
type RedisAdapter struct {
	client      *redis.Client
	maxAttempts int
}

func NewRedisAdapter(client *redis.Client, maxAttempts int) *RedisAdapter {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	return &RedisAdapter{client: client, maxAttempts: maxAttempts}
}

func (r *RedisAdapter) Get(ctx context.Context, collection, id string, dst any) error {
	data, err := r.client.Get(ctx, redisDocKey(docKey{collection, id})).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s/%s", port.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return port.Document{ID: id, Data: data}.Decode(dst)
}

func (r *RedisAdapter) Set(ctx context.Context, collection, id string, doc any) error {
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	writes := []pendingWrite{{key: docKey{collection, id}, data: data}}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		queueWrites(ctx, pipe, writes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *RedisAdapter) List(ctx context.Context, collection string) ([]port.Document, error) {
	ids, err := r.client.SMembers(ctx, indexKeyPrefix+collection).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisDocKey(docKey{collection, id})
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	docs := make([]port.Document, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		docs = append(docs, port.Document{ID: ids[i], Data: []byte(s)})
	}
	return docs, nil
}

// RunTransaction retries the whole body when a watched key changed before
// EXEC. Errors returned by fn are never retried.
func (r *RedisAdapter) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx port.Transaction) error) error {
	for attempt := 1; ; attempt++ {
		err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
			buf := newTxBuffer(func(ctx context.Context, key docKey) ([]byte, bool, error) {
				k := redisDocKey(key)
				if err := rtx.Watch(ctx, k).Err(); err != nil {
					return nil, false, err
				}
				data, err := rtx.Get(ctx, k).Bytes()
				if errors.Is(err, redis.Nil) {
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
			if len(writes) == 0 {
				return nil
			}

			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				queueWrites(ctx, pipe, writes)
				return nil
			})
			return err
		})

		if errors.Is(err, redis.TxFailedErr) {
			if attempt < r.maxAttempts {
				continue
			}
			return fmt.Errorf("%w: gave up after %d attempts", port.ErrTransactionConflict, attempt)
		}
		return err
	}
}

func queueWrites(ctx context.Context, pipe redis.Pipeliner, writes []pendingWrite) {
	for _, w := range writes {
		pipe.Set(ctx, redisDocKey(w.key), w.data, 0)
		pipe.SAdd(ctx, indexKeyPrefix+w.key.collection, w.key.id)
	}
}

func redisDocKey(key docKey) string {
	return docKeyPrefix + key.collection + ":" + key.id
}
