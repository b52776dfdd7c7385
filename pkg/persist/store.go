package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rosterhq/teamkit/pkg/atomicsave"
	"github.com/rosterhq/teamkit/pkg/kvstore"
	"github.com/rosterhq/teamkit/pkg/opqueue"
)

// Store persists JSON-encoded records of type T in a key/value store with
// atomic save semantics: every write snapshots the current value first and
// registers a compensating rollback, so a failed multi-record save leaves
// the store as it was.
type Store[T any] struct {
	kv     kvstore.Store
	coord  *atomicsave.Coordinator[[]byte]
	queue  *opqueue.Queue
	prefix string
	logger *slog.Logger
}

// New creates a record store over the given backing store.
func New[T any](kv kvstore.Store, opts ...Option) (*Store[T], error) {
	if kv == nil {
		return nil, ErrStoreNil
	}

	options := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Store[T]{
		kv:     kv,
		coord:  atomicsave.NewCoordinator[[]byte](atomicsave.WithLogger(options.logger)),
		queue:  options.queue,
		prefix: options.prefix,
		logger: options.logger,
	}, nil
}

func (s *Store[T]) key(id string) string {
	return s.prefix + id
}

// Load reads and decodes the record with the given id.
func (s *Store[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, ErrEmptyID
	}

	data, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return zero, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, errors.Join(ErrUnmarshal, err)
	}
	return value, nil
}

// Save atomically writes one record. The current value is snapshotted inside
// the transaction, under a per-record lock, so concurrent saves of the same
// id cannot lose updates.
func (s *Store[T]) Save(ctx context.Context, id string, value T) error {
	return s.SaveAll(ctx, map[string]T{id: value})
}

// SaveAll writes several records in one all-or-nothing transaction: if any
// write fails, every record written before it is restored to its prior
// value (or deleted, if it was created by this call).
func (s *Store[T]) SaveAll(ctx context.Context, records map[string]T) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		if id == "" {
			return ErrEmptyID
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ops := make([]atomicsave.SaveOperation[[]byte], 0, len(records))
	keys := make([]string, 0, len(records))
	for _, id := range ids {
		data, err := json.Marshal(records[id])
		if err != nil {
			return errors.Join(ErrMarshal, err)
		}

		key := s.key(id)
		keys = append(keys, key)
		ops = append(ops, s.writeOperation(key, data))
	}

	res := s.coord.ExecuteAtomicSave(ctx, ops, atomicsave.WithLockKey(keys...))
	if !res.Success {
		return res.Err
	}
	return nil
}

// writeOperation builds the snapshot-now, compensate-later step for one key.
// The snapshot read happens inside Execute, after the transaction's key
// locks are held.
func (s *Store[T]) writeOperation(key string, data []byte) atomicsave.SaveOperation[[]byte] {
	var prev []byte
	var existed bool

	return atomicsave.NewSaveOperation("write "+key,
		func(ctx context.Context) ([]byte, error) {
			snapshot, err := s.kv.Get(ctx, key)
			switch {
			case err == nil:
				prev, existed = snapshot, true
			case !errors.Is(err, kvstore.ErrKeyNotFound):
				return nil, err
			}
			return data, s.kv.Set(ctx, key, data)
		},
		func(ctx context.Context) error {
			if existed {
				return s.kv.Set(ctx, key, prev)
			}
			return s.kv.Delete(ctx, key)
		},
	)
}

// Delete atomically removes a record; the rollback restores the deleted
// value should a later operation in the same transaction fail.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	key := s.key(id)

	var prev []byte
	var existed bool
	op := atomicsave.NewSaveOperation("delete "+key,
		func(ctx context.Context) ([]byte, error) {
			snapshot, err := s.kv.Get(ctx, key)
			switch {
			case err == nil:
				prev, existed = snapshot, true
			case !errors.Is(err, kvstore.ErrKeyNotFound):
				return nil, err
			}
			return nil, s.kv.Delete(ctx, key)
		},
		func(ctx context.Context) error {
			if existed {
				return s.kv.Set(ctx, key, prev)
			}
			return nil
		},
	)

	res := s.coord.ExecuteAtomicSave(ctx, []atomicsave.SaveOperation[[]byte]{op},
		atomicsave.WithLockKey(key))
	if !res.Success {
		return res.Err
	}
	return nil
}

// IDs lists the identifiers of every stored record.
func (s *Store[T]) IDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, s.prefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// QueueSave submits the save to the attached operation queue at the given
// priority instead of running it inline: user-triggered saves typically go
// in at PriorityHigh, auto-save sweeps at PriorityLow.
func (s *Store[T]) QueueSave(id string, value T, priority opqueue.Priority) (*opqueue.Ticket, error) {
	if s.queue == nil {
		return nil, ErrNoQueue
	}
	if id == "" {
		return nil, ErrEmptyID
	}

	op := opqueue.NewOperation("save "+s.key(id), priority,
		func(ctx context.Context) (any, error) {
			return nil, s.Save(ctx, id, value)
		})
	return s.queue.Add(op)
}

// QueueLoad submits a critical-priority load to the attached queue. The
// ticket's Outcome.Result carries the decoded record.
func (s *Store[T]) QueueLoad(id string) (*opqueue.Ticket, error) {
	if s.queue == nil {
		return nil, ErrNoQueue
	}
	if id == "" {
		return nil, ErrEmptyID
	}

	op := opqueue.NewOperation("load "+s.key(id), opqueue.PriorityCritical,
		func(ctx context.Context) (any, error) {
			return s.Load(ctx, id)
		})
	return s.queue.Add(op)
}
