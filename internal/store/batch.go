package store

import (
	"context"
	"fmt"
)

type opKind int

const (
	opSet opKind = iota
	opIncrBy
	opSetPosition
)

type batchOp struct {
	kind   opKind
	key    string
	field  string
	value  string
	delta  int64
	result *IncrResult
}

// IncrResult is the per-operation result of a batched increment, filled in
// when the batch is applied.
type IncrResult struct {
	value   int64
	applied bool
}

// Value returns the post-increment counter value. It panics if the batch has
// not been applied yet, which is a programming error.
func (r *IncrResult) Value() int64 {
	if !r.applied {
		panic("store: IncrResult read before batch was applied")
	}
	return r.value
}

// Batch collects record and position mutations to be applied together in one
// transaction. Operations execute in the order they were queued.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set queues a field upsert.
func (b *Batch) Set(key, field, value string) {
	b.ops = append(b.ops, batchOp{kind: opSet, key: key, field: field, value: value})
}

// IncrBy queues an atomic counter increment. The returned result is readable
// after the batch is applied.
func (b *Batch) IncrBy(key, field string, delta int64) *IncrResult {
	result := &IncrResult{}
	b.ops = append(b.ops, batchOp{kind: opIncrBy, key: key, field: field, delta: delta, result: result})
	return result
}

// SetPosition queues a position-store write, so a cursor update can commit in
// the same transaction as the record writes it depends on.
func (b *Batch) SetPosition(name, value string) {
	b.ops = append(b.ops, batchOp{kind: opSetPosition, key: name, value: value})
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Apply runs every queued operation inside a single transaction and fills in
// per-operation results. If any operation fails the transaction rolls back
// and no results are readable.
func (s *RecordStore) Apply(ctx context.Context, batch *Batch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range batch.ops {
		switch op.kind {
		case opSet:
			if _, err := tx.ExecContext(ctx, setFieldSql, op.key, op.field, op.value); err != nil {
				return fmt.Errorf("batch set %s/%s failed: %w", op.key, op.field, err)
			}
		case opIncrBy:
			var value int64
			if err := tx.GetContext(ctx, &value, incrFieldSql, op.key, op.field, op.delta); err != nil {
				return fmt.Errorf("batch increment %s/%s failed: %w", op.key, op.field, err)
			}
			op.result.value = value
		case opSetPosition:
			if _, err := tx.ExecContext(ctx, setPositionSql, op.key, op.value); err != nil {
				return fmt.Errorf("batch position write %s failed: %w", op.key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	for _, op := range batch.ops {
		if op.result != nil {
			op.result.applied = true
		}
	}
	return nil
}
