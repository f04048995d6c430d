package localstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
)

// QueuedOp is a pending local mutation plus its queue position.
type QueuedOp struct {
	Seq int64
	dto.PushItem
}

// Enqueue records a local mutation for the next sync push.
func (s *Store) Enqueue(item dto.PushItem) error {
	if item.LocalTimestamp.IsZero() {
		item.LocalTimestamp = time.Now().UTC()
	}
	var data any
	if len(item.Data) > 0 {
		data = string(item.Data)
	}
	_, err := s.db.Exec(
		`INSERT INTO sync_queue (entity_type, entity_id, operation, data, local_ts)
		 VALUES (?, ?, ?, ?, ?)`,
		string(item.EntityType), item.EntityID, string(item.Operation),
		data, item.LocalTimestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", item.Operation, item.EntityType, err)
	}
	return nil
}

// PendingOps returns every queued mutation in insertion order.
func (s *Store) PendingOps() ([]QueuedOp, error) {
	rows, err := s.db.Query(
		`SELECT id, entity_type, entity_id, operation, data, local_ts
		 FROM sync_queue ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	defer rows.Close()

	var ops []QueuedOp
	for rows.Next() {
		var (
			op   QueuedOp
			et   string
			oper string
			data *string
			ts   string
		)
		if err := rows.Scan(&op.Seq, &et, &op.EntityID, &oper, &data, &ts); err != nil {
			return nil, err
		}
		op.EntityType = dto.EntityType(et)
		op.Operation = dto.Operation(oper)
		if data != nil {
			op.Data = json.RawMessage(*data)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			op.LocalTimestamp = parsed
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// RemoveOps drops acknowledged mutations from the queue.
func (s *Store) RemoveOps(seqs []int64) error {
	for _, seq := range seqs {
		if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, seq); err != nil {
			return fmt.Errorf("remove queued op %d: %w", seq, err)
		}
	}
	return nil
}
