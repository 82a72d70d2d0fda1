// Package queue is the client's offline buffer. Operations performed while
// disconnected are appended here and drained into batch sync requests; the
// id map remembers which temporary ids the server has already assigned real
// ids to.
package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"flowsync/pkg/api"
)

var (
	bucketPendingOps = []byte("pending_ops")
	bucketIDMap      = []byte("id_map")
	bucketSession    = []byte("session")
)

var keySession = []byte("current")

// Session is the persisted login state.
type Session struct {
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	LastSyncUnix int64  `json:"last_sync_unix"`
}

// Queue is a BoltDB-backed operation queue.
type Queue struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the queue database at dbPath.
func Open(dbPath string) (*Queue, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	q := &Queue{db: db}

	if err := q.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return q, nil
}

// Close closes the database.
func (q *Queue) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}

func (q *Queue) initBuckets() error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPendingOps, bucketIDMap, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Enqueue appends an operation to the pending queue. Order is preserved:
// operations drain in the order they were enqueued.
func (q *Queue) Enqueue(op api.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPendingOps)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		return b.Put(key, data)
	})
}

// Pending returns all queued operations in enqueue order, with any payload
// references to already-mapped temporary ids rewritten to server ids.
func (q *Queue) Pending() ([]api.Operation, error) {
	var ops []api.Operation

	err := q.db.View(func(tx *bbolt.Tx) error {
		idMap := tx.Bucket(bucketIDMap)

		return tx.Bucket(bucketPendingOps).ForEach(func(k, v []byte) error {
			var op api.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			rewriteIDs(&op, idMap)
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// rewriteIDs replaces temporary ids in the payload with server ids once the
// mapping is known. A CREATE_ENTRY queued against a flow that was itself
// created offline references the flow's temp id until the flow syncs.
func rewriteIDs(op *api.Operation, idMap *bbolt.Bucket) {
	if len(op.Payload) == 0 {
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return
	}

	changed := false
	for _, field := range []string{"id", "flow_id"} {
		if v, ok := payload[field].(string); ok {
			if mapped := idMap.Get([]byte(v)); mapped != nil {
				payload[field] = string(mapped)
				changed = true
			}
		}
	}

	if !changed {
		return
	}

	if data, err := json.Marshal(payload); err == nil {
		op.Payload = data
	}
}

// Count returns the number of queued operations.
func (q *Queue) Count() (int, error) {
	var n int
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPendingOps).Stats().KeyN
		return nil
	})
	return n, err
}

// Ack removes the first n operations from the queue and records the id
// mappings the server returned. Called after a batch response: successful
// and duplicate operations are acked; failed ones are acked too, since
// retrying a rejected operation unchanged cannot succeed.
func (q *Queue) Ack(n int, idMappings map[string]string) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPendingOps)

		c := b.Cursor()
		removed := 0
		for k, _ := c.First(); k != nil && removed < n; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to delete operation: %w", err)
			}
			removed++
		}

		idBucket := tx.Bucket(bucketIDMap)
		for tempID, serverID := range idMappings {
			if tempID == "" || serverID == "" || tempID == serverID {
				continue
			}
			if err := idBucket.Put([]byte(tempID), []byte(serverID)); err != nil {
				return fmt.Errorf("failed to store id mapping: %w", err)
			}
		}

		return nil
	})
}

// ResolveID returns the server id for a temporary id, or the input unchanged
// if no mapping exists.
func (q *Queue) ResolveID(id string) (string, error) {
	resolved := id
	err := q.db.View(func(tx *bbolt.Tx) error {
		if mapped := tx.Bucket(bucketIDMap).Get([]byte(id)); mapped != nil {
			resolved = string(mapped)
		}
		return nil
	})
	return resolved, err
}

// SaveSession persists the login state.
func (q *Queue) SaveSession(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keySession, data)
	})
}

// LoadSession returns the persisted login state, or nil when logged out.
func (q *Queue) LoadSession() (*Session, error) {
	var s *Session

	err := q.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(keySession)
		if data == nil {
			return nil
		}
		s = &Session{}
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ClearSession removes the persisted login state.
func (q *Queue) ClearSession() error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keySession)
	})
}
