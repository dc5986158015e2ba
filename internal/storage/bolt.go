// Package storage — bolt.go
//
// BoltDB-backed audit ledger for the harness.
//
// Schema (BoltDB bucket layout):
//
//	/eventpacks
//	    key:   fixed-width UTC RFC3339 nanosecond recorded-at timestamp + "_" + monotonic sequence
//	    value: JSON-encoded EventPackRecord
//
//	/decisions
//	    key:   fixed-width UTC RFC3339 nanosecond write timestamp + "_" + monotonic sequence
//	    value: JSON-encoded DecisionRecord
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Persistence:
//   - When StorageCfg.Persist is false (the default for ad-hoc runs and
//     CI), Open truncates any existing database file so each run starts
//     from an empty ledger.
//   - When Persist is true, the ledger accumulates across runs and is
//     never automatically pruned — this is an audit trail, not a cache.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "./bandharness.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketEventPacks = "eventpacks"
	bucketDecisions  = "decisions"
	bucketMeta       = "meta"
)

// EventPackRecord is the persisted form of an assembled EventPack.
// Stored as JSON in the eventpacks bucket. Kept as a plain record here
// (rather than importing internal/eventpack.EventPack directly) so the
// storage schema can evolve independently of the in-memory assembler type.
type EventPackRecord struct {
	T0            float64        `json:"t0"`
	T1            float64        `json:"t1"`
	Meta          map[string]any `json:"meta"`
	Discrepancies []string       `json:"discrepancies"`
	Adapter       map[string]any `json:"adapter,omitempty"`
	Outcome       map[string]any `json:"outcome,omitempty"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// DecisionRecord is a single Shield/Risk Gate decision, for audit replay.
// Stored as JSON in the decisions bucket.
type DecisionRecord struct {
	T         float64 `json:"t"`
	Accepted  bool    `json:"accepted"`
	Reason    string  `json:"reason"`
	VCap      float64 `json:"v_cap"`
	Fn        float64 `json:"fn"`
	Tau       float64 `json:"tau"`
	Risk      float64 `json:"risk,omitempty"`
	Abstained bool    `json:"abstained,omitempty"`
}

// Ledger wraps a BoltDB instance with typed accessors for harness audit
// records.
type Ledger struct {
	db  *bolt.DB
	seq uint64
}

// Open opens (or creates) the BoltDB database at path. If persist is
// false, any existing file at path is truncated first so the ledger
// starts empty for this run.
func Open(path string, persist bool) (*Ledger, error) {
	if !persist {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("storage.Open: truncate %q: %w", path, err)
		}
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	l := &Ledger{db: bdb}

	if err := l.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketEventPacks, bucketDecisions, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := l.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return l, nil
}

func (l *Ledger) checkSchemaVersion() error {
	return l.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf("schema version mismatch: database has %q, harness requires %q",
				string(v), SchemaVersion)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// sortableKey builds a lexicographically sortable key from a timestamp
// and a monotonic per-process sequence number, so same-timestamp writes
// (common at 50-500Hz) don't collide. The fractional seconds are always
// written with nine digits, so byte order matches time order.
func (l *Ledger) sortableKey(t time.Time) []byte {
	seq := atomic.AddUint64(&l.seq, 1)
	return []byte(fmt.Sprintf("%s_%020d", t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), seq))
}

// AppendEventPack writes one EventPackRecord to the eventpacks bucket.
func (l *Ledger) AppendEventPack(rec EventPackRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AppendEventPack marshal: %w", err)
	}
	key := l.sortableKey(rec.RecordedAt)
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEventPacks)).Put(key, data)
	})
}

// AppendDecision writes one DecisionRecord to the decisions bucket.
func (l *Ledger) AppendDecision(rec DecisionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("AppendDecision marshal: %w", err)
	}
	key := l.sortableKey(time.Now().UTC())
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDecisions)).Put(key, data)
	})
}

// ReadEventPacks returns all stored EventPackRecords in chronological
// order. For operational/audit inspection; not on any hot path.
func (l *Ledger) ReadEventPacks() ([]EventPackRecord, error) {
	var out []EventPackRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEventPacks)).ForEach(func(_, v []byte) error {
			var rec EventPackRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// ReadDecisions returns all stored DecisionRecords in chronological
// order.
func (l *Ledger) ReadDecisions() ([]DecisionRecord, error) {
	var out []DecisionRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDecisions)).ForEach(func(_, v []byte) error {
			var rec DecisionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}
