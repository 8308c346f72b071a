package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sweeney/cloudcover-switch/internal/logic"
)

var (
	stateBucket  = []byte("duty_state")
	cyclesBucket = []byte("cycles")
	stateKey     = []byte("current")
)

// errNoBucket means the file was opened without OpenBolt preparing it.
var errNoBucket = errors.New("bolt bucket missing")

// Bolt stores state and cycle history in a bbolt file. The state is one JSON
// value; cycles are keyed by an increasing sequence number.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path and its buckets.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{stateBucket, cyclesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Load reads the state value. A missing value is a cold boot.
func (b *Bolt) Load(ctx context.Context) (logic.PersistentState, bool, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(stateBucket)
		if bk == nil {
			return errNoBucket
		}
		// Values are only valid inside the transaction.
		if v := bk.Get(stateKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return logic.PersistentState{}, false, fmt.Errorf("load state: %w", err)
	}
	if raw == nil {
		return logic.DefaultState(), false, nil
	}
	var st logic.PersistentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return logic.PersistentState{}, false, fmt.Errorf("load state: decode: %w", err)
	}
	return st, true, nil
}

// Save replaces the state value.
func (b *Bolt) Save(ctx context.Context, st logic.PersistentState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("save state: encode: %w", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(stateBucket)
		if bk == nil {
			return errNoBucket
		}
		return bk.Put(stateKey, raw)
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// AppendCycle stores rec under the next sequence number and drops the record
// that falls out of the retention window.
func (b *Bolt) AppendCycle(ctx context.Context, rec CycleRecord) error {
	rec.StartedAt = rec.StartedAt.UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("insert cycle: encode: %w", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(cyclesBucket)
		if bk == nil {
			return errNoBucket
		}
		seq, err := bk.NextSequence()
		if err != nil {
			return err
		}
		if err := bk.Put(seqKey(seq), raw); err != nil {
			return err
		}
		if seq > maxCycles {
			return bk.Delete(seqKey(seq - maxCycles))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// RecentCycles returns up to n cycle records, newest first.
func (b *Bolt) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	var out []CycleRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(cyclesBucket)
		if bk == nil {
			return errNoBucket
		}
		c := bk.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var r CycleRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode cycle %x: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	return out, nil
}

// Close closes the file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
