package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

const (
	recordsBucket = "bill_records"
	byKeyBucket   = "by_secondary_key"
)

// Bolt is the embedded single-file backend. bbolt serializes writers, so the
// read-then-put inside one Update transaction is the atomic check-and-insert.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(byKeyBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Lookup(_ context.Context, fp entity.Fingerprint) (*entity.BillRecord, error) {
	var rec *entity.BillRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(recordsBucket)).Get(fp[:])
		if data == nil {
			return common.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *Bolt) Candidates(_ context.Context, keys []string) ([]*entity.BillRecord, error) {
	var out []*entity.BillRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(recordsBucket))
		c := tx.Bucket([]byte(byKeyBucket)).Cursor()
		for _, key := range keys {
			prefix := indexPrefix(key)
			for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
				data := records.Get(v)
				if data == nil {
					continue
				}
				var rec entity.BillRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return fmt.Errorf("unmarshaling record: %w", err)
				}
				out = append(out, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Commit(_ context.Context, rec *entity.BillRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(recordsBucket))
		if records.Get(rec.Fingerprint[:]) != nil {
			return common.ErrAlreadyExists
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := records.Put(rec.Fingerprint[:], data); err != nil {
			return err
		}
		idx := append(indexPrefix(rec.SecondaryKey), rec.Fingerprint[:]...)
		return tx.Bucket([]byte(byKeyBucket)).Put(idx, rec.Fingerprint[:])
	})
}

func (b *Bolt) Close() error { return b.db.Close() }

// indexPrefix terminates the key with a NUL so "12:1" never prefixes "12:10".
func indexPrefix(key string) []byte {
	return append([]byte(key), 0x00)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
