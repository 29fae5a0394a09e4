package outbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store wraps BoltDB to persist overdue notices until they are handed
// to the sender, so a restart between sweep and delivery loses nothing.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "outbox"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// Enqueue stores a notice using a time-ordered key.
func (s *Store) Enqueue(notice Notice) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	notice.normalize()
	key := buildKey(notice)
	notice.bucketKey = []byte(key)

	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(notice.bucketKey, payload)
	})
}

// GetBatch returns up to limit notices without removing them.
func (s *Store) GetBatch(limit int) ([]Notice, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var notices []Notice
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(notices) < limit; k, v = c.Next() {
			var notice Notice
			if err := json.Unmarshal(v, &notice); err != nil {
				continue
			}
			notice.bucketKey = append([]byte(nil), k...)
			notices = append(notices, notice)
		}
		return nil
	})
	return notices, err
}

// Remove deletes the provided notice from the outbox.
func (s *Store) Remove(notice Notice) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(notice.bucketKey) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(notice.bucketKey)
	})
}

// Requeue re-inserts a notice after bumping its timestamp.
func (s *Store) Requeue(notice Notice) error {
	notice.bucketKey = nil
	notice.Timestamp = time.Now()
	return s.Enqueue(notice)
}

// Size returns the number of queued notices.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes notices older than the provided timestamp.
func (s *Store) Cleanup(olderThan time.Time) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var notice Notice
			if err := json.Unmarshal(v, &notice); err != nil {
				continue
			}
			if notice.Timestamp.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
