package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"parley/internal/domain"
)

const (
	usersBucket       = "users"
	emailsBucket      = "emails"
	messagesBucket    = "messages"
	threadsBucket     = "threads"
	groupsBucket      = "groups"
	membershipsBucket = "memberships"
)

var allBuckets = []string{
	usersBucket,
	emailsBucket,
	messagesBucket,
	threadsBucket,
	groupsBucket,
	membershipsBucket,
}

// Store is the bbolt-backed implementation of the server storage interfaces.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "boltstore.Open")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "boltstore.Open.CreateBuckets")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

// wrap annotates storage failures with op, passing domain errors through.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return errors.Wrap(err, op)
}

func getJSON(bkt *bolt.Bucket, key string, out any) (bool, error) {
	raw := bkt.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func putJSON(bkt *bolt.Bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bkt.Put([]byte(key), raw)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var (
	_ domain.UserStore     = (*Store)(nil)
	_ domain.LastSeenStore = (*Store)(nil)
	_ domain.MessageStore  = (*Store)(nil)
	_ domain.GroupStore    = (*Store)(nil)
)
