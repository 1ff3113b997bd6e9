package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"go.etcd.io/bbolt"
)

var vaultBucket = []byte("vault")

// BoltStore keeps the blob and profile in a single bbolt bucket. The file is
// created with 0600 so the vault is readable only by its owner.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(vaultBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating vault bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) put(key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(vaultBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to set vault[%s]: %w", key, err)
	}
	return nil
}

func (s *BoltStore) get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(vaultBucket).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get vault[%s]: %w", key, err)
	}
	return value, nil
}

func (s *BoltStore) SaveBlob(ctx context.Context, serialized string) error {
	return s.put(keyBlob, []byte(serialized))
}

func (s *BoltStore) LoadBlob(ctx context.Context) (string, error) {
	value, err := s.get(keyBlob)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (s *BoltStore) SaveProfile(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	return s.put(keyProfile, data)
}

func (s *BoltStore) LoadProfile(ctx context.Context) (*Profile, error) {
	value, err := s.get(keyProfile)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	var p Profile
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	return &p, nil
}

func (s *BoltStore) ClearAll(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(vaultBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(vaultBucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear vault: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
