// Package bolt keeps bearer tokens in a local bbolt file, one key per
// backend origin, so a session survives process restarts.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pilab-dev/shadow-admin/cache"
	"go.etcd.io/bbolt"
)

// BucketName is the bucket holding tokens keyed by origin.
const BucketName = "tokens"

// TokenStore implements cache.TokenStore on a bbolt database.
type TokenStore struct {
	db     *bbolt.DB
	origin []byte
	ownsDB bool
}

// Open opens (or creates) the database at dbPath and scopes the store to
// origin. The returned store owns the database and closes it on Close.
func Open(dbPath, origin string) (*TokenStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token store directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	store, err := New(db, origin)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// New wraps an already open database. The caller keeps ownership of db.
func New(db *bbolt.DB, origin string) (*TokenStore, error) {
	if origin == "" {
		return nil, fmt.Errorf("%w: empty", cache.ErrInvalidOrigin)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketName)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TokenStore{db: db, origin: []byte(origin)}, nil
}

// Get implements cache.TokenStore.Get.
func (s *TokenStore) Get(_ context.Context) (string, bool, error) {
	var (
		token string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return nil
		}
		v := b.Get(s.origin)
		if v == nil {
			return nil
		}
		// v is only valid inside the transaction; string() copies.
		token = string(v)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read token for %s: %w", s.origin, err)
	}
	return token, found, nil
}

// Set implements cache.TokenStore.Set.
func (s *TokenStore) Set(_ context.Context, token string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", BucketName)
		}
		return b.Put(s.origin, []byte(token))
	})
	if err != nil {
		return fmt.Errorf("failed to store token for %s: %w", s.origin, err)
	}
	return nil
}

// Clear implements cache.TokenStore.Clear.
func (s *TokenStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return nil
		}
		return b.Delete(s.origin)
	})
	if err != nil {
		return fmt.Errorf("failed to clear token for %s: %w", s.origin, err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *TokenStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

var _ cache.TokenStore = (*TokenStore)(nil)
