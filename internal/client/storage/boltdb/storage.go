// Package boltdb keeps the CLI session in a single bbolt file.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/client/storage"
	"go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	sessionKey    = []byte("current")
)

type Storage struct {
	db *bbolt.DB
}

var _ storage.SessionStore = (*Storage)(nil)

// New opens (creating if needed) the bbolt file at dbPath.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) SaveSession(ctx context.Context, sess *storage.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(sessionKey, data)
	})
}

// GetSession returns storage.ErrNoSession when nothing was saved.
func (s *Storage) GetSession(ctx context.Context) (*storage.Session, error) {
	var sess *storage.Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(sessionKey)
		if data == nil {
			return storage.ErrNoSession
		}
		sess = &storage.Session{}
		if err := json.Unmarshal(data, sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession is a no-op when nothing is stored.
func (s *Storage) DeleteSession(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
}
