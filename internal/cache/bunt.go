package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/buntdb"
)

// BuntStore keeps values in a buntdb file. Use ":memory:" for a
// non-persistent store.
type BuntStore struct {
	db *buntdb.DB
}

// OpenBunt opens or creates the database at path.
func OpenBunt(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb %s: %w", path, err)
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	switch {
	case errors.Is(err, buntdb.ErrNotFound):
		return nil, false, nil
	case errors.Is(err, buntdb.ErrDatabaseClosed):
		return nil, false, ErrClosed
	case err != nil:
		return nil, false, fmt.Errorf("bunt get %s: %w", key, err)
	}
	return []byte(val), true, nil
}

// Set overwrites any previous value of key.
func (s *BuntStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(value), nil)
		return err
	})
	if errors.Is(err, buntdb.ErrDatabaseClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("bunt set %s: %w", key, err)
	}
	return nil
}

func (s *BuntStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	switch {
	case err == nil, errors.Is(err, buntdb.ErrNotFound):
		return nil
	case errors.Is(err, buntdb.ErrDatabaseClosed):
		return ErrClosed
	}
	return fmt.Errorf("bunt delete %s: %w", key, err)
}

func (s *BuntStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
	})
	if errors.Is(err, buntdb.ErrDatabaseClosed) {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("bunt keys %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *BuntStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, buntdb.ErrDatabaseClosed) {
		return err
	}
	return nil
}
