package bolt

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/repository"
)

type storageRepository struct {
	db     *bolt.DB
	bucket []byte
}

// NewStorageRepository creates a bbolt-backed local storage. The bucket must
// already exist (see infrastructure/bolt.Open).
func NewStorageRepository(db *bolt.DB, bucket string) repository.LocalStorage {
	return &storageRepository{db: db, bucket: []byte(bucket)}
}

func (r *storageRepository) Get(ctx context.Context, key string) (string, error) {
	if err := r.ready(ctx); err != nil {
		return "", err
	}
	var value []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", domain.ErrKeyNotFound
	}
	return string(value), nil
}

func (r *storageRepository) Set(ctx context.Context, key, value string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (r *storageRepository) Remove(ctx context.Context, keys ...string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *storageRepository) Ping(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	return r.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(r.bucket) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

func (r *storageRepository) ready(ctx context.Context) error {
	if r == nil || r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return ctx.Err()
}
