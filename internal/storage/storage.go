// Package storage is the string key-value persistence used by the profile
// and intake stores. The stores own their serialization; this layer only
// moves strings.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrRead wraps any failure to read from the backing store.
	ErrRead = errors.New("storage read failed")
	// ErrWrite wraps any failure to write to the backing store.
	ErrWrite = errors.New("storage write failed")
)

// KV is a string-keyed store of string values.
type KV interface {
	// Get returns the value for key. A missing key is reported with
	// ok == false and a nil error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// BatchSetter is implemented by stores that can write several keys in one
// transaction.
type BatchSetter interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// SetAll writes every entry of values, in a single batch when kv supports it.
func SetAll(ctx context.Context, kv KV, values map[string]string) error {
	if b, ok := kv.(BatchSetter); ok {
		return b.SetMany(ctx, values)
	}
	for k, v := range values {
		if err := kv.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}
