// Package storage is the durable key-value store backing the session and the
// exchange-rate cache. All keys live under one application namespace.
package storage

import (
	"context"
	"errors"
)

// Keys used by the application.
const (
	KeyUsername     = "username"
	KeyUserToken    = "userToken"
	KeyExchangeRate = "exchangeRate"
	KeyLastUpdated  = "lastUpdated"

	DefaultNamespace = "app-storage"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store persists string values by key. Get reports ok=false for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// SetMany writes every pair in order and stops at the first failure.
func SetMany(ctx context.Context, s Store, pairs ...[2]string) error {
	for _, kv := range pairs {
		if err := s.Set(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}
