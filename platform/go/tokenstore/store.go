// Package tokenstore provides the expiring key/value store backing refresh
// tokens and the access-token blacklist.
package tokenstore

import (
	"context"
	"time"
)

// Store is an expiring key/value store. Entries disappear on their own once
// the TTL elapses; GetDel is the atomic claim used by refresh rotation so a
// token string can be consumed by at most one caller.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	GetDel(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
}
