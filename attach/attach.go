// Package attach stores large binary payloads out-of-band from the local
// object store, addressed by the owning object's primary key, the field name
// and an optional file extension.
package attach

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no payload is stored at the address.
var ErrNotFound = errors.New("attachment not found")

// Store persists attachment payloads. Overwrite false leaves existing
// content at the same address untouched.
type Store interface {
	Save(ctx context.Context, ownerKey, field, extension string, data []byte, overwrite bool) error
	Load(ctx context.Context, ownerKey, field, extension string) ([]byte, error)
	// DeleteAll removes every payload owned by ownerKey, used when a remote
	// deletion is applied locally. Missing owners are a no-op.
	DeleteAll(ctx context.Context, ownerKey string) error
}
