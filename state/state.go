// Package state persists the sync core's key-value bookkeeping: change
// tokens, zone-creation flags, the subscription flag and the last successful
// sync timestamp. Keys are namespaced by database scope and entity type so
// independent synchronizers never collide.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/hlgc/IceCream/models"
)

//go:generate mockgen -source=state.go -destination=../mock/state_mock.go -package=mock

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("state key not found")

// Store is the persisted key-value state consumed by the sync core. Values
// are opaque blobs; tokens are stored as-is.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const keyPrefix = "icecream"

// DatabaseTokenKey names the database-level change token for a scope.
func DatabaseTokenKey(scope models.DatabaseScope) string {
	return fmt.Sprintf("%s/%s/database_change_token", keyPrefix, scope)
}

// ZoneTokenKey names the zone-level change token for an entity type.
func ZoneTokenKey(scope models.DatabaseScope, typeName string) string {
	return fmt.Sprintf("%s/%s/%s/zone_change_token", keyPrefix, scope, typeName)
}

// ZoneCreatedKey names the per-zone "zone created" flag.
func ZoneCreatedKey(scope models.DatabaseScope, typeName string) string {
	return fmt.Sprintf("%s/%s/%s/zone_created", keyPrefix, scope, typeName)
}

// SubscriptionCreatedKey names the "remote subscription created" flag.
func SubscriptionCreatedKey(scope models.DatabaseScope) string {
	return fmt.Sprintf("%s/%s/subscription_created", keyPrefix, scope)
}

// LastSyncKey names the last successful push timestamp for a scope.
func LastSyncKey(scope models.DatabaseScope) string {
	return fmt.Sprintf("%s/%s/last_sync", keyPrefix, scope)
}

// GetFlag reads a boolean flag; an absent key reads as false.
func GetFlag(ctx context.Context, s Store, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}

// SetFlag writes a boolean flag.
func SetFlag(ctx context.Context, s Store, key string, value bool) error {
	b := byte(0)
	if value {
		b = 1
	}
	return s.Set(ctx, key, []byte{b})
}

// GetToken reads a change token; an absent key reads as a nil token
// ("fetch from the beginning").
func GetToken(ctx context.Context, s Store, key string) (models.ChangeToken, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.ChangeToken(v), nil
}
