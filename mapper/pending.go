package mapper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hlgc/IceCream/localstore"
	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/models"
)

// pendingEntry records that owner.(fieldName) should reference the object
// with targetKey once that object exists locally.
type pendingEntry struct {
	targetKey string
	fieldName string
	ownerType string
	ownerKey  string
	list      bool
}

// Resolver buffers references pointing at not-yet-materialized objects of
// one target entity type and applies them once the targets appear.
//
// Entries are keyed by target primary key: registering a second owner for
// the same pending target replaces the first (last-registered-wins).
type Resolver struct {
	targetType string
	logger     *logger.Logger

	mu      sync.Mutex
	entries map[string]pendingEntry
}

// NewResolver creates a resolver for references whose targets are objects of
// targetType.
func NewResolver(targetType string, log *logger.Logger) *Resolver {
	return &Resolver{
		targetType: targetType,
		logger:     log.WithComponent("pending-resolver"),
		entries:    make(map[string]pendingEntry),
	}
}

// TargetType returns the entity type this resolver watches for.
func (r *Resolver) TargetType() string { return r.targetType }

// Add registers a pending reference. Idempotent per target key.
func (r *Resolver) Add(targetKey, fieldName, ownerType, ownerKey string, list bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[targetKey] = pendingEntry{
		targetKey: targetKey,
		fieldName: fieldName,
		ownerType: ownerType,
		ownerKey:  ownerKey,
		list:      list,
	}
}

// Len reports how many entries are still pending.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Resolve walks every pending entry: when the target object now exists in
// the local store, the reference is applied to the owner inside one write
// transaction and the entry is removed. Targets still absent stay pending.
// A resolver with no entries is a no-op. No ordering is guaranteed between
// distinct entries.
func (r *Resolver) Resolve(ctx context.Context, store localstore.Store) error {
	r.mu.Lock()
	snapshot := make([]pendingEntry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.Unlock()

	for _, entry := range snapshot {
		applied, err := r.resolveOne(ctx, store, entry)
		if err != nil {
			return err
		}
		if applied {
			r.mu.Lock()
			// Only remove if nobody re-registered the key meanwhile.
			if cur, ok := r.entries[entry.targetKey]; ok && cur == entry {
				delete(r.entries, entry.targetKey)
			}
			r.mu.Unlock()
		}
	}
	return nil
}

func (r *Resolver) resolveOne(ctx context.Context, store localstore.Store, entry pendingEntry) (bool, error) {
	applied := false
	err := store.Write(ctx, models.OriginRemote, func(tx localstore.WriteTx) error {
		if _, err := tx.Get(r.targetType, entry.targetKey); errors.Is(err, localstore.ErrNotFound) {
			return nil // still pending
		} else if err != nil {
			return err
		}

		owner, err := tx.Get(entry.ownerType, entry.ownerKey)
		if errors.Is(err, localstore.ErrNotFound) {
			// Owner is gone; the backlink is moot but the entry is settled.
			applied = true
			return nil
		}
		if err != nil {
			return err
		}

		if entry.list {
			current, _ := owner.Get(entry.fieldName).([]string)
			for _, k := range current {
				if k == entry.targetKey {
					applied = true
					return nil
				}
			}
			owner.Set(entry.fieldName, append(current, entry.targetKey))
		} else {
			owner.Set(entry.fieldName, entry.targetKey)
		}

		if err = tx.Put(entry.ownerKey, owner); err != nil {
			return fmt.Errorf("apply pending reference %s.%s: %w", entry.ownerType, entry.fieldName, err)
		}
		applied = true

		r.logger.Debug().
			Str("target", entry.targetKey).
			Str("owner", entry.ownerKey).
			Str("field", entry.fieldName).
			Msg("pending reference applied")
		return nil
	})
	return applied, err
}
