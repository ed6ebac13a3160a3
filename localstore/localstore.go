// Package localstore defines the local object store the sync core
// collaborates with: transactional typed reads and writes keyed by primary
// key, plus a change-notification stream. Every write transaction carries an
// origin tag so consumers can tell local edits from remote changes being
// applied and avoid feedback loops.
package localstore

import (
	"context"
	"errors"

	"github.com/hlgc/IceCream/models"
)

// ErrNotFound is returned by Get when no object is stored under the key.
var ErrNotFound = errors.New("object not found")

// ReadTx reads objects inside a transaction. Keys are primary keys in
// record-name form.
type ReadTx interface {
	Get(typeName, key string) (*models.Object, error)
	List(typeName string) ([]*models.Object, error)
}

// WriteTx extends ReadTx with mutations. Put has insert-or-replace
// semantics; Delete of an absent key is a no-op.
type WriteTx interface {
	ReadTx
	Put(key string, obj *models.Object) error
	Delete(typeName, key string) error
}

// Store is the transactional local object store. Write runs fn inside one
// transaction tagged with origin; watchers receive one Change batch per
// committed transaction and entity type, carrying that origin.
type Store interface {
	Read(ctx context.Context, fn func(ReadTx) error) error
	Write(ctx context.Context, origin models.Origin, fn func(WriteTx) error) error
	// Watch subscribes to change batches for one entity type. The returned
	// cancel func closes the channel and drops the subscription.
	Watch(typeName string) (<-chan models.Change, func())
}
