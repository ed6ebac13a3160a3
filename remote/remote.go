// Package remote defines the remote record-store collaborator the sync core
// consumes: change-token-based delta fetch, atomic batch modification, zone
// and subscription lifecycle and account-status queries. It also owns the
// classifiable error code space and the error classifier that drives the
// engine's retry, chunk and resync policy.
package remote

import (
	"context"

	"github.com/hlgc/IceCream/models"
)

//go:generate mockgen -source=remote.go -destination=../mock/remote_mock.go -package=mock

// SavePolicy controls how the server reconciles a saved record against the
// version it already holds.
type SavePolicy string

const (
	// SaveLastWriteWins overwrites remote field values regardless of the
	// remote version. The push path always uses it: offline-first, the local
	// edit wins.
	SaveLastWriteWins SavePolicy = "last_write_wins"
	// SaveIfUnchanged rejects the save with a server-record-changed error
	// when the remote version moved.
	SaveIfUnchanged SavePolicy = "if_unchanged"
)

// ModifyOptions parameterizes one batch-modify call. Atomic batches are
// all-or-nothing: one item's failure fails the whole batch.
type ModifyOptions struct {
	Atomic     bool       `json:"atomic"`
	SavePolicy SavePolicy `json:"save_policy"`
}

// DatabaseChanges is one page of the database-level change feed. More
// signals that the feed has further pages behind Token.
type DatabaseChanges struct {
	ChangedZones []string           `json:"changed_zones"`
	DeletedZones []string           `json:"deleted_zones"`
	Token        models.ChangeToken `json:"token"`
	More         bool               `json:"more"`
}

// ZoneChanges is one page of a zone-level change feed.
type ZoneChanges struct {
	Changed []models.Record    `json:"changed"`
	Deleted []models.RecordID  `json:"deleted"`
	Token   models.ChangeToken `json:"token"`
	More    bool               `json:"more"`
}

// Database is the remote record store. All failures that carry server-side
// semantics are returned as *Error so Classify can map them.
type Database interface {
	FetchDatabaseChanges(ctx context.Context, since models.ChangeToken) (DatabaseChanges, error)
	FetchZoneChanges(ctx context.Context, zone string, since models.ChangeToken) (ZoneChanges, error)
	ModifyRecords(ctx context.Context, save []models.Record, del []models.RecordID, opts ModifyOptions) error

	CreateZone(ctx context.Context, zone string) error
	DeleteZone(ctx context.Context, zone string) error

	CreateSubscription(ctx context.Context, subscriptionID string) error
	DeleteSubscription(ctx context.Context, subscriptionID string) error

	// ListOperations enumerates identifiers of long-running server-side
	// operations still in flight for this client; WaitOperation re-attaches
	// to one and blocks until it finishes.
	ListOperations(ctx context.Context) ([]string, error)
	WaitOperation(ctx context.Context, operationID string) error

	AccountStatus(ctx context.Context) (models.AccountStatus, error)
}
