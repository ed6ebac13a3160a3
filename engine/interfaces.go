package engine

import (
	"context"

	"github.com/hlgc/IceCream/models"
)

// ZoneSyncer is the per-entity-type unit the change engine drives. It is
// satisfied by *syncer.ObjectSyncer.
type ZoneSyncer interface {
	Zone() string
	Descriptor() models.EntityDescriptor

	Token(ctx context.Context) (models.ChangeToken, error)
	SetToken(ctx context.Context, token models.ChangeToken) error
	ClearToken(ctx context.Context) error

	ZoneCreated(ctx context.Context) (bool, error)
	MarkZoneCreated(ctx context.Context, created bool) error

	Add(record models.Record) error
	Delete(recordID models.RecordID) error
	Flush(ctx context.Context) error

	PushAll(ctx context.Context) error
	ResolvePending(ctx context.Context) error
}
