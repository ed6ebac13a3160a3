// Package syncer owns the per-entity-type synchronization unit: it watches
// local mutations, maps them to remote records for the push path, and
// applies remote changes back into the local store through the serial
// background queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hlgc/IceCream/attach"
	"github.com/hlgc/IceCream/localstore"
	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/mapper"
	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/state"
	"github.com/hlgc/IceCream/workers"
)

// PushFunc forwards one batch of upserts and deletions to the orchestrator's
// push path.
type PushFunc func(ctx context.Context, save []models.Record, del []models.RecordID) error

// ObjectSyncer synchronizes one entity type with its remote zone.
type ObjectSyncer struct {
	desc        models.EntityDescriptor
	mapper      *mapper.Mapper
	store       localstore.Store
	state       state.Store
	attachments attach.Store
	queue       *workers.SerialQueue
	push        PushFunc
	resolvers   []*mapper.Resolver
	debounce    time.Duration
	logger      *logger.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
	cancelWatch   func()
	wg            sync.WaitGroup

	applyMu  sync.Mutex
	applyErr error
}

// Options collects the collaborators one synchronizer consumes.
type Options struct {
	Descriptor  models.EntityDescriptor
	Mapper      *mapper.Mapper
	Store       localstore.Store
	State       state.Store
	Attachments attach.Store
	Queue       *workers.SerialQueue
	Push        PushFunc
	// Resolvers are the pending-relationship resolvers fed by this
	// synchronizer's mapper.
	Resolvers      []*mapper.Resolver
	DebounceWindow time.Duration
	Logger         *logger.Logger
}

func New(opts Options) *ObjectSyncer {
	return &ObjectSyncer{
		desc:        opts.Descriptor,
		mapper:      opts.Mapper,
		store:       opts.Store,
		state:       opts.State,
		attachments: opts.Attachments,
		queue:       opts.Queue,
		push:        opts.Push,
		resolvers:   opts.Resolvers,
		debounce:    opts.DebounceWindow,
		logger:      &logger.Logger{Logger: opts.Logger.WithComponent("syncer").With().Str("entity", opts.Descriptor.TypeName).Logger()},
	}
}

// Descriptor returns the entity descriptor this synchronizer serves.
func (s *ObjectSyncer) Descriptor() models.EntityDescriptor { return s.desc }

// Zone returns the remote zone this synchronizer owns.
func (s *ObjectSyncer) Zone() string { return s.desc.Zone() }

// Token loads the persisted zone change token; nil means "from scratch".
func (s *ObjectSyncer) Token(ctx context.Context) (models.ChangeToken, error) {
	return state.GetToken(ctx, s.state, state.ZoneTokenKey(s.desc.Scope, s.desc.TypeName))
}

// SetToken persists the zone change token.
func (s *ObjectSyncer) SetToken(ctx context.Context, token models.ChangeToken) error {
	return s.state.Set(ctx, state.ZoneTokenKey(s.desc.Scope, s.desc.TypeName), token)
}

// ClearToken discards the persisted zone change token, forcing the next
// fetch to start from the beginning.
func (s *ObjectSyncer) ClearToken(ctx context.Context) error {
	return s.state.Delete(ctx, state.ZoneTokenKey(s.desc.Scope, s.desc.TypeName))
}

// ZoneCreated reads the persisted zone-creation flag.
func (s *ObjectSyncer) ZoneCreated(ctx context.Context) (bool, error) {
	return state.GetFlag(ctx, s.state, state.ZoneCreatedKey(s.desc.Scope, s.desc.TypeName))
}

// MarkZoneCreated persists the zone-creation flag.
func (s *ObjectSyncer) MarkZoneCreated(ctx context.Context, created bool) error {
	return state.SetFlag(ctx, s.state, state.ZoneCreatedKey(s.desc.Scope, s.desc.TypeName), created)
}

// RegisterLocalDatabase subscribes to local change notifications for this
// entity type. Rapid repeated calls are coalesced: only the most recent call
// within the debounce window takes effect.
func (s *ObjectSyncer) RegisterLocalDatabase() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.debounce <= 0 {
		s.startWatchLocked()
		return
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.startWatchLocked()
	})
}

func (s *ObjectSyncer) startWatchLocked() {
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}

	ch, cancel := s.store.Watch(s.desc.TypeName)
	s.cancelWatch = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for change := range ch {
			if change.Origin != models.OriginLocal {
				continue
			}
			if err := s.handleLocalChange(context.Background(), change); err != nil {
				s.logger.Error().Err(err).Msg("pushing local change failed")
			}
		}
	}()

	s.logger.Debug().Msg("local database registered")
}

// handleLocalChange maps one batch of local inserts/updates into records to
// upsert and identifiers to delete and forwards both to the push path. Local
// hard deletes are ignored: deletion syncs through the soft-delete flag.
func (s *ObjectSyncer) handleLocalChange(ctx context.Context, change models.Change) error {
	var save []models.Record
	var del []models.RecordID

	err := s.store.Read(ctx, func(tx localstore.ReadTx) error {
		keys := append(append([]string{}, change.Inserted...), change.Modified...)
		for _, key := range keys {
			obj, err := tx.Get(s.desc.TypeName, key)
			if errors.Is(err, localstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if obj.Deleted {
				del = append(del, s.mapper.RecordID(key))
				continue
			}
			rec, err := s.mapper.ToRecord(ctx, tx, obj)
			if err != nil {
				return err
			}
			save = append(save, rec)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(save) == 0 && len(del) == 0 {
		return nil
	}
	return s.push(ctx, save, del)
}

// recordApplyErr keeps the first failure of a queued apply task so the next
// Flush can report it instead of silently confirming the batch.
func (s *ObjectSyncer) recordApplyErr(err error) {
	s.applyMu.Lock()
	if s.applyErr == nil {
		s.applyErr = err
	}
	s.applyMu.Unlock()
}

func (s *ObjectSyncer) takeApplyErr() error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	err := s.applyErr
	s.applyErr = nil
	return err
}

// Add applies one remote record to the local store with insert-or-replace
// semantics. The mapping and write run on the serial background queue; the
// write is tagged applied-from-remote so it never feeds back into the push
// path. A failed apply surfaces from the next Flush.
func (s *ObjectSyncer) Add(record models.Record) error {
	return s.queue.Submit(func(ctx context.Context) {
		err := s.store.Write(ctx, models.OriginRemote, func(tx localstore.WriteTx) error {
			obj, err := s.mapper.FromRecord(ctx, tx, record)
			if err != nil {
				return err
			}
			return tx.Put(record.ID.Name, obj)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("record", record.ID.Name).Msg("applying remote record failed")
			s.recordApplyErr(fmt.Errorf("apply record %s: %w", record.ID.Name, err))
		}
	})
}

// Delete applies one remote deletion locally: attachment files addressed by
// the primary key are removed first, then the object. Absent objects are a
// no-op.
func (s *ObjectSyncer) Delete(recordID models.RecordID) error {
	return s.queue.Submit(func(ctx context.Context) {
		err := s.store.Write(ctx, models.OriginRemote, func(tx localstore.WriteTx) error {
			if _, err := tx.Get(s.desc.TypeName, recordID.Name); errors.Is(err, localstore.ErrNotFound) {
				return nil
			} else if err != nil {
				return err
			}

			if err := s.attachments.DeleteAll(ctx, recordID.Name); err != nil {
				return err
			}
			return tx.Delete(s.desc.TypeName, recordID.Name)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("record", recordID.Name).Msg("applying remote deletion failed")
			s.recordApplyErr(fmt.Errorf("apply deletion %s: %w", recordID.Name, err))
		}
	})
}

// CleanUp permanently removes all locally soft-deleted objects of this type.
func (s *ObjectSyncer) CleanUp() error {
	return s.queue.Submit(func(ctx context.Context) {
		err := s.store.Write(ctx, models.OriginRemote, func(tx localstore.WriteTx) error {
			objs, err := tx.List(s.desc.TypeName)
			if err != nil {
				return err
			}
			for _, obj := range objs {
				if !obj.Deleted {
					continue
				}
				key, err := obj.PrimaryKey(s.desc)
				if err != nil {
					return err
				}
				if err = tx.Delete(s.desc.TypeName, key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("cleanup of soft-deleted objects failed")
			s.recordApplyErr(fmt.Errorf("cleanup: %w", err))
		}
	})
}

// PushAll maps every non-deleted local object of this type and forwards the
// full batch to the push path. Used for the first-run bootstrap and full
// resync.
func (s *ObjectSyncer) PushAll(ctx context.Context) error {
	var save []models.Record

	err := s.store.Read(ctx, func(tx localstore.ReadTx) error {
		objs, err := tx.List(s.desc.TypeName)
		if err != nil {
			return err
		}
		for _, obj := range objs {
			if obj.Deleted {
				continue
			}
			rec, err := s.mapper.ToRecord(ctx, tx, obj)
			if err != nil {
				return err
			}
			save = append(save, rec)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(save) == 0 {
		return nil
	}
	return s.push(ctx, save, nil)
}

// Flush blocks until every task queued so far has been executed and reports
// the first apply failure among them. The change engine flushes before
// persisting a zone token so tokens only advance past fully applied batches.
func (s *ObjectSyncer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.queue.Submit(func(context.Context) { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return s.takeApplyErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolvePending runs every pending-relationship resolver fed by this
// synchronizer's mapper.
func (s *ObjectSyncer) ResolvePending(ctx context.Context) error {
	for _, r := range s.resolvers {
		if err := r.Resolve(ctx, s.store); err != nil {
			return err
		}
	}
	return nil
}

// Stop unsubscribes from local change notifications and waits for the watch
// goroutine to drain.
func (s *ObjectSyncer) Stop() {
	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
