// Package icecream wires the sync core together: it builds one mapper and
// one zone synchronizer per registered entity descriptor, hands them to the
// database change engine and exposes pull, push-all and delete-all on top.
// Start runs the account-status observation loop that performs the one-time
// bootstrap once the remote account becomes available.
package icecream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hlgc/IceCream/attach"
	"github.com/hlgc/IceCream/config"
	"github.com/hlgc/IceCream/engine"
	"github.com/hlgc/IceCream/localstore"
	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/mapper"
	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/remote"
	"github.com/hlgc/IceCream/state"
	"github.com/hlgc/IceCream/syncer"
	"github.com/hlgc/IceCream/workers"
)

var ErrNoDescriptors = errors.New("at least one entity descriptor is required")

// Options collects the collaborators the sync engine consumes. Remote,
// Store, State and Attachments are required; Logger defaults to a no-op.
type Options struct {
	Scope       models.DatabaseScope
	Remote      remote.Database
	Store       localstore.Store
	State       state.Store
	Attachments attach.Store
	Descriptors []models.EntityDescriptor
	Logger      *logger.Logger
}

// SyncEngine is the facade over the sync core for one database scope.
type SyncEngine struct {
	cfg     config.Config
	scope   models.DatabaseScope
	remote  remote.Database
	state   state.Store
	queue   *workers.SerialQueue
	engine  *engine.Engine
	syncers []*syncer.ObjectSyncer
	logger  *logger.Logger

	status atomic.Int32

	mu           sync.Mutex
	cancelLoop   context.CancelFunc
	bootstrapped bool
	loopWG       sync.WaitGroup
}

// New validates every descriptor, builds the per-type mappers and
// synchronizers and assembles the change engine. Pending-relationship
// resolvers are shared per referenced target type, so references from
// different entity types to one target feed the same backlog.
func New(cfg config.Config, opts Options) (*SyncEngine, error) {
	if len(opts.Descriptors) == 0 {
		return nil, ErrNoDescriptors
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	registry := make(mapper.Registry, len(opts.Descriptors))
	for _, desc := range opts.Descriptors {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if _, ok := registry[desc.TypeName]; ok {
			return nil, fmt.Errorf("duplicate entity descriptor %q", desc.TypeName)
		}
		registry[desc.TypeName] = desc
	}

	resolvers := make(map[string]*mapper.Resolver)
	for _, desc := range opts.Descriptors {
		for _, f := range desc.Fields {
			if f.TargetType == "" {
				continue
			}
			if _, ok := resolvers[f.TargetType]; !ok {
				resolvers[f.TargetType] = mapper.NewResolver(f.TargetType, log)
			}
		}
	}

	e := &SyncEngine{
		cfg:    cfg,
		scope:  opts.Scope,
		remote: opts.Remote,
		state:  opts.State,
		queue:  workers.NewSerialQueue(cfg.QueueDepth, log),
		logger: log.WithComponent("sync-engine"),
	}

	zoneSyncers := make([]engine.ZoneSyncer, 0, len(opts.Descriptors))
	for _, desc := range opts.Descriptors {
		m, err := mapper.New(desc, registry, opts.Attachments, resolvers, log)
		if err != nil {
			return nil, err
		}

		var fed []*mapper.Resolver
		seen := make(map[string]struct{})
		for _, f := range desc.Fields {
			if f.TargetType == "" {
				continue
			}
			if _, ok := seen[f.TargetType]; ok {
				continue
			}
			seen[f.TargetType] = struct{}{}
			fed = append(fed, resolvers[f.TargetType])
		}

		s := syncer.New(syncer.Options{
			Descriptor:  desc,
			Mapper:      m,
			Store:       opts.Store,
			State:       opts.State,
			Attachments: opts.Attachments,
			Queue:       e.queue,
			Push: func(ctx context.Context, save []models.Record, del []models.RecordID) error {
				return e.engine.SyncLocalToRemote(ctx, save, del)
			},
			Resolvers:      fed,
			DebounceWindow: cfg.DebounceWindow,
			Logger:         log,
		})
		e.syncers = append(e.syncers, s)
		zoneSyncers = append(zoneSyncers, s)
	}

	e.engine = engine.New(engine.Options{
		Remote:     opts.Remote,
		State:      opts.State,
		Scope:      opts.Scope,
		Syncers:    zoneSyncers,
		ChunkLimit: cfg.ChunkLimit,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})
	return e, nil
}

// AccountStatus returns the last observed remote account status.
func (e *SyncEngine) AccountStatus() models.AccountStatus {
	return models.AccountStatus(e.status.Load())
}

// State returns the change engine's position in its fetch cycle.
func (e *SyncEngine) State() engine.State {
	return e.engine.State()
}

// Pull fetches the database-level change feed and applies every affected
// zone's changes locally.
func (e *SyncEngine) Pull(ctx context.Context) error {
	return e.engine.FetchChangesInDatabase(ctx)
}

// PushAll pushes every registered entity type's full local object set, in
// registration order. onProgress, when non-nil, receives the completed
// fraction after each type finishes. The first failure stops the push.
func (e *SyncEngine) PushAll(ctx context.Context, onProgress func(float64)) error {
	total := len(e.syncers)
	for i, s := range e.syncers {
		if err := s.PushAll(ctx); err != nil {
			return fmt.Errorf("push %s: %w", s.Descriptor().TypeName, err)
		}
		if onProgress != nil {
			onProgress(float64(i+1) / float64(total))
		}
	}
	return nil
}

// DeleteAll deletes all remote zones and recreates them empty.
func (e *SyncEngine) DeleteAll(ctx context.Context) error {
	return e.engine.DeleteAllRemoteData(ctx)
}

// Start launches the account-status observation loop. The first time the
// account reports available, the one-time bootstrap runs: local watchers are
// registered, zones created, interrupted remote operations resumed, the
// initial pull performed and the remote change-notification subscription
// ensured. Later status flips do not re-run the bootstrap.
func (e *SyncEngine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelLoop != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancelLoop = cancel

	e.loopWG.Add(1)
	go func() {
		defer e.loopWG.Done()
		e.observeAccount(loopCtx)
	}()
}

func (e *SyncEngine) observeAccount(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.AccountPollInterval)
	defer ticker.Stop()

	for {
		status, err := e.remote.AccountStatus(ctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("account status check failed")
			status = models.AccountIndeterminate
		}
		e.status.Store(int32(status))

		if status == models.AccountAvailable {
			e.mu.Lock()
			needed := !e.bootstrapped
			e.bootstrapped = true
			e.mu.Unlock()
			if needed {
				if err := e.bootstrap(ctx); err != nil {
					e.logger.Error().Err(err).Msg("bootstrap failed")
					e.mu.Lock()
					e.bootstrapped = false
					e.mu.Unlock()
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *SyncEngine) bootstrap(ctx context.Context) error {
	e.logger.Info().Msg("account available, bootstrapping")

	for _, s := range e.syncers {
		s.RegisterLocalDatabase()
	}
	if err := e.engine.CreateZonesIfNeeded(ctx); err != nil {
		return err
	}
	if err := e.resumeOperations(ctx); err != nil {
		return err
	}
	if err := e.Pull(ctx); err != nil {
		return err
	}
	return e.ensureSubscription(ctx)
}

// resumeOperations re-attaches to long-running remote operations that were
// in flight when the previous process stopped, instead of re-issuing them.
func (e *SyncEngine) resumeOperations(ctx context.Context) error {
	ops, err := e.remote.ListOperations(ctx)
	if err != nil {
		return fmt.Errorf("list in-flight operations: %w", err)
	}
	for _, id := range ops {
		e.logger.Info().Str("operation", id).Msg("resuming remote operation")
		if err := e.remote.WaitOperation(ctx, id); err != nil {
			return fmt.Errorf("resume operation %s: %w", id, err)
		}
	}
	return nil
}

// ensureSubscription creates the remote change-notification subscription
// once; the persisted flag makes the call idempotent across restarts.
func (e *SyncEngine) ensureSubscription(ctx context.Context) error {
	key := state.SubscriptionCreatedKey(e.scope)
	created, err := state.GetFlag(ctx, e.state, key)
	if err != nil || created {
		return err
	}

	if err = e.remote.CreateSubscription(ctx, uuid.NewString()); err != nil {
		return fmt.Errorf("create change subscription: %w", err)
	}
	return state.SetFlag(ctx, e.state, key, true)
}

// Stop halts the observation loop and local watchers, hard-deletes locally
// soft-deleted objects on every synchronizer (the app-lifecycle cleanup
// hook), waits for the queued work to drain and stops the serial queue.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	cancel := e.cancelLoop
	e.cancelLoop = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.loopWG.Wait()

	for _, s := range e.syncers {
		s.Stop()
		if err := s.CleanUp(); err != nil {
			e.logger.Error().Err(err).Msg("cleanup submit failed")
		}
	}
	for _, s := range e.syncers {
		if err := s.Flush(context.Background()); err != nil {
			e.logger.Error().Err(err).Msg("flush during stop failed")
			break
		}
	}
	e.queue.Stop()
}
