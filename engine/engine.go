// Package engine orchestrates database-level and zone-level delta fetch
// across all zone synchronizers, drives the retry and chunk policy on the
// push path and persists change tokens and zone-creation flags.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/remote"
	"github.com/hlgc/IceCream/state"
)

// State is the engine's observable position in its fetch cycle.
type State int32

const (
	StateIdle State = iota
	StateFetchingDatabaseChanges
	StateFetchingZoneChanges
	StateResolvingPending
	StateRetrying
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingDatabaseChanges:
		return "fetching-database-changes"
	case StateFetchingZoneChanges:
		return "fetching-zone-changes"
	case StateResolvingPending:
		return "resolving-pending-relationships"
	case StateRetrying:
		return "retrying"
	default:
		return "aborted"
	}
}

// ErrRetriesExhausted wraps the last error after the retry cap is hit.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// Engine is the database change engine for one database scope.
type Engine struct {
	remote  remote.Database
	state   state.Store
	scope   models.DatabaseScope
	syncers []ZoneSyncer
	byZone  map[string]ZoneSyncer

	chunkLimit int
	maxRetries int
	logger     *logger.Logger

	st       atomic.Int32
	deleting atomic.Bool

	// now and sleep are swapped in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures a change engine.
type Options struct {
	Remote     remote.Database
	State      state.Store
	Scope      models.DatabaseScope
	Syncers    []ZoneSyncer
	ChunkLimit int
	MaxRetries int
	Logger     *logger.Logger
}

func New(opts Options) *Engine {
	byZone := make(map[string]ZoneSyncer, len(opts.Syncers))
	for _, s := range opts.Syncers {
		byZone[s.Zone()] = s
	}

	return &Engine{
		remote:     opts.Remote,
		state:      opts.State,
		scope:      opts.Scope,
		syncers:    opts.Syncers,
		byZone:     byZone,
		chunkLimit: opts.ChunkLimit,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger.WithComponent("change-engine"),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the engine's current position in the fetch cycle.
func (e *Engine) State() State {
	return State(e.st.Load())
}

func (e *Engine) setState(s State) {
	e.st.Store(int32(s))
}

// FetchChangesInDatabase pulls the database-level change feed since the last
// persisted token, then fetches zone-level changes for every affected zone
// and finally resolves pending relationships. Each intermediate token update
// is persisted immediately: the feed is resumable at sub-batch granularity.
func (e *Engine) FetchChangesInDatabase(ctx context.Context) error {
	e.setState(StateFetchingDatabaseChanges)

	affected := make(map[string]struct{})
	attempts := 0
	for {
		token, err := state.GetToken(ctx, e.state, state.DatabaseTokenKey(e.scope))
		if err != nil {
			return e.abort(err)
		}

		changes, err := e.remote.FetchDatabaseChanges(ctx, token)
		switch out := remote.Classify(err); out.Kind {
		case remote.OutcomeSuccess:
			if err = e.applyDatabasePage(ctx, changes, affected); err != nil {
				return e.abort(err)
			}
			if changes.More {
				continue
			}

		case remote.OutcomeRetry:
			attempts++
			if attempts > e.maxRetries {
				return e.abort(fmt.Errorf("%w: %w", ErrRetriesExhausted, err))
			}
			e.setState(StateRetrying)
			if serr := e.sleep(ctx, out.RetryAfter); serr != nil {
				return e.abort(serr)
			}
			e.setState(StateFetchingDatabaseChanges)
			continue

		case remote.OutcomeRecoverable:
			if out.Reason == remote.ReasonChangeTokenExpired {
				// The stored cursor is dead: drop it and restart the fetch
				// from the beginning of the feed.
				if derr := e.state.Delete(ctx, state.DatabaseTokenKey(e.scope)); derr != nil {
					return e.abort(derr)
				}
				e.logger.Warn().Msg("database change token expired, resyncing from scratch")
				continue
			}
			return e.abort(err)

		default:
			return e.abort(err)
		}

		break
	}

	zones := make([]ZoneSyncer, 0, len(affected))
	for zone := range affected {
		if s, ok := e.byZone[zone]; ok {
			zones = append(zones, s)
		}
	}
	if err := e.fetchZones(ctx, zones); err != nil {
		return err
	}

	e.setState(StateIdle)
	return nil
}

// applyDatabasePage persists the page's token and folds its zone sets into
// the affected map. Zones deleted remotely lose their created flag and token.
func (e *Engine) applyDatabasePage(ctx context.Context, changes remote.DatabaseChanges, affected map[string]struct{}) error {
	for _, zone := range changes.ChangedZones {
		affected[zone] = struct{}{}
	}
	for _, zone := range changes.DeletedZones {
		delete(affected, zone)
		s, ok := e.byZone[zone]
		if !ok {
			continue
		}
		if err := s.MarkZoneCreated(ctx, false); err != nil {
			return err
		}
		if err := s.ClearToken(ctx); err != nil {
			return err
		}
	}

	if err := e.state.Set(ctx, state.DatabaseTokenKey(e.scope), changes.Token); err != nil {
		return fmt.Errorf("persist database change token: %w", err)
	}
	return nil
}

// FetchChangesInZones fetches incremental changes for every registered zone,
// then resolves pending relationships on every synchronizer.
func (e *Engine) FetchChangesInZones(ctx context.Context) error {
	return e.fetchZones(ctx, e.syncers)
}

func (e *Engine) fetchZones(ctx context.Context, zones []ZoneSyncer) error {
	e.setState(StateFetchingZoneChanges)

	for _, s := range zones {
		if err := e.fetchZone(ctx, s); err != nil {
			return e.abort(err)
		}
	}

	e.setState(StateResolvingPending)
	for _, s := range e.syncers {
		if err := s.ResolvePending(ctx); err != nil {
			return e.abort(err)
		}
	}

	e.setState(StateIdle)
	return nil
}

// fetchZone drains one zone's change feed. The zone token is persisted only
// after the page's records are fully applied locally, so a crash replays the
// page (upsert and delete-if-present are idempotent). A stale zone token
// triggers a full resync of that zone only.
func (e *Engine) fetchZone(ctx context.Context, s ZoneSyncer) error {
	attempts := 0
	for {
		token, err := s.Token(ctx)
		if err != nil {
			return err
		}

		changes, err := e.remote.FetchZoneChanges(ctx, s.Zone(), token)
		switch out := remote.Classify(err); out.Kind {
		case remote.OutcomeSuccess:
			for _, rec := range changes.Changed {
				if err = s.Add(rec); err != nil {
					return err
				}
			}
			for _, id := range changes.Deleted {
				if err = s.Delete(id); err != nil {
					return err
				}
			}
			if err = s.Flush(ctx); err != nil {
				return err
			}
			if err = s.SetToken(ctx, changes.Token); err != nil {
				return err
			}
			if changes.More {
				continue
			}
			return nil

		case remote.OutcomeRetry:
			attempts++
			if attempts > e.maxRetries {
				return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			e.setState(StateRetrying)
			if serr := e.sleep(ctx, out.RetryAfter); serr != nil {
				return serr
			}
			e.setState(StateFetchingZoneChanges)
			continue

		case remote.OutcomeRecoverable:
			if out.Reason == remote.ReasonChangeTokenExpired {
				if cerr := s.ClearToken(ctx); cerr != nil {
					return cerr
				}
				e.logger.Warn().Str("zone", s.Zone()).Msg("zone change token expired, resyncing zone")
				continue
			}
			return err

		default:
			return err
		}
	}
}

// CreateZonesIfNeeded creates every zone not yet marked created. A freshly
// created zone gets a full local-to-remote push (first-run bootstrap) unless
// a bulk delete-and-recreate is in progress.
func (e *Engine) CreateZonesIfNeeded(ctx context.Context) error {
	for _, s := range e.syncers {
		created, err := s.ZoneCreated(ctx)
		if err != nil {
			return err
		}
		if created {
			continue
		}

		zone := s.Zone()
		if err = e.withRetry(ctx, func() error {
			return e.remote.CreateZone(ctx, zone)
		}); err != nil {
			return fmt.Errorf("create zone %s: %w", zone, err)
		}
		if err = s.MarkZoneCreated(ctx, true); err != nil {
			return err
		}
		e.logger.Info().Str("zone", zone).Msg("zone created")

		if e.deleting.Load() {
			continue
		}
		if err = s.PushAll(ctx); err != nil {
			return fmt.Errorf("bootstrap push for zone %s: %w", zone, err)
		}
	}
	return nil
}

// DeleteAllRemoteData deletes every zone and recreates them, reporting
// success only once recreation completes. The transient deleting flag
// suppresses the bootstrap push that zone recreation would otherwise fire.
func (e *Engine) DeleteAllRemoteData(ctx context.Context) error {
	e.deleting.Store(true)
	defer e.deleting.Store(false)

	for _, s := range e.syncers {
		zone := s.Zone()
		if err := e.withRetry(ctx, func() error {
			return e.remote.DeleteZone(ctx, zone)
		}); err != nil {
			return fmt.Errorf("delete zone %s: %w", zone, err)
		}
		if err := s.MarkZoneCreated(ctx, false); err != nil {
			return err
		}
		if err := s.ClearToken(ctx); err != nil {
			return err
		}
	}

	return e.CreateZonesIfNeeded(ctx)
}

// withRetry runs fn, rescheduling it on server-suggested backoff up to the
// retry cap. Every other failure surfaces immediately.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	attempts := 0
	for {
		err := fn()
		switch out := remote.Classify(err); out.Kind {
		case remote.OutcomeSuccess:
			return nil
		case remote.OutcomeRetry:
			attempts++
			if attempts > e.maxRetries {
				return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			if serr := e.sleep(ctx, out.RetryAfter); serr != nil {
				return serr
			}
		default:
			return err
		}
	}
}

func (e *Engine) abort(err error) error {
	e.setState(StateAborted)
	e.logger.Error().Err(err).Msg("change engine aborted")
	return err
}
