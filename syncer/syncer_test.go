package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlgc/IceCream/attach"
	"github.com/hlgc/IceCream/localstore"
	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/mapper"
	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/state"
	"github.com/hlgc/IceCream/workers"
)

func dogDescriptor() models.EntityDescriptor {
	return models.EntityDescriptor{
		TypeName:        "Dog",
		PrimaryKeyField: "id",
		Scope:           models.ScopePrivate,
		Fields: []models.FieldDescriptor{
			{Name: "id", Kind: models.KindScalar},
			{Name: "name", Kind: models.KindScalar},
		},
	}
}

// pushSpy records push batches and signals each call.
type pushSpy struct {
	mu    sync.Mutex
	calls []pushCall
	ch    chan struct{}
}

type pushCall struct {
	save []models.Record
	del  []models.RecordID
}

func newPushSpy() *pushSpy {
	return &pushSpy{ch: make(chan struct{}, 16)}
}

func (p *pushSpy) push(_ context.Context, save []models.Record, del []models.RecordID) error {
	p.mu.Lock()
	p.calls = append(p.calls, pushCall{save: save, del: del})
	p.mu.Unlock()
	p.ch <- struct{}{}
	return nil
}

func (p *pushSpy) wait(t *testing.T) pushCall {
	t.Helper()
	select {
	case <-p.ch:
	case <-time.After(time.Second):
		t.Fatal("push was not called")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func (p *pushSpy) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type env struct {
	store *localstore.MemoryStore
	queue *workers.SerialQueue
	spy   *pushSpy
	s     *ObjectSyncer
}

func newEnv(t *testing.T, debounce time.Duration) *env {
	t.Helper()

	store := localstore.NewMemoryStore()
	files, err := attach.NewFileStore(t.TempDir())
	require.NoError(t, err)

	desc := dogDescriptor()
	m, err := mapper.New(desc, mapper.Registry{"Dog": desc}, files, nil, logger.Nop())
	require.NoError(t, err)

	queue := workers.NewSerialQueue(32, logger.Nop())
	t.Cleanup(queue.Stop)

	spy := newPushSpy()
	s := New(Options{
		Descriptor:     desc,
		Mapper:         m,
		Store:          store,
		State:          state.NewMemoryStore(),
		Attachments:    files,
		Queue:          queue,
		Push:           spy.push,
		DebounceWindow: debounce,
		Logger:         logger.Nop(),
	})
	t.Cleanup(s.Stop)

	return &env{store: store, queue: queue, spy: spy, s: s}
}

// barrier waits until every task queued so far has run.
func (e *env) barrier(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, e.queue.Submit(func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue stalled")
	}
}

func (e *env) writeLocal(t *testing.T, origin models.Origin, key string, deleted bool, name string) {
	t.Helper()
	obj := models.NewObject("Dog")
	obj.Set("id", key)
	if name != "" {
		obj.Set("name", name)
	}
	obj.Deleted = deleted
	require.NoError(t, e.store.Write(context.Background(), origin, func(tx localstore.WriteTx) error {
		return tx.Put(key, obj)
	}))
}

func TestObjectSyncer_LocalEditTriggersPush(t *testing.T) {
	e := newEnv(t, 0)
	e.s.RegisterLocalDatabase()

	e.writeLocal(t, models.OriginLocal, "a1", false, "x")

	call := e.spy.wait(t)
	require.Len(t, call.save, 1)
	assert.Equal(t, "a1", call.save[0].ID.Name)
	assert.Equal(t, "x", call.save[0].Fields["name"])
	assert.Empty(t, call.del)
}

func TestObjectSyncer_SoftDeleteTriggersDeletePush(t *testing.T) {
	e := newEnv(t, 0)
	e.s.RegisterLocalDatabase()

	e.writeLocal(t, models.OriginLocal, "a1", true, "")

	call := e.spy.wait(t)
	assert.Empty(t, call.save)
	require.Len(t, call.del, 1)
	assert.Equal(t, "a1", call.del[0].Name)
	assert.Equal(t, "DogsZone", call.del[0].Zone)
}

func TestObjectSyncer_RemoteOriginIsSuppressed(t *testing.T) {
	e := newEnv(t, 0)
	e.s.RegisterLocalDatabase()

	e.writeLocal(t, models.OriginRemote, "a1", false, "x")

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, e.spy.count(), "applied-from-remote writes must not feed back into push")
}

func TestObjectSyncer_RegisterIsDebounced(t *testing.T) {
	e := newEnv(t, 50*time.Millisecond)
	for i := 0; i < 10; i++ {
		e.s.RegisterLocalDatabase()
	}
	time.Sleep(150 * time.Millisecond)

	e.writeLocal(t, models.OriginLocal, "a1", false, "x")

	e.spy.wait(t)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, e.spy.count(), "ten registration calls must yield one subscription")
}

func TestObjectSyncer_AddUpsertsWithoutFeedback(t *testing.T) {
	e := newEnv(t, 0)
	e.s.RegisterLocalDatabase()

	rec := models.NewRecord(models.RecordID{Name: "a1", Zone: "DogsZone"}, "Dog")
	rec.Fields["id"] = "a1"
	rec.Fields["name"] = "x"
	require.NoError(t, e.s.Add(rec))
	e.barrier(t)

	require.NoError(t, e.store.Read(context.Background(), func(tx localstore.ReadTx) error {
		obj, err := tx.Get("Dog", "a1")
		require.NoError(t, err)
		assert.Equal(t, "x", obj.Get("name"))
		return nil
	}))

	// Replace (insert-or-replace semantics).
	rec.Fields["name"] = "y"
	require.NoError(t, e.s.Add(rec))
	e.barrier(t)

	require.NoError(t, e.store.Read(context.Background(), func(tx localstore.ReadTx) error {
		obj, err := tx.Get("Dog", "a1")
		require.NoError(t, err)
		assert.Equal(t, "y", obj.Get("name"))
		return nil
	}))

	assert.Zero(t, e.spy.count())
}

func TestObjectSyncer_DeleteRemovesObjectAndAttachments(t *testing.T) {
	e := newEnv(t, 0)

	files, err := attach.NewFileStore(t.TempDir())
	require.NoError(t, err)
	e.s.attachments = files
	require.NoError(t, files.Save(context.Background(), "a1", "avatar", "png", []byte("img"), true))

	e.writeLocal(t, models.OriginRemote, "a1", false, "x")

	require.NoError(t, e.s.Delete(models.RecordID{Name: "a1", Zone: "DogsZone"}))
	e.barrier(t)

	require.NoError(t, e.store.Read(context.Background(), func(tx localstore.ReadTx) error {
		_, err := tx.Get("Dog", "a1")
		assert.Error(t, err)
		return nil
	}))
	_, err = files.Load(context.Background(), "a1", "avatar", "png")
	assert.ErrorIs(t, err, attach.ErrNotFound)

	// Deleting an absent record is a no-op.
	require.NoError(t, e.s.Delete(models.RecordID{Name: "ghost", Zone: "DogsZone"}))
	e.barrier(t)
}

func TestObjectSyncer_CleanUpHardDeletesSoftDeleted(t *testing.T) {
	e := newEnv(t, 0)

	e.writeLocal(t, models.OriginRemote, "keep", false, "x")
	e.writeLocal(t, models.OriginRemote, "gone", true, "")

	require.NoError(t, e.s.CleanUp())
	e.barrier(t)

	require.NoError(t, e.store.Read(context.Background(), func(tx localstore.ReadTx) error {
		_, err := tx.Get("Dog", "keep")
		assert.NoError(t, err)
		_, err = tx.Get("Dog", "gone")
		assert.Error(t, err)
		return nil
	}))
}

func TestObjectSyncer_PushAllSkipsSoftDeleted(t *testing.T) {
	e := newEnv(t, 0)

	e.writeLocal(t, models.OriginRemote, "a1", false, "x")
	e.writeLocal(t, models.OriginRemote, "a2", true, "")
	e.writeLocal(t, models.OriginRemote, "a3", false, "z")

	require.NoError(t, e.s.PushAll(context.Background()))

	call := e.spy.wait(t)
	require.Len(t, call.save, 2)
	assert.Equal(t, "a1", call.save[0].ID.Name)
	assert.Equal(t, "a3", call.save[1].ID.Name)
}

func TestObjectSyncer_PushAllEmptyIsNoop(t *testing.T) {
	e := newEnv(t, 0)
	require.NoError(t, e.s.PushAll(context.Background()))
	assert.Zero(t, e.spy.count())
}

func TestObjectSyncer_TokenAndFlagPersistence(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 0)

	tok, err := e.s.Token(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, e.s.SetToken(ctx, models.ChangeToken("z1")))
	tok, err = e.s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeToken("z1"), tok)

	require.NoError(t, e.s.ClearToken(ctx))
	tok, err = e.s.Token(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	created, err := e.s.ZoneCreated(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, e.s.MarkZoneCreated(ctx, true))
	created, err = e.s.ZoneCreated(ctx)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestObjectSyncer_FlushReportsFailedApply(t *testing.T) {
	store := localstore.NewMemoryStore()
	files, err := attach.NewFileStore(t.TempDir())
	require.NoError(t, err)

	desc := models.EntityDescriptor{
		TypeName:        "Counter",
		PrimaryKeyField: "id",
		PrimaryKeyKind:  models.KeyInt,
		Scope:           models.ScopePrivate,
		Fields: []models.FieldDescriptor{
			{Name: "id", Kind: models.KindScalar},
		},
	}
	m, err := mapper.New(desc, mapper.Registry{"Counter": desc}, files, nil, logger.Nop())
	require.NoError(t, err)

	queue := workers.NewSerialQueue(32, logger.Nop())
	t.Cleanup(queue.Stop)

	s := New(Options{
		Descriptor:  desc,
		Mapper:      m,
		Store:       store,
		State:       state.NewMemoryStore(),
		Attachments: files,
		Queue:       queue,
		Push:        newPushSpy().push,
		Logger:      logger.Nop(),
	})
	t.Cleanup(s.Stop)

	// An integer-keyed record whose name does not parse cannot be applied;
	// the queued task's failure must surface from the flush barrier.
	bad := models.NewRecord(models.RecordID{Name: "not-an-int", Zone: desc.Zone()}, desc.TypeName)
	require.NoError(t, s.Add(bad))
	require.Error(t, s.Flush(context.Background()))

	// The failure is reported once; the next flush is clean.
	require.NoError(t, s.Flush(context.Background()))
}
