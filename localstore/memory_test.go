package localstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlgc/IceCream/models"
)

func putObject(t *testing.T, s Store, origin models.Origin, key string, obj *models.Object) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), origin, func(tx WriteTx) error {
		return tx.Put(key, obj)
	}))
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	obj := models.NewObject("Dog")
	obj.Set("id", "d1")
	obj.Set("name", "rex")
	putObject(t, s, models.OriginLocal, "d1", obj)

	err := s.Read(ctx, func(tx ReadTx) error {
		got, err := tx.Get("Dog", "d1")
		require.NoError(t, err)
		assert.Equal(t, "rex", got.Get("name"))

		_, err = tx.Get("Dog", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, models.OriginRemote, func(tx WriteTx) error {
		return tx.Delete("Dog", "d1")
	}))

	err = s.Read(ctx, func(tx ReadTx) error {
		_, err := tx.Get("Dog", "d1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ListIsStableAndIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, id := range []string{"b", "a", "c"} {
		obj := models.NewObject("Dog")
		obj.Set("id", id)
		putObject(t, s, models.OriginLocal, id, obj)
	}

	err := s.Read(ctx, func(tx ReadTx) error {
		objs, err := tx.List("Dog")
		require.NoError(t, err)
		require.Len(t, objs, 3)
		assert.Equal(t, "a", objs[0].Get("id"))
		assert.Equal(t, "c", objs[2].Get("id"))

		// Mutating the returned copy must not leak into the store.
		objs[0].Set("id", "hacked")
		return nil
	})
	require.NoError(t, err)

	err = s.Read(ctx, func(tx ReadTx) error {
		got, err := tx.Get("Dog", "a")
		require.NoError(t, err)
		assert.Equal(t, "a", got.Get("id"))
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_WatchCarriesOrigin(t *testing.T) {
	s := NewMemoryStore()
	ch, cancel := s.Watch("Dog")
	defer cancel()

	obj := models.NewObject("Dog")
	obj.Set("id", "d1")
	putObject(t, s, models.OriginRemote, "d1", obj)

	select {
	case change := <-ch:
		assert.Equal(t, models.OriginRemote, change.Origin)
		assert.Equal(t, []string{"d1"}, change.Inserted)
		assert.Empty(t, change.Modified)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	obj.Set("name", "rex")
	putObject(t, s, models.OriginLocal, "d1", obj)

	select {
	case change := <-ch:
		assert.Equal(t, models.OriginLocal, change.Origin)
		assert.Equal(t, []string{"d1"}, change.Modified)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestMemoryStore_FailedWriteNotifiesNothing(t *testing.T) {
	s := NewMemoryStore()
	ch, cancel := s.Watch("Dog")
	defer cancel()

	boom := errors.New("rollback")
	err := s.Write(context.Background(), models.OriginLocal, func(tx WriteTx) error {
		obj := models.NewObject("Dog")
		obj.Set("id", "d1")
		_ = tx.Put("d1", obj)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	select {
	case c := <-ch:
		t.Fatalf("unexpected notification: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_WatchCancelClosesChannel(t *testing.T) {
	s := NewMemoryStore()
	ch, cancel := s.Watch("Dog")
	cancel()

	_, open := <-ch
	assert.False(t, open)
}
