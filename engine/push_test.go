package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/remote"
	"github.com/hlgc/IceCream/state"
)

func makeRecords(n int) []models.Record {
	out := make([]models.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dogRecord(fmt.Sprintf("dog-%02d", i), "x"))
	}
	return out
}

func makeIDs(n int) []models.RecordID {
	out := make([]models.RecordID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.RecordID{Name: fmt.Sprintf("gone-%02d", i), Zone: "DogsZone"})
	}
	return out
}

func TestSyncLocalToRemote_SingleBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(2)
	del := makeIDs(1)

	env.db.EXPECT().ModifyRecords(ctx, save, del, remote.ModifyOptions{
		Atomic:     true,
		SavePolicy: remote.SaveLastWriteWins,
	}).Return(nil)

	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, del))

	// A successful push stamps the last-sync marker.
	v, err := env.st.Get(ctx, state.LastSyncKey(models.ScopePrivate))
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, string(v))
	assert.NoError(t, err)
}

func TestSyncLocalToRemote_EmptyBatchIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)

	require.NoError(t, env.eng.SyncLocalToRemote(context.Background(), nil, nil))
}

func TestSyncLocalToRemote_SplitsOversizedBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl) // chunk limit 3
	ctx := context.Background()

	save := makeRecords(7)
	del := makeIDs(4)

	var calls [][2]int
	first := env.db.EXPECT().ModifyRecords(ctx, save, del, gomock.Any()).
		Return(remote.NewError(remote.CodeLimitExceeded, "too many records"))
	env.db.EXPECT().ModifyRecords(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s []models.Record, d []models.RecordID, _ remote.ModifyOptions) error {
			calls = append(calls, [2]int{len(s), len(d)})
			return nil
		}).Times(3).After(first)

	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, del))

	// Chunk streams are paired by index, the shorter padded with empties:
	// saves split 3/3/1, deletions 3/1.
	assert.Equal(t, [][2]int{{3, 3}, {3, 1}, {1, 0}}, calls)
}

func TestSyncLocalToRemote_ChunksStayUnderLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(10)

	first := env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
		Return(remote.NewError(remote.CodeLimitExceeded, ""))
	env.db.EXPECT().ModifyRecords(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s []models.Record, d []models.RecordID, _ remote.ModifyOptions) error {
			assert.LessOrEqual(t, len(s)+len(d), 3+3)
			assert.LessOrEqual(t, len(s), 3)
			assert.LessOrEqual(t, len(d), 3)
			return nil
		}).Times(4).After(first) // ceil(10/3) chunks

	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, nil))
}

func TestSyncLocalToRemote_HalvesBatchAlreadyUnderLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl) // chunk limit 3
	ctx := context.Background()

	save := makeRecords(2)

	// Two records fit the chunk limit, yet the remote still rejects the
	// batch as too large; splitting must shrink it anyway.
	gomock.InOrder(
		env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
			Return(remote.NewError(remote.CodeLimitExceeded, "payload too large")),
		env.db.EXPECT().ModifyRecords(ctx, save[:1], gomock.Nil(), gomock.Any()).Return(nil),
		env.db.EXPECT().ModifyRecords(ctx, save[1:], gomock.Nil(), gomock.Any()).Return(nil),
	)

	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, nil))
}

func TestSyncLocalToRemote_PersistentTooLargeTerminates(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(2)

	// Every request fails as too large: the batch halves to single records
	// and the first unsplittable one surfaces the error instead of looping.
	env.db.EXPECT().ModifyRecords(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(remote.NewError(remote.CodeLimitExceeded, "payload too large")).
		Times(2)

	err := env.eng.SyncLocalToRemote(ctx, save, nil)
	require.Error(t, err)

	var rerr *remote.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, remote.CodeLimitExceeded, rerr.Code)
}

func TestSyncLocalToRemote_SplitsSaveAndDeletePair(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(1)
	del := makeIDs(1)

	gomock.InOrder(
		env.db.EXPECT().ModifyRecords(ctx, save, del, gomock.Any()).
			Return(remote.NewError(remote.CodeLimitExceeded, "")),
		env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).Return(nil),
		env.db.EXPECT().ModifyRecords(ctx, gomock.Nil(), del, gomock.Any()).Return(nil),
	)

	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, del))
}

func TestSyncLocalToRemote_SingleRecordStillTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(1)

	env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
		Return(remote.NewError(remote.CodeLimitExceeded, "record too large"))

	err := env.eng.SyncLocalToRemote(ctx, save, nil)
	require.Error(t, err)

	var rerr *remote.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, remote.CodeLimitExceeded, rerr.Code)
}

func TestSyncLocalToRemote_RetryReissuesIdenticalBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(2)
	delay := 25 * time.Millisecond

	gomock.InOrder(
		env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
			Return(&remote.Error{Code: remote.CodeRequestRateLimited, RetryAfter: delay}),
		env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).Return(nil),
	)

	start := time.Now()
	require.NoError(t, env.eng.SyncLocalToRemote(ctx, save, nil))
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestSyncLocalToRemote_RetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl) // max retries 2
	ctx := context.Background()

	save := makeRecords(1)

	env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
		Return(&remote.Error{Code: remote.CodeZoneBusy, RetryAfter: time.Millisecond}).
		Times(3)

	err := env.eng.SyncLocalToRemote(ctx, save, nil)
	require.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestSyncLocalToRemote_FatalStopsImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(2)

	env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
		Return(remote.NewError(remote.CodeQuotaExceeded, "storage full"))

	err := env.eng.SyncLocalToRemote(ctx, save, nil)
	require.Error(t, err)

	// No last-sync stamp on failure.
	_, err = env.st.Get(ctx, state.LastSyncKey(models.ScopePrivate))
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestSyncLocalToRemote_RetryableWithoutDelayIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t, ctrl)
	ctx := context.Background()

	save := makeRecords(1)

	// A retryable code with no server-suggested delay is not retried.
	env.db.EXPECT().ModifyRecords(ctx, save, gomock.Nil(), gomock.Any()).
		Return(remote.NewError(remote.CodeRequestRateLimited, "no retry-after"))

	err := env.eng.SyncLocalToRemote(ctx, save, nil)
	require.Error(t, err)
}
