package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hlgc/IceCream/models"
	"github.com/hlgc/IceCream/remote"
	"github.com/hlgc/IceCream/state"
)

// batch is one unit of the iterative push queue.
type batch struct {
	save     []models.Record
	del      []models.RecordID
	attempts int
}

func (b batch) size() int { return len(b.save) + len(b.del) }

// SyncLocalToRemote pushes one logical batch of upserts and deletions as an
// atomic modify (all-or-nothing) with a last-write-wins save policy: remote
// field values are overwritten regardless of the remote version.
//
// A retry-after failure reschedules the identical batch after the
// server-suggested delay. A batch-too-large failure splits both lists into
// chunks of at most the configured limit, pairs the chunk streams by index
// (padding the shorter one with empty chunks) and pushes each pair. Any
// other failure surfaces to the caller and stops the push.
func (e *Engine) SyncLocalToRemote(ctx context.Context, save []models.Record, del []models.RecordID) error {
	if len(save) == 0 && len(del) == 0 {
		return nil
	}

	queue := []batch{{save: save, del: del}}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		err := e.remote.ModifyRecords(ctx, b.save, b.del, remote.ModifyOptions{
			Atomic:     true,
			SavePolicy: remote.SaveLastWriteWins,
		})

		switch out := remote.Classify(err); out.Kind {
		case remote.OutcomeSuccess:
			e.logger.Debug().Int("saved", len(b.save)).Int("deleted", len(b.del)).Msg("batch pushed")

		case remote.OutcomeRetry:
			b.attempts++
			if b.attempts > e.maxRetries {
				return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			if serr := e.sleep(ctx, out.RetryAfter); serr != nil {
				return serr
			}
			queue = append([]batch{b}, queue...)

		case remote.OutcomeChunk:
			if b.size() <= 1 {
				// Cannot split further; surface instead of looping.
				return err
			}
			queue = append(e.split(b), queue...)

		default:
			return err
		}
	}

	if err := e.state.Set(ctx, state.LastSyncKey(e.scope), []byte(e.now().UTC().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("record last sync timestamp: %w", err)
	}
	return nil
}

// split cuts a batch into chunk pairs of at most chunkLimit items per list,
// paired by index. The save and delete chunk streams are independent; no
// causal correlation between them is preserved. A batch whose lists already
// fit one chunk is halved instead, so every split makes progress and the
// requeue loop stays bounded down to the single-item guard.
func (e *Engine) split(b batch) []batch {
	// One save plus one delete would pair back into the original batch.
	if len(b.save) == 1 && len(b.del) == 1 {
		return []batch{{save: b.save}, {del: b.del}}
	}

	size := e.chunkLimit
	if len(b.save) <= size && len(b.del) <= size {
		size = (max(len(b.save), len(b.del)) + 1) / 2
	}

	saveChunks := chunkRecords(b.save, size)
	delChunks := chunkIDs(b.del, size)

	n := len(saveChunks)
	if len(delChunks) > n {
		n = len(delChunks)
	}

	out := make([]batch, 0, n)
	for i := 0; i < n; i++ {
		var c batch
		if i < len(saveChunks) {
			c.save = saveChunks[i]
		}
		if i < len(delChunks) {
			c.del = delChunks[i]
		}
		out = append(out, c)
	}
	return out
}

func chunkRecords(items []models.Record, size int) [][]models.Record {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]models.Record
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func chunkIDs(items []models.RecordID, size int) [][]models.RecordID {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]models.RecordID
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
