package slots

import (
	"context"
	"fmt"
	"slices"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"

	"golang.org/x/sync/errgroup"
)

const report_batch_writer_write = "batch-writer.write"

// Partition splits ids into consecutive chunks of at most limit ids, preserving order.
func Partition(ids []string, limit int) [][]string {
	assert.Positive(limit)

	chunks := make([][]string, 0, (len(ids)+limit-1)/limit)
	for chunk := range slices.Chunk(ids, limit) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// BatchWriter persists slots in chunks that respect the store's batch limit.
type BatchWriter struct {
	store Store
	limit int
	tel   telemetry.API
}

func NewBatchWriter(store Store, limit int, tel telemetry.API) BatchWriter {
	assert.NotNil(store)
	assert.NotNil(tel)
	assert.Positive(limit)

	return BatchWriter{
		store: store,
		limit: limit,
		tel:   tel,
	}
}

// Write submits every chunk concurrently and waits for all of them, the first failing chunk
// fails the whole write. Chunks that already succeeded are not rolled back.
func (w BatchWriter) Write(ctx context.Context, ids []string) error {
	chunks := Partition(ids, w.limit)

	group, groupCtx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		group.Go(func() error {
			w.tel.ReportDebug("put chunk", i, len(chunk))
			err := w.store.Put(groupCtx, chunk)
			if err != nil {
				return fmt.Errorf("put chunk %d (%d slots): %w", i, len(chunk), err)
			}
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		w.tel.ReportBroken(report_batch_writer_write, err, len(ids), len(chunks))
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}
