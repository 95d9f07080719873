package audit

import (
	"context"

	"go.uber.org/zap"
)

// Writer accumulates entries and flushes them to the sink in fixed-size
// batches. A failed batch is logged and skipped; subsequent batches are
// still attempted.
type Writer struct {
	sink      Sink
	batchSize int
	logger    *zap.Logger

	pending   []Entry
	written   int
	attempted int
	failed    int
}

// NewWriter creates a writer flushing batchSize entries at a time.
func NewWriter(sink Sink, batchSize int, logger *zap.Logger) *Writer {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{sink: sink, batchSize: batchSize, logger: logger}
}

// Add queues an entry, flushing when a full batch has accumulated.
func (w *Writer) Add(ctx context.Context, entry Entry) {
	w.pending = append(w.pending, entry)
	if len(w.pending) >= w.batchSize {
		w.flushOne(ctx)
	}
}

// Flush writes all remaining entries.
func (w *Writer) Flush(ctx context.Context) {
	for len(w.pending) > 0 {
		w.flushOne(ctx)
	}
}

func (w *Writer) flushOne(ctx context.Context) {
	n := len(w.pending)
	if n == 0 {
		return
	}
	if n > w.batchSize {
		n = w.batchSize
	}
	batch := w.pending[:n]
	w.pending = w.pending[n:]

	w.attempted++
	if err := w.sink.Append(ctx, batch); err != nil {
		w.failed++
		w.logger.Error("audit sink batch failed, continuing with next batch",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		return
	}
	w.written += len(batch)
}

// Written returns how many entries reached the sink.
func (w *Writer) Written() int { return w.written }

// Attempted returns how many batches were attempted.
func (w *Writer) Attempted() int { return w.attempted }

// Failed returns how many batches failed.
func (w *Writer) Failed() int { return w.failed }
