package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable marks a call that exhausted its retries on transient
// upstream failures. Callers must treat it as "unknown, skip this unit of
// work", never as a confirmed empty result.
var ErrUnavailable = errors.New("grid: upstream unavailable after retries")

// transientMarkers are matched against error text because the upstream API
// does not expose a stable error-code type. Gateway and availability class
// failures are worth retrying; anything else is not.
var transientMarkers = []string{
	"status 502",
	"status 503",
	"status 504",
	"bad gateway",
	"gateway timeout",
	"service unavailable",
	"rate limit",
	"too many requests",
	"status 429",
	"timeout awaiting response",
	"context deadline exceeded",
	"connection reset",
}

// IsTransient reports whether err looks like a transient upstream failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// RetryConfig tunes the resilient wrapper.
type RetryConfig struct {
	// MaxAttempts is the total number of tries per call.
	MaxAttempts int
	// BaseDelay is the first backoff; it doubles per attempt.
	BaseDelay time.Duration
	// HistoryPace is slept after every CellHistory call, success or not, to
	// stay under upstream rate limits on the happy path.
	HistoryPace time.Duration
}

// Resilient wraps a Client with bounded retry, exponential backoff, and
// fixed per-history-fetch pacing. Non-transient errors pass through
// untouched on the first occurrence.
type Resilient struct {
	inner  Client
	cfg    RetryConfig
	logger *zap.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps client. MaxAttempts below 1 is coerced to 1.
func WithRetry(client Client, cfg RetryConfig, logger *zap.Logger) *Resilient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{inner: client, cfg: cfg, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// call runs op up to MaxAttempts times. Transient failures back off and
// retry; exhaustion returns ErrUnavailable wrapping the last failure.
func (r *Resilient) call(ctx context.Context, name string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := r.cfg.BaseDelay * (1 << (attempt - 1))
			r.logger.Warn("transient upstream error, retrying",
				zap.String("call", name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := r.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	r.logger.Warn("retries exhausted, skipping",
		zap.String("call", name),
		zap.Int("attempts", r.cfg.MaxAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, lastErr)
}

func (r *Resilient) ListSheets(ctx context.Context) ([]SheetInfo, error) {
	var sheets []SheetInfo
	err := r.call(ctx, "ListSheets", func() error {
		var innerErr error
		sheets, innerErr = r.inner.ListSheets(ctx)
		return innerErr
	})
	return sheets, err
}

func (r *Resilient) ListRows(ctx context.Context, sheetID int64) ([]SourceRow, error) {
	var rows []SourceRow
	err := r.call(ctx, "ListRows", func() error {
		var innerErr error
		rows, innerErr = r.inner.ListRows(ctx, sheetID)
		return innerErr
	})
	return rows, err
}

func (r *Resilient) ColumnMap(ctx context.Context, sheetID int64) (map[string]int64, error) {
	var columns map[string]int64
	err := r.call(ctx, "ColumnMap", func() error {
		var innerErr error
		columns, innerErr = r.inner.ColumnMap(ctx, sheetID)
		return innerErr
	})
	return columns, err
}

// CellHistory applies the fixed pacing delay after every fetch, independent
// of the retry logic.
func (r *Resilient) CellHistory(ctx context.Context, sheetID, rowID, columnID int64) ([]CellRevision, error) {
	var revisions []CellRevision
	err := r.call(ctx, "CellHistory", func() error {
		var innerErr error
		revisions, innerErr = r.inner.CellHistory(ctx, sheetID, rowID, columnID)
		return innerErr
	})
	if paceErr := r.sleep(ctx, r.cfg.HistoryPace); paceErr != nil && err == nil {
		err = paceErr
	}
	return revisions, err
}

func (r *Resilient) AppendRows(ctx context.Context, sheetID int64, rows []NewRow) error {
	return r.call(ctx, "AppendRows", func() error {
		return r.inner.AppendRows(ctx, sheetID, rows)
	})
}
