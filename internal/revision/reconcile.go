// Package revision orders cell revision histories and selects the relevant
// before/after pair for an audit run.
//
// Two modes exist, chosen once per run. With no watermark (first run) the
// last two revisions establish a baseline. With a watermark, the pair is the
// last revision at-or-before the watermark and the first one after it; later
// revisions are irrelevant, so an intermediate unauthorized edit cannot be
// hidden by a subsequent correction.
package revision

import (
	"sort"
	"time"

	"github.com/openclerk/gridaudit/internal/grid"
)

// Pair is the selected before/after change.
type Pair struct {
	Before grid.CellRevision
	After  grid.CellRevision
}

// Sort orders revisions oldest to newest in place. The upstream order is not
// trusted. Revisions without a usable timestamp sort to the earliest
// positions, keeping each other's relative order.
func Sort(revisions []grid.CellRevision) {
	sort.SliceStable(revisions, func(i, j int) bool {
		a, b := revisions[i].ModifiedAt, revisions[j].ModifiedAt
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
}

// Reconcile selects the relevant change pair. A nil watermark selects
// first-run baseline mode. Returns false when no change should be reported.
// The input slice is re-sorted as a side effect.
func Reconcile(revisions []grid.CellRevision, watermark *time.Time) (Pair, bool) {
	Sort(revisions)
	if watermark == nil {
		return baseline(revisions)
	}
	return sinceWatermark(revisions, *watermark)
}

// baseline treats the second-to-last revision as old and the last as new,
// establishing a starting point without flagging the row's entire history as
// one giant change. Fewer than two revisions means nothing to report.
func baseline(revisions []grid.CellRevision) (Pair, bool) {
	if len(revisions) < 2 {
		return Pair{}, false
	}
	return Pair{
		Before: revisions[len(revisions)-2],
		After:  revisions[len(revisions)-1],
	}, true
}

// sinceWatermark scans once: the last revision at-or-before the watermark
// becomes Before, the first one after it becomes After, and the scan stops.
// Revisions without a timestamp cannot be placed against the watermark and
// are excluded from the comparison.
func sinceWatermark(revisions []grid.CellRevision, watermark time.Time) (Pair, bool) {
	var before, after *grid.CellRevision
	for i := range revisions {
		rev := &revisions[i]
		if rev.ModifiedAt == nil {
			continue
		}
		if !rev.ModifiedAt.After(watermark) {
			before = rev
			continue
		}
		after = rev
		break
	}
	if before == nil || after == nil {
		return Pair{}, false
	}
	return Pair{Before: *before, After: *after}, true
}

// SkippedTimestamps returns how many revisions carry no usable timestamp,
// for the engine's warning log.
func SkippedTimestamps(revisions []grid.CellRevision) int {
	count := 0
	for _, rev := range revisions {
		if rev.ModifiedAt == nil {
			count++
		}
	}
	return count
}
