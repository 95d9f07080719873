// Package period computes the closing boundary of a row's reporting period
// and classifies change timestamps against it.
package period

import "time"

// Classifier derives period boundaries from reference dates. Weeks close on
// Boundary; both sides of every comparison are normalized into Location
// before comparing dates, so a change near midnight cannot land in the wrong
// day.
type Classifier struct {
	Boundary time.Weekday
	Location *time.Location
}

// NewClassifier returns a Classifier closing on the given weekday. A nil
// location defaults to UTC.
func NewClassifier(boundary time.Weekday, loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{Boundary: boundary, Location: loc}
}

// End rolls the reference date forward to the next occurrence of the boundary
// weekday. A reference date already on the boundary day is its own period
// end. The result is a date (midnight in the classifier's location).
func (c *Classifier) End(reference time.Time) time.Time {
	ref := reference.In(c.Location)
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, c.Location)
	ahead := (int(c.Boundary) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, ahead)
}

// IsUnauthorized reports whether a change at changedAt falls strictly after
// the period end date. Edits on the period-end day itself are ordinary
// same-period corrections.
func (c *Classifier) IsUnauthorized(periodEnd, changedAt time.Time) bool {
	ch := changedAt.In(c.Location)
	changeDay := time.Date(ch.Year(), ch.Month(), ch.Day(), 0, 0, 0, 0, c.Location)
	return changeDay.After(periodEnd)
}
