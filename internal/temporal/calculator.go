// Package temporal computes the calendar bucket that bounds how long an
// anonymous identifier stays linkable to its source.
package temporal

import (
	"fmt"
	"time"
)

// DefaultMonths is the half-year bucket: Jan-Jun is H1, Jul-Dec is H2.
const DefaultMonths = 6

// Window is a discrete calendar bucket. End is exclusive.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Calculator maps instants to windows. It is a pure function of its inputs
// and safe for concurrent use.
type Calculator struct {
	months int
	loc    *time.Location
}

type Option func(*Calculator)

// WithMonths sets the bucket length. It must divide the year evenly.
func WithMonths(n int) Option {
	return func(c *Calculator) {
		c.months = n
	}
}

// WithLocation evaluates the calendar in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Calculator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func New(opts ...Option) (*Calculator, error) {
	c := &Calculator{months: DefaultMonths, loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	if !ValidMonths(c.months) {
		return nil, fmt.Errorf("window months must be one of 1, 2, 3, 4, 6, 12: got %d", c.months)
	}
	return c, nil
}

// ValidMonths reports whether n months divides a year into equal buckets.
func ValidMonths(n int) bool {
	switch n {
	case 1, 2, 3, 4, 6, 12:
		return true
	}
	return false
}

func (c *Calculator) Months() int { return c.months }

func (c *Calculator) Location() *time.Location { return c.loc }

// Current returns the window containing t.
func (c *Calculator) Current(t time.Time) Window {
	start, end := c.Bounds(t)
	return Window{
		Label: c.label(start.Year(), c.index(start.Month())),
		Start: start,
		End:   end,
	}
}

// Label is shorthand for Current(t).Label.
func (c *Calculator) Label(t time.Time) string {
	return c.Current(t).Label
}

// Bounds returns the start (inclusive) and end (exclusive) of the window
// containing t, in the calculator's location.
func (c *Calculator) Bounds(t time.Time) (start, end time.Time) {
	local := t.In(c.loc)
	idx := c.index(local.Month())
	firstMonth := time.Month((idx-1)*c.months + 1)
	start = time.Date(local.Year(), firstMonth, 1, 0, 0, 0, 0, c.loc)
	end = start.AddDate(0, c.months, 0)
	return start, end
}

// index is the 1-based bucket number within the year.
func (c *Calculator) index(m time.Month) int {
	return (int(m)-1)/c.months + 1
}

func (c *Calculator) label(year, idx int) string {
	switch c.months {
	case 1:
		return fmt.Sprintf("%d_M%02d", year, idx)
	case 2:
		return fmt.Sprintf("%d_B%d", year, idx)
	case 3:
		return fmt.Sprintf("%d_Q%d", year, idx)
	case 4:
		return fmt.Sprintf("%d_T%d", year, idx)
	case 6:
		return fmt.Sprintf("%d_H%d", year, idx)
	default:
		return fmt.Sprintf("%d", year)
	}
}
