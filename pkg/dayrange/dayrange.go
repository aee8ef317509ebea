// Package dayrange enumerates the calendar days a scan visits, newest first.
package dayrange

import (
	"fmt"
	"iter"
	"time"
)

const (
	// DefaultFloorYear is exclusive: 2016 is the last year visited.
	DefaultFloorYear = 2015
	DefaultMinMonth  = 2
	DefaultMinDay    = 2

	maxMonth = 12
	maxDay   = 31
)

// Day is one candidate calendar day. It may not exist (31 February); the
// snowflake codec rejects those.
type Day struct {
	Day   int
	Month int
	Year  int
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Option configures an Enumerator
type Option func(*Enumerator)

// WithFloorYear sets the exclusive lower year bound
func WithFloorYear(year int) Option {
	return func(e *Enumerator) { e.floorYear = year }
}

// WithMinMonth sets the lowest month visited in each year
func WithMinMonth(month int) Option {
	return func(e *Enumerator) { e.minMonth = month }
}

// WithMinDay sets the lowest day visited in each month
func WithMinDay(day int) Option {
	return func(e *Enumerator) { e.minDay = day }
}

// Enumerator lazily walks years from now down to the floor, months 12 down
// to the minimum month, and days 31 down to the minimum day. Months after
// the current one in the current year are skipped, as are days after today
// in any month equal to the current month. An Enumerator is not safe for
// concurrent use; give each target its own.
type Enumerator struct {
	curYear, curMonth, curDay int
	floorYear, minMonth       int
	minDay                    int

	year, month, day int
	done             bool
}

// New creates an enumerator anchored at now
func New(now time.Time, opts ...Option) *Enumerator {
	e := &Enumerator{
		curYear:   now.Year(),
		curMonth:  int(now.Month()),
		curDay:    now.Day(),
		floorYear: DefaultFloorYear,
		minMonth:  DefaultMinMonth,
		minDay:    DefaultMinDay,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// Reset rewinds to the first day
func (e *Enumerator) Reset() {
	e.year, e.month, e.day = e.curYear, maxMonth, maxDay
	e.done = e.year <= e.floorYear || e.minMonth > maxMonth || e.minDay > maxDay
}

// Next returns the next day, or false once the range is exhausted
func (e *Enumerator) Next() (Day, bool) {
	for !e.done {
		candidate := Day{Day: e.day, Month: e.month, Year: e.year}
		e.advance()
		if e.skip(candidate) {
			continue
		}
		return candidate, true
	}
	return Day{}, false
}

func (e *Enumerator) advance() {
	e.day--
	if e.day >= e.minDay {
		return
	}
	e.day = maxDay
	e.month--
	if e.month >= e.minMonth {
		return
	}
	e.month = maxMonth
	e.year--
	if e.year <= e.floorYear {
		e.done = true
	}
}

func (e *Enumerator) skip(d Day) bool {
	if d.Year == e.curYear && d.Month > e.curMonth {
		return true
	}
	return d.Month == e.curMonth && d.Day > e.curDay
}

// All yields the remaining days as an iterator
func (e *Enumerator) All() iter.Seq[Day] {
	return func(yield func(Day) bool) {
		for {
			d, ok := e.Next()
			if !ok || !yield(d) {
				return
			}
		}
	}
}

// Count returns how many days a full walk yields without disturbing e
func (e *Enumerator) Count() int {
	clone := *e
	clone.Reset()
	n := 0
	for range clone.All() {
		n++
	}
	return n
}
