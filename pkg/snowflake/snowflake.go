// Package snowflake converts between calendar time and Discord snowflake IDs.
//
// A snowflake carries milliseconds since the Discord epoch in its upper 42
// bits. Encoding always leaves the low 22 bits (worker, process, increment)
// zero, which makes an encoded value the smallest ID at that millisecond and
// therefore usable as a search bound.
package snowflake

import (
	"fmt"
	"strconv"
	"time"

	errs "dscraper/pkg/errors"
)

// Epoch is 2015-01-01T00:00:00Z in Unix milliseconds
const Epoch int64 = 1420070400000

const (
	timestampShift = 22
	dayMillis      = int64(24 * time.Hour / time.Millisecond)
)

var (
	ErrInvalidTimestamp = errs.New(errs.ErrorTypeInvalidDate, "timestamp predates the snowflake epoch")
	ErrInvalidDate      = errs.New(errs.ErrorTypeInvalidDate, "date does not exist")
)

// ID is a Discord snowflake
type ID uint64

// Encode returns the snowflake for a Unix millisecond timestamp
func Encode(timestampMillis int64) (ID, error) {
	if timestampMillis < Epoch {
		return 0, ErrInvalidTimestamp
	}
	return ID(timestampMillis-Epoch) << timestampShift, nil
}

// Decode returns the Unix millisecond timestamp embedded in id
func Decode(id ID) int64 {
	return int64(id>>timestampShift) + Epoch
}

// FromTime encodes t at millisecond precision
func FromTime(t time.Time) (ID, error) {
	return Encode(t.UnixMilli())
}

// Parse reads a decimal snowflake as sent by the API
func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeParsing, fmt.Sprintf("invalid snowflake %q", s), err)
	}
	return ID(v), nil
}

// Time returns the creation time embedded in id
func (id ID) Time() time.Time {
	return time.UnixMilli(Decode(id)).UTC()
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Window is a half-open snowflake range covering one calendar day
type Window struct {
	Start ID
	End   ID
}

// DayWindow returns the window from midnight of the given day in loc to
// exactly 24 hours later. Days that do not exist in the month, such as
// 31 April, fail with ErrInvalidDate rather than rolling into the next month.
// Such a day could never match a message, so callers skip it without a
// search instead of sending a request that returns nothing.
func DayWindow(day, month, year int, loc *time.Location) (Window, error) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return Window{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.Local
	}

	midnight := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if midnight.Day() != day || int(midnight.Month()) != month {
		return Window{}, ErrInvalidDate
	}

	start, err := FromTime(midnight)
	if err != nil {
		return Window{}, err
	}
	end, err := Encode(midnight.UnixMilli() + dayMillis)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start, w.End)
}
