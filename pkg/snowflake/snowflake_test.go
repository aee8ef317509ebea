package snowflake

import (
	"testing"
	"time"

	errs "dscraper/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEpochIsZero(t *testing.T) {
	id, err := Encode(1420070400000)
	require.NoError(t, err)
	assert.Equal(t, ID(0), id)
	assert.Equal(t, int64(1420070400000), Decode(0))
}

func TestEncodeRejectsPreEpoch(t *testing.T) {
	_, err := Encode(Epoch - 1)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidDate))
}

func TestRoundTrip(t *testing.T) {
	samples := []int64{
		Epoch,
		Epoch + 1,
		1577836800000, // 2020-01-01
		1700000000123,
		time.Date(2031, 7, 4, 13, 14, 15, 999e6, time.UTC).UnixMilli(),
	}

	for _, ms := range samples {
		id, err := Encode(ms)
		require.NoError(t, err)
		assert.Equal(t, ms, Decode(id))
		assert.Zero(t, uint64(id)&(1<<22-1), "low bits must be zero")
	}
}

func TestDecodeMatchesDiscordgo(t *testing.T) {
	id, err := FromTime(time.Date(2019, 3, 14, 15, 9, 26, 0, time.UTC))
	require.NoError(t, err)

	ts, err := discordgo.SnowflakeTimestamp(id.String())
	require.NoError(t, err)
	assert.True(t, ts.Equal(id.Time()), "discordgo=%s ours=%s", ts, id.Time())
}

func TestDayWindowUTC(t *testing.T) {
	w, err := DayWindow(1, 1, 2020, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, int64(1577836800000), Decode(w.Start))
	assert.Equal(t, int64(1577836800000+86400000), Decode(w.End))
	assert.Equal(t, ID((1577836800000-Epoch)<<22), w.Start)
	assert.Less(t, w.Start, w.End)
}

func TestDayWindowSpansExactlyOneDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2021-03-14 is a 23 hour local day; the window is still 24h of wall time.
	for _, loc := range []*time.Location{time.UTC, ny} {
		w, err := DayWindow(14, 3, 2021, loc)
		require.NoError(t, err)
		assert.Equal(t, int64(86400000), Decode(w.End)-Decode(w.Start))

		midnight := time.Date(2021, 3, 14, 0, 0, 0, 0, loc)
		assert.Equal(t, midnight.UnixMilli(), Decode(w.Start))
	}
}

func TestDayWindowInvalidDates(t *testing.T) {
	cases := []struct {
		name             string
		day, month, year int
	}{
		{"day zero", 0, 5, 2020},
		{"day 32", 32, 5, 2020},
		{"month 13", 1, 13, 2020},
		{"february 31", 31, 2, 2020},
		{"february 29 non leap", 29, 2, 2019},
		{"april 31", 31, 4, 2020},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DayWindow(tc.day, tc.month, tc.year, time.UTC)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}

	_, err := DayWindow(29, 2, 2020, time.UTC)
	assert.NoError(t, err, "leap day exists")
}

func TestDayWindowBeforeEpoch(t *testing.T) {
	_, err := DayWindow(31, 12, 2014, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestDayWindowBoundsBracketTheDay(t *testing.T) {
	w, err := DayWindow(2, 6, 2022, time.UTC)
	require.NoError(t, err)

	lastMilli, err := FromTime(time.Date(2022, 6, 2, 23, 59, 59, 999e6, time.UTC))
	require.NoError(t, err)
	nextDay, err := FromTime(time.Date(2022, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Less(t, lastMilli, w.End)
	assert.Equal(t, nextDay, w.End)
}

func TestParse(t *testing.T) {
	id, err := Parse("175928847299117063")
	require.NoError(t, err)
	assert.Equal(t, "175928847299117063", id.String())

	_, err = Parse("general")
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}
