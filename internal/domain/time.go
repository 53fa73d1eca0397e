package domain

import (
	"time"
)

// DisplayFormat is the fixed timestamp format used in record dates, file
// schemas and checkpoint files.
const DisplayFormat = "2006-01-02-15:04:05"

// DayFormat is the date-only format used for crawl boundaries and parameters.
const DayFormat = "2006-01-02"

// Normalize parses an ISO-8601 timestamp and shifts it by the host's current
// UTC offset. The platform serves UTC timestamps; records carry local
// wall-clock time. The offset is read once per call so every timestamp in a
// crawl gets the same fixed shift.
func Normalize(iso string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, &ParseError{Input: iso, Err: err}
	}
	_, offset := time.Now().Zone()
	return t.UTC().Add(time.Duration(offset) * time.Second), nil
}

// FormatDisplay renders a moment in the fixed display format.
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayFormat)
}

// ToUnixSeconds strictly parses a display-format timestamp into unix seconds.
func ToUnixSeconds(formatted string) (int64, error) {
	t, err := time.ParseInLocation(DisplayFormat, formatted, time.Local)
	if err != nil {
		return 0, &ParseError{Input: formatted, Err: err}
	}
	return t.Unix(), nil
}

// ParseDay parses a YYYY-MM-DD date into unix seconds at local midnight.
func ParseDay(day string) (int64, error) {
	t, err := time.ParseInLocation(DayFormat, day, time.Local)
	if err != nil {
		return 0, &ParseError{Input: day, Err: err}
	}
	return t.Unix(), nil
}

// OneDayEarlier steps a unix timestamp back one calendar day. Calendar
// subtraction, not 86400 raw seconds, so DST transitions keep the wall-clock
// time stable.
func OneDayEarlier(unix int64) int64 {
	return time.Unix(unix, 0).AddDate(0, 0, -1).Unix()
}

// DayString renders a unix timestamp as YYYY-MM-DD for queries and logs.
func DayString(unix int64) string {
	return time.Unix(unix, 0).Format(DayFormat)
}
