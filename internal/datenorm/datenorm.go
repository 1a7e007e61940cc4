// Package datenorm turns dialect-specific acceptance timestamps into
// reporting-zone instants.
//
// Both export dialects write acceptance time in UTC. Reporting uses a fixed
// UTC+3 offset: no DST, no tz database.
package datenorm

import (
	"fmt"
	"strings"
	"time"

	"orderstats/internal/model"
)

// ReportingOffset is the constant shift applied after UTC interpretation.
const ReportingOffset = 3 * time.Hour

// Reporting is the fixed zone every normalized instant is expressed in.
var Reporting = time.FixedZone("MSK", int(ReportingOffset/time.Second))

const (
	isoLayout = "2006-01-02T15:04:05"
	fbsLayout = "2006-01-02 15:04:05"
)

// ParseError reports a timestamp that could not be normalized.
type ParseError struct {
	Dialect model.Dialect
	Value   string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("datenorm: %s timestamp %q: %s", e.Dialect, e.Value, e.Reason)
}

// Normalize parses raw according to d and returns the reporting instant: the
// same moment as the UTC reading, expressed in the Reporting zone so that its
// wall clock is UTC+3.
func Normalize(d model.Dialect, raw string) (time.Time, error) {
	var (
		utc    time.Time
		reason string
	)
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		reason = "empty"
	case d == model.FBO:
		utc, reason = parseFBO(s)
	case d == model.FBS:
		utc, reason = parseFBS(s)
	default:
		reason = "unknown dialect"
	}
	if reason != "" {
		return time.Time{}, &ParseError{Dialect: d, Value: raw, Reason: reason}
	}
	return utc.In(Reporting), nil
}

// DayOf returns the reporting-zone calendar day of t.
func DayOf(t time.Time) model.Day { return model.DayOf(t.In(Reporting)) }

// Sniff reports which dialect layout raw matches, if any.
func Sniff(raw string) (model.Dialect, bool) {
	s := strings.TrimSpace(raw)
	if _, reason := parseFBS(s); reason == "" {
		return model.FBS, true
	}
	if _, reason := parseFBO(s); reason == "" {
		return model.FBO, true
	}
	return "", false
}

// parseFBO handles D.M.YYYY H:MM and D.M.YYYY H:MM:SS.
func parseFBO(s string) (time.Time, string) {
	parts := strings.Split(s, " ")
	if len(parts) != 2 {
		return time.Time{}, "want exactly one space between date and time"
	}
	date := strings.Split(parts[0], ".")
	if len(date) != 3 {
		return time.Time{}, "date must be D.M.YYYY"
	}
	clock := strings.Split(parts[1], ":")
	if len(clock) != 2 && len(clock) != 3 {
		return time.Time{}, "time must be H:MM or H:MM:SS"
	}
	day, month, year := date[0], date[1], date[2]
	if !digits(day, 1, 2) || !digits(month, 1, 2) || !digits(year, 4, 4) {
		return time.Time{}, "malformed date fields"
	}
	hour, minute, second := clock[0], clock[1], "00"
	if len(clock) == 3 {
		second = clock[2]
	}
	if !digits(hour, 1, 2) || !digits(minute, 2, 2) || !digits(second, 2, 2) {
		return time.Time{}, "malformed time fields"
	}
	iso := year + "-" + pad2(month) + "-" + pad2(day) + "T" + pad2(hour) + ":" + minute + ":" + second
	t, err := time.ParseInLocation(isoLayout, iso, time.UTC)
	if err != nil {
		return time.Time{}, "out of range"
	}
	return t, ""
}

// parseFBS handles strict YYYY-MM-DD HH:MM:SS.
func parseFBS(s string) (time.Time, string) {
	// time.Parse accepts a single-digit hour for "15"; enforce the width.
	if len(s) != len(fbsLayout) {
		return time.Time{}, "want YYYY-MM-DD HH:MM:SS"
	}
	for i := 0; i < len(s); i++ {
		switch fbsLayout[i] {
		case '-', ' ', ':':
			if s[i] != fbsLayout[i] {
				return time.Time{}, "want YYYY-MM-DD HH:MM:SS"
			}
		default:
			if s[i] < '0' || s[i] > '9' {
				return time.Time{}, "non-numeric field"
			}
		}
	}
	t, err := time.ParseInLocation(fbsLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, "out of range"
	}
	return t, ""
}

func digits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
