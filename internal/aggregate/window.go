package aggregate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"orderstats/internal/datenorm"
)

// Clock is a reporting-zone time of day in minutes since midnight.
type Clock int

var (
	ErrBadClock  = errors.New("aggregate: time of day must be HH:MM")
	ErrBadWindow = errors.New("aggregate: window start after end")
)

// ParseClock accepts H:MM or HH:MM, 00:00 through 23:59.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return Clock(hh*60 + mm), nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Window is an inclusive time-of-day range, compared at minute precision.
type Window struct {
	From Clock `json:"from"`
	To   Clock `json:"to"`
}

// NewWindow parses both bounds; from must not be after to.
func NewWindow(from, to string) (Window, error) {
	f, err := ParseClock(from)
	if err != nil {
		return Window{}, err
	}
	t, err := ParseClock(to)
	if err != nil {
		return Window{}, err
	}
	if f > t {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrBadWindow, f, t)
	}
	return Window{From: f, To: t}, nil
}

func (w Window) String() string { return w.From.String() + "-" + w.To.String() }

// Contains reports whether t's reporting-zone minute lies in the window.
func (w Window) Contains(t time.Time) bool {
	lt := t.In(datenorm.Reporting)
	c := Clock(lt.Hour()*60 + lt.Minute())
	return c >= w.From && c <= w.To
}
