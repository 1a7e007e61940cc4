package datenorm

import (
	"errors"
	"testing"
	"time"

	"orderstats/internal/model"
)

func TestNormalize_FBO(t *testing.T) {
	cases := []struct {
		in      string
		wantUTC time.Time
		wantDay model.Day
	}{
		{"1.10.2025 7:26", time.Date(2025, 10, 1, 7, 26, 0, 0, time.UTC), "2025-10-01"},
		{"01.10.2025 17:30", time.Date(2025, 10, 1, 17, 30, 0, 0, time.UTC), "2025-10-01"},
		{"1.10.2025 22:00", time.Date(2025, 10, 1, 22, 0, 0, 0, time.UTC), "2025-10-02"},
		{"9.3.2025 0:05:09", time.Date(2025, 3, 9, 0, 5, 9, 0, time.UTC), "2025-03-09"},
		{"  31.12.2025 21:00  ", time.Date(2025, 12, 31, 21, 0, 0, 0, time.UTC), "2026-01-01"},
	}
	for _, c := range cases {
		got, err := Normalize(model.FBO, c.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.in, err)
		}
		if !got.Equal(c.wantUTC) {
			t.Fatalf("Normalize(%q) instant = %v want %v", c.in, got, c.wantUTC)
		}
		if got.Location() != Reporting {
			t.Fatalf("Normalize(%q) location = %v", c.in, got.Location())
		}
		if d := DayOf(got); d != c.wantDay {
			t.Fatalf("DayOf(%q) = %s want %s", c.in, d, c.wantDay)
		}
	}
}

func TestNormalize_ReportingWallClock(t *testing.T) {
	got, err := Normalize(model.FBO, "1.10.2025 7:26")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if s := got.Format("2006-01-02T15:04:05"); s != "2025-10-01T10:26:00" {
		t.Fatalf("wall clock = %s want 2025-10-01T10:26:00", s)
	}
	got, err = Normalize(model.FBO, "1.10.2025 22:00")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if s := got.Format("2006-01-02T15:04:05"); s != "2025-10-02T01:00:00" {
		t.Fatalf("wall clock = %s want 2025-10-02T01:00:00", s)
	}
}

func TestNormalize_FBS(t *testing.T) {
	got, err := Normalize(model.FBS, "2025-09-27 21:10:51")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if s := got.Format("2006-01-02T15:04:05"); s != "2025-09-28T00:10:51" {
		t.Fatalf("reporting instant = %s", s)
	}
	if d := DayOf(got); d != "2025-09-28" {
		t.Fatalf("day = %s", d)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := []struct {
		d  model.Dialect
		in string
	}{
		{model.FBO, ""},
		{model.FBO, "   "},
		{model.FBO, "not-a-date"},
		{model.FBO, "1.10.20257:26"},
		{model.FBO, "1.10.2025  7:26"},
		{model.FBO, "1.10.2025 7:6"},
		{model.FBO, "1/10/2025 7:26"},
		{model.FBO, "31.2.2025 7:26"},
		{model.FBO, "1.13.2025 7:26"},
		{model.FBO, "1.10.2025 24:00"},
		{model.FBO, "1.10.25 7:26"},
		{model.FBO, "2025-09-27 21:10:51"},
		{model.FBS, "2025-09-27 1:10:51"},
		{model.FBS, "2025-09-27T21:10:51"},
		{model.FBS, "2025-02-30 10:00:00"},
		{model.FBS, "1.10.2025 7:26"},
		{model.Dialect("X"), "2025-09-27 21:10:51"},
	}
	for _, c := range cases {
		got, err := Normalize(c.d, c.in)
		if err == nil {
			t.Fatalf("Normalize(%s, %q) = %v, want error", c.d, c.in, got)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("want *ParseError, got %T", err)
		}
		if pe.Value != c.in {
			t.Fatalf("ParseError.Value = %q want %q", pe.Value, c.in)
		}
		if !got.IsZero() {
			t.Fatalf("failed parse must return zero time, got %v", got)
		}
	}
}

func TestSniff(t *testing.T) {
	if d, ok := Sniff("2025-09-27 21:10:51"); !ok || d != model.FBS {
		t.Fatalf("Sniff FBS = %v %v", d, ok)
	}
	if d, ok := Sniff("1.10.2025 7:26"); !ok || d != model.FBO {
		t.Fatalf("Sniff FBO = %v %v", d, ok)
	}
	if _, ok := Sniff("yesterday"); ok {
		t.Fatalf("Sniff should not match")
	}
}
