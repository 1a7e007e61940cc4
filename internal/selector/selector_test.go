package selector

import (
	"errors"
	"reflect"
	"testing"

	"orderstats/internal/model"
)

var days = []model.Day{"2025-10-01", "2025-10-03", "2025-10-07"}

func TestSelectPair(t *testing.T) {
	got, err := SelectPair(days)
	if err != nil {
		t.Fatalf("SelectPair: %v", err)
	}
	if want := []model.Day{"2025-10-01", "2025-10-07"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectPair = %v want %v", got, want)
	}
}

func TestSelectTriple(t *testing.T) {
	got, err := SelectTriple(days)
	if err != nil {
		t.Fatalf("SelectTriple: %v", err)
	}
	if want := []model.Day{"2025-10-01", "2025-10-03", "2025-10-07"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectTriple = %v want %v", got, want)
	}

	four := []model.Day{"2025-10-04", "2025-10-01", "2025-10-02", "2025-10-03"}
	got, _ = SelectTriple(four)
	if want := []model.Day{"2025-10-01", "2025-10-03", "2025-10-04"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectTriple(4 days) = %v want %v", got, want)
	}
}

func TestSelect_TooFewDays(t *testing.T) {
	_, err := SelectPair([]model.Day{"2025-10-01", "2025-10-01"})
	var se *SelectionError
	if !errors.As(err, &se) || se.Need != 2 || se.Have != 1 {
		t.Fatalf("want SelectionError need=2 have=1, got %v", err)
	}
	if !errors.Is(err, ErrTooFewDays) {
		t.Fatalf("SelectionError must match ErrTooFewDays")
	}
	if _, err := SelectTriple(days[:2]); !errors.Is(err, ErrTooFewDays) {
		t.Fatalf("SelectTriple with 2 days: %v", err)
	}
	if _, err := SelectBusiest(nil); !errors.Is(err, ErrTooFewDays) {
		t.Fatalf("SelectBusiest empty: %v", err)
	}
}

func TestSelectBusiest_TieGoesToEarliest(t *testing.T) {
	counts := map[model.Day]int{"2025-10-05": 7, "2025-10-02": 7, "2025-10-01": 3}
	for i := 0; i < 20; i++ { // map iteration order must not matter
		got, err := SelectBusiest(counts)
		if err != nil || got != "2025-10-02" {
			t.Fatalf("SelectBusiest = %s, %v want 2025-10-02", got, err)
		}
	}
	got, _ := SelectBusiest(map[model.Day]int{"2025-10-01": 1, "2025-10-09": 4})
	if got != "2025-10-09" {
		t.Fatalf("SelectBusiest = %s want 2025-10-09", got)
	}
}

func TestSelectCustom(t *testing.T) {
	got, err := SelectCustom(days, []model.Day{"2025-10-07", "2025-10-01", "2025-10-07"})
	if err != nil {
		t.Fatalf("SelectCustom: %v", err)
	}
	if want := []model.Day{"2025-10-01", "2025-10-07"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SelectCustom = %v", got)
	}
	if _, err := SelectCustom(days, []model.Day{"2025-11-01"}); !errors.Is(err, ErrUnknownDay) {
		t.Fatalf("want ErrUnknownDay, got %v", err)
	}
	if _, err := SelectCustom(days, nil); !errors.Is(err, ErrTooFewDays) {
		t.Fatalf("want ErrTooFewDays on empty pick, got %v", err)
	}
}

type fakeSource struct {
	days   []model.Day
	counts map[model.Day]int
}

func (f fakeSource) Days() []model.Day { return f.days }
func (f fakeSource) OrderCounts() map[model.Day]int { return f.counts }

func TestSelect_Dispatch(t *testing.T) {
	src := fakeSource{days: days, counts: map[model.Day]int{"2025-10-01": 1, "2025-10-03": 5, "2025-10-07": 2}}
	cases := map[Strategy][]model.Day{
		All:     days,
		Pair:    {"2025-10-01", "2025-10-07"},
		Triple:  days,
		Busiest: {"2025-10-03"},
	}
	for st, want := range cases {
		got, err := Select(src, st, nil)
		if err != nil || !reflect.DeepEqual(got, want) {
			t.Fatalf("Select(%s) = %v, %v want %v", st, got, err, want)
		}
	}
	if _, err := Select(src, Strategy("weekly"), nil); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("want ErrUnknownStrategy, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if st, err := ParseStrategy(""); err != nil || st != All {
		t.Fatalf("empty strategy = %v %v", st, err)
	}
	if st, err := ParseStrategy(" Triple "); err != nil || st != Triple {
		t.Fatalf("ParseStrategy = %v %v", st, err)
	}
	if _, err := ParseStrategy("month"); err == nil {
		t.Fatalf("expected error")
	}
}
