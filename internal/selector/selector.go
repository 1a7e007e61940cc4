// Package selector picks which calendar days take part in an aggregation.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"orderstats/internal/model"
)

// ErrTooFewDays is matched by every SelectionError.
var ErrTooFewDays = errors.New("selector: not enough distinct days")

// ErrUnknownDay is returned by SelectCustom for a day absent from the index.
var ErrUnknownDay = errors.New("selector: day not available")

// SelectionError reports a strategy applied to too few days.
type SelectionError struct {
	Strategy Strategy
	Need     int
	Have     int
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selector: %s needs %d distinct days, have %d", e.Strategy, e.Need, e.Have)
}

func (e *SelectionError) Is(target error) bool { return target == ErrTooFewDays }

// Strategy names a day selection rule.
type Strategy string

const (
	All     Strategy = "all"
	Pair    Strategy = "pair"
	Triple  Strategy = "triple"
	Busiest Strategy = "busiest"
	Custom  Strategy = "custom"
)

var ErrUnknownStrategy = errors.New("selector: unknown strategy")

// ParseStrategy maps a name to a Strategy; empty means All.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return All, nil
	case All, Pair, Triple, Busiest, Custom:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// distinct returns a sorted, de-duplicated copy.
func distinct(days []model.Day) []model.Day {
	out := make([]model.Day, 0, len(days))
	seen := make(map[model.Day]struct{}, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelectPair returns the first and last day.
func SelectPair(days []model.Day) ([]model.Day, error) {
	ds := distinct(days)
	if len(ds) < 2 {
		return nil, &SelectionError{Strategy: Pair, Need: 2, Have: len(ds)}
	}
	return []model.Day{ds[0], ds[len(ds)-1]}, nil
}

// SelectTriple returns the first, middle (len/2) and last day.
func SelectTriple(days []model.Day) ([]model.Day, error) {
	ds := distinct(days)
	if len(ds) < 3 {
		return nil, &SelectionError{Strategy: Triple, Need: 3, Have: len(ds)}
	}
	return []model.Day{ds[0], ds[len(ds)/2], ds[len(ds)-1]}, nil
}

// SelectBusiest returns the day with the most order rows; ties go to the
// earliest day.
func SelectBusiest(counts map[model.Day]int) (model.Day, error) {
	if len(counts) == 0 {
		return "", &SelectionError{Strategy: Busiest, Need: 1, Have: 0}
	}
	days := make([]model.Day, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	days = distinct(days)
	best := days[0]
	for _, d := range days[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best, nil
}

// SelectCustom validates explicit caller picks against the available days
// and returns them sorted and de-duplicated.
func SelectCustom(available, wanted []model.Day) ([]model.Day, error) {
	have := make(map[model.Day]struct{}, len(available))
	for _, d := range available {
		have[d] = struct{}{}
	}
	picked := distinct(wanted)
	if len(picked) == 0 {
		return nil, &SelectionError{Strategy: Custom, Need: 1, Have: 0}
	}
	for _, d := range picked {
		if _, ok := have[d]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDay, d)
		}
	}
	return picked, nil
}

// Source is what Select needs from an order index.
type Source interface {
	Days() []model.Day
	OrderCounts() map[model.Day]int
}

// Select applies strategy to src. wanted is only read for Custom.
func Select(src Source, strategy Strategy, wanted []model.Day) ([]model.Day, error) {
	switch strategy {
	case All, "":
		return src.Days(), nil
	case Pair:
		return SelectPair(src.Days())
	case Triple:
		return SelectTriple(src.Days())
	case Busiest:
		d, err := SelectBusiest(src.OrderCounts())
		if err != nil {
			return nil, err
		}
		return []model.Day{d}, nil
	case Custom:
		return SelectCustom(src.Days(), wanted)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(strategy))
}
