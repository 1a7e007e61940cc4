// Package ingest builds a per-day order index from raw export rows.
//
// Row-level data problems never abort a pass: rows with an unusable
// timestamp or product code are dropped, unparseable quantities and prices
// fall back to defaults, and every such event is counted in the Report.
package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"orderstats/internal/classify"
	"orderstats/internal/datenorm"
	"orderstats/internal/model"
)

// DefaultSampleLimit bounds Report.FailedTimestamps.Samples.
const DefaultSampleLimit = 10

// TimestampFailure is one dropped row kept for diagnostics.
type TimestampFailure struct {
	Row    int    `json:"row"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// FailureSample counts failures and keeps the first few.
type FailureSample struct {
	Count   int                `json:"count"`
	Samples []TimestampFailure `json:"samples,omitempty"`
}

// Report describes what one ingestion pass did with its input.
type Report struct {
	Dialect            model.Dialect `json:"dialect"`
	RowsRead           int           `json:"rowsRead"`
	OrdersIndexed      int           `json:"ordersIndexed"`
	FailedTimestamps   FailureSample `json:"failedTimestamps"`
	MissingProductCode int           `json:"missingProductCode"`
	CoercedQuantity    int           `json:"coercedQuantity"`
	CoercedPrice       int           `json:"coercedPrice"`
	Revenue            int           `json:"revenueRows"`
	Cancelled          int           `json:"cancelledRows"`
	Ignored            int           `json:"ignoredRows"`
}

// Skipped is the number of rows that did not make it into the index.
func (r Report) Skipped() int { return r.FailedTimestamps.Count + r.MissingProductCode }

// Summary is a one-line human description of the pass.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d rows indexed", r.OrdersIndexed, r.RowsRead)
	if n := r.FailedTimestamps.Count; n > 0 {
		fmt.Fprintf(&b, "; %d rows skipped due to unparseable dates", n)
	}
	if n := r.MissingProductCode; n > 0 {
		fmt.Fprintf(&b, "; %d rows skipped without product code", n)
	}
	if n := r.CoercedQuantity; n > 0 {
		fmt.Fprintf(&b, "; %d quantities defaulted to 1", n)
	}
	if n := r.CoercedPrice; n > 0 {
		fmt.Fprintf(&b, "; %d prices defaulted to 0", n)
	}
	return b.String()
}

type options struct {
	sampleLimit int
}

// Option tunes an ingestion pass.
type Option func(*options)

// WithSampleLimit sets how many failed timestamps are kept verbatim.
func WithSampleLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.sampleLimit = n
		}
	}
}

// Ingest normalizes rows of dialect d into a fresh Index. The only error is
// an invalid dialect.
func Ingest(d model.Dialect, rows []model.RawRow, opts ...Option) (*Index, Report, error) {
	if !d.Valid() {
		return nil, Report{}, fmt.Errorf("ingest: %w: %q", model.ErrUnknownDialect, string(d))
	}
	o := options{sampleLimit: DefaultSampleLimit}
	for _, fn := range opts {
		fn(&o)
	}
	cols := model.ColumnsFor(d)
	idx := newIndex()
	rep := Report{Dialect: d, RowsRead: len(rows)}

	for i, row := range rows {
		rawTS := row.Lookup(cols.AcceptedAt)
		at, err := datenorm.Normalize(d, rawTS)
		if err != nil {
			rep.FailedTimestamps.Count++
			if len(rep.FailedTimestamps.Samples) < o.sampleLimit {
				rep.FailedTimestamps.Samples = append(rep.FailedTimestamps.Samples, TimestampFailure{
					Row:    i + 1,
					Value:  rawTS,
					Reason: failureReason(err),
				})
			}
			continue
		}

		code := strings.TrimSpace(row.Lookup(cols.ProductCode))
		if code == "" {
			rep.MissingProductCode++
			continue
		}

		qty, ok := ParseQuantity(row.Lookup(cols.Quantity))
		if !ok {
			rep.CoercedQuantity++
		}
		price, ok := ParsePrice(row.Lookup(cols.UnitPrice))
		if !ok {
			rep.CoercedPrice++
		}

		status := strings.TrimSpace(row.Lookup(cols.Status))
		class := classify.Classify(status)
		switch class {
		case model.Revenue:
			rep.Revenue++
		case model.Cancelled:
			rep.Cancelled++
		default:
			rep.Ignored++
		}

		idx.add(model.NormalizedOrder{
			OrderID:          strings.TrimSpace(row.Lookup(cols.OrderID)),
			ProductCode:      code,
			UnitPrice:        price,
			Quantity:         qty,
			Status:           status,
			Class:            class,
			Day:              datenorm.DayOf(at),
			ReportingInstant: at,
		})
		rep.OrdersIndexed++
	}
	return idx, rep, nil
}

func failureReason(err error) string {
	var pe *datenorm.ParseError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}

// ParseQuantity parses a positive integer quantity. ok is false when the
// default of 1 was used.
func ParseQuantity(s string) (qty int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1, false
	}
	return n, true
}

var spaceStripper = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// ParsePrice parses prices like "1 234,56". ok is false when the default of
// 0 was used.
func ParsePrice(s string) (price decimal.Decimal, ok bool) {
	clean := strings.ReplaceAll(spaceStripper.Replace(s), ",", ".")
	if clean == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// Index maps calendar days to their orders in source row order.
type Index struct {
	byDay map[model.Day][]model.NormalizedOrder
	days  []model.Day
	total int
}

func newIndex() *Index {
	return &Index{byDay: make(map[model.Day][]model.NormalizedOrder)}
}

func (x *Index) add(o model.NormalizedOrder) {
	if _, ok := x.byDay[o.Day]; !ok {
		i := sort.Search(len(x.days), func(i int) bool { return x.days[i] >= o.Day })
		x.days = append(x.days, "")
		copy(x.days[i+1:], x.days[i:])
		x.days[i] = o.Day
	}
	x.byDay[o.Day] = append(x.byDay[o.Day], o)
	x.total++
}

// Days returns the indexed days in ascending order.
func (x *Index) Days() []model.Day {
	out := make([]model.Day, len(x.days))
	copy(out, x.days)
	return out
}

// Orders returns a copy of the orders indexed under day.
func (x *Index) Orders(day model.Day) []model.NormalizedOrder {
	src := x.byDay[day]
	if len(src) == 0 {
		return nil
	}
	out := make([]model.NormalizedOrder, len(src))
	copy(out, src)
	return out
}

// Each calls fn for every order of day without copying.
func (x *Index) Each(day model.Day, fn func(model.NormalizedOrder)) {
	for _, o := range x.byDay[day] {
		fn(o)
	}
}

// Has reports whether day has at least one order.
func (x *Index) Has(day model.Day) bool { return len(x.byDay[day]) > 0 }

// OrderCounts returns the number of order rows per day.
func (x *Index) OrderCounts() map[model.Day]int {
	out := make(map[model.Day]int, len(x.byDay))
	for d, orders := range x.byDay {
		out[d] = len(orders)
	}
	return out
}

// Len is the total number of indexed orders.
func (x *Index) Len() int { return x.total }
