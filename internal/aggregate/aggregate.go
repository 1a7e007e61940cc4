// Package aggregate reduces an order index over a set of selected days into
// per-day and per-product statistics.
//
// Money is summed in decimal and never rounded here; rounding to kopecks is
// a presentation concern of package report.
package aggregate

import (
	"runtime"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"orderstats/internal/model"
)

// Buckets is the read side of an order index.
type Buckets interface {
	Each(day model.Day, fn func(model.NormalizedOrder))
}

// SkuStats are the statistics of one product code.
type SkuStats struct {
	ProductCode   string          `json:"productCode"`
	Orders        int64           `json:"orders"`
	Cancellations int64           `json:"cancellations"`
	Revenue       decimal.Decimal `json:"revenue"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
}

// DaySummary totals one selected day.
type DaySummary struct {
	Day           model.Day       `json:"day"`
	OrderRows     int             `json:"orderRows"`
	Quantity      int64           `json:"quantity"`
	Cancellations int64           `json:"cancellations"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// Totals sums the day summaries.
type Totals struct {
	OrderRows     int             `json:"orderRows"`
	Orders        int64           `json:"orders"`
	Cancellations int64           `json:"cancellations"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// Result is the outcome of one aggregation call.
type Result struct {
	Days   []DaySummary        `json:"days"`
	Skus   map[string]SkuStats `json:"skus"`
	Totals Totals              `json:"totals"`
	Window *Window             `json:"window,omitempty"`
}

// SortedSkus returns the SKU statistics ordered by product code.
func (r Result) SortedSkus() []SkuStats {
	out := make([]SkuStats, 0, len(r.Skus))
	for _, s := range r.Skus {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out
}

// SelectedDays lists the days the result covers.
func (r Result) SelectedDays() []model.Day {
	out := make([]model.Day, len(r.Days))
	for i, d := range r.Days {
		out[i] = d.Day
	}
	return out
}

type options struct {
	workers int
	window  *Window
}

// Option tunes Aggregate.
type Option func(*options)

// WithWorkers bounds how many day buckets are reduced concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithinHours restricts orders to a reporting time-of-day window.
func WithinHours(w Window) Option {
	return func(o *options) { o.window = &w }
}

// skuAcc holds the running sums of one product code. revenue doubles as the
// weighted price sum and orders as its weight, so AveragePrice and Revenue
// always agree.
type skuAcc struct {
	orders        int64
	cancellations int64
	revenue       decimal.Decimal
}

func (a *skuAcc) merge(b skuAcc) {
	a.orders += b.orders
	a.cancellations += b.cancellations
	a.revenue = a.revenue.Add(b.revenue)
}

type partial struct {
	summary DaySummary
	skus    map[string]skuAcc
}

// Aggregate reduces the orders of the selected days. Days absent from src
// yield zeroed summaries; an empty selection yields an empty result.
func Aggregate(src Buckets, days []model.Day, opts ...Option) Result {
	o := options{workers: runtime.GOMAXPROCS(0)}
	for _, fn := range opts {
		fn(&o)
	}
	selected := uniqueSorted(days)
	partials := make([]partial, len(selected))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, day := range selected {
		g.Go(func() error {
			partials[i] = reduceDay(src, day, o.window)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Days:   make([]DaySummary, 0, len(selected)),
		Skus:   make(map[string]SkuStats),
		Window: o.window,
	}
	accs := make(map[string]skuAcc)
	for _, p := range partials {
		res.Days = append(res.Days, p.summary)
		res.Totals.OrderRows += p.summary.OrderRows
		res.Totals.Orders += p.summary.Quantity
		res.Totals.Cancellations += p.summary.Cancellations
		res.Totals.Revenue = res.Totals.Revenue.Add(p.summary.Revenue)
		for code, a := range p.skus {
			cur := accs[code]
			cur.merge(a)
			accs[code] = cur
		}
	}
	for code, a := range accs {
		res.Skus[code] = a.stats(code)
	}
	return res
}

func (a skuAcc) stats(code string) SkuStats {
	avg := decimal.Zero
	if a.orders > 0 {
		avg = a.revenue.Div(decimal.NewFromInt(a.orders))
	}
	return SkuStats{
		ProductCode:   code,
		Orders:        a.orders,
		Cancellations: a.cancellations,
		Revenue:       a.revenue,
		AveragePrice:  avg,
	}
}

func reduceDay(src Buckets, day model.Day, w *Window) partial {
	p := partial{
		summary: DaySummary{Day: day},
		skus:    make(map[string]skuAcc),
	}
	src.Each(day, func(o model.NormalizedOrder) {
		if w != nil && !w.Contains(o.ReportingInstant) {
			return
		}
		p.summary.OrderRows++
		a := p.skus[o.ProductCode]
		qty := int64(o.Quantity)
		switch o.Class {
		case model.Revenue:
			amount := o.Amount()
			a.orders += qty
			a.revenue = a.revenue.Add(amount)
			p.summary.Quantity += qty
			p.summary.Revenue = p.summary.Revenue.Add(amount)
		case model.Cancelled:
			a.cancellations += qty
			p.summary.Cancellations += qty
		}
		p.skus[o.ProductCode] = a
	})
	return p
}

func uniqueSorted(days []model.Day) []model.Day {
	seen := make(map[model.Day]struct{}, len(days))
	out := make([]model.Day, 0, len(days))
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
