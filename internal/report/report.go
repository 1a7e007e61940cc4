// Package report flattens aggregation output into a payload that can be
// serialized as is, and renders that payload as a workbook.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderstats/internal/aggregate"
	"orderstats/internal/ingest"
	"orderstats/internal/model"
)

// SkuRow is one product code line. Money fields carry two decimals.
type SkuRow struct {
	ProductCode   string `json:"productCode"`
	Orders        int64  `json:"orders"`
	Cancellations int64  `json:"cancellations"`
	Revenue       string `json:"revenue"`
	AveragePrice  string `json:"averagePrice"`
}

type DayRow struct {
	Day           model.Day `json:"day"`
	OrderRows     int       `json:"orderRows"`
	Quantity      int64     `json:"quantity"`
	Cancellations int64     `json:"cancellations"`
	Revenue       string    `json:"revenue"`
}

type TotalsRow struct {
	OrderRows     int    `json:"orderRows"`
	Orders        int64  `json:"orders"`
	Cancellations int64  `json:"cancellations"`
	Revenue       string `json:"revenue"`
}

type ChangeRow struct {
	ProductCode    string `json:"productCode,omitempty"`
	OrdersDiff     int64  `json:"ordersDiff"`
	OrdersPercent  string `json:"ordersPercent"`
	RevenueDiff    string `json:"revenueDiff"`
	RevenuePercent string `json:"revenuePercent"`
}

type ComparisonBlock struct {
	PreviousDays []model.Day `json:"previousDays"`
	CurrentDays  []model.Day `json:"currentDays"`
	Skus         []ChangeRow `json:"skus"`
	Totals       ChangeRow   `json:"totals"`
}

// Payload is the complete, flat outcome of one analysis.
type Payload struct {
	ID            string            `json:"id"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	Dialect       model.Dialect     `json:"dialect"`
	Strategy      string            `json:"strategy"`
	AvailableDays []model.Day       `json:"availableDays"`
	SelectedDays  []model.Day       `json:"selectedDays"`
	Window        *aggregate.Window `json:"window,omitempty"`
	Ingestion     ingest.Report     `json:"ingestion"`
	Summary       string            `json:"summary"`
	Days          []DayRow          `json:"days"`
	Skus          []SkuRow          `json:"skus"`
	Totals        TotalsRow         `json:"totals"`
	Comparisons   []ComparisonBlock `json:"comparisons,omitempty"`
}

// Input gathers what Build flattens.
type Input struct {
	Dialect       model.Dialect
	Strategy      string
	AvailableDays []model.Day
	Ingestion     ingest.Report
	Result        aggregate.Result
	Comparisons   []aggregate.Comparison
}

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock fixes GeneratedAt.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithID fixes the report id.
func WithID(id string) Option { return func(o *options) { o.newID = func() string { return id } } }

// Money renders d rounded half away from zero to two decimals.
func Money(d decimal.Decimal) string { return d.StringFixed(2) }

// Build flattens in. Slices are never nil so they serialize as [].
func Build(in Input, opts ...Option) Payload {
	o := options{now: time.Now, newID: func() string { return uuid.New().String() }}
	for _, fn := range opts {
		fn(&o)
	}
	res := in.Result
	p := Payload{
		ID:            o.newID(),
		GeneratedAt:   o.now().UTC(),
		Dialect:       in.Dialect,
		Strategy:      in.Strategy,
		AvailableDays: nonNil(in.AvailableDays),
		SelectedDays:  nonNil(res.SelectedDays()),
		Window:        res.Window,
		Ingestion:     in.Ingestion,
		Summary:       in.Ingestion.Summary(),
		Days:          make([]DayRow, 0, len(res.Days)),
		Skus:          make([]SkuRow, 0, len(res.Skus)),
		Totals: TotalsRow{
			OrderRows:     res.Totals.OrderRows,
			Orders:        res.Totals.Orders,
			Cancellations: res.Totals.Cancellations,
			Revenue:       Money(res.Totals.Revenue),
		},
	}
	for _, d := range res.Days {
		p.Days = append(p.Days, DayRow{
			Day:           d.Day,
			OrderRows:     d.OrderRows,
			Quantity:      d.Quantity,
			Cancellations: d.Cancellations,
			Revenue:       Money(d.Revenue),
		})
	}
	for _, s := range res.SortedSkus() {
		p.Skus = append(p.Skus, SkuRow{
			ProductCode:   s.ProductCode,
			Orders:        s.Orders,
			Cancellations: s.Cancellations,
			Revenue:       Money(s.Revenue),
			AveragePrice:  Money(s.AveragePrice),
		})
	}
	for _, c := range in.Comparisons {
		p.Comparisons = append(p.Comparisons, comparisonBlock(c))
	}
	return p
}

func comparisonBlock(c aggregate.Comparison) ComparisonBlock {
	b := ComparisonBlock{
		PreviousDays: nonNil(c.PreviousDays),
		CurrentDays:  nonNil(c.CurrentDays),
		Skus:         make([]ChangeRow, 0, len(c.Skus)),
		Totals:       changeRow("", c.Totals),
	}
	for _, s := range c.Skus {
		b.Skus = append(b.Skus, changeRow(s.ProductCode, s.Change))
	}
	return b
}

func changeRow(code string, ch aggregate.Change) ChangeRow {
	return ChangeRow{
		ProductCode:    code,
		OrdersDiff:     ch.OrdersDiff,
		OrdersPercent:  Money(ch.OrdersPercent),
		RevenueDiff:    Money(ch.RevenueDiff),
		RevenuePercent: Money(ch.RevenuePercent),
	}
}

func nonNil(days []model.Day) []model.Day {
	if days == nil {
		return []model.Day{}
	}
	return days
}
