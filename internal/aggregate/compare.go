package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"orderstats/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Change is the movement of one figure between two results.
type Change struct {
	OrdersDiff     int64           `json:"ordersDiff"`
	OrdersPercent  decimal.Decimal `json:"ordersPercent"`
	RevenueDiff    decimal.Decimal `json:"revenueDiff"`
	RevenuePercent decimal.Decimal `json:"revenuePercent"`
}

// SkuChange compares one product code across two results.
type SkuChange struct {
	ProductCode string   `json:"productCode"`
	Change      Change   `json:"change"`
	Previous    SkuStats `json:"previous"`
	Current     SkuStats `json:"current"`
}

// Comparison relates a result to the one before it.
type Comparison struct {
	PreviousDays []model.Day `json:"previousDays"`
	CurrentDays  []model.Day `json:"currentDays"`
	Skus         []SkuChange `json:"skus"`
	Totals       Change      `json:"totals"`
}

// Compare lists every product code of either result. A code missing from one
// side counts as zero there. Per-code percentages are 100 when the previous
// value is zero and the current is not; total percentages are 0 in that case.
func Compare(prev, cur Result) Comparison {
	codes := make(map[string]struct{}, len(prev.Skus)+len(cur.Skus))
	for c := range prev.Skus {
		codes[c] = struct{}{}
	}
	for c := range cur.Skus {
		codes[c] = struct{}{}
	}
	cmp := Comparison{
		PreviousDays: prev.SelectedDays(),
		CurrentDays:  cur.SelectedDays(),
		Skus:         make([]SkuChange, 0, len(codes)),
	}
	for c := range codes {
		p, n := prev.Skus[c], cur.Skus[c]
		p.ProductCode, n.ProductCode = c, c
		cmp.Skus = append(cmp.Skus, SkuChange{
			ProductCode: c,
			Change:      change(p.Orders, n.Orders, p.Revenue, n.Revenue, true),
			Previous:    p,
			Current:     n,
		})
	}
	sort.Slice(cmp.Skus, func(i, j int) bool { return cmp.Skus[i].ProductCode < cmp.Skus[j].ProductCode })
	cmp.Totals = change(prev.Totals.Orders, cur.Totals.Orders, prev.Totals.Revenue, cur.Totals.Revenue, false)
	return cmp
}

func change(prevOrders, curOrders int64, prevRev, curRev decimal.Decimal, fromZeroIsFull bool) Change {
	return Change{
		OrdersDiff:     curOrders - prevOrders,
		OrdersPercent:  percent(decimal.NewFromInt(prevOrders), decimal.NewFromInt(curOrders), fromZeroIsFull),
		RevenueDiff:    curRev.Sub(prevRev),
		RevenuePercent: percent(prevRev, curRev, fromZeroIsFull),
	}
}

func percent(prev, cur decimal.Decimal, fromZeroIsFull bool) decimal.Decimal {
	if prev.IsPositive() {
		return cur.Sub(prev).Div(prev).Mul(hundred).Round(2)
	}
	if fromZeroIsFull && cur.IsPositive() {
		return hundred
	}
	return decimal.Zero
}

// PerDay aggregates every day on its own, in ascending day order.
func PerDay(src Buckets, days []model.Day, opts ...Option) []Result {
	selected := uniqueSorted(days)
	out := make([]Result, len(selected))
	for i, d := range selected {
		out[i] = Aggregate(src, []model.Day{d}, opts...)
	}
	return out
}

// CompareConsecutive compares each result with its predecessor.
func CompareConsecutive(results []Result) []Comparison {
	if len(results) < 2 {
		return nil
	}
	out := make([]Comparison, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		out = append(out, Compare(results[i-1], results[i]))
	}
	return out
}
