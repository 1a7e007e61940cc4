package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one source record: column name -> cell value.
type RawRow map[string]string

// Dialect identifies the export flavour a row came from.
type Dialect string

const (
	FBO Dialect = "FBO"
	FBS Dialect = "FBS"
)

var ErrUnknownDialect = errors.New("unknown dialect")

// ParseDialect accepts "fbo"/"fbs" in any case.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FBO):
		return FBO, nil
	case string(FBS):
		return FBS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

func (d Dialect) Valid() bool { return d == FBO || d == FBS }

// Columns lists, per field, the header names a dialect may use. The first
// alias holding a non-empty value wins.
type Columns struct {
	OrderID     []string
	ProductCode []string
	UnitPrice   []string
	Quantity    []string
	Status      []string
	AcceptedAt  []string
}

var fboColumns = Columns{
	OrderID:     []string{"Номер заказа"},
	ProductCode: []string{"Артикул"},
	UnitPrice:   []string{"Ваша цена", "Цена"},
	Quantity:    []string{"Количество"},
	Status:      []string{"Статус"},
	AcceptedAt:  []string{"Принят в обработку"},
}

var fbsColumns = Columns{
	OrderID:     []string{"Номер заказа", "№ заказа"},
	ProductCode: []string{"Артикул", "Артикул продавца"},
	UnitPrice:   []string{"Ваша цена", "Цена"},
	Quantity:    []string{"Количество", "Кол-во"},
	Status:      []string{"Статус"},
	AcceptedAt:  []string{"Принят в обработку", "Дата создания"},
}

// ColumnsFor returns the column mapping of d. It panics on an invalid
// dialect; callers validate with ParseDialect first.
func ColumnsFor(d Dialect) Columns {
	switch d {
	case FBO:
		return fboColumns
	case FBS:
		return fbsColumns
	}
	panic(fmt.Sprintf("model: no columns for dialect %q", string(d)))
}

// Lookup returns the first non-empty value among aliases.
func (r RawRow) Lookup(aliases []string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// StatusClass is the semantic class of an order status.
type StatusClass int

const (
	Ignored StatusClass = iota
	Revenue
	Cancelled
)

func (c StatusClass) String() string {
	switch c {
	case Revenue:
		return "revenue"
	case Cancelled:
		return "cancelled"
	default:
		return "ignored"
	}
}

func (c StatusClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *StatusClass) UnmarshalText(b []byte) error {
	switch string(b) {
	case "revenue":
		*c = Revenue
	case "cancelled":
		*c = Cancelled
	case "ignored", "":
		*c = Ignored
	default:
		return fmt.Errorf("unknown status class %q", string(b))
	}
	return nil
}

// Day is a reporting-zone calendar date formatted YYYY-MM-DD.
type Day string

const dayLayout = "2006-01-02"

// ParseDay validates s as a calendar date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(t.Format(dayLayout)), nil
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day { return Day(t.Format(dayLayout)) }

func (d Day) String() string { return string(d) }

// NormalizedOrder is one ingested row. Immutable once built.
type NormalizedOrder struct {
	OrderID          string          `json:"orderId"`
	ProductCode      string          `json:"productCode"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Quantity         int             `json:"quantity"`
	Status           string          `json:"status"`
	Class            StatusClass     `json:"class"`
	Day              Day             `json:"day"`
	ReportingInstant time.Time       `json:"reportingInstant"`
}

// Amount is unit price times quantity.
func (o NormalizedOrder) Amount() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
