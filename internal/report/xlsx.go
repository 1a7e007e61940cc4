package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook written by WriteXLSX.
const (
	SheetSkus        = "SKU"
	SheetDays        = "Days"
	SheetComparisons = "Comparisons"
)

// WriteXLSX renders p as a workbook: per-product rows with a totals line,
// the day summaries, and comparisons when p has any.
func WriteXLSX(w io.Writer, p Payload) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSkus); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: style: %w", err)
	}

	skus := [][]interface{}{{"Артикул", "Заказы", "Отмены", "Выручка", "Средняя цена"}}
	for _, s := range p.Skus {
		skus = append(skus, []interface{}{s.ProductCode, s.Orders, s.Cancellations, number(s.Revenue), number(s.AveragePrice)})
	}
	skus = append(skus, []interface{}{"Итого", p.Totals.Orders, p.Totals.Cancellations, number(p.Totals.Revenue)})
	if err := writeSheet(f, SheetSkus, skus, bold); err != nil {
		return err
	}

	days := [][]interface{}{{"Дата", "Строк", "Заказы", "Отмены", "Выручка"}}
	for _, d := range p.Days {
		days = append(days, []interface{}{d.Day.String(), d.OrderRows, d.Quantity, d.Cancellations, number(d.Revenue)})
	}
	if _, err := f.NewSheet(SheetDays); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}
	if err := writeSheet(f, SheetDays, days, bold); err != nil {
		return err
	}

	if len(p.Comparisons) > 0 {
		cmp := [][]interface{}{{"Период", "Артикул", "Δ заказов", "Δ заказов %", "Δ выручки", "Δ выручки %"}}
		for _, c := range p.Comparisons {
			period := fmt.Sprintf("%v → %v", c.PreviousDays, c.CurrentDays)
			for _, r := range c.Skus {
				cmp = append(cmp, changeCells(period, r.ProductCode, r))
			}
			cmp = append(cmp, changeCells(period, "Итого", c.Totals))
		}
		if _, err := f.NewSheet(SheetComparisons); err != nil {
			return fmt.Errorf("report: add sheet: %w", err)
		}
		if err := writeSheet(f, SheetComparisons, cmp, bold); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write xlsx: %w", err)
	}
	return nil
}

func changeCells(period, code string, r ChangeRow) []interface{} {
	return []interface{}{period, code, r.OrdersDiff, number(r.OrdersPercent), number(r.RevenueDiff), number(r.RevenuePercent)}
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("report: %s header style: %w", sheet, err)
	}
	return nil
}

// number turns a two-decimal money string back into a numeric cell value.
func number(s string) interface{} {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.InexactFloat64()
}
