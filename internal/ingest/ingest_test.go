package ingest

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"orderstats/internal/model"
)

func fboRow(id, sku, price, qty, status, accepted string) model.RawRow {
	return model.RawRow{
		"Номер заказа":       id,
		"Артикул":            sku,
		"Ваша цена":          price,
		"Количество":         qty,
		"Статус":             status,
		"Принят в обработку": accepted,
	}
}

func sampleRows() []model.RawRow {
	return []model.RawRow{
		fboRow("o1", "SKU-1", "1 234,56", "2", "Доставлен", "1.10.2025 7:26"),
		fboRow("o2", "SKU-2", "100", "1", "отменён", "1.10.2025 22:00"),
		fboRow("o3", "SKU-1", "abc", "x", "в пути", "3.10.2025 12:00"),
		fboRow("o4", "SKU-3", "50", "1", "доставлен", "not-a-date"),
		fboRow("o5", "  ", "50", "1", "доставлен", "3.10.2025 12:00"),
		fboRow("o6", "SKU-2", "10", "3", "ожидает сборки", "1.10.2025 8:00"),
	}
}

func TestIngest_IndexAndReport(t *testing.T) {
	idx, rep, err := Ingest(model.FBO, sampleRows())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got, want := idx.Days(), []model.Day{"2025-10-01", "2025-10-02", "2025-10-03"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Days = %v want %v", got, want)
	}
	if idx.Len() != 4 {
		t.Fatalf("Len = %d want 4", idx.Len())
	}
	oct1 := idx.Orders("2025-10-01")
	if len(oct1) != 2 || oct1[0].OrderID != "o1" || oct1[1].OrderID != "o6" {
		t.Fatalf("2025-10-01 bucket must keep row order: %+v", oct1)
	}
	if !oct1[0].UnitPrice.Equal(decimal.RequireFromString("1234.56")) || oct1[0].Quantity != 2 {
		t.Fatalf("bad o1: %+v", oct1[0])
	}
	if oct1[0].Class != model.Revenue {
		t.Fatalf("o1 class = %v", oct1[0].Class)
	}
	oct2 := idx.Orders("2025-10-02")
	if len(oct2) != 1 || oct2[0].OrderID != "o2" || oct2[0].Class != model.Cancelled {
		t.Fatalf("midnight roll-over row must land on 2025-10-02: %+v", oct2)
	}
	oct3 := idx.Orders("2025-10-03")
	if len(oct3) != 1 || oct3[0].Quantity != 1 || !oct3[0].UnitPrice.IsZero() {
		t.Fatalf("coerced row: %+v", oct3)
	}

	if rep.RowsRead != 6 || rep.OrdersIndexed != 4 {
		t.Fatalf("report counts: %+v", rep)
	}
	if rep.FailedTimestamps.Count != 1 || len(rep.FailedTimestamps.Samples) != 1 {
		t.Fatalf("failed timestamps: %+v", rep.FailedTimestamps)
	}
	if s := rep.FailedTimestamps.Samples[0]; s.Row != 4 || s.Value != "not-a-date" {
		t.Fatalf("sample: %+v", s)
	}
	if rep.MissingProductCode != 1 || rep.CoercedQuantity != 1 || rep.CoercedPrice != 1 {
		t.Fatalf("coercion counts: %+v", rep)
	}
	if rep.Revenue != 2 || rep.Cancelled != 1 || rep.Ignored != 1 {
		t.Fatalf("class counts: %+v", rep)
	}
	if rep.Skipped() != 2 {
		t.Fatalf("Skipped = %d", rep.Skipped())
	}
}

func TestIngest_MalformedRowAbsentEverywhere(t *testing.T) {
	idx, _, err := Ingest(model.FBO, sampleRows())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	for _, d := range idx.Days() {
		for _, o := range idx.Orders(d) {
			if o.OrderID == "o4" {
				t.Fatalf("row with unparseable timestamp indexed under %s", d)
			}
		}
	}
}

func TestIngest_Idempotent(t *testing.T) {
	rows := sampleRows()
	idx1, rep1, _ := Ingest(model.FBO, rows)
	idx2, rep2, _ := Ingest(model.FBO, rows)
	if !reflect.DeepEqual(rep1, rep2) {
		t.Fatalf("reports differ: %+v vs %+v", rep1, rep2)
	}
	if !reflect.DeepEqual(idx1.Days(), idx2.Days()) {
		t.Fatalf("days differ")
	}
	for _, d := range idx1.Days() {
		a, b := idx1.Orders(d), idx2.Orders(d)
		if len(a) != len(b) {
			t.Fatalf("bucket %s differs", d)
		}
		for i := range a {
			if a[i].OrderID != b[i].OrderID || !a[i].ReportingInstant.Equal(b[i].ReportingInstant) || !a[i].UnitPrice.Equal(b[i].UnitPrice) {
				t.Fatalf("order %d of %s differs: %+v vs %+v", i, d, a[i], b[i])
			}
		}
	}
}

func TestIngest_SampleLimit(t *testing.T) {
	var rows []model.RawRow
	for i := 0; i < 25; i++ {
		rows = append(rows, fboRow("o", "S", "1", "1", "доставлен", "bad"))
	}
	_, rep, _ := Ingest(model.FBO, rows, WithSampleLimit(3))
	if rep.FailedTimestamps.Count != 25 || len(rep.FailedTimestamps.Samples) != 3 {
		t.Fatalf("want count 25 with 3 samples, got %+v", rep.FailedTimestamps)
	}
	_, rep, _ = Ingest(model.FBO, rows)
	if len(rep.FailedTimestamps.Samples) != DefaultSampleLimit {
		t.Fatalf("default sample limit = %d", len(rep.FailedTimestamps.Samples))
	}
}

func TestIngest_FBSAliases(t *testing.T) {
	rows := []model.RawRow{{
		"№ заказа":         "123",
		"Артикул продавца": "A-1",
		"Цена":             "99,90",
		"Кол-во":           "2",
		"Статус":           "Доставляется",
		"Дата создания":    "2025-09-27 21:10:51",
	}}
	idx, rep, err := Ingest(model.FBS, rows)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got := idx.Orders("2025-09-28")
	if len(got) != 1 || got[0].OrderID != "123" || got[0].ProductCode != "A-1" || got[0].Quantity != 2 {
		t.Fatalf("FBS row: %+v (report %+v)", got, rep)
	}
	if !got[0].UnitPrice.Equal(decimal.RequireFromString("99.9")) {
		t.Fatalf("price = %s", got[0].UnitPrice)
	}
}

func TestIngest_UnknownDialect(t *testing.T) {
	if _, _, err := Ingest(model.Dialect("rFBS"), nil); !errors.Is(err, model.ErrUnknownDialect) {
		t.Fatalf("want ErrUnknownDialect, got %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1 234,56", "1234.56", true},
		{"1\u00a0234,56", "1234.56", true},
		{"1234.5", "1234.5", true},
		{"0", "0", true},
		{"", "0", false},
		{"abc", "0", false},
		{"-5", "0", false},
		{"1,2,3", "0", false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || !got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("ParsePrice(%q) = %s,%v want %s,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]struct {
		want int
		ok   bool
	}{
		"3":   {3, true},
		" 2 ": {2, true},
		"":    {1, false},
		"0":   {1, false},
		"-2":  {1, false},
		"1.5": {1, false},
	}
	for in, c := range cases {
		got, ok := ParseQuantity(in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseQuantity(%q) = %d,%v want %d,%v", in, got, ok, c.want, c.ok)
		}
	}
}

func TestReportSummary(t *testing.T) {
	_, rep, _ := Ingest(model.FBO, sampleRows())
	want := "4 of 6 rows indexed; 1 rows skipped due to unparseable dates; 1 rows skipped without product code; 1 quantities defaulted to 1; 1 prices defaulted to 0"
	if got := rep.Summary(); got != want {
		t.Fatalf("Summary = %q", got)
	}
}
