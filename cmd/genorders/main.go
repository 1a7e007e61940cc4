// Command genorders writes a synthetic FBO or FBS order export for local
// runs of orderstats.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"orderstats/internal/model"
)

var (
	fboHeader = []string{"Номер заказа", "Артикул", "Ваша цена", "Количество", "Статус", "Принят в обработку"}
	fbsHeader = []string{"№ заказа", "Артикул продавца", "Цена", "Кол-во", "Статус", "Дата создания"}

	// Weighted towards revenue statuses.
	statuses = []string{
		"Доставлен", "Доставлен", "Доставлен", "Доставляется", "Ожидает сборки",
		"Ожидает отгрузки", "Отменён", "отменен", "Возврат", "Не принят",
	}
)

func main() {
	var (
		count   int
		days    int
		dialect string
		output  string
		seed    int64
		start   string
	)
	flag.IntVar(&count, "count", 100, "number of orders to generate")
	flag.IntVar(&days, "days", 5, "number of days the orders span")
	flag.StringVar(&dialect, "dialect", "fbo", "export dialect: fbo|fbs")
	flag.StringVar(&output, "output", "orders.csv", "output file")
	flag.Int64Var(&seed, "seed", 0, "random seed; 0 uses the current time")
	flag.StringVar(&start, "start", "", "first UTC day YYYY-MM-DD (default: days before today)")
	flag.Parse()

	d, err := model.ParseDialect(dialect)
	if err != nil {
		log.Fatalf("genorders: %v", err)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	base := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -days)
	if start != "" {
		if base, err = time.Parse("2006-01-02", start); err != nil {
			log.Fatalf("genorders: start: %v", err)
		}
	}
	if err := generateOrders(d, count, days, base, rand.New(rand.NewSource(seed)), output); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generateOrders(d model.Dialect, count, days int, base time.Time, rng *rand.Rand, outputFile string) error {
	if days < 1 {
		days = 1
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = ';'
	header := fboHeader
	if d == model.FBS {
		header = fbsHeader
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	products := []string{"SKU-100", "SKU-200", "SKU-300", "SKU-400", "SKU-500"}
	span := int64(days) * int64(24*time.Hour/time.Second)
	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(rng.Int63n(span)) * time.Second)
		price := decimal.New(int64(10000+rng.Intn(990000)), -2) // 100.00-9999.99
		rec := []string{
			fmt.Sprintf("%d-%04d", 10000+i, rng.Intn(10000)),
			products[rng.Intn(len(products))],
			formatPrice(d, price),
			fmt.Sprint(1 + rng.Intn(3)),
			statuses[rng.Intn(len(statuses))],
			formatTimestamp(d, at),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write order %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	log.Printf("generated %d %s orders to %s", count, d, outputFile)
	return nil
}

// formatTimestamp writes t (UTC) the way each marketplace exports it.
func formatTimestamp(d model.Dialect, t time.Time) string {
	t = t.UTC()
	if d == model.FBS {
		return t.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%d.%d.%d %d:%02d", t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute())
}

// formatPrice uses a decimal comma for FBS, as its export does.
func formatPrice(d model.Dialect, p decimal.Decimal) string {
	s := p.StringFixed(2)
	if d == model.FBS {
		return strings.Replace(s, ".", ",", 1)
	}
	return s
}
