package classify

import (
	"strings"

	"golang.org/x/text/cases"

	"orderstats/internal/model"
)

var (
	revenue = []string{
		"доставлен",
		"доставляется",
		"ожидает сборки",
		"ожидает отгрузки",
	}
	// "отменен" is the common ё-less spelling of "отменён".
	cancelled = []string{
		"отменён",
		"отменен",
		"возврат",
	}
)

var classes = func() map[string]model.StatusClass {
	m := make(map[string]model.StatusClass, len(revenue)+len(cancelled))
	for _, s := range revenue {
		m[Normalize(s)] = model.Revenue
	}
	for _, s := range cancelled {
		m[Normalize(s)] = model.Cancelled
	}
	return m
}()

// Normalize trims and case-folds status text.
func Normalize(status string) string {
	// cases.Caser is stateful; a fresh one per call keeps Classify safe for
	// concurrent use.
	return cases.Fold().String(strings.TrimSpace(status))
}

// Classify maps status text to its class. Unknown text is Ignored.
func Classify(status string) model.StatusClass {
	return classes[Normalize(status)]
}
