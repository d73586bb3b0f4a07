package actions

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// title upper-cases the first letter of each word. A Caser keeps state, so
// one is made per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
