// internal/formatting/formatter.go
package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// defaultTexts is the built-in string table. Configured texts override
// single entries.
var defaultTexts = map[string]string{
	"kitchen_order":    "KITCHEN ORDER",
	"customer_order":   "CUSTOMER ORDER",
	"receipt_annulled": "RECEIPT ANNULLED",
	"invoice":          "INVOICE",
	"copy":             "COPY",
	"sale":             "Sale",
	"location":         "Table",
	"operator":         "Operator",
	"partner":          "Customer",
	"total":            "TOTAL",
	"vat":              "VAT",
	"note":             "Note",
}

const defaultDateLayout = "02.01.2006 15:04"

// Formatter renders receipt text for one language
type Formatter struct {
	printer    *message.Printer
	texts      map[string]string
	dateLayout string
}

// New creates a formatter for the BCP 47 language tag lang
func New(lang string, texts map[string]string) (*Formatter, error) {
	tag := language.English
	if lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", lang, err)
		}
		tag = parsed
	}

	table := make(map[string]string, len(defaultTexts)+len(texts))
	for k, v := range defaultTexts {
		table[k] = v
	}
	for k, v := range texts {
		table[strings.ToLower(k)] = v
	}

	return &Formatter{
		printer:    message.NewPrinter(tag),
		texts:      table,
		dateLayout: defaultDateLayout,
	}, nil
}

// Text returns the string for key, or the key itself when it is unknown
func (f *Formatter) Text(key string) string {
	if v, ok := f.texts[key]; ok {
		return v
	}
	return key
}

// Money formats an amount with two decimals and the language's separators
func (f *Formatter) Money(amount decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}

// Quantity formats a quantity without trailing zeros, up to three decimals
func (f *Formatter) Quantity(quantity decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(quantity.Round(3).InexactFloat64(), number.MaxFractionDigits(3)))
}

func (f *Formatter) DateTime(t time.Time) string {
	return t.Format(f.dateLayout)
}
