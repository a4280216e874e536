package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter renders amounts for display in a fixed currency and locale.
type MoneyFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoneyFormatter falls back to INR and en-IN when the inputs do not parse.
func NewMoneyFormatter(code, locale string) MoneyFormatter {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.INR
	}
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.MustParse("en-IN")
	}
	return MoneyFormatter{unit: unit, printer: message.NewPrinter(tag)}
}

// Format renders amount with the currency symbol, e.g. "₹ 959.00".
func (f MoneyFormatter) Format(amount decimal.Decimal) string {
	if f.printer == nil {
		f = NewMoneyFormatter("", "")
	}
	value, _ := amount.Round(2).Float64()
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(value)))
}

// Code returns the ISO 4217 code.
func (f MoneyFormatter) Code() string {
	return f.unit.String()
}
