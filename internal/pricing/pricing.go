// Package pricing turns cart lines and payment terms into a totals breakdown.
// Everything here is pure: no I/O, no clocks, no globals.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every money amount is rounded to.
const MoneyPlaces = 2

type Warning string

const (
	WarningDiscountExceedsTotal Warning = "discount_exceeds_total"
)

var (
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrInvalidDiscount     = errors.New("invalid_discount")
	ErrInvalidShipping     = errors.New("invalid_shipping")
	ErrInvalidExchangeRate = errors.New("invalid_exchange_rate")
	ErrInvalidCurrency     = errors.New("invalid_currency")
)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart line. TaxRate is a percentage, 16 means 16%.
type Line struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

type Input struct {
	Lines        []Line
	Discount     decimal.Decimal
	Shipping     decimal.Decimal
	Currency     string
	BaseCurrency string
	ExchangeRate *decimal.Decimal
}

type LineTotal struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	Total     decimal.Decimal
	Tax       decimal.Decimal
}

// Totals is the breakdown shown to the cashier and persisted with the sale.
// Amounts are in the base currency. ConvertedTotal is display-only and is set
// only when the sale currency differs from the base currency.
type Totals struct {
	Lines          []LineTotal
	Subtotal       decimal.Decimal
	TaxTotal       decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	GrandTotal     decimal.Decimal
	Currency       string
	ExchangeRate   *decimal.Decimal
	ConvertedTotal *decimal.Decimal
	Warnings       []Warning
}

// HasWarning reports whether w was raised.
func (t Totals) HasWarning(w Warning) bool {
	for _, got := range t.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Round rounds a money amount half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ComputeTotals prices lines with per-line tax and applies discount and
// shipping. The grand total never goes below zero: an oversized discount
// clamps it and raises WarningDiscountExceedsTotal.
func ComputeTotals(in Input) (Totals, error) {
	if in.Discount.IsNegative() {
		return Totals{}, ErrInvalidDiscount
	}
	if in.Shipping.IsNegative() {
		return Totals{}, ErrInvalidShipping
	}

	base := NormalizeCurrency(in.BaseCurrency)
	currency := NormalizeCurrency(in.Currency)
	if currency == "" {
		currency = base
	}
	if currency == "" {
		return Totals{}, ErrInvalidCurrency
	}

	var rate *decimal.Decimal
	if currency != base {
		if in.ExchangeRate == nil || !in.ExchangeRate.IsPositive() {
			return Totals{}, ErrInvalidExchangeRate
		}
		r := *in.ExchangeRate
		rate = &r
	}

	totals := Totals{
		Lines:    make([]LineTotal, 0, len(in.Lines)),
		Subtotal: decimal.Zero,
		TaxTotal: decimal.Zero,
		Discount: Round(in.Discount),
		Shipping: Round(in.Shipping),
		Currency: currency,
	}

	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return Totals{}, ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidUnitPrice
		}
		if line.TaxRate.IsNegative() || line.TaxRate.GreaterThan(hundred) {
			return Totals{}, ErrInvalidTaxRate
		}

		lineTotal := Round(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
		lineTax := Round(lineTotal.Mul(line.TaxRate).Div(hundred))

		totals.Lines = append(totals.Lines, LineTotal{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
			Total:     lineTotal,
			Tax:       lineTax,
		})
		totals.Subtotal = totals.Subtotal.Add(lineTotal)
		totals.TaxTotal = totals.TaxTotal.Add(lineTax)
	}

	grand := totals.Subtotal.Add(totals.TaxTotal).Sub(totals.Discount).Add(totals.Shipping)
	if grand.IsNegative() {
		grand = decimal.Zero
		totals.Warnings = append(totals.Warnings, WarningDiscountExceedsTotal)
	}
	totals.GrandTotal = grand

	if rate != nil {
		converted := Round(grand.Mul(*rate))
		totals.ExchangeRate = rate
		totals.ConvertedTotal = &converted
	}

	return totals, nil
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
