// Package cart holds the in-progress list of lines a cashier is ringing up.
// A Cart is a plain value: every operation returns a new cart and leaves the
// receiver untouched, so a rejected edit never leaks partial state.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/smallbiznis/pos/internal/pricing"
)

var (
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrLineNotFound      = errors.New("line_not_found")
)

type Warning string

const (
	WarningOutOfStock        Warning = "out_of_stock"
	WarningStockLimitReached Warning = "stock_limit_reached"
)

// Product is the catalog view a line is built from.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Stock     int64           `json:"stock"`
}

// Line snapshots price and tax at the time the product was added.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type Cart struct {
	Lines []Line `json:"lines"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Line returns the line for productID.
func (c Cart) Line(productID string) (Line, bool) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return Line{}, false
	}
	return c.Lines[idx], true
}

// AddProduct adds one unit of p. An existing line is incremented; a new line
// starts at quantity 1 and keeps insertion order. The quantity never goes
// past the product's stock: out-of-stock products and lines already at the
// stock ceiling leave the cart unchanged and return a warning instead.
func (c Cart) AddProduct(p Product) (Cart, []Warning) {
	if p.Stock <= 0 {
		return c, []Warning{WarningOutOfStock}
	}

	next := c.clone()
	if idx := next.indexOf(p.ID); idx >= 0 {
		if next.Lines[idx].Quantity >= p.Stock {
			return c, []Warning{WarningStockLimitReached}
		}
		next.Lines[idx].Quantity++
		return next, nil
	}

	next.Lines = append(next.Lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  1,
		UnitPrice: p.UnitPrice,
		TaxRate:   p.TaxRate,
	})
	return next, nil
}

// SetQuantity replaces the quantity of an existing line, checked against the
// live stock carried by p.
func (c Cart) SetQuantity(p Product, qty int64) (Cart, error) {
	if qty < 1 {
		return c, ErrInvalidQuantity
	}
	idx := c.indexOf(p.ID)
	if idx < 0 {
		return c, ErrLineNotFound
	}
	if qty > p.Stock {
		return c, ErrInsufficientStock
	}

	next := c.clone()
	next.Lines[idx].Quantity = qty
	return next, nil
}

// RemoveLine drops the line for productID. Removing an absent line is a no-op.
func (c Cart) RemoveLine(productID string) Cart {
	idx := c.indexOf(productID)
	if idx < 0 {
		return c
	}
	next := Cart{Lines: make([]Line, 0, len(c.Lines)-1)}
	next.Lines = append(next.Lines, c.Lines[:idx]...)
	next.Lines = append(next.Lines, c.Lines[idx+1:]...)
	return next
}

// PricingLines adapts the cart for pricing.ComputeTotals.
func (c Cart) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, pricing.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
		})
	}
	return lines
}

func (c Cart) indexOf(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}
