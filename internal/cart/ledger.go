package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrLineNotFound is returned when an operation targets a variant that is not in the cart.
var ErrLineNotFound = errors.New("cart line not found")

// ErrInvalidPrice is returned when a unit price override is negative.
var ErrInvalidPrice = errors.New("unit price must not be negative")

// Item is what gets added to the cart: a sellable product variant at its current price.
type Item struct {
	VariantID int64           `json:"variant_id"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	Barcode   string          `json:"barcode,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Line is a single cart entry. VariantID is its identity.
type Line struct {
	Item
	Quantity int `json:"quantity"`
}

// Amount returns unit price times quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger is the cashier's working cart. Lines keep insertion order.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	lines []Line
}

// NewLedger creates an empty cart.
func NewLedger() *Ledger {
	return &Ledger{lines: make([]Line, 0)}
}

// AddItem increments the quantity of an existing line for the same variant,
// or appends a new line with quantity 1.
func (l *Ledger) AddItem(item Item) {
	if i := l.index(item.VariantID); i >= 0 {
		l.lines[i].Quantity++
		return
	}
	l.lines = append(l.lines, Line{Item: item, Quantity: 1})
}

// SetQuantity sets the quantity of a line. n <= 0 removes the line.
func (l *Ledger) SetQuantity(variantID int64, n int) error {
	i := l.index(variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	if n <= 0 {
		l.removeAt(i)
		return nil
	}
	l.lines[i].Quantity = n
	return nil
}

// SetPrice overrides the unit price of a line.
func (l *Ledger) SetPrice(variantID int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	i := l.index(variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	l.lines[i].UnitPrice = price
	return nil
}

// RemoveItem drops a line. Removing an absent line is a no-op.
func (l *Ledger) RemoveItem(variantID int64) {
	if i := l.index(variantID); i >= 0 {
		l.removeAt(i)
	}
}

// Clear empties the cart.
func (l *Ledger) Clear() {
	l.lines = l.lines[:0]
}

// Lines returns a copy of the lines in display order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Line returns the line for a variant.
func (l *Ledger) Line(variantID int64) (Line, bool) {
	if i := l.index(variantID); i >= 0 {
		return l.lines[i], true
	}
	return Line{}, false
}

// Len is the number of lines.
func (l *Ledger) Len() int { return len(l.lines) }

// IsEmpty reports whether the cart has no lines.
func (l *Ledger) IsEmpty() bool { return len(l.lines) == 0 }

// Units is the number of units across all lines.
func (l *Ledger) Units() int {
	n := 0
	for _, line := range l.lines {
		n += line.Quantity
	}
	return n
}

// Subtotal is the sum of unit price times quantity over the current lines.
func (l *Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.lines {
		sum = sum.Add(line.Amount())
	}
	return sum
}

// Total is the amount due. Discounts are applied by the backend, so it equals Subtotal.
func (l *Ledger) Total() decimal.Decimal {
	return l.Subtotal()
}

func (l *Ledger) index(variantID int64) int {
	for i, line := range l.lines {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

func (l *Ledger) removeAt(i int) {
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
}
