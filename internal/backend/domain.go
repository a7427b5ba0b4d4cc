package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as returned by GET /products/barcode/{code}.
// Prices may arrive as JSON numbers or numeric strings.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Barcode       string          `json:"barcode"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Variants      []Variant       `json:"variants"`
}

// Variant is a size/color combination of a product with its own barcode and stock.
type Variant struct {
	ID            int64               `json:"id"`
	Barcode       string              `json:"barcode"`
	Size          string              `json:"size,omitempty"`
	Color         string              `json:"color,omitempty"`
	Price         decimal.NullDecimal `json:"price"`
	StockQuantity int                 `json:"stock_quantity"`
}

// Label is the human readable variant name, e.g. "M / Black".
func (v Variant) Label() string {
	parts := make([]string, 0, 2)
	if v.Size != "" {
		parts = append(parts, v.Size)
	}
	if v.Color != "" {
		parts = append(parts, v.Color)
	}
	return strings.Join(parts, " / ")
}

// PriceFor returns the variant price, falling back to the product price.
func (v Variant) PriceFor(p *Product) decimal.Decimal {
	if v.Price.Valid {
		return v.Price.Decimal
	}
	return p.Price
}

// Client is a store customer record. Debt is what the client currently owes.
type Client struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Phone string          `json:"phone,omitempty"`
	Debt  decimal.Decimal `json:"debt"`
}

// Money is a decimal sent to the backend as a JSON number with two decimals.
type Money struct {
	decimal.Decimal
}

// NewMoney rounds d to two decimals.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// SaleItem is one line of a sale request.
type SaleItem struct {
	ProductVariantID int64 `json:"product_variant_id"`
	Quantity         int   `json:"quantity"`
	UnitPrice        Money `json:"unit_price"`
	DiscountAmount   Money `json:"discount_amount"`
}

// SaleRequest is the body of POST /sales.
type SaleRequest struct {
	ClientID        *int64     `json:"client_id"`
	TotalAmount     Money      `json:"total_amount"`
	DiscountAmount  Money      `json:"discount_amount"`
	FinalAmount     Money      `json:"final_amount"`
	PaymentMethod   string     `json:"payment_method"`
	PaidAmount      Money      `json:"paid_amount"`
	RemainingAmount Money      `json:"remaining_amount"`
	Notes           string     `json:"notes"`
	Items           []SaleItem `json:"items"`
}

// SaleRecord is the sale created by the backend.
type SaleRecord struct {
	ID              int64           `json:"id"`
	ReceiptNumber   string          `json:"receipt_number"`
	ClientID        *int64          `json:"client_id"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Reason  string `json:"error"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if msg == "" {
		msg = "no details"
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, msg)
}
