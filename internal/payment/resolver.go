// Package payment turns a payment method choice, the cart total and the
// client's current debt into a validated paid/remaining split.
package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Method is the payment method picked at the till.
type Method string

const (
	MethodFull    Method = "full"
	MethodPartial Method = "partial"
	MethodDebt    Method = "debt"
)

// Wire values understood by the sales backend.
const (
	WireCash     = "cash"
	WireTransfer = "transfer"
)

var wireMethods = map[Method]string{
	MethodFull:    WireCash,
	MethodPartial: WireCash,
	MethodDebt:    WireTransfer,
}

var (
	// ErrFullAmountInPartial means a partial payment covers the whole total; FULL should be used.
	ErrFullAmountInPartial = errors.New("full-amount-in-partial")
	// ErrAmountRequired means a partial payment has no positive amount.
	ErrAmountRequired = errors.New("amount-required")
	// ErrAmountNotEditable is returned when the paid amount is set for a method that derives it.
	ErrAmountNotEditable = errors.New("paid amount is only editable for partial payments")
	// ErrUnknownMethod is returned by ParseMethod.
	ErrUnknownMethod = errors.New("unknown payment method")
)

// ParseMethod parses "full", "partial" or "debt", ignoring case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
	return m, nil
}

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	_, ok := wireMethods[m]
	return ok
}

// BackendMethod maps a till method to the backend vocabulary.
func (m Method) BackendMethod() string {
	return wireMethods[m]
}

// DebtWarning is raised when a debt sale is made for a client that already owes money.
// It does not block the sale; the cashier has to acknowledge it.
type DebtWarning struct {
	Debt decimal.Decimal `json:"debt"`
}

func (w *DebtWarning) String() string {
	return fmt.Sprintf("client already has outstanding debt of %s; continue?", w.Debt.StringFixed(2))
}

// Resolver holds the payment decision for one checkout.
type Resolver struct {
	method Method
	paid   decimal.Decimal
	total  decimal.Decimal
}

// NewResolver starts with a full payment of a zero total.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.Reset()
	return r
}

// Method is the current payment method.
func (r *Resolver) Method() Method { return r.method }

// Paid is the amount the client pays now.
func (r *Resolver) Paid() decimal.Decimal { return r.paid }

// Total is the amount due.
func (r *Resolver) Total() decimal.Decimal { return r.total }

// Remaining is always total minus paid.
func (r *Resolver) Remaining() decimal.Decimal {
	return r.total.Sub(r.paid)
}

// BackendMethod is the wire value for the current method.
func (r *Resolver) BackendMethod() string {
	return r.method.BackendMethod()
}

// SetTotal updates the amount due and re-derives the paid amount.
func (r *Resolver) SetTotal(total decimal.Decimal) {
	r.total = total
	r.derive()
}

// SetMethod switches the payment method and re-derives the paid amount.
func (r *Resolver) SetMethod(m Method) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, m)
	}
	r.method = m
	r.derive()
	return nil
}

// SetPaidAmount records what the client hands over on a partial payment.
func (r *Resolver) SetPaidAmount(amount decimal.Decimal) error {
	if r.method != MethodPartial {
		return ErrAmountNotEditable
	}
	r.paid = amount
	return nil
}

// Validate checks the decision before checkout. A non-nil warning means the
// decision is valid but needs confirmation.
func (r *Resolver) Validate(clientDebt decimal.Decimal) (*DebtWarning, error) {
	switch r.method {
	case MethodPartial:
		if r.paid.GreaterThanOrEqual(r.total) {
			return nil, ErrFullAmountInPartial
		}
		if !r.paid.IsPositive() {
			return nil, ErrAmountRequired
		}
	case MethodDebt:
		if clientDebt.IsPositive() {
			return &DebtWarning{Debt: clientDebt}, nil
		}
	}
	return nil, nil
}

// Reset returns to a full payment with nothing paid.
func (r *Resolver) Reset() {
	r.method = MethodFull
	r.paid = decimal.Zero
	r.total = decimal.Zero
}

func (r *Resolver) derive() {
	switch r.method {
	case MethodFull:
		r.paid = r.total
	case MethodDebt:
		r.paid = decimal.Zero
	case MethodPartial:
		if r.paid.GreaterThan(r.total) {
			r.paid = decimal.Zero
		}
	}
}
