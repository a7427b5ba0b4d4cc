package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pos_checkout/internal/cart"
	"pos_checkout/internal/payment"
)

// State is the step a checkout session is in.
type State string

const (
	StateBrowsing           State = "browsing"
	StateReviewingPayment   State = "reviewing_payment"
	StateDebtWarningPending State = "debt_warning_pending"
	StateSubmitting         State = "submitting"
	StateReceiptReady       State = "receipt_ready"
	StateFailed             State = "failed"
)

var transitions = map[State][]State{
	StateBrowsing:           {StateReviewingPayment, StateDebtWarningPending},
	StateReviewingPayment:   {StateSubmitting, StateBrowsing},
	StateDebtWarningPending: {StateReviewingPayment, StateBrowsing},
	StateSubmitting:         {StateReceiptReady, StateFailed},
	StateReceiptReady:       {StateBrowsing},
	StateFailed:             {StateSubmitting, StateBrowsing},
}

// CanTransitionTo reports whether a session may move from one state to another.
func CanTransitionTo(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

var (
	ErrNotFound          = errors.New("product not found")
	ErrOutOfStock        = errors.New("product out of stock")
	ErrClientNotFound    = errors.New("client not found")
	ErrInvalidTransition = errors.New("invalid checkout state transition")
	ErrSubmitInFlight    = errors.New("sale submission already in progress")
)

// Reason says why checkout cannot proceed.
type Reason string

const (
	ReasonCartEmpty      Reason = "cart-empty"
	ReasonClientRequired Reason = "client-required"
	ReasonPaymentInvalid Reason = "payment-invalid"
)

// ValidationError blocks the move to payment review. Err carries the payment
// detail for ReasonPaymentInvalid.
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout blocked: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("checkout blocked: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Receipt is the frozen result of a committed sale.
type Receipt struct {
	SaleID        int64           `json:"sale_id"`
	ReceiptNumber string          `json:"receipt_number"`
	CreatedAt     time.Time       `json:"created_at"`
	ClientID      *int64          `json:"client_id"`
	ClientName    string          `json:"client_name,omitempty"`
	Lines         []cart.Line     `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	Method        payment.Method  `json:"method"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
}

// ClientView is the client attached to a session: either a known client with
// an id and debt, or a name typed in at the till.
type ClientView struct {
	ID   *int64          `json:"id"`
	Name string          `json:"name"`
	Debt decimal.Decimal `json:"debt"`
}

type PaymentView struct {
	Method        payment.Method  `json:"method"`
	Paid          decimal.Decimal `json:"paid"`
	Remaining     decimal.Decimal `json:"remaining"`
	BackendMethod string          `json:"backend_method"`
}

// View is a read-only snapshot of a session.
type View struct {
	ID          string               `json:"id"`
	State       State                `json:"state"`
	Lines       []cart.Line          `json:"lines"`
	Units       int                  `json:"units"`
	Subtotal    decimal.Decimal      `json:"subtotal"`
	Total       decimal.Decimal      `json:"total"`
	Payment     PaymentView          `json:"payment"`
	Client      *ClientView          `json:"client,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	DebtWarning *payment.DebtWarning `json:"debt_warning,omitempty"`
	Receipt     *Receipt             `json:"receipt,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	OpenedAt    time.Time            `json:"opened_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// SessionsMetadata summarises the open sessions.
type SessionsMetadata struct {
	Quantity           int             `json:"quantity"`
	Browsing           int             `json:"browsing"`
	ReviewingPayment   int             `json:"reviewing_payment"`
	DebtWarningPending int             `json:"debt_warning_pending"`
	Submitting         int             `json:"submitting"`
	ReceiptReady       int             `json:"receipt_ready"`
	Failed             int             `json:"failed"`
	OpenAmount         decimal.Decimal `json:"open_amount"`
}
