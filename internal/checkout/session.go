package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_checkout/internal/backend"
	"pos_checkout/internal/cart"
	"pos_checkout/internal/payment"
)

type selectedClient struct {
	id   *int64
	name string
	debt decimal.Decimal
}

func (c selectedClient) present() bool {
	return c.id != nil || c.name != ""
}

// Session is one terminal's checkout. It owns the cart ledger and the payment
// resolver; nothing else mutates them. Network calls run without holding the
// lock and are cancelled when the session is closed.
type Session struct {
	mu sync.Mutex

	id      string
	state   State
	ledger  *cart.Ledger
	payment *payment.Resolver
	client  selectedClient
	notes   string
	warning *payment.DebtWarning
	receipt *Receipt
	lastErr error

	openedAt  time.Time
	updatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	catalog Catalog
	clients *clientDirectory
	sales   SalesAPI
	now     func() time.Time
	logger  *zap.Logger
}

func newSession(parent context.Context, id string, catalog Catalog, clients *clientDirectory, sales SalesAPI, now func() time.Time, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	opened := now()
	return &Session{
		id:        id,
		state:     StateBrowsing,
		ledger:    cart.NewLedger(),
		payment:   payment.NewResolver(),
		openedAt:  opened,
		updatedAt: opened,
		ctx:       ctx,
		cancel:    cancel,
		catalog:   catalog,
		clients:   clients,
		sales:     sales,
		now:       now,
		logger:    logger.With(zap.String("session_id", id)),
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels every in-flight backend call made by the session.
func (s *Session) Close() {
	s.cancel()
}

// Lookup finds the sellable item for a scanned barcode. It never touches the cart.
func (s *Session) Lookup(ctx context.Context, code string) (cart.Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return cart.Item{}, ErrNotFound
	}

	ctx, done := s.callContext(ctx)
	defer done()

	product, err := s.catalog.ProductByBarcode(ctx, code)
	if errors.Is(err, backend.ErrNotFound) {
		return cart.Item{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		s.logger.Error("barcode lookup failed", zap.String("code", code), zap.Error(err))
		return cart.Item{}, fmt.Errorf("lookup %s: %w", code, err)
	}
	return sellableItem(product, code)
}

func sellableItem(product *backend.Product, code string) (cart.Item, error) {
	if len(product.Variants) == 0 {
		if product.StockQuantity <= 0 {
			return cart.Item{}, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}
		return cart.Item{
			VariantID: product.ID,
			Name:      product.Name,
			Barcode:   product.Barcode,
			UnitPrice: product.Price,
		}, nil
	}

	for _, v := range product.Variants {
		if !strings.EqualFold(v.Barcode, code) {
			continue
		}
		if v.StockQuantity <= 0 {
			return cart.Item{}, fmt.Errorf("%w: %s %s", ErrOutOfStock, product.Name, v.Label())
		}
		return cart.Item{
			VariantID: v.ID,
			Name:      product.Name,
			Variant:   v.Label(),
			Barcode:   v.Barcode,
			UnitPrice: v.PriceFor(product),
		}, nil
	}
	return cart.Item{}, fmt.Errorf("%w: no variant of %s matches %s", ErrNotFound, product.Name, code)
}

func (s *Session) AddItem(item cart.Item) error {
	return s.edit(func() error {
		s.ledger.AddItem(item)
		return nil
	})
}

func (s *Session) SetQuantity(variantID int64, n int) error {
	return s.edit(func() error {
		return s.ledger.SetQuantity(variantID, n)
	})
}

func (s *Session) SetPrice(variantID int64, price decimal.Decimal) error {
	return s.edit(func() error {
		return s.ledger.SetPrice(variantID, price)
	})
}

func (s *Session) RemoveItem(variantID int64) error {
	return s.edit(func() error {
		s.ledger.RemoveItem(variantID)
		return nil
	})
}

func (s *Session) SetMethod(m payment.Method) error {
	return s.edit(func() error {
		return s.payment.SetMethod(m)
	})
}

func (s *Session) SetPaidAmount(amount decimal.Decimal) error {
	return s.edit(func() error {
		return s.payment.SetPaidAmount(amount)
	})
}

// UpdateLine changes the quantity and unit price of a line together. Either
// may be nil. Nothing is changed unless both values are accepted.
func (s *Session) UpdateLine(variantID int64, quantity *int, price *decimal.Decimal) error {
	return s.edit(func() error {
		if _, ok := s.ledger.Line(variantID); !ok {
			return cart.ErrLineNotFound
		}
		if price != nil && price.IsNegative() {
			return cart.ErrInvalidPrice
		}

		if price != nil {
			if err := s.ledger.SetPrice(variantID, *price); err != nil {
				return err
			}
		}
		if quantity != nil {
			return s.ledger.SetQuantity(variantID, *quantity)
		}
		return nil
	})
}

// UpdatePayment switches the method and sets the paid amount together. Either
// may be nil. A paid amount is only accepted when the resulting method is
// partial, and a rejected update leaves the payment untouched.
func (s *Session) UpdatePayment(method *payment.Method, paid *decimal.Decimal) error {
	return s.edit(func() error {
		next := s.payment.Method()
		if method != nil {
			if !method.Valid() {
				return fmt.Errorf("%w: %q", payment.ErrUnknownMethod, *method)
			}
			next = *method
		}
		if paid != nil && next != payment.MethodPartial {
			return payment.ErrAmountNotEditable
		}

		if method != nil {
			if err := s.payment.SetMethod(*method); err != nil {
				return err
			}
		}
		if paid != nil {
			return s.payment.SetPaidAmount(*paid)
		}
		return nil
	})
}

func (s *Session) SetNotes(notes string) error {
	return s.edit(func() error {
		s.notes = strings.TrimSpace(notes)
		return nil
	})
}

// SetClientName attaches a walk-in client known only by name.
func (s *Session) SetClientName(name string) error {
	return s.edit(func() error {
		s.client = selectedClient{name: strings.TrimSpace(name)}
		return nil
	})
}

// SelectClient attaches a known client. The debt is always read from the
// backend, never from the cache, since it decides the debt warning.
// If the lookup fails the previous selection is kept.
func (s *Session) SelectClient(ctx context.Context, id int64) error {
	s.mu.Lock()
	err := s.editable()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	callCtx, done := s.callContext(ctx)
	defer done()

	client, err := s.clients.Fetch(callCtx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrClientNotFound, id)
	}
	if err != nil {
		s.logger.Error("client lookup failed", zap.Int64("client_id", id), zap.Error(err))
		return fmt.Errorf("select client %d: %w", id, err)
	}

	return s.edit(func() error {
		clientID := client.ID
		s.client = selectedClient{id: &clientID, name: client.Name, debt: client.Debt}
		return nil
	})
}

// RequestCheckout validates the session and moves it to payment review, or to
// the debt warning gate when the client already owes money on a debt sale.
func (s *Session) RequestCheckout() (*payment.DebtWarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateBrowsing {
		return nil, fmt.Errorf("%w: cannot request checkout while %s", ErrInvalidTransition, s.state)
	}
	if s.ledger.IsEmpty() {
		return nil, &ValidationError{Reason: ReasonCartEmpty}
	}
	if !s.client.present() {
		return nil, &ValidationError{Reason: ReasonClientRequired}
	}

	warning, err := s.payment.Validate(s.client.debt)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonPaymentInvalid, Err: err}
	}
	if warning != nil {
		s.warning = warning
		s.logger.Info("debt warning raised", zap.String("debt", warning.Debt.String()))
		return warning, s.transition(StateDebtWarningPending)
	}
	return nil, s.transition(StateReviewingPayment)
}

// ContinueDebt acknowledges the debt warning.
func (s *Session) ContinueDebt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDebtWarningPending {
		return fmt.Errorf("%w: no debt warning pending", ErrInvalidTransition)
	}
	s.warning = nil
	return s.transition(StateReviewingPayment)
}

// CancelDebt drops the debt warning and returns to browsing.
func (s *Session) CancelDebt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDebtWarningPending {
		return fmt.Errorf("%w: no debt warning pending", ErrInvalidTransition)
	}
	s.warning = nil
	return s.transition(StateBrowsing)
}

// Back leaves payment review or a failed attempt without changing the cart.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewingPayment && s.state != StateFailed {
		return fmt.Errorf("%w: cannot go back while %s", ErrInvalidTransition, s.state)
	}
	return s.transition(StateBrowsing)
}

// Confirm submits the sale exactly once. A second Confirm while the first is
// in flight fails with ErrSubmitInFlight. On failure the cart and payment are
// left as they were and the cashier may confirm again.
func (s *Session) Confirm(ctx context.Context) (*Receipt, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if s.state != StateReviewingPayment && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot confirm while %s", ErrInvalidTransition, state)
	}
	req := s.saleRequest()
	if err := s.transition(StateSubmitting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.lastErr = nil
	s.mu.Unlock()

	callCtx, done := s.callContext(ctx)
	defer done()

	sale, err := s.sales.CreateSale(callCtx, req)

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		_ = s.transition(StateFailed)
		s.mu.Unlock()
		s.logger.Error("sale submission failed",
			zap.Bool("connectivity", errors.Is(err, backend.ErrConnectivity)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("submit sale: %w", err)
	}

	receipt := s.buildReceipt(sale)
	s.receipt = receipt
	_ = s.transition(StateReceiptReady)
	clientID := s.client.id
	s.mu.Unlock()

	s.logger.Info("sale created",
		zap.Int64("sale_id", sale.ID),
		zap.String("receipt_number", sale.ReceiptNumber),
		zap.String("total", receipt.Total.String()),
		zap.String("payment_method", receipt.PaymentMethod),
	)

	if clientID != nil {
		s.refreshClient(callCtx, *clientID)
	}
	return receipt, nil
}

// DismissReceipt clears the finished sale and starts over with an empty cart.
func (s *Session) DismissReceipt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReceiptReady {
		return fmt.Errorf("%w: no receipt to dismiss", ErrInvalidTransition)
	}
	s.ledger.Clear()
	s.payment.Reset()
	s.payment.SetTotal(s.ledger.Total())
	s.client = selectedClient{}
	s.notes = ""
	s.receipt = nil
	s.lastErr = nil
	return s.transition(StateBrowsing)
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:       s.id,
		State:    s.state,
		Lines:    s.ledger.Lines(),
		Units:    s.ledger.Units(),
		Subtotal: s.ledger.Subtotal(),
		Total:    s.ledger.Total(),
		Payment: PaymentView{
			Method:        s.payment.Method(),
			Paid:          s.payment.Paid(),
			Remaining:     s.payment.Remaining(),
			BackendMethod: s.payment.BackendMethod(),
		},
		Notes:       s.notes,
		DebtWarning: s.warning,
		Receipt:     s.receipt,
		OpenedAt:    s.openedAt,
		UpdatedAt:   s.updatedAt,
	}
	if s.client.present() {
		v.Client = &ClientView{ID: s.client.id, Name: s.client.name, Debt: s.client.debt}
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	return v
}

// edit runs a cart or payment change. Changes made during payment review or
// after a failed attempt send the session back to browsing.
func (s *Session) edit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	s.payment.SetTotal(s.ledger.Total())
	if s.state != StateBrowsing {
		return s.transition(StateBrowsing)
	}
	s.updatedAt = s.now()
	return nil
}

func (s *Session) editable() error {
	switch s.state {
	case StateBrowsing, StateReviewingPayment, StateFailed:
		return nil
	case StateSubmitting:
		return ErrSubmitInFlight
	default:
		return fmt.Errorf("%w: cannot edit while %s", ErrInvalidTransition, s.state)
	}
}

// transition must be called with the lock held.
func (s *Session) transition(to State) error {
	if !CanTransitionTo(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.logger.Debug("checkout state changed", zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
	s.updatedAt = s.now()
	return nil
}

// callContext derives a context that ends with either the caller or the session.
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) refreshClient(ctx context.Context, id int64) {
	client, err := s.clients.Fetch(ctx, id)
	if err != nil {
		s.logger.Warn("could not refresh client debt", zap.Int64("client_id", id), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client.id != nil && *s.client.id == id {
		s.client.debt = client.Debt
	}
}

func (s *Session) saleRequest() *backend.SaleRequest {
	lines := s.ledger.Lines()
	items := make([]backend.SaleItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, backend.SaleItem{
			ProductVariantID: l.VariantID,
			Quantity:         l.Quantity,
			UnitPrice:        backend.NewMoney(l.UnitPrice),
			DiscountAmount:   backend.NewMoney(decimal.Zero),
		})
	}

	var clientID *int64
	if s.client.id != nil {
		id := *s.client.id
		clientID = &id
	}

	total := s.ledger.Total()
	return &backend.SaleRequest{
		ClientID:        clientID,
		TotalAmount:     backend.NewMoney(total),
		DiscountAmount:  backend.NewMoney(decimal.Zero),
		FinalAmount:     backend.NewMoney(total),
		PaymentMethod:   s.payment.BackendMethod(),
		PaidAmount:      backend.NewMoney(s.payment.Paid()),
		RemainingAmount: backend.NewMoney(s.payment.Remaining()),
		Notes:           s.saleNotes(),
		Items:           items,
	}
}

func (s *Session) saleNotes() string {
	parts := make([]string, 0, 2)
	if s.client.id == nil && s.client.name != "" {
		parts = append(parts, "Client: "+s.client.name)
	}
	if s.notes != "" {
		parts = append(parts, s.notes)
	}
	return strings.Join(parts, " | ")
}

func (s *Session) buildReceipt(sale *backend.SaleRecord) *Receipt {
	created := sale.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	var clientID *int64
	if s.client.id != nil {
		id := *s.client.id
		clientID = &id
	}
	return &Receipt{
		SaleID:        sale.ID,
		ReceiptNumber: sale.ReceiptNumber,
		CreatedAt:     created,
		ClientID:      clientID,
		ClientName:    s.client.name,
		Lines:         s.ledger.Lines(),
		Total:         s.ledger.Total(),
		Paid:          s.payment.Paid(),
		Remaining:     s.payment.Remaining(),
		Method:        s.payment.Method(),
		PaymentMethod: s.payment.BackendMethod(),
		Notes:         s.saleNotes(),
	}
}
