package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_checkout/internal/backend"
	"pos_checkout/internal/cart"
	"pos_checkout/internal/checkout"
	"pos_checkout/internal/payment"
)

// checkoutHandler exposes checkout sessions to the till front end.
type checkoutHandler struct {
	checkoutService *checkout.Service
	logger          *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(checkoutService *checkout.Service, logger *zap.Logger) *checkoutHandler {
	return &checkoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
	Add  bool   `json:"add"`
}

type addItemRequest struct {
	VariantID int64           `json:"variant_id" binding:"required"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant"`
	Barcode   string          `json:"barcode"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type updateItemRequest struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type clientRequest struct {
	ClientID *int64 `json:"client_id"`
	Name     string `json:"name"`
}

type paymentRequest struct {
	Method     string           `json:"method"`
	PaidAmount *decimal.Decimal `json:"paid_amount"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *checkoutHandler) handleOpenSession(ctx *gin.Context) {
	session, err := h.checkoutService.OpenSession()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, session.Snapshot())
}

func (h *checkoutHandler) handleListSessions(ctx *gin.Context) {
	views, metadata, err := h.checkoutService.ListSessions()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": views, "metadata": metadata})
}

// handleGetClient shows a client record before it is attached to a session.
func (h *checkoutHandler) handleGetClient(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("clientId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}
	client, err := h.checkoutService.Client(ctx.Request.Context(), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, client)
}

func (h *checkoutHandler) handleGetSession(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, session.Snapshot())
}

func (h *checkoutHandler) handleCloseSession(ctx *gin.Context) {
	if err := h.checkoutService.CloseSession(ctx.Param("id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleScan looks a barcode up and, when asked, adds the match to the cart.
func (h *checkoutHandler) handleScan(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	var req scanRequest
	if !h.bind(ctx, &req) {
		return
	}

	item, err := session.Lookup(ctx.Request.Context(), req.Code)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if req.Add {
		if err := session.AddItem(item); err != nil {
			h.respondError(ctx, err)
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"item": item, "added": req.Add, "session": session.Snapshot()})
}

func (h *checkoutHandler) handleAddItem(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.bind(ctx, &req) {
		return
	}
	if req.UnitPrice.IsNegative() {
		h.respondError(ctx, cart.ErrInvalidPrice)
		return
	}

	err := session.AddItem(cart.Item{
		VariantID: req.VariantID,
		Name:      req.Name,
		Variant:   req.Variant,
		Barcode:   req.Barcode,
		UnitPrice: req.UnitPrice,
	})
	h.respondSession(ctx, session, err)
}

func (h *checkoutHandler) handleUpdateItem(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	variantID, ok := h.lineID(ctx)
	if !ok {
		return
	}
	var req updateItemRequest
	if !h.bind(ctx, &req) {
		return
	}
	if req.Quantity == nil && req.UnitPrice == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "quantity or unit_price is required"})
		return
	}

	h.respondSession(ctx, session, session.UpdateLine(variantID, req.Quantity, req.UnitPrice))
}

func (h *checkoutHandler) handleRemoveItem(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	variantID, ok := h.lineID(ctx)
	if !ok {
		return
	}
	h.respondSession(ctx, session, session.RemoveItem(variantID))
}

func (h *checkoutHandler) handleSetClient(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	var req clientRequest
	if !h.bind(ctx, &req) {
		return
	}

	var err error
	switch {
	case req.ClientID != nil:
		err = session.SelectClient(ctx.Request.Context(), *req.ClientID)
	case req.Name != "":
		err = session.SetClientName(req.Name)
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "client_id or name is required"})
		return
	}
	h.respondSession(ctx, session, err)
}

func (h *checkoutHandler) handleSetPayment(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.bind(ctx, &req) {
		return
	}

	if req.Method == "" && req.PaidAmount == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "method or paid_amount is required"})
		return
	}

	var method *payment.Method
	if req.Method != "" {
		m, err := payment.ParseMethod(req.Method)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		method = &m
	}
	h.respondSession(ctx, session, session.UpdatePayment(method, req.PaidAmount))
}

func (h *checkoutHandler) handleSetNotes(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	var req notesRequest
	if !h.bind(ctx, &req) {
		return
	}
	h.respondSession(ctx, session, session.SetNotes(req.Notes))
}

func (h *checkoutHandler) handleRequestCheckout(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	warning, err := session.RequestCheckout()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	body := gin.H{"session": session.Snapshot()}
	if warning != nil {
		body["debt_warning"] = gin.H{"debt": warning.Debt, "message": warning.String()}
	}
	ctx.JSON(http.StatusOK, body)
}

func (h *checkoutHandler) handleContinueDebt(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	h.respondSession(ctx, session, session.ContinueDebt())
}

func (h *checkoutHandler) handleCancelDebt(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	h.respondSession(ctx, session, session.CancelDebt())
}

func (h *checkoutHandler) handleBack(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	h.respondSession(ctx, session, session.Back())
}

func (h *checkoutHandler) handleConfirm(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	receipt, err := session.Confirm(ctx.Request.Context())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, receipt)
}

func (h *checkoutHandler) handleDismissReceipt(ctx *gin.Context) {
	session, ok := h.session(ctx)
	if !ok {
		return
	}
	h.respondSession(ctx, session, session.DismissReceipt())
}

func (h *checkoutHandler) session(ctx *gin.Context) (*checkout.Session, bool) {
	session, err := h.checkoutService.Session(ctx.Param("id"))
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}
	return session, true
}

func (h *checkoutHandler) lineID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("lineId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid line id"})
		return 0, false
	}
	return id, true
}

func (h *checkoutHandler) bind(ctx *gin.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return false
	}
	return true
}

func (h *checkoutHandler) respondSession(ctx *gin.Context, session *checkout.Session, err error) {
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session.Snapshot())
}

// respondError turns any checkout failure into a JSON error the till can show.
func (h *checkoutHandler) respondError(ctx *gin.Context, err error) {
	var verr *checkout.ValidationError
	var apiErr *backend.APIError

	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": err.Error(), "reason": verr.Reason}
		if verr.Err != nil {
			body["detail"] = verr.Err.Error()
		}
		ctx.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, checkout.ErrSessionNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, checkout.ErrNotFound),
		errors.Is(err, checkout.ErrClientNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrOutOfStock),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrSubmitInFlight):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, payment.ErrAmountNotEditable),
		errors.Is(err, payment.ErrUnknownMethod):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, backend.ErrConnectivity):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not reach server"})
	case errors.As(err, &apiErr):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Error()})
	case errors.Is(err, context.Canceled):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger.Error("unexpected checkout error", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
