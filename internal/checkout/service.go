package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_checkout/internal/backend"
	"pos_checkout/internal/cache"
)

// Catalog looks products up by barcode.
type Catalog interface {
	ProductByBarcode(ctx context.Context, code string) (*backend.Product, error)
}

// ClientDirectory fetches client records.
type ClientDirectory interface {
	Client(ctx context.Context, id int64) (*backend.Client, error)
}

// SalesAPI commits sales.
type SalesAPI interface {
	CreateSale(ctx context.Context, req *backend.SaleRequest) (*backend.SaleRecord, error)
}

// Backend is everything a checkout needs from the store backend.
type Backend interface {
	Catalog
	ClientDirectory
	SalesAPI
}

// Service opens and tracks the checkout sessions of the store's terminals.
type Service struct {
	storage Storage
	api     Backend
	clients *clientDirectory
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new Service. A nil clientCache uses a 30 second in-memory cache.
func NewService(storage Storage, api Backend, clientCache cache.ClientCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if clientCache == nil {
		clientCache = cache.NewMemoryCache(30*time.Second, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		storage: storage,
		api:     api,
		clients: &clientDirectory{api: api, cache: clientCache, logger: logger},
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OpenSession starts an empty checkout.
func (s *Service) OpenSession() (*Session, error) {
	session := newSession(s.ctx, uuid.NewString(), s.api, s.clients, s.api, s.now, s.logger)
	if err := s.storage.Set(session); err != nil {
		session.Close()
		s.logger.Error("failed to store session", zap.String("session_id", session.ID()), zap.Error(err))
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	s.logger.Info("session opened", zap.String("session_id", session.ID()))
	return session, nil
}

// Session returns an open session.
func (s *Service) Session(id string) (*Session, error) {
	return s.storage.Read(id)
}

// CloseSession removes a session and cancels its in-flight calls.
func (s *Service) CloseSession(id string) error {
	session, err := s.storage.Read(id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(id); err != nil {
		return err
	}
	session.Close()
	s.logger.Info("session closed", zap.String("session_id", id), zap.Stringer("state", session.State()))
	return nil
}

// Client returns a client record for display, served from the cache when
// possible. Selecting the client for a sale re-reads it from the backend.
func (s *Service) Client(ctx context.Context, id int64) (*backend.Client, error) {
	client, err := s.clients.Cached(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrClientNotFound, id)
	}
	if err != nil {
		s.logger.Error("client lookup failed", zap.Int64("client_id", id), zap.Error(err))
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return client, nil
}

// ListSessions returns a snapshot of every open session with totals per state.
func (s *Service) ListSessions() ([]View, SessionsMetadata, error) {
	sessions, err := s.storage.GetAll()
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		return nil, SessionsMetadata{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]View, 0, len(sessions))
	metadata := SessionsMetadata{OpenAmount: decimal.Zero}
	for _, session := range sessions {
		v := session.Snapshot()
		views = append(views, v)

		metadata.Quantity++
		switch v.State {
		case StateBrowsing:
			metadata.Browsing++
		case StateReviewingPayment:
			metadata.ReviewingPayment++
		case StateDebtWarningPending:
			metadata.DebtWarningPending++
		case StateSubmitting:
			metadata.Submitting++
		case StateReceiptReady:
			metadata.ReceiptReady++
		case StateFailed:
			metadata.Failed++
		}
		if v.State != StateReceiptReady {
			metadata.OpenAmount = metadata.OpenAmount.Add(v.Total)
		}
	}
	return views, metadata, nil
}

// Close cancels every session's in-flight calls.
func (s *Service) Close() {
	s.cancel()
}
