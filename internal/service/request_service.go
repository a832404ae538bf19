package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"request-service/internal/models"
	"request-service/internal/store"
	"request-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the persistence surface the engine needs: plain reads plus a
// transactional primitive. *store.Store satisfies it; tests use an in-memory
// fake with the same all-or-nothing commit semantics.
type Ledger interface {
	CreateRequest(ctx context.Context, req *models.Request) error
	GetRequestByID(ctx context.Context, id string) (*models.Request, error)
	RequestsByClient(ctx context.Context, clientID string) ([]models.Request, error)
	PendingRequestsByCompany(ctx context.Context, companyID string) ([]models.Request, error)
	CountPendingByCompany(ctx context.Context, companyID string) (int, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	WithinTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// Cache is the best-effort read cache for availability numbers and pending
// badge counts. Failures are logged, never surfaced.
type Cache interface {
	SetAvailability(ctx context.Context, productID string, quantity int) error
	SetPendingCount(ctx context.Context, companyID string, count int) error
	IncrPendingCount(ctx context.Context, companyID string) error
	DecrPendingCount(ctx context.Context, companyID string) error
	PendingCount(ctx context.Context, companyID string) (int, bool, error)
}

// EventSink publishes request lifecycle events after commit.
type EventSink interface {
	PublishRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error
	PublishRequestResolved(ctx context.Context, event *models.RequestResolvedEvent) error
	PublishRequestRemoved(ctx context.Context, event *models.RequestRemovedEvent) error
}

// Notifier pokes live views after a request changes.
type Notifier interface {
	Notify(clientID, companyID string)
}

// RequestService is the request/inventory reconciliation engine.
type RequestService struct {
	ledger Ledger
	cache  Cache
	events EventSink
	views  Notifier
	logger *zap.Logger
}

// NewRequestService creates a new request service
func NewRequestService(ledger Ledger, cache Cache, events EventSink, views Notifier) *RequestService {
	return &RequestService{
		ledger: ledger,
		cache:  cache,
		events: events,
		views:  views,
		logger: util.GetLogger(),
	}
}

// CreateRequestInput carries the fields of a new request. ProductName and
// UnitPrice are the caller's snapshot of the product at request time.
type CreateRequestInput struct {
	ClientID    string `json:"client_id" binding:"required"`
	CompanyID   string `json:"company_id" binding:"required"`
	ProductID   string `json:"product_id" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	UnitPrice   int64  `json:"unit_price" binding:"min=0"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// CreateRequest persists a new pending request. Stock is only committed on
// approval, never reserved at creation.
func (s *RequestService) CreateRequest(ctx context.Context, in *CreateRequestInput) (*models.Request, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.CreateRequest")
	defer span.End()

	req := &models.Request{
		ID:          uuid.New().String(),
		ClientID:    in.ClientID,
		CompanyID:   in.CompanyID,
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		UnitPrice:   in.UnitPrice,
		Quantity:    in.Quantity,
		Status:      models.RequestStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	if err := s.ledger.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	util.RequestsCreatedTotal.Inc()
	s.logger.Info("Request created",
		zap.String("request_id", req.ID),
		zap.String("client_id", req.ClientID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity))

	if err := s.cache.IncrPendingCount(ctx, req.CompanyID); err != nil {
		s.logger.Warn("Failed to bump pending count cache", zap.Error(err))
	}

	event := &models.RequestCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRequestCreated),
		RequestID: req.ID,
		ClientID:  req.ClientID,
		CompanyID: req.CompanyID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	}
	if err := s.events.PublishRequestCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish RequestCreated event", zap.Error(err))
	}

	s.views.Notify(req.ClientID, req.CompanyID)

	return req, nil
}

// RespondToRequest resolves a pending request. Rejection only writes the
// request; approval additionally decrements the product's quantity, and both
// writes commit atomically or not at all. The stock check uses the quantity
// read inside the same transaction that writes it, so concurrent approvals
// against one product can never oversell.
func (s *RequestService) RespondToRequest(ctx context.Context, requestID, decision string) (*models.Request, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.RespondToRequest")
	defer span.End()

	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		return nil, ErrInvalidDecision
	}

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	var resolved models.Request
	var remaining int

	err := s.ledger.WithinTx(ctx, func(tx store.Tx) error {
		req, err := tx.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}
		if req.IsTerminal() {
			return ErrRequestNotPending
		}

		now := time.Now().UTC()

		if decision == models.DecisionRejected {
			if err := tx.MarkResponded(ctx, req.ID, models.RequestStatusRejected, now); err != nil {
				return err
			}
			req.Status = models.RequestStatusRejected
			req.RespondedAt = &now
			resolved = *req
			return nil
		}

		product, err := tx.ProductForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductNotFound
		}

		if product.Quantity < req.Quantity {
			return &InsufficientStockError{
				Available: product.Quantity,
				Requested: req.Quantity,
			}
		}

		remaining = product.Quantity - req.Quantity
		if err := tx.SetProductQuantity(ctx, product.ID, remaining); err != nil {
			return err
		}
		if err := tx.MarkResponded(ctx, req.ID, models.RequestStatusApproved, now); err != nil {
			return err
		}

		req.Status = models.RequestStatusApproved
		req.RespondedAt = &now
		resolved = *req
		return nil
	})
	if err != nil {
		if _, ok := asInsufficientStock(err); ok {
			util.ApprovalsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	s.afterResolved(ctx, &resolved, remaining)
	return &resolved, nil
}

// afterResolved applies the best-effort side effects of a committed decision.
func (s *RequestService) afterResolved(ctx context.Context, req *models.Request, remaining int) {
	eventType := models.EventTypeRequestRejected
	if req.Status == models.RequestStatusApproved {
		eventType = models.EventTypeRequestApproved
		util.RequestsApprovedTotal.Inc()

		if err := s.cache.SetAvailability(ctx, req.ProductID, remaining); err != nil {
			s.logger.Warn("Failed to refresh availability cache", zap.Error(err))
		}
	} else {
		util.RequestsRejectedTotal.Inc()
	}

	if err := s.cache.DecrPendingCount(ctx, req.CompanyID); err != nil {
		s.logger.Warn("Failed to drop pending count cache", zap.Error(err))
	}

	s.logger.Info("Request resolved",
		zap.String("request_id", req.ID),
		zap.String("status", req.Status),
		zap.Int("remaining_stock", remaining))

	event := &models.RequestResolvedEvent{
		BaseEvent:      newBaseEvent(eventType),
		RequestID:      req.ID,
		ClientID:       req.ClientID,
		CompanyID:      req.CompanyID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		RemainingStock: remaining,
	}
	if err := s.events.PublishRequestResolved(ctx, event); err != nil {
		s.logger.Error("Failed to publish RequestResolved event", zap.Error(err))
	}

	s.views.Notify(req.ClientID, req.CompanyID)
}

// CancelPendingRequest deletes a request while it is still pending. A pending
// request never decremented inventory, so there is nothing to restore.
func (s *RequestService) CancelPendingRequest(ctx context.Context, requestID string) error {
	ctx, span := util.StartSpan(ctx, "RequestService.CancelPendingRequest")
	defer span.End()

	var removed models.Request

	err := s.ledger.WithinTx(ctx, func(tx store.Tx) error {
		req, err := tx.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}
		if req.IsTerminal() {
			return ErrNotCancelable
		}

		if err := tx.DeleteRequest(ctx, req.ID); err != nil {
			return err
		}
		removed = *req
		return nil
	})
	if err != nil {
		return err
	}

	util.RequestsCancelledTotal.Inc()
	s.logger.Info("Request cancelled",
		zap.String("request_id", removed.ID),
		zap.String("client_id", removed.ClientID))

	if err := s.cache.DecrPendingCount(ctx, removed.CompanyID); err != nil {
		s.logger.Warn("Failed to drop pending count cache", zap.Error(err))
	}

	event := &models.RequestRemovedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRequestCancelled),
		RequestID: removed.ID,
		ClientID:  removed.ClientID,
		CompanyID: removed.CompanyID,
	}
	if err := s.events.PublishRequestRemoved(ctx, event); err != nil {
		s.logger.Error("Failed to publish RequestRemoved event", zap.Error(err))
	}

	s.views.Notify(removed.ClientID, removed.CompanyID)
	return nil
}

// GetRequest retrieves a single request.
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	req, err := s.ledger.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListByClient lists all of a client's requests, newest first.
func (s *RequestService) ListByClient(ctx context.Context, clientID string) ([]models.Request, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.ListByClient")
	defer span.End()
	return s.ledger.RequestsByClient(ctx, clientID)
}

// ListPendingByCompany lists a company's pending requests, newest first.
func (s *RequestService) ListPendingByCompany(ctx context.Context, companyID string) ([]models.Request, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.ListPendingByCompany")
	defer span.End()
	return s.ledger.PendingRequestsByCompany(ctx, companyID)
}

// PendingCountByCompany returns the company's pending badge count, served
// from the cache when possible and reseeded from the ledger on a miss.
func (s *RequestService) PendingCountByCompany(ctx context.Context, companyID string) (int, error) {
	count, ok, err := s.cache.PendingCount(ctx, companyID)
	if err != nil {
		s.logger.Warn("Pending count cache read failed", zap.Error(err))
	}
	if ok && err == nil {
		return count, nil
	}

	count, err = s.ledger.CountPendingByCompany(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetPendingCount(ctx, companyID, count); err != nil {
		s.logger.Warn("Failed to reseed pending count cache", zap.Error(err))
	}
	return count, nil
}

// WarmAvailabilityCache seeds the availability cache from the ledger. Run at
// startup; afterwards approvals keep the cache current write-through.
func (s *RequestService) WarmAvailabilityCache(ctx context.Context) error {
	products, err := s.ledger.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	for _, product := range products {
		if err := s.cache.SetAvailability(ctx, product.ID, product.Quantity); err != nil {
			s.logger.Warn("Failed to seed availability cache",
				zap.String("product_id", product.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Availability cache warmed", zap.Int("products", len(products)))
	return nil
}

func asInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
