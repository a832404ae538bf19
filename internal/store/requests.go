package store

import (
	"context"
	"database/sql"
	"fmt"

	"request-service/internal/models"
)

// CreateRequest persists a new request. The caller supplies the id, status,
// and requested_at; creation never touches inventory.
func (s *Store) CreateRequest(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO requests (id, client_id, company_id, product_id, product_name, unit_price, quantity, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		req.ID, req.ClientID, req.CompanyID, req.ProductID,
		req.ProductName, req.UnitPrice, req.Quantity, req.Status, req.RequestedAt)
	return err
}

// GetRequestByID retrieves a request by id, or nil if absent.
func (s *Store) GetRequestByID(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	err := s.db.GetContext(ctx, &req, "SELECT * FROM requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// RequestsByClient retrieves all of a client's requests, newest first.
func (s *Store) RequestsByClient(ctx context.Context, clientID string) ([]models.Request, error) {
	requests := []models.Request{}
	err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM requests WHERE client_id = $1 ORDER BY requested_at DESC",
		clientID)
	return requests, err
}

// PendingRequestsByCompany retrieves a company's pending requests, newest first.
func (s *Store) PendingRequestsByCompany(ctx context.Context, companyID string) ([]models.Request, error) {
	requests := []models.Request{}
	err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM requests WHERE company_id = $1 AND status = $2 ORDER BY requested_at DESC",
		companyID, models.RequestStatusPending)
	return requests, err
}

// CountPendingByCompany counts a company's pending requests.
func (s *Store) CountPendingByCompany(ctx context.Context, companyID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM requests WHERE company_id = $1 AND status = $2",
		companyID, models.RequestStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}
