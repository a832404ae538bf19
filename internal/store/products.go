package store

import (
	"context"
	"database/sql"

	"request-service/internal/models"
)

// GetProductByID retrieves a product by id, or nil if absent.
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products. Used at startup to warm the
// availability cache.
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// ProductsByCompany retrieves a company's catalog.
func (s *Store) ProductsByCompany(ctx context.Context, companyID string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE company_id = $1 ORDER BY name", companyID)
	return products, err
}
