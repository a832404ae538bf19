package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"request-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres error codes that indicate a retriable write conflict.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

const txMaxAttempts = 3

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Tx is the mutation surface available inside a reconciliation transaction.
// Every method operates on rows locked for the duration of the transaction;
// either all mutations commit or none do.
type Tx interface {
	// RequestForUpdate locks and returns a request, or nil if absent.
	RequestForUpdate(ctx context.Context, id string) (*models.Request, error)
	// ProductForUpdate locks and returns a product, or nil if absent.
	ProductForUpdate(ctx context.Context, id string) (*models.Product, error)
	// MarkResponded writes the terminal status and responded_at timestamp.
	MarkResponded(ctx context.Context, id, status string, at time.Time) error
	// SetProductQuantity overwrites a product's available quantity.
	SetProductQuantity(ctx context.Context, id string, quantity int) error
	// DeleteRequest removes a request row.
	DeleteRequest(ctx context.Context, id string) error
	// DeleteStalePending removes a client's pending requests older than cutoff
	// and returns a reference for each removed row.
	DeleteStalePending(ctx context.Context, clientID string, cutoff time.Time) ([]models.RequestRef, error)
	// DeleteAllStalePending is DeleteStalePending across all clients.
	DeleteAllStalePending(ctx context.Context, cutoff time.Time) ([]models.RequestRef, error)
}

// WithinTx runs fn inside a database transaction. Row locks taken via the
// FOR UPDATE reads serialize conflicting writers; deadlocks and serialization
// failures are retried transparently up to txMaxAttempts.
func (s *Store) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetriableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", txMaxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func isRetriableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqSerializationFailure || string(pqErr.Code) == pqDeadlockDetected
}

// sqlTx implements Tx over a live sqlx transaction.
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) RequestForUpdate(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	err := t.tx.GetContext(ctx, &req,
		"SELECT * FROM requests WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock request: %w", err)
	}
	return &req, nil
}

func (t *sqlTx) ProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

func (t *sqlTx) MarkResponded(ctx context.Context, id, status string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE requests SET status = $1, responded_at = $2 WHERE id = $3",
		status, at, id)
	return err
}

func (t *sqlTx) SetProductQuantity(ctx context.Context, id string, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, id)
	return err
}

func (t *sqlTx) DeleteRequest(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM requests WHERE id = $1", id)
	return err
}

func (t *sqlTx) DeleteStalePending(ctx context.Context, clientID string, cutoff time.Time) ([]models.RequestRef, error) {
	var refs []models.RequestRef
	err := t.tx.SelectContext(ctx, &refs, `
		DELETE FROM requests
		WHERE client_id = $1 AND status = $2 AND requested_at < $3
		RETURNING id, client_id, company_id`,
		clientID, models.RequestStatusPending, cutoff)
	return refs, err
}

func (t *sqlTx) DeleteAllStalePending(ctx context.Context, cutoff time.Time) ([]models.RequestRef, error) {
	var refs []models.RequestRef
	err := t.tx.SelectContext(ctx, &refs, `
		DELETE FROM requests
		WHERE status = $1 AND requested_at < $2
		RETURNING id, client_id, company_id`,
		models.RequestStatusPending, cutoff)
	return refs, err
}
