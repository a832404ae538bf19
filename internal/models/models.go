package models

import "time"

// Product represents a company's catalog item. Only Quantity is mutated by
// this service; everything else belongs to the catalog-management flow.
type Product struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Request represents a client's ask to purchase a quantity of a company's
// product. ProductName and UnitPrice are snapshots taken at request time and
// do not track later catalog edits.
type Request struct {
	ID          string     `db:"id" json:"id"`
	ClientID    string     `db:"client_id" json:"client_id"`
	CompanyID   string     `db:"company_id" json:"company_id"`
	ProductID   string     `db:"product_id" json:"product_id"`
	ProductName string     `db:"product_name" json:"product_name"`
	UnitPrice   int64      `db:"unit_price" json:"unit_price"`
	Quantity    int        `db:"quantity" json:"quantity"`
	Status      string     `db:"status" json:"status"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// Request statuses. A request leaves PENDING exactly once, to APPROVED or
// REJECTED, or is deleted outright by cancellation or the reaper.
const (
	RequestStatusPending  = "PENDING"
	RequestStatusApproved = "APPROVED"
	RequestStatusRejected = "REJECTED"
)

// Decisions accepted by the reconciliation transaction.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// IsTerminal reports whether the request has been resolved.
func (r *Request) IsTerminal() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}

// RequestRef identifies a deleted request and the parties whose live views it
// affected. Returned by bulk deletes so callers can fan out notifications.
type RequestRef struct {
	ID        string `db:"id"`
	ClientID  string `db:"client_id"`
	CompanyID string `db:"company_id"`
}
