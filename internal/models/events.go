package models

import "time"

// Event types
const (
	EventTypeRequestCreated   = "REQUEST_CREATED"
	EventTypeRequestApproved  = "REQUEST_APPROVED"
	EventTypeRequestRejected  = "REQUEST_REJECTED"
	EventTypeRequestCancelled = "REQUEST_CANCELLED"
	EventTypeRequestReaped    = "REQUEST_REAPED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestCreatedEvent published when a client opens a new request
type RequestCreatedEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	ClientID  string `json:"client_id"`
	CompanyID string `json:"company_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// RequestResolvedEvent published when a company approves or rejects a
// request. RemainingStock is only meaningful for approvals.
type RequestResolvedEvent struct {
	BaseEvent
	RequestID      string `json:"request_id"`
	ClientID       string `json:"client_id"`
	CompanyID      string `json:"company_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	RemainingStock int    `json:"remaining_stock"`
}

// RequestRemovedEvent published when a pending request is deleted, either by
// client cancellation or by the stale request reaper.
type RequestRemovedEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	ClientID  string `json:"client_id"`
	CompanyID string `json:"company_id"`
}

// RequestChangeEnvelope is the minimal shape consumers need to route a
// request event: which views it invalidates.
type RequestChangeEnvelope struct {
	BaseEvent
	RequestID string `json:"request_id"`
	ClientID  string `json:"client_id"`
	CompanyID string `json:"company_id"`
}
