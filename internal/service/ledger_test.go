package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"request-service/internal/models"
	"request-service/internal/store"
)

// memLedger is an in-memory Ledger with the same all-or-nothing transaction
// semantics as the real store: the closure runs against a shadow copy that
// only replaces the live maps on success.
type memLedger struct {
	mu       sync.Mutex
	requests map[string]models.Request
	products map[string]models.Product
}

func newMemLedger() *memLedger {
	return &memLedger{
		requests: make(map[string]models.Request),
		products: make(map[string]models.Product),
	}
}

func (m *memLedger) seedProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *memLedger) seedRequest(r models.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
}

func (m *memLedger) productQuantity(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *memLedger) CreateRequest(ctx context.Context, req *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *memLedger) GetRequestByID(ctx context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (m *memLedger) RequestsByClient(ctx context.Context, clientID string) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Request{}
	for _, req := range m.requests {
		if req.ClientID == clientID {
			out = append(out, req)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memLedger) PendingRequestsByCompany(ctx context.Context, companyID string) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Request{}
	for _, req := range m.requests {
		if req.CompanyID == companyID && req.Status == models.RequestStatusPending {
			out = append(out, req)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memLedger) CountPendingByCompany(ctx context.Context, companyID string) (int, error) {
	pending, _ := m.PendingRequestsByCompany(ctx, companyID)
	return len(pending), nil
}

func (m *memLedger) GetProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memLedger) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		requests: cloneRequests(m.requests),
		products: cloneProducts(m.products),
	}
	if err := fn(tx); err != nil {
		return err
	}

	m.requests = tx.requests
	m.products = tx.products
	return nil
}

func sortNewestFirst(requests []models.Request) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
}

func cloneRequests(in map[string]models.Request) map[string]models.Request {
	out := make(map[string]models.Request, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneProducts(in map[string]models.Product) map[string]models.Product {
	out := make(map[string]models.Product, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// memTx implements store.Tx over the shadow copy.
type memTx struct {
	requests map[string]models.Request
	products map[string]models.Product
}

func (t *memTx) RequestForUpdate(ctx context.Context, id string) (*models.Request, error) {
	req, ok := t.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (t *memTx) ProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) MarkResponded(ctx context.Context, id, status string, at time.Time) error {
	req := t.requests[id]
	req.Status = status
	responded := at
	req.RespondedAt = &responded
	t.requests[id] = req
	return nil
}

func (t *memTx) SetProductQuantity(ctx context.Context, id string, quantity int) error {
	p := t.products[id]
	p.Quantity = quantity
	t.products[id] = p
	return nil
}

func (t *memTx) DeleteRequest(ctx context.Context, id string) error {
	delete(t.requests, id)
	return nil
}

func (t *memTx) DeleteStalePending(ctx context.Context, clientID string, cutoff time.Time) ([]models.RequestRef, error) {
	return t.deleteStale(func(req models.Request) bool {
		return req.ClientID == clientID
	}, cutoff)
}

func (t *memTx) DeleteAllStalePending(ctx context.Context, cutoff time.Time) ([]models.RequestRef, error) {
	return t.deleteStale(func(models.Request) bool { return true }, cutoff)
}

func (t *memTx) deleteStale(match func(models.Request) bool, cutoff time.Time) ([]models.RequestRef, error) {
	var refs []models.RequestRef
	for id, req := range t.requests {
		if match(req) && req.Status == models.RequestStatusPending && req.RequestedAt.Before(cutoff) {
			refs = append(refs, models.RequestRef{
				ID:        req.ID,
				ClientID:  req.ClientID,
				CompanyID: req.CompanyID,
			})
			delete(t.requests, id)
		}
	}
	return refs, nil
}

// Quiet collaborators for tests that only exercise the ledger path.

type noopCache struct{}

func (noopCache) SetAvailability(ctx context.Context, productID string, quantity int) error { return nil }
func (noopCache) SetPendingCount(ctx context.Context, companyID string, count int) error    { return nil }
func (noopCache) IncrPendingCount(ctx context.Context, companyID string) error              { return nil }
func (noopCache) DecrPendingCount(ctx context.Context, companyID string) error              { return nil }
func (noopCache) PendingCount(ctx context.Context, companyID string) (int, bool, error) {
	return 0, false, nil
}

// memCache records pending-count writes and serves a fixed read, for tests
// exercising the cache-or-reseed path.
type memCache struct {
	noopCache

	mu      sync.Mutex
	hit     bool
	count   int
	reseeds []int
}

func (c *memCache) SetPendingCount(ctx context.Context, companyID string, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reseeds = append(c.reseeds, count)
	return nil
}

func (c *memCache) PendingCount(ctx context.Context, companyID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.hit, nil
}

type noopEvents struct{}

func (noopEvents) PublishRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error {
	return nil
}
func (noopEvents) PublishRequestResolved(ctx context.Context, event *models.RequestResolvedEvent) error {
	return nil
}
func (noopEvents) PublishRequestRemoved(ctx context.Context, event *models.RequestRemovedEvent) error {
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][2]string
}

func (n *recordingNotifier) Notify(clientID, companyID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, [2]string{clientID, companyID})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
