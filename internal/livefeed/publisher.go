package livefeed

import (
	"context"
	"sync"
	"time"

	"request-service/internal/models"
	"request-service/internal/util"

	"go.uber.org/zap"
)

const snapshotTimeout = 5 * time.Second

// Source provides the point-in-time snapshots delivered to subscribers.
// Both queries return newest-first ordering.
type Source interface {
	RequestsByClient(ctx context.Context, clientID string) ([]models.Request, error)
	PendingRequestsByCompany(ctx context.Context, companyID string) ([]models.Request, error)
}

// Publisher fans request-list snapshots out to live views. A subscriber gets
// the current snapshot immediately, then a fresh snapshot every time a
// matching request is created, resolved, or deleted. Delivery is
// at-least-once per change; if a subscriber lags, intermediate snapshots are
// dropped and only the newest is kept.
type Publisher struct {
	source Source
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewPublisher creates a new live view publisher
func NewPublisher(source Source) *Publisher {
	return &Publisher{
		source: source,
		logger: util.GetLogger(),
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is a live view handle. Read snapshots from Updates and call
// Close when done; Close is idempotent.
type Subscription struct {
	pub     *Publisher
	key     string
	updates chan []models.Request
	once    sync.Once
}

// Updates returns the snapshot channel. It is closed by Close.
func (s *Subscription) Updates() <-chan []models.Request {
	return s.updates
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.pub.mu.Lock()
		defer s.pub.mu.Unlock()
		if set, ok := s.pub.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.pub.subs, s.key)
			}
		}
		close(s.updates)
	})
}

// push delivers a snapshot, dropping the previous undelivered one if the
// subscriber has not caught up. Callers hold at least the publisher read
// lock, so push never races Close.
func (s *Subscription) push(snapshot []models.Request) {
	for {
		select {
		case s.updates <- snapshot:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func clientKey(clientID string) string   { return "client/" + clientID }
func companyKey(companyID string) string { return "company/" + companyID }

// SubscribeClient opens a live view over all of a client's requests.
func (p *Publisher) SubscribeClient(ctx context.Context, clientID string) (*Subscription, error) {
	snapshot, err := p.source.RequestsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return p.attach(clientKey(clientID), snapshot), nil
}

// SubscribeCompanyPending opens a live view over a company's pending requests.
func (p *Publisher) SubscribeCompanyPending(ctx context.Context, companyID string) (*Subscription, error) {
	snapshot, err := p.source.PendingRequestsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return p.attach(companyKey(companyID), snapshot), nil
}

func (p *Publisher) attach(key string, initial []models.Request) *Subscription {
	sub := &Subscription{
		pub:     p,
		key:     key,
		updates: make(chan []models.Request, 1),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		p.subs[key] = set
	}
	set[sub] = struct{}{}
	sub.push(initial)
	return sub
}

// Notify refreshes every live view watching the given client or company.
// Safe to call from any goroutine; each affected view gets one fresh
// snapshot per call.
func (p *Publisher) Notify(clientID, companyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if clientID != "" && p.hasSubs(clientKey(clientID)) {
		snapshot, err := p.source.RequestsByClient(ctx, clientID)
		if err != nil {
			p.logger.Error("Failed to refresh client view",
				zap.String("client_id", clientID),
				zap.Error(err))
		} else {
			p.broadcast(clientKey(clientID), snapshot)
		}
	}

	if companyID != "" && p.hasSubs(companyKey(companyID)) {
		snapshot, err := p.source.PendingRequestsByCompany(ctx, companyID)
		if err != nil {
			p.logger.Error("Failed to refresh company view",
				zap.String("company_id", companyID),
				zap.Error(err))
		} else {
			p.broadcast(companyKey(companyID), snapshot)
		}
	}
}

func (p *Publisher) hasSubs(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[key]) > 0
}

func (p *Publisher) broadcast(key string, snapshot []models.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for sub := range p.subs[key] {
		sub.push(snapshot)
	}
}
