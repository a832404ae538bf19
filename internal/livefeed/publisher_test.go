package livefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"request-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned snapshots keyed by client or company id.
type fakeSource struct {
	mu        sync.Mutex
	byClient  map[string][]models.Request
	byCompany map[string][]models.Request
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		byClient:  make(map[string][]models.Request),
		byCompany: make(map[string][]models.Request),
	}
}

func (f *fakeSource) setClient(clientID string, requests []models.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byClient[clientID] = requests
}

func (f *fakeSource) setCompany(companyID string, requests []models.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCompany[companyID] = requests
}

func (f *fakeSource) RequestsByClient(ctx context.Context, clientID string) ([]models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byClient[clientID], nil
}

func (f *fakeSource) PendingRequestsByCompany(ctx context.Context, companyID string) ([]models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byCompany[companyID], nil
}

func receive(t *testing.T, sub *Subscription) []models.Request {
	t.Helper()
	select {
	case snapshot := <-sub.Updates():
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", []models.Request{{ID: "req-1"}})
	pub := NewPublisher(source)

	sub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	defer sub.Close()

	snapshot := receive(t, sub)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "req-1", snapshot[0].ID)
}

func TestNotifyDeliversFreshSnapshot(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", []models.Request{{ID: "req-1"}})
	pub := NewPublisher(source)

	sub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	source.setClient("client-1", []models.Request{{ID: "req-2"}, {ID: "req-1"}})
	pub.Notify("client-1", "")

	snapshot := receive(t, sub)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "req-2", snapshot[0].ID)
}

func TestNotifyReachesBothViews(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", nil)
	source.setCompany("company-1", nil)
	pub := NewPublisher(source)

	clientSub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	defer clientSub.Close()
	companySub, err := pub.SubscribeCompanyPending(context.Background(), "company-1")
	require.NoError(t, err)
	defer companySub.Close()
	receive(t, clientSub)
	receive(t, companySub)

	source.setClient("client-1", []models.Request{{ID: "req-1"}})
	source.setCompany("company-1", []models.Request{{ID: "req-1"}})
	pub.Notify("client-1", "company-1")

	assert.Len(t, receive(t, clientSub), 1)
	assert.Len(t, receive(t, companySub), 1)
}

func TestLaggingSubscriberGetsNewestSnapshot(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", nil)
	pub := NewPublisher(source)

	sub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	defer sub.Close()

	// Never read the initial snapshot; push two more changes. Only the last
	// one must survive.
	source.setClient("client-1", []models.Request{{ID: "stale"}})
	pub.Notify("client-1", "")
	source.setClient("client-1", []models.Request{{ID: "newest"}})
	pub.Notify("client-1", "")

	snapshot := receive(t, sub)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "newest", snapshot[0].ID)
}

func TestCloseStopsDelivery(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", nil)
	pub := NewPublisher(source)

	sub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	receive(t, sub)

	sub.Close()
	sub.Close() // idempotent

	_, open := <-sub.Updates()
	assert.False(t, open)

	// Notifying after close must not panic or deliver.
	pub.Notify("client-1", "")
}

func TestNotifyUnrelatedPartyDeliversNothing(t *testing.T) {
	source := newFakeSource()
	source.setClient("client-1", nil)
	pub := NewPublisher(source)

	sub, err := pub.SubscribeClient(context.Background(), "client-1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	pub.Notify("client-2", "company-2")

	select {
	case snapshot := <-sub.Updates():
		t.Fatalf("unexpected snapshot: %v", snapshot)
	case <-time.After(50 * time.Millisecond):
	}
}
