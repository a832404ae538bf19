package worker

import (
	"context"

	"request-service/internal/broker"
	"request-service/internal/util"

	"go.uber.org/zap"
)

// ViewRefresher is the live view surface the notifier drives.
type ViewRefresher interface {
	Notify(clientID, companyID string)
}

// NotifierWorker consumes request events and refreshes live views, so
// subscriptions held by other instances converge on the same snapshots.
type NotifierWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewNotifierWorker creates a new notifier worker
func NewNotifierWorker(consumer *broker.Consumer, views ViewRefresher) *NotifierWorker {
	handler := broker.NewEventHandler()
	handler.OnRequestChange(func(ctx context.Context, clientID, companyID string) error {
		views.Notify(clientID, companyID)
		return nil
	})

	return &NotifierWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.NamedLogger("notifier"),
	}
}

// Start starts the worker
func (w *NotifierWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notifier worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *NotifierWorker) Stop() error {
	w.logger.Info("Stopping notifier worker")
	return w.consumer.Close()
}
