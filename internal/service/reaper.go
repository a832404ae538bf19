package service

import (
	"context"
	"time"

	"request-service/internal/models"
	"request-service/internal/store"
	"request-service/internal/util"

	"go.uber.org/zap"
)

// SweepStaleRequests deletes a client's pending requests older than the
// retention window and returns how many were removed. Pending requests never
// decremented inventory, so the sweep touches no product rows. Safe to run
// repeatedly; a second sweep finds nothing the first did not already remove.
func (s *RequestService) SweepStaleRequests(ctx context.Context, clientID string, retention time.Duration) (int, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.SweepStaleRequests")
	defer span.End()

	cutoff := time.Now().UTC().Add(-retention)

	var refs []models.RequestRef
	err := s.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		refs, err = tx.DeleteStalePending(ctx, clientID, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.afterReaped(ctx, refs)
	return len(refs), nil
}

// SweepAllStale is the periodic variant of SweepStaleRequests, covering every
// client in one transaction. Invoked by the reaper worker under a lock so a
// single instance sweeps at a time.
func (s *RequestService) SweepAllStale(ctx context.Context, retention time.Duration) (int, error) {
	ctx, span := util.StartSpan(ctx, "RequestService.SweepAllStale")
	defer span.End()

	cutoff := time.Now().UTC().Add(-retention)

	var refs []models.RequestRef
	err := s.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		refs, err = tx.DeleteAllStalePending(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.afterReaped(ctx, refs)
	return len(refs), nil
}

func (s *RequestService) afterReaped(ctx context.Context, refs []models.RequestRef) {
	if len(refs) == 0 {
		return
	}

	util.RequestsReapedTotal.Add(float64(len(refs)))
	s.logger.Info("Stale requests reaped", zap.Int("count", len(refs)))

	for _, ref := range refs {
		if err := s.cache.DecrPendingCount(ctx, ref.CompanyID); err != nil {
			s.logger.Warn("Failed to drop pending count cache", zap.Error(err))
		}

		event := &models.RequestRemovedEvent{
			BaseEvent: newBaseEvent(models.EventTypeRequestReaped),
			RequestID: ref.ID,
			ClientID:  ref.ClientID,
			CompanyID: ref.CompanyID,
		}
		if err := s.events.PublishRequestRemoved(ctx, event); err != nil {
			s.logger.Error("Failed to publish RequestRemoved event", zap.Error(err))
		}

		s.views.Notify(ref.ClientID, ref.CompanyID)
	}
}
