package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// DeliveryReminders tells the admin about orders that have been out for
// delivery longer than a threshold.
type DeliveryReminders struct {
	store      storage.Store
	notifier   *Notifier
	adminPhone string
	threshold  time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewDeliveryReminders creates a reminder sweep with the default threshold
func NewDeliveryReminders(store storage.Store, notifier *Notifier, adminPhone string, threshold time.Duration, log *zap.Logger) *DeliveryReminders {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryReminders{
		store:      store,
		notifier:   notifier,
		adminPhone: adminPhone,
		threshold:  threshold,
		now:        time.Now,
		logger:     log,
	}
}

// SetClock replaces the clock used to compute staleness
func (r *DeliveryReminders) SetClock(now func() time.Time) {
	r.now = now
}

// Sweep sends one aggregated reminder listing every stale delivery and
// returns how many orders it named. A zero threshold uses the default.
func (r *DeliveryReminders) Sweep(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = r.threshold
	}
	now := r.now()
	stale, err := r.store.ListStaleDeliveries(ctx, now.Add(-threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale deliveries: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	r.notifier.Run(ctx, Notification{
		Label: "delivery_reminder",
		To:    r.adminPhone,
		Text:  msgDeliveryReminder(stale, now),
	})
	r.logger.Info("delivery reminder sent",
		zap.Int("orders", len(stale)),
		zap.Duration("threshold", threshold),
	)
	return len(stale), nil
}
