package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/metrics"
	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
	"github.com/Ananth-NQI/delivery-backend/internal/utils"
)

// DeliveryCodes issues and resolves the 4-digit codes that prove a
// delivery. A code is unique among out_for_delivery orders.
type DeliveryCodes struct {
	store    storage.Store
	attempts int
	random   func() (string, error)
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewDeliveryCodes creates a code service that tries attempts random
// candidates before falling back to a time-derived code.
func NewDeliveryCodes(store storage.Store, attempts int, log *zap.Logger, m *metrics.Metrics) *DeliveryCodes {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryCodes{
		store:    store,
		attempts: attempts,
		random:   utils.GenerateDeliveryCode,
		now:      time.Now,
		logger:   log,
		metrics:  m,
	}
}

// Generate returns a code no out_for_delivery order currently holds. The
// check is advisory; the reservation in TransitionOrder is authoritative.
func (d *DeliveryCodes) Generate(ctx context.Context) (string, error) {
	for i := 0; i < d.attempts; i++ {
		code, err := d.random()
		if err != nil {
			return "", err
		}
		inUse, err := d.store.DeliveryCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check delivery code: %w", err)
		}
		if !inUse {
			d.metrics.DeliveryCode(false)
			return code, nil
		}
	}

	code := utils.TimeDerivedDeliveryCode(d.now())
	d.logger.Warn("delivery code space congested, using time-derived code",
		zap.Int("attempts", d.attempts))
	d.metrics.DeliveryCode(true)
	return code, nil
}

// Resolve returns the out_for_delivery order holding code
func (d *DeliveryCodes) Resolve(ctx context.Context, code string) (*models.Order, error) {
	if !utils.IsDeliveryCode(code) {
		return nil, storage.ErrNotFound
	}
	return d.store.FindOutForDeliveryByCode(ctx, code)
}
