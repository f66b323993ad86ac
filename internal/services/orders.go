package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/metrics"
	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// reserveAttempts bounds how often dispatch retries after losing a
// delivery code to a concurrent dispatch.
const reserveAttempts = 3

// OrderAction is an admin command on an order
type OrderAction string

const (
	ActionConfirm  OrderAction = "confirm"
	ActionCancel   OrderAction = "cancel"
	ActionDispatch OrderAction = "dispatch"
)

// Target returns the status the action moves an order to
func (a OrderAction) Target() models.OrderStatus {
	switch a {
	case ActionConfirm:
		return models.OrderStatusPreparing
	case ActionCancel:
		return models.OrderStatusCancelled
	case ActionDispatch:
		return models.OrderStatusOutForDelivery
	}
	return ""
}

// TransitionResult reports what a lifecycle call did. When Applied is false
// Reason explains why, and Order holds the unchanged order.
type TransitionResult struct {
	Order    *models.Order
	Previous models.OrderStatus
	Applied  bool
	Reason   string
}

// OrderLifecycle moves orders through new → preparing → out_for_delivery →
// delivered, with cancellation from any non-terminal status. Every entry
// point goes through the same compare-and-swap transition.
type OrderLifecycle struct {
	store      storage.Store
	codes      *DeliveryCodes
	notifier   *Notifier
	adminPhone string
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewOrderLifecycle creates an OrderLifecycle
func NewOrderLifecycle(store storage.Store, codes *DeliveryCodes, notifier *Notifier, adminPhone string, log *zap.Logger, m *metrics.Metrics) *OrderLifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderLifecycle{
		store:      store,
		codes:      codes,
		notifier:   notifier,
		adminPhone: adminPhone,
		logger:     log,
		metrics:    m,
	}
}

// Confirm moves a new order to preparing
func (l *OrderLifecycle) Confirm(ctx context.Context, shortCode string) (*TransitionResult, error) {
	return l.Apply(ctx, ActionConfirm, shortCode)
}

// Cancel cancels a non-terminal order
func (l *OrderLifecycle) Cancel(ctx context.Context, shortCode string) (*TransitionResult, error) {
	return l.Apply(ctx, ActionCancel, shortCode)
}

// Dispatch moves a preparing order out for delivery and reserves its code
func (l *OrderLifecycle) Dispatch(ctx context.Context, shortCode string) (*TransitionResult, error) {
	return l.Apply(ctx, ActionDispatch, shortCode)
}

// Apply resolves shortCode and runs action on the order. It returns
// storage.ErrNotFound or storage.ErrAmbiguousShortCode when the code does
// not identify exactly one order.
func (l *OrderLifecycle) Apply(ctx context.Context, action OrderAction, shortCode string) (*TransitionResult, error) {
	target := action.Target()
	if target == "" {
		return nil, fmt.Errorf("unknown order action %q", action)
	}
	order, err := l.store.FindOrderByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, order, target, "")
}

// DeliverByCode marks delivered the out_for_delivery order holding code.
// submitter receives a confirmation. storage.ErrNotFound means no order
// matched and nothing changed.
func (l *OrderLifecycle) DeliverByCode(ctx context.Context, code, submitter string) (*TransitionResult, error) {
	order, err := l.codes.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	result, err := l.transition(ctx, order, models.OrderStatusDelivered, submitter)
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		// another submission delivered it between lookup and update
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// SetStatus moves an order, identified by full id, to target. Used by the
// status API; the same rules and notifications apply as for chat commands.
func (l *OrderLifecycle) SetStatus(ctx context.Context, orderID string, target models.OrderStatus) (*TransitionResult, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown order status %q", target)
	}
	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, order, target, "")
}

func (l *OrderLifecycle) transition(ctx context.Context, order *models.Order, target models.OrderStatus, submitter string) (*TransitionResult, error) {
	previous := order.Status
	if !previous.CanTransition(target) {
		return &TransitionResult{Order: order, Previous: previous, Reason: explainRejected(order, target)}, nil
	}

	var updated *models.Order
	for attempt := 1; ; attempt++ {
		var code *string
		if target == models.OrderStatusOutForDelivery {
			c, err := l.codes.Generate(ctx)
			if err != nil {
				return nil, err
			}
			code = &c
		}

		var err error
		updated, err = l.store.TransitionOrder(ctx, storage.OrderTransition{
			OrderID:      order.ID,
			From:         previous,
			To:           target,
			DeliveryCode: code,
		})
		if errors.Is(err, storage.ErrDuplicateDeliveryCode) && attempt < reserveAttempts {
			l.logger.Info("delivery code taken concurrently, retrying",
				zap.String("order", order.ShortCode()), zap.Int("attempt", attempt))
			continue
		}
		if errors.Is(err, storage.ErrStatusConflict) {
			current, gerr := l.store.GetOrder(ctx, order.ID)
			if gerr != nil {
				return nil, gerr
			}
			return &TransitionResult{Order: current, Previous: current.Status, Reason: explainRejected(current, target)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to move order %s to %s: %w", order.ShortCode(), target, err)
		}
		break
	}

	l.metrics.Transition(string(previous), string(target))
	l.logger.Info("order status changed",
		zap.String("order", updated.ShortCode()),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
	)

	l.notifier.Run(ctx, l.notifications(updated, submitter)...)
	return &TransitionResult{Order: updated, Previous: previous, Applied: true}, nil
}

// notifications builds the ordered batch sent after a committed transition
func (l *OrderLifecycle) notifications(order *models.Order, submitter string) []Notification {
	customer := order.CustomerPhone()
	switch order.Status {
	case models.OrderStatusPreparing:
		return []Notification{
			{Label: "admin_confirmed", To: l.adminPhone, Text: msgAdminConfirmed(order)},
			{Label: "customer_confirmed", To: customer, Text: msgCustomerConfirmed(order)},
		}
	case models.OrderStatusOutForDelivery:
		return []Notification{
			{Label: "admin_dispatched", To: l.adminPhone, Text: msgAdminDispatched(order)},
			{Label: "customer_dispatched", To: customer, Text: msgCustomerDispatched(order)},
		}
	case models.OrderStatusCancelled:
		return []Notification{
			{Label: "admin_cancelled", To: l.adminPhone, Text: msgAdminCancelled(order)},
			{Label: "customer_cancelled", To: customer, Text: msgCustomerCancelled(order)},
		}
	case models.OrderStatusDelivered:
		batch := make([]Notification, 0, 3)
		if submitter != "" && submitter != l.adminPhone && submitter != customer {
			batch = append(batch, Notification{Label: "submitter_delivered", To: submitter, Text: msgDeliveryConfirmed(order)})
		}
		return append(batch,
			Notification{Label: "admin_delivered", To: l.adminPhone, Text: msgAdminDelivered(order)},
			Notification{Label: "customer_delivered", To: customer, Text: msgCustomerDelivered(order)},
		)
	}
	l.logger.Warn("no notifications for status", zap.String("status", string(order.Status)), logger.Phone(customer))
	return nil
}
