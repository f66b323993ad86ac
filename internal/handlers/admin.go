package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

var validate = validator.New()

// OrderStatusSetter applies a status change through the order lifecycle
type OrderStatusSetter interface {
	SetStatus(ctx context.Context, orderID string, target models.OrderStatus) (*services.TransitionResult, error)
}

// ReminderSweeper runs the delivery reminder sweep
type ReminderSweeper interface {
	Sweep(ctx context.Context, threshold time.Duration) (int, error)
}

// AdminHandler handles admin operations
type AdminHandler struct {
	store     storage.Store
	orders    OrderStatusSetter
	reminders ReminderSweeper
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, orders OrderStatusSetter, reminders ReminderSweeper, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		store:     store,
		orders:    orders,
		reminders: reminders,
		logger:    log,
	}
}

// GetOrder returns one order by full id
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.store.GetOrder(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Order not found",
		})
	}
	if err != nil {
		h.logger.Error("failed to load order", zap.String("order_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch order",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// UpdateOrderStatusRequest is the body of PATCH /api/orders/:id/status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new preparing out_for_delivery delivered cancelled"`
}

// UpdateOrderStatus moves an order to the requested status. An order
// already in that status answers 200 without change; a move the lifecycle
// forbids answers 409.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	orderID := c.Params("id")
	result, err := h.orders.SetStatus(c.UserContext(), orderID, models.OrderStatus(req.Status))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Order not found",
		})
	}
	if err != nil {
		h.logger.Error("failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update order status",
		})
	}

	if !result.Applied && result.Order.Status != models.OrderStatus(req.Status) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  result.Reason,
			"status": result.Order.Status,
		})
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"applied":         result.Applied,
		"previous_status": result.Previous,
		"order":           result.Order,
	})
}

// RunDeliveryReminders sweeps stale deliveries. ?minutes= overrides the
// configured threshold.
func (h *AdminHandler) RunDeliveryReminders(c *fiber.Ctx) error {
	var threshold time.Duration
	if raw := c.Query("minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "minutes must be a positive integer",
			})
		}
		threshold = time.Duration(minutes) * time.Minute
	}

	n, err := h.reminders.Sweep(c.UserContext(), threshold)
	if err != nil {
		h.logger.Error("delivery reminder sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run delivery reminders",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"reminded": n,
	})
}
