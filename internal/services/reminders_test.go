package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
	"github.com/Ananth-NQI/delivery-backend/internal/testutil"
)

func TestDeliveryRemindersSweep(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	stale := testutil.SeedOrder(t, store, models.OrderStatusOutForDelivery, customerPhone,
		testutil.WithDeliveryCode("1234"), testutil.WithUpdatedAt(now.Add(-42*time.Minute)))
	testutil.SeedOrder(t, store, models.OrderStatusOutForDelivery, customerPhone,
		testutil.WithDeliveryCode("5678"), testutil.WithUpdatedAt(now.Add(-10*time.Minute)))

	rec := testutil.NewRecorder()
	notifier := services.NewNotifier(rec, time.Second, zap.NewNop(), nil)
	reminders := services.NewDeliveryReminders(store, notifier, adminPhone, 30*time.Minute, zap.NewNop())
	reminders.SetClock(func() time.Time { return now })

	n, err := reminders.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs := rec.To(adminPhone)
	require.Len(t, msgs, 1, "one aggregated reminder")
	assert.Contains(t, msgs[0].Text, "#"+stale.ShortCode())
	assert.Contains(t, msgs[0].Text, "código 1234")
	assert.Contains(t, msgs[0].Text, "há 42 min")
	assert.NotContains(t, msgs[0].Text, "5678")

	n, err = reminders.Sweep(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "threshold override")
}

func TestDeliveryRemindersSweep_NothingStale(t *testing.T) {
	rec := testutil.NewRecorder()
	notifier := services.NewNotifier(rec, time.Second, zap.NewNop(), nil)
	reminders := services.NewDeliveryReminders(storage.NewMemoryStore(), notifier, adminPhone, 30*time.Minute, zap.NewNop())

	n, err := reminders.Sweep(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.Messages())
}

func TestSetStatus(t *testing.T) {
	store := testutil.NewTestStore(t)
	order := testutil.SeedOrder(t, store, models.OrderStatusPreparing, customerPhone)
	h := newHarness(t, store, nil)
	ctx := context.Background()

	result, err := h.orders.SetStatus(ctx, order.ID, models.OrderStatusOutForDelivery)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.OrderStatusPreparing, result.Previous)
	require.NotNil(t, result.Order.DeliveryCode)
	assert.Contains(t, h.lastText(customerPhone), *result.Order.DeliveryCode, "same notifications as chat")

	result, err = h.orders.SetStatus(ctx, order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Reason)

	_, err = h.orders.SetStatus(ctx, "missing", models.OrderStatusCancelled)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = h.orders.SetStatus(ctx, order.ID, models.OrderStatus("lost"))
	assert.Error(t, err)
}

func TestAmbiguousShortCode(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone, testutil.WithID("abcdef01-0000-4000-8000-000000000001"))
	testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone, testutil.WithID("abcdef01-0000-4000-8000-000000000002"))
	h := newHarness(t, store, nil)

	h.send(adminPhone, "confirmar pedido #abcdef01")
	assert.Contains(t, h.lastText(adminPhone), "Mais de um pedido")

	h.send(adminPhone, "confirmar pedido #abcdef01-0000-4000-8000-000000000002")
	o, err := store.GetOrder(context.Background(), "abcdef01-0000-4000-8000-000000000002")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, o.Status)
}
