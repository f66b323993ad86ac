package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
	"github.com/Ananth-NQI/delivery-backend/internal/testutil"
)

const testAdminPhone = "+5511900000001"

func newAdminApp(t *testing.T, store storage.Store) (*fiber.App, *testutil.Recorder) {
	t.Helper()
	log := zap.NewNop()
	rec := testutil.NewRecorder()
	notifier := services.NewNotifier(rec, time.Second, log, nil)
	codes := services.NewDeliveryCodes(store, 10, log, nil)
	orders := services.NewOrderLifecycle(store, codes, notifier, testAdminPhone, log, nil)
	reminders := services.NewDeliveryReminders(store, notifier, testAdminPhone, 30*time.Minute, log)

	h := NewAdminHandler(store, orders, reminders, log)
	app := fiber.New()
	app.Get("/api/orders/:id", h.GetOrder)
	app.Patch("/api/orders/:id/status", h.UpdateOrderStatus)
	app.Post("/jobs/delivery-reminders", h.RunDeliveryReminders)
	return app, rec
}

func patchStatus(t *testing.T, app *fiber.App, id, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+id+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestUpdateOrderStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, "+5511900000002")
	app, rec := newAdminApp(t, store)

	status, body := patchStatus(t, app, order.ID, `{"status":"preparing"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, "new", body["previous_status"])
	assert.NotEmpty(t, rec.To("+5511900000002"), "customer notified like a chat confirm")

	status, body = patchStatus(t, app, order.ID, `{"status":"preparing"}`)
	assert.Equal(t, fiber.StatusOK, status, "same status is idempotent")
	assert.Equal(t, false, body["applied"])

	status, _ = patchStatus(t, app, order.ID, `{"status":"delivered"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = patchStatus(t, app, order.ID, `{"status":"teleported"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = patchStatus(t, app, "missing", `{"status":"cancelled"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestGetOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, "+5511900000002")
	app, _ := newAdminApp(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRunDeliveryReminders(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedOrder(t, store, models.OrderStatusOutForDelivery, "+5511900000002",
		testutil.WithDeliveryCode("1234"), testutil.WithUpdatedAt(time.Now().Add(-20*time.Minute)))
	app, rec := newAdminApp(t, store)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/jobs/delivery-reminders", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":true,"reminded":0}`, string(raw), "20 minutes is under the default threshold")

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/jobs/delivery-reminders?minutes=15", nil))
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":true,"reminded":1}`, string(raw))
	assert.Len(t, rec.To(testAdminPhone), 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/jobs/delivery-reminders?minutes=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
