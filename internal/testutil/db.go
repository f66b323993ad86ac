// Package testutil holds shared fixtures for package tests
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// NewTestDB opens a private in-memory SQLite database with the schema migrated
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.AutoMigrate(db))
	return db
}

// NewTestStore returns a DatabaseStore over a fresh in-memory database
func NewTestStore(t *testing.T) *storage.DatabaseStore {
	t.Helper()
	return storage.NewDatabaseStore(NewTestDB(t))
}

// SeedCategory creates a category
func SeedCategory(t *testing.T, store storage.Store, name string, position int) *models.Category {
	t.Helper()
	c, err := store.CreateCategory(context.Background(), &models.Category{Name: name, Position: position})
	require.NoError(t, err)
	return c
}

// SeedProduct creates a product in category
func SeedProduct(t *testing.T, store storage.Store, categoryID, name, price string) *models.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), &models.Product{
		CategoryID:  categoryID,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p
}

// OrderOption customizes a seeded order
type OrderOption func(*models.Order)

// WithID fixes the order id
func WithID(id string) OrderOption {
	return func(o *models.Order) { o.ID = id }
}

// WithDeliveryCode sets an out_for_delivery order's code
func WithDeliveryCode(code string) OrderOption {
	return func(o *models.Order) { o.DeliveryCode = &code }
}

// WithUpdatedAt backdates the order
func WithUpdatedAt(ts time.Time) OrderOption {
	return func(o *models.Order) {
		o.CreatedAt = ts
		o.UpdatedAt = ts
	}
}

// WithoutCustomer seeds an order with no customer phone
func WithoutCustomer() OrderOption {
	return func(o *models.Order) { o.Customer = models.Customer{} }
}

// SeedOrder creates an order in the given status owned by customerPhone
func SeedOrder(t *testing.T, store storage.Store, status models.OrderStatus, customerPhone string, opts ...OrderOption) *models.Order {
	t.Helper()
	o := &models.Order{
		Status:        status,
		Customer:      models.Customer{Name: "Cliente", Phone: customerPhone},
		Total:         decimal.RequireFromString("42.50"),
		PaymentMethod: "pix",
		Items: []models.OrderItem{{
			ProductName: "Pizza",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString("42.50"),
		}},
	}
	for _, opt := range opts {
		opt(o)
	}
	created, err := store.CreateOrder(context.Background(), o)
	require.NoError(t, err)

	got, err := store.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	return got
}
