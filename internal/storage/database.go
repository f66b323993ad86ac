package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm. The gorm handle must be
// opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// AutoMigrate creates or updates every table the store uses
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ConversationSession{},
		&models.Category{},
		&models.Product{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Session operations

func (s *DatabaseStore) GetSession(ctx context.Context, phone string) (*models.ConversationSession, error) {
	var session models.ConversationSession
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// SaveSession upserts the whole session row in one statement so a reader
// never observes a half-written draft.
func (s *DatabaseStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"step", "category_id", "draft_data", "updated_at"}),
	}).Create(session).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *DatabaseStore) DeleteSession(ctx context.Context, phone string) (bool, error) {
	res := s.db.WithContext(ctx).Where("phone = ?", phone).Delete(&models.ConversationSession{})
	if res.Error != nil {
		return false, fmt.Errorf("delete session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Catalog operations

func (s *DatabaseStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := s.db.WithContext(ctx).Order("position ASC").Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *DatabaseStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, notFound(err)
	}
	return &category, nil
}

func (s *DatabaseStore) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *DatabaseStore) ListProductsByCategory(ctx context.Context, categoryID string) ([]*models.Product, error) {
	var products []*models.Product
	err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("name ASC").Find(&products).Error
	return products, err
}

func (s *DatabaseStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *DatabaseStore) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Available = true
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *DatabaseStore) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	column := update.Column()
	if column == "" {
		return nil, fmt.Errorf("update product: unknown field %q", update.Field)
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update(column, update.Value())
	if res.Error != nil {
		return nil, fmt.Errorf("update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetProduct(ctx, id)
}

// Order operations

func (s *DatabaseStore) orders(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Customer").Preload("Items")
}

func (s *DatabaseStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusNew
	}
	if order.Customer.ID == "" && order.Customer.Phone != "" {
		order.Customer.ID = uuid.NewString()
	}
	if order.Customer.ID != "" {
		order.CustomerID = order.Customer.ID
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.Customer.ID != "" {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&order.Customer).Error; err != nil {
				return err
			}
		}
		return tx.Omit("Customer").Create(order).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *DatabaseStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.orders(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindOrderByShortCode resolves a short code by prefix match against the
// full id. The code is expected to be hex; anything else never matches.
func (s *DatabaseStore) FindOrderByShortCode(ctx context.Context, shortCode string) (*models.Order, error) {
	shortCode = strings.ToLower(strings.TrimSpace(shortCode))
	if shortCode == "" || strings.ContainsAny(shortCode, "%_") {
		return nil, ErrNotFound
	}
	var orders []*models.Order
	if err := s.orders(ctx).Where("id LIKE ?", shortCode+"%").Limit(2).Find(&orders).Error; err != nil {
		return nil, err
	}
	switch len(orders) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return orders[0], nil
	default:
		return nil, ErrAmbiguousShortCode
	}
}

func (s *DatabaseStore) FindOutForDeliveryByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := s.orders(ctx).
		Where("delivery_code = ? AND status = ?", code, models.OrderStatusOutForDelivery).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *DatabaseStore) DeliveryCodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("delivery_code = ? AND status = ?", code, models.OrderStatusOutForDelivery).
		Count(&count).Error
	return count > 0, err
}

func (s *DatabaseStore) ListStaleDeliveries(ctx context.Context, updatedBefore time.Time) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.orders(ctx).
		Where("status = ? AND updated_at < ?", models.OrderStatusOutForDelivery, updatedBefore).
		Order("updated_at ASC").
		Find(&orders).Error
	return orders, err
}

// TransitionOrder applies a conditional status update. The WHERE clause on
// the current status and the unique index on delivery_code make concurrent
// dispatches safe without a read-then-write window.
func (s *DatabaseStore) TransitionOrder(ctx context.Context, t OrderTransition) (*models.Order, error) {
	updates := map[string]any{
		"status":     t.To,
		"updated_at": time.Now(),
	}
	if t.To == models.OrderStatusOutForDelivery && t.DeliveryCode != nil {
		updates["delivery_code"] = *t.DeliveryCode
	} else {
		updates["delivery_code"] = nil
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", t.OrderID, t.From).
		Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateDeliveryCode
		}
		return nil, fmt.Errorf("transition order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetOrder(ctx, t.OrderID); err != nil {
			return nil, err
		}
		return nil, ErrStatusConflict
	}
	return s.GetOrder(ctx, t.OrderID)
}
