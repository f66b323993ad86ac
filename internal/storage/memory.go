package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
)

// MemoryStore holds all data in memory. It keeps the same atomicity
// guarantees as DatabaseStore by serializing every operation.
type MemoryStore struct {
	mu sync.RWMutex

	sessions   map[string]models.ConversationSession
	categories map[string]models.Category
	products   map[string]models.Product
	orders     map[string]models.Order

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]models.ConversationSession),
		categories: make(map[string]models.Category),
		products:   make(map[string]models.Product),
		orders:     make(map[string]models.Order),
		now:        time.Now,
	}
}

// SetClock replaces the clock used for order timestamps
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Session operations

func (m *MemoryStore) GetSession(ctx context.Context, phone string) (*models.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[phone]
	if !exists {
		return nil, ErrNotFound
	}
	session.DraftData = append([]byte(nil), session.DraftData...)
	return &session, nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *session
	stored.DraftData = append([]byte(nil), session.DraftData...)
	if existing, exists := m.sessions[session.Phone]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = m.now()
	}
	m.sessions[session.Phone] = stored
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.sessions[phone]
	delete(m.sessions, phone)
	return exists, nil
}

// Catalog operations

func (m *MemoryStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make([]*models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		c := c
		categories = append(categories, &c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Position != categories[j].Position {
			return categories[i].Position < categories[j].Position
		}
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (m *MemoryStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	category, exists := m.categories[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &category, nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	category.CreatedAt = m.now()
	category.UpdatedAt = category.CreatedAt
	m.categories[category.ID] = *category
	return category, nil
}

func (m *MemoryStore) ListProductsByCategory(ctx context.Context, categoryID string) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var products []*models.Product
	for _, p := range m.products {
		if p.CategoryID == categoryID {
			p := p
			products = append(products, &p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	product, exists := m.products[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &product, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Available = true
	product.CreatedAt = m.now()
	product.UpdatedAt = product.CreatedAt
	m.products[product.ID] = *product
	return product, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, exists := m.products[id]
	if !exists {
		return nil, ErrNotFound
	}
	update.Apply(&product)
	product.UpdatedAt = m.now()
	m.products[id] = product
	return &product, nil
}

// Order operations

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusNew
	}
	if order.Customer.ID == "" {
		order.Customer.ID = uuid.NewString()
	}
	order.CustomerID = order.Customer.ID
	now := m.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = cloneOrder(*order)
	return order, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, exists := m.orders[id]
	if !exists {
		return nil, ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (m *MemoryStore) FindOrderByShortCode(ctx context.Context, shortCode string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shortCode = strings.ToLower(strings.TrimSpace(shortCode))
	if shortCode == "" {
		return nil, ErrNotFound
	}
	var found []models.Order
	for id, order := range m.orders {
		if strings.HasPrefix(id, shortCode) {
			found = append(found, order)
		}
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		out := cloneOrder(found[0])
		return &out, nil
	default:
		return nil, ErrAmbiguousShortCode
	}
}

func (m *MemoryStore) FindOutForDeliveryByCode(ctx context.Context, code string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.findByCodeLocked(code)
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (m *MemoryStore) DeliveryCodeInUse(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.findByCodeLocked(code)
	return ok, nil
}

func (m *MemoryStore) findByCodeLocked(code string) (models.Order, bool) {
	for _, order := range m.orders {
		if order.Status == models.OrderStatusOutForDelivery && order.DeliveryCode != nil && *order.DeliveryCode == code {
			return order, true
		}
	}
	return models.Order{}, false
}

func (m *MemoryStore) ListStaleDeliveries(ctx context.Context, updatedBefore time.Time) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []*models.Order
	for _, order := range m.orders {
		if order.Status == models.OrderStatusOutForDelivery && order.UpdatedAt.Before(updatedBefore) {
			out := cloneOrder(order)
			orders = append(orders, &out)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].UpdatedAt.Before(orders[j].UpdatedAt) })
	return orders, nil
}

func (m *MemoryStore) TransitionOrder(ctx context.Context, t OrderTransition) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[t.OrderID]
	if !exists {
		return nil, ErrNotFound
	}
	if order.Status != t.From {
		return nil, ErrStatusConflict
	}

	order.DeliveryCode = nil
	if t.To == models.OrderStatusOutForDelivery && t.DeliveryCode != nil {
		if _, taken := m.findByCodeLocked(*t.DeliveryCode); taken {
			return nil, ErrDuplicateDeliveryCode
		}
		code := *t.DeliveryCode
		order.DeliveryCode = &code
	}
	order.Status = t.To
	order.UpdatedAt = m.now()
	m.orders[t.OrderID] = order

	out := cloneOrder(order)
	return &out, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.DeliveryCode != nil {
		code := *o.DeliveryCode
		o.DeliveryCode = &code
	}
	return o
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*DatabaseStore)(nil)
)
