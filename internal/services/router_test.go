package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/media"
	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
	"github.com/Ananth-NQI/delivery-backend/internal/testutil"
)

const (
	adminPhone    = "+5511900000001"
	customerPhone = "+5511900000002"
	courierPhone  = "+5511900000003"
	botPhone      = "+5511900000000"
)

type fakeIngestor struct {
	url string
	err error
}

func (f fakeIngestor) Ingest(ctx context.Context, ref media.Ref) (string, error) {
	return f.url, f.err
}

type harness struct {
	t        *testing.T
	store    storage.Store
	rec      *testutil.Recorder
	sessions *services.SessionStore
	orders   *services.OrderLifecycle
	router   *services.Router
	now      time.Time
}

func newHarness(t *testing.T, store storage.Store, images services.ImageIngestor) *harness {
	h := &harness{
		t:     t,
		store: store,
		rec:   testutil.NewRecorder(),
		now:   time.Now(),
	}
	log := zap.NewNop()
	cfg := config.BotConfig{
		AdminPhone:           adminPhone,
		BotPhone:             botPhone,
		SessionTimeout:       10 * time.Minute,
		DeliveryCodeAttempts: 10,
		NotifyTimeout:        time.Second,
	}

	notifier := services.NewNotifier(h.rec, cfg.NotifyTimeout, log, nil)
	h.sessions = services.NewSessionStore(store, cfg.SessionTimeout, log)
	h.sessions.SetClock(func() time.Time { return h.now })
	codes := services.NewDeliveryCodes(store, cfg.DeliveryCodeAttempts, log, nil)
	h.orders = services.NewOrderLifecycle(store, codes, notifier, adminPhone, log, nil)
	flow := services.NewCatalogFlow(store, h.sessions, notifier, images, log)
	h.router = services.NewRouter(cfg, h.sessions, flow, h.orders, notifier, log, nil)
	return h
}

func (h *harness) send(from, text string) {
	h.router.Process(context.Background(), services.InboundMessage{ID: "SM" + text, From: from, Kind: services.KindText, Text: text})
}

func (h *harness) session(phone string) *services.Session {
	s, err := h.sessions.Get(context.Background(), phone)
	require.NoError(h.t, err)
	return s
}

func (h *harness) lastText(phone string) string {
	m, ok := h.rec.Last(phone)
	require.True(h.t, ok, "no message sent to %s", phone)
	return m.Text
}

func (h *harness) order(id string) *models.Order {
	o, err := h.store.GetOrder(context.Background(), id)
	require.NoError(h.t, err)
	return o
}

func TestCreateProductWizard(t *testing.T) {
	store := testutil.NewTestStore(t)
	pizzas := testutil.SeedCategory(t, store, "Pizzas", 1)
	testutil.SeedCategory(t, store, "Bebidas", 2)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	list, ok := h.rec.Last(adminPhone)
	require.True(t, ok)
	require.Len(t, list.Rows, 2)
	assert.Contains(t, list.Text, "1. Pizzas")
	assert.Contains(t, list.Text, "2. Bebidas")
	assert.Equal(t, models.StepAwaitingCategory, h.session(adminPhone).Step)

	h.send(adminPhone, "1")
	s := h.session(adminPhone)
	assert.Equal(t, models.StepAwaitingName, s.Step)
	require.NotNil(t, s.CategoryID)
	assert.Equal(t, pizzas.ID, *s.CategoryID)

	h.send(adminPhone, "Margherita")
	assert.Equal(t, models.StepAwaitingDescription, h.session(adminPhone).Step)

	h.send(adminPhone, "Molho de tomate, mussarela e manjericão")
	assert.Equal(t, models.StepAwaitingPrice, h.session(adminPhone).Step)

	h.send(adminPhone, "45,90")
	s = h.session(adminPhone)
	assert.Equal(t, models.StepAwaitingImage, s.Step)
	draft, ok := s.Draft.(models.ProductDraft)
	require.True(t, ok)
	assert.True(t, draft.Price.Equal(decimal.RequireFromString("45.90")))

	h.send(adminPhone, "PULAR")
	assert.Nil(t, h.session(adminPhone), "session cleared after creation")
	assert.Contains(t, h.lastText(adminPhone), "Produto cadastrado")

	products, err := store.ListProductsByCategory(context.Background(), pizzas.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Margherita", products[0].Name)
	assert.Equal(t, "Molho de tomate, mussarela e manjericão", products[0].Description)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("45.90")))
	assert.Empty(t, products[0].ImageURL)
}

func TestCreateProductWizard_RejectsInvalidInput(t *testing.T) {
	store := storage.NewMemoryStore()
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	h.send(adminPhone, "7")
	assert.Contains(t, h.lastText(adminPhone), "1. Pizzas", "category list is sent again")
	assert.Equal(t, models.StepAwaitingCategory, h.session(adminPhone).Step)

	h.send(adminPhone, "1")
	h.send(adminPhone, "ab")
	assert.Contains(t, h.lastText(adminPhone), "3 caracteres")
	assert.Equal(t, models.StepAwaitingName, h.session(adminPhone).Step)

	h.send(adminPhone, "Calabresa")
	h.send(adminPhone, "curta")
	assert.Equal(t, models.StepAwaitingDescription, h.session(adminPhone).Step)

	h.send(adminPhone, "Calabresa fatiada com cebola")
	for _, bad := range []string{"abc", "0", "-5"} {
		h.send(adminPhone, bad)
		assert.Contains(t, h.lastText(adminPhone), "Preço inválido", bad)
		assert.Equal(t, models.StepAwaitingPrice, h.session(adminPhone).Step)
	}

	h.send(adminPhone, "39.90")
	h.send(adminPhone, "not a url")
	assert.Equal(t, models.StepAwaitingImage, h.session(adminPhone).Step)

	h.send(adminPhone, "https://cdn.example.com/calabresa.jpg")
	assert.Nil(t, h.session(adminPhone))

	products, err := store.ListProductsByCategory(context.Background(), cat.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "https://cdn.example.com/calabresa.jpg", products[0].ImageURL)

	last, _ := h.rec.Last(adminPhone)
	assert.Equal(t, "https://cdn.example.com/calabresa.jpg", last.ImageURL, "summary carries the image")
}

func TestCreateProductWizard_ImageAttachment(t *testing.T) {
	store := storage.NewMemoryStore()
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, fakeIngestor{url: "https://cdn.example.com/products/p.jpg"})

	for _, msg := range []string{"cadastrar produto", "1", "Portuguesa", "Presunto, ovo, cebola e azeitona", "52"} {
		h.send(adminPhone, msg)
	}
	h.router.Process(context.Background(), services.InboundMessage{
		ID: "MM1", From: adminPhone, Kind: services.KindImage, MediaURL: "https://api.twilio.com/media/ME1", MediaContentType: "image/jpeg",
	})

	assert.Nil(t, h.session(adminPhone))
	products, err := store.ListProductsByCategory(context.Background(), cat.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "https://cdn.example.com/products/p.jpg", products[0].ImageURL)
}

func TestCreateProductWizard_ImageIngestFailureKeepsStep(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, fakeIngestor{err: errors.New("s3 down")})

	for _, msg := range []string{"cadastrar produto", "1", "Portuguesa", "Presunto, ovo, cebola e azeitona", "52"} {
		h.send(adminPhone, msg)
	}
	h.router.Process(context.Background(), services.InboundMessage{ID: "MM1", From: adminPhone, Kind: services.KindImage})

	assert.Equal(t, models.StepAwaitingImage, h.session(adminPhone).Step)
	assert.Contains(t, h.lastText(adminPhone), "Não consegui salvar a imagem")
}

func TestSessionExpiry(t *testing.T) {
	store := storage.NewMemoryStore()
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	h.send(adminPhone, "1")

	h.now = h.now.Add(11 * time.Minute)
	h.send(adminPhone, "Margherita")

	assert.Contains(t, h.lastText(adminPhone), "expirou após 11 minutos")
	assert.Nil(t, h.session(adminPhone))

	products, err := store.ListProductsByCategory(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Empty(t, products, "expired input is never applied")

	before := len(h.rec.Messages())
	h.send(adminPhone, "Margherita")
	assert.Len(t, h.rec.Messages(), before, "free text without a session is ignored")
}

func TestSessionNotExpiredWithinTimeout(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	h.send(adminPhone, "1")
	h.now = h.now.Add(9 * time.Minute)
	h.send(adminPhone, "Margherita")

	assert.Equal(t, models.StepAwaitingDescription, h.session(adminPhone).Step)
}

func TestCancelWizard(t *testing.T) {
	store := storage.NewMemoryStore()
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	h.send(adminPhone, "1")
	h.send(adminPhone, "Margherita")
	h.send(adminPhone, "Cancelar")

	assert.Nil(t, h.session(adminPhone))
	assert.Contains(t, h.lastText(adminPhone), "Cadastro cancelado")
	products, err := store.ListProductsByCategory(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreateWizard_NoCategories(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)

	h.send(adminPhone, "cadastrar produto")

	assert.Contains(t, h.lastText(adminPhone), "Nenhuma categoria")
	assert.Nil(t, h.session(adminPhone))
}

func TestCorruptedSessionIsReset(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)

	bad, err := models.EncodeDraft(models.CategoryListDraft{})
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(context.Background(), &models.ConversationSession{
		Phone:     adminPhone,
		Step:      models.StepAwaitingName,
		DraftData: bad,
		CreatedAt: h.now,
		UpdatedAt: h.now,
	}))

	h.send(adminPhone, "Margherita")

	assert.Nil(t, h.session(adminPhone))
	assert.Contains(t, h.lastText(adminPhone), "Comece novamente")
}

func TestEditProductWizard(t *testing.T) {
	store := testutil.NewTestStore(t)
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	testutil.SeedProduct(t, store, cat.ID, "Atum", "40.00")
	calabresa := testutil.SeedProduct(t, store, cat.ID, "Calabresa", "39.90")
	h := newHarness(t, store, nil)

	h.send(adminPhone, "editar produto")
	h.send(adminPhone, "1")
	list, ok := h.rec.Last(adminPhone)
	require.True(t, ok)
	require.Len(t, list.Rows, 2)
	assert.Contains(t, list.Text, "2. Calabresa - R$ 39,90")

	h.send(adminPhone, "2")
	assert.Equal(t, models.StepEditAwaitingField, h.session(adminPhone).Step)

	h.send(adminPhone, "preço")
	assert.Equal(t, models.StepEditAwaitingPrice, h.session(adminPhone).Step)

	h.send(adminPhone, "zero")
	assert.Equal(t, models.StepEditAwaitingPrice, h.session(adminPhone).Step)

	h.send(adminPhone, "42,50")
	assert.Nil(t, h.session(adminPhone))
	assert.Contains(t, h.lastText(adminPhone), "Preço* atualizado")

	got, err := store.GetProduct(context.Background(), calabresa.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, "Calabresa", got.Name)
}

func TestEditProductWizard_SelectByReplyID(t *testing.T) {
	store := storage.NewMemoryStore()
	cat := testutil.SeedCategory(t, store, "Pizzas", 1)
	p := testutil.SeedProduct(t, store, cat.ID, "Calabresa", "39.90")
	h := newHarness(t, store, nil)

	h.send(adminPhone, "editar produto")
	h.router.Process(context.Background(), services.InboundMessage{From: adminPhone, Kind: services.KindReply, ReplyID: "cat:" + cat.ID})
	h.router.Process(context.Background(), services.InboundMessage{From: adminPhone, Kind: services.KindReply, ReplyID: "prod:" + p.ID})
	h.send(adminPhone, "1")
	h.send(adminPhone, "Calabresa Especial")

	got, err := store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Calabresa Especial", got.Name)
}

func TestEditProductWizard_EmptyCategory(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedCategory(t, store, "Vazia", 1)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "editar produto")
	h.send(adminPhone, "1")

	assert.Equal(t, models.StepEditAwaitingCategory, h.session(adminPhone).Step)
	msgs := h.rec.To(adminPhone)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Contains(t, msgs[len(msgs)-2].Text, "não tem produtos")
}

func TestOrderLifecycleByChat(t *testing.T) {
	store := testutil.NewTestStore(t)
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone)
	code := order.ShortCode()
	h := newHarness(t, store, nil)

	h.send(adminPhone, "confirmar pedido #"+code)
	assert.Equal(t, models.OrderStatusPreparing, h.order(order.ID).Status)
	assert.Contains(t, h.lastText(customerPhone), "confirmado")
	assert.Contains(t, h.lastText(adminPhone), "despachar pedido #"+code)

	h.send(adminPhone, "despachar pedido #"+code)
	dispatched := h.order(order.ID)
	assert.Equal(t, models.OrderStatusOutForDelivery, dispatched.Status)
	require.NotNil(t, dispatched.DeliveryCode)
	deliveryCode := *dispatched.DeliveryCode
	assert.Len(t, deliveryCode, 4)
	assert.Contains(t, h.lastText(customerPhone), deliveryCode)
	assert.Contains(t, h.lastText(adminPhone), deliveryCode)

	h.send(courierPhone, deliveryCode)
	delivered := h.order(order.ID)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.Nil(t, delivered.DeliveryCode)
	assert.Contains(t, h.lastText(courierPhone), "confirmada")
	assert.Contains(t, h.lastText(adminPhone), "entregue")
	assert.Contains(t, h.lastText(customerPhone), "entregue")

	h.send(courierPhone, deliveryCode)
	assert.Contains(t, h.lastText(courierPhone), "Código de entrega inválido", "a code is single use")
}

func TestOrderCommands_IllegalTransitions(t *testing.T) {
	store := storage.NewMemoryStore()
	fresh := testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone)
	delivered := testutil.SeedOrder(t, store, models.OrderStatusDelivered, customerPhone)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "despachar pedido #"+fresh.ShortCode())
	assert.Equal(t, models.OrderStatusNew, h.order(fresh.ID).Status)
	assert.Contains(t, h.lastText(adminPhone), "ainda não foi confirmado")

	h.send(adminPhone, "cancelar pedido #"+delivered.ShortCode())
	assert.Equal(t, models.OrderStatusDelivered, h.order(delivered.ID).Status)
	assert.Contains(t, h.lastText(adminPhone), "não pode ser cancelado")

	h.send(adminPhone, "confirmar pedido #"+fresh.ShortCode())
	h.rec.Reset()
	h.send(adminPhone, "confirmar pedido #"+fresh.ShortCode())
	assert.Contains(t, h.lastText(adminPhone), "Nada a confirmar")
	assert.Empty(t, h.rec.To(customerPhone), "no-op sends no customer notification")
}

func TestOrderCommands_Cancel(t *testing.T) {
	store := storage.NewMemoryStore()
	order := testutil.SeedOrder(t, store, models.OrderStatusOutForDelivery, customerPhone, testutil.WithDeliveryCode("7777"))
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cancelar pedido #"+order.ShortCode())

	cancelled := h.order(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DeliveryCode, "code released on cancel")
	assert.Contains(t, h.lastText(customerPhone), "cancelado")

	h.send(courierPhone, "7777")
	assert.Contains(t, h.lastText(courierPhone), "inválido")
}

func TestOrderCommands_UnknownAndNonAdmin(t *testing.T) {
	store := storage.NewMemoryStore()
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "confirmar pedido #deadbeef")
	assert.Contains(t, h.lastText(adminPhone), "não encontrado")

	h.send(customerPhone, "confirmar pedido #"+order.ShortCode())
	assert.Equal(t, models.OrderStatusNew, h.order(order.ID).Status)
	assert.Empty(t, h.rec.To(customerPhone))
}

func TestOrderCommand_MidWizardKeepsSession(t *testing.T) {
	store := storage.NewMemoryStore()
	testutil.SeedCategory(t, store, "Pizzas", 1)
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone)
	h := newHarness(t, store, nil)

	h.send(adminPhone, "cadastrar produto")
	h.send(adminPhone, "1")
	h.send(adminPhone, "confirmar pedido #"+order.ShortCode())

	assert.Equal(t, models.OrderStatusPreparing, h.order(order.ID).Status)
	assert.Equal(t, models.StepAwaitingName, h.session(adminPhone).Step)
	assert.Contains(t, h.lastText(adminPhone), "continua aberto")
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	store := storage.NewMemoryStore()
	order := testutil.SeedOrder(t, store, models.OrderStatusNew, customerPhone)
	h := newHarness(t, store, nil)
	h.rec.Fail[adminPhone] = errors.New("gateway down")

	h.send(adminPhone, "confirmar pedido #"+order.ShortCode())

	assert.Equal(t, models.OrderStatusPreparing, h.order(order.ID).Status)
	assert.Contains(t, h.lastText(customerPhone), "confirmado", "later notifications still run")
}

func TestDeliveryCodeUnknown(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)

	h.send(courierPhone, "1234")

	assert.Contains(t, h.lastText(courierPhone), "Código de entrega inválido")
}

func TestBotOwnMessagesIgnored(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)

	h.send(botPhone, "1234")

	assert.Empty(t, h.rec.Messages())
}

func TestAdminHelp(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)

	h.send(adminPhone, "ajuda")

	assert.True(t, strings.Contains(h.lastText(adminPhone), "despachar pedido"))
}

type brokenStore struct {
	storage.Store
}

func (brokenStore) GetSession(ctx context.Context, phone string) (*models.ConversationSession, error) {
	return nil, errors.New("database is gone")
}

func TestStorageFailureGetsGenericReply(t *testing.T) {
	h := newHarness(t, brokenStore{Store: storage.NewMemoryStore()}, nil)

	h.send(adminPhone, "cadastrar produto")

	assert.Contains(t, h.lastText(adminPhone), "algo deu errado")
}
