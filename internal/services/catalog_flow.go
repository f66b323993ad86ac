package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/media"
	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// Reply ids carried by list rows, echoed back by the gateway when a row is
// picked.
const (
	categoryReplyPrefix = "cat:"
	productReplyPrefix  = "prod:"
)

// ImageIngestor turns an inbound attachment into a public image URL
type ImageIngestor interface {
	Ingest(ctx context.Context, ref media.Ref) (string, error)
}

// CatalogFlow runs the multi-step product creation and edit wizards. Each
// step validates its input before the session advances; nothing reaches the
// catalog until the last step.
type CatalogFlow struct {
	store    storage.Store
	sessions *SessionStore
	notifier *Notifier
	images   ImageIngestor
	logger   *zap.Logger
}

// NewCatalogFlow creates a CatalogFlow. images may be nil, in which case
// photo uploads are refused and links are still accepted.
func NewCatalogFlow(store storage.Store, sessions *SessionStore, notifier *Notifier, images ImageIngestor, log *zap.Logger) *CatalogFlow {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogFlow{store: store, sessions: sessions, notifier: notifier, images: images, logger: log}
}

// StartCreate begins the product creation wizard, replacing any session
func (f *CatalogFlow) StartCreate(ctx context.Context, phone string) error {
	return f.start(ctx, phone, models.StepAwaitingCategory, msgChooseCategory)
}

// StartEdit begins the product edit wizard, replacing any session
func (f *CatalogFlow) StartEdit(ctx context.Context, phone string) error {
	return f.start(ctx, phone, models.StepEditAwaitingCategory, msgChooseEditCategory)
}

func (f *CatalogFlow) start(ctx context.Context, phone string, step models.Step, title string) error {
	categories, err := f.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		f.notifier.Text(ctx, phone, msgNoCategories)
		return nil
	}

	draft := models.CategoryListDraft{Categories: make([]models.CategoryOption, 0, len(categories))}
	for _, c := range categories {
		draft.Categories = append(draft.Categories, models.CategoryOption{ID: c.ID, Name: c.Name})
	}
	if _, err := f.sessions.Upsert(ctx, phone, step, nil, draft); err != nil {
		return err
	}

	f.logger.Info("catalog wizard started", logger.Phone(phone), zap.String("step", string(step)))
	f.sendCategoryList(ctx, phone, title, draft)
	return nil
}

// Continue feeds a text answer to the session's current step
func (f *CatalogFlow) Continue(ctx context.Context, s *Session, text string) error {
	return f.recoverCorrupted(ctx, s, f.handleText(ctx, s, text))
}

// Select handles a picked list row by its reply id
func (f *CatalogFlow) Select(ctx context.Context, s *Session, replyID string) error {
	return f.recoverCorrupted(ctx, s, f.handleSelect(ctx, s, replyID))
}

// AttachImage answers an image step with an inbound photo
func (f *CatalogFlow) AttachImage(ctx context.Context, s *Session, ref media.Ref) error {
	return f.recoverCorrupted(ctx, s, f.handleImage(ctx, s, ref))
}

// Cancel drops the session for phone. It reports whether one existed.
func (f *CatalogFlow) Cancel(ctx context.Context, phone string) (bool, error) {
	existed, err := f.sessions.Delete(ctx, phone)
	if err != nil {
		return false, err
	}
	if existed {
		f.notifier.Text(ctx, phone, msgFlowCancelled)
	}
	return existed, nil
}

// recoverCorrupted resets a session whose draft cannot be trusted
func (f *CatalogFlow) recoverCorrupted(ctx context.Context, s *Session, err error) error {
	if !errors.Is(err, ErrCorruptedSession) {
		return err
	}
	f.logger.Warn("resetting corrupted session", logger.Phone(s.Phone), zap.String("step", string(s.Step)), zap.Error(err))
	if _, derr := f.sessions.Delete(ctx, s.Phone); derr != nil {
		return derr
	}
	f.notifier.Text(ctx, s.Phone, msgFlowCorrupted)
	return nil
}

func (f *CatalogFlow) handleText(ctx context.Context, s *Session, text string) error {
	switch s.Step {
	case models.StepAwaitingCategory, models.StepEditAwaitingCategory:
		return f.pickCategory(ctx, s, parseIndex(text))
	case models.StepAwaitingName:
		return f.setName(ctx, s, text)
	case models.StepAwaitingDescription:
		return f.setDescription(ctx, s, text)
	case models.StepAwaitingPrice:
		return f.setPrice(ctx, s, text)
	case models.StepAwaitingImage:
		return f.setImageText(ctx, s, text)
	case models.StepEditAwaitingProduct:
		return f.pickProduct(ctx, s, parseIndex(text))
	case models.StepEditAwaitingField:
		return f.pickField(ctx, s, text)
	case models.StepEditAwaitingName, models.StepEditAwaitingDescription,
		models.StepEditAwaitingPrice, models.StepEditAwaitingImage:
		return f.editValue(ctx, s, text)
	}
	return fmt.Errorf("%w: unknown step %q", ErrCorruptedSession, s.Step)
}

func (f *CatalogFlow) handleSelect(ctx context.Context, s *Session, replyID string) error {
	switch {
	case strings.HasPrefix(replyID, categoryReplyPrefix) &&
		(s.Step == models.StepAwaitingCategory || s.Step == models.StepEditAwaitingCategory):
		draft, err := draftAs[models.CategoryListDraft](s)
		if err != nil {
			return err
		}
		id := strings.TrimPrefix(replyID, categoryReplyPrefix)
		for i, c := range draft.Categories {
			if c.ID == id {
				return f.pickCategory(ctx, s, i+1)
			}
		}
		return f.pickCategory(ctx, s, 0)
	case strings.HasPrefix(replyID, productReplyPrefix) && s.Step == models.StepEditAwaitingProduct:
		draft, err := draftAs[models.EditTargetDraft](s)
		if err != nil {
			return err
		}
		id := strings.TrimPrefix(replyID, productReplyPrefix)
		for i, p := range draft.Products {
			if p.ID == id {
				return f.pickProduct(ctx, s, i+1)
			}
		}
		return f.pickProduct(ctx, s, 0)
	}
	f.logger.Debug("list reply does not fit step", logger.Phone(s.Phone),
		zap.String("reply_id", replyID), zap.String("step", string(s.Step)))
	return nil
}

func (f *CatalogFlow) handleImage(ctx context.Context, s *Session, ref media.Ref) error {
	if f.images == nil {
		f.notifier.Text(ctx, s.Phone, msgImageFailed)
		return nil
	}
	url, err := f.images.Ingest(ctx, ref)
	if err != nil {
		f.logger.Warn("image ingestion failed", logger.Phone(s.Phone), zap.Error(err))
		f.notifier.Text(ctx, s.Phone, msgImageFailed)
		return nil
	}

	switch s.Step {
	case models.StepAwaitingImage:
		draft, err := draftAs[models.ProductDraft](s)
		if err != nil {
			return err
		}
		draft.ImageURL = url
		return f.finishCreate(ctx, s, draft)
	case models.StepEditAwaitingImage:
		draft, err := draftAs[models.EditTargetDraft](s)
		if err != nil {
			return err
		}
		return f.finishEdit(ctx, s, draft, models.ProductUpdate{Field: models.ProductFieldImage, Text: url})
	}
	f.notifier.Text(ctx, s.Phone, msgImageNotExpected)
	return nil
}

// Creation wizard

func (f *CatalogFlow) pickCategory(ctx context.Context, s *Session, index int) error {
	draft, err := draftAs[models.CategoryListDraft](s)
	if err != nil {
		return err
	}
	if index < 1 || index > len(draft.Categories) {
		title := msgChooseCategory
		if s.Step.IsEdit() {
			title = msgChooseEditCategory
		}
		f.notifier.Text(ctx, s.Phone, msgInvalidOption(len(draft.Categories)))
		f.sendCategoryList(ctx, s.Phone, title, draft)
		return nil
	}
	chosen := draft.Categories[index-1]

	if !s.Step.IsEdit() {
		next := models.ProductDraft{CategoryID: chosen.ID, CategoryName: chosen.Name}
		if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepAwaitingName, &chosen.ID, next); err != nil {
			return err
		}
		f.notifier.Text(ctx, s.Phone, msgCategoryChosen(chosen.Name))
		return nil
	}

	products, err := f.store.ListProductsByCategory(ctx, chosen.ID)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		f.notifier.Text(ctx, s.Phone, msgEmptyCategory(chosen.Name))
		f.sendCategoryList(ctx, s.Phone, msgChooseEditCategory, draft)
		return nil
	}

	next := models.EditTargetDraft{
		CategoryID:   chosen.ID,
		CategoryName: chosen.Name,
		Products:     make([]models.ProductOption, 0, len(products)),
	}
	rows := make([]ListRow, 0, len(products))
	for _, p := range products {
		next.Products = append(next.Products, models.ProductOption{ID: p.ID, Name: p.Name})
		rows = append(rows, ListRow{ID: productReplyPrefix + p.ID, Title: p.Name, Description: FormatPrice(p.Price)})
	}
	if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepEditAwaitingProduct, &chosen.ID, next); err != nil {
		return err
	}
	f.notifier.Run(ctx, Notification{Label: "product_list", To: s.Phone, Text: msgChooseProduct(chosen.Name), Rows: rows})
	return nil
}

func (f *CatalogFlow) setName(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.ProductDraft](s)
	if err != nil {
		return err
	}
	name, ok := ValidateName(text)
	if !ok {
		f.notifier.Text(ctx, s.Phone, msgInvalidName)
		return nil
	}
	draft.Name = name
	if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepAwaitingDescription, s.CategoryID, draft); err != nil {
		return err
	}
	f.notifier.Text(ctx, s.Phone, msgAskDescription)
	return nil
}

func (f *CatalogFlow) setDescription(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.ProductDraft](s)
	if err != nil {
		return err
	}
	description, ok := ValidateDescription(text)
	if !ok {
		f.notifier.Text(ctx, s.Phone, msgInvalidDescription)
		return nil
	}
	draft.Description = description
	if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepAwaitingPrice, s.CategoryID, draft); err != nil {
		return err
	}
	f.notifier.Text(ctx, s.Phone, msgAskPrice)
	return nil
}

func (f *CatalogFlow) setPrice(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.ProductDraft](s)
	if err != nil {
		return err
	}
	price, err := ParsePrice(text)
	if err != nil {
		f.notifier.Text(ctx, s.Phone, msgInvalidPrice)
		return nil
	}
	draft.Price = &price
	if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepAwaitingImage, s.CategoryID, draft); err != nil {
		return err
	}
	f.notifier.Text(ctx, s.Phone, msgAskImage)
	return nil
}

func (f *CatalogFlow) setImageText(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.ProductDraft](s)
	if err != nil {
		return err
	}
	if !IsSkip(text) {
		url, err := ValidateImageURL(text)
		if err != nil {
			f.notifier.Text(ctx, s.Phone, msgInvalidImage)
			return nil
		}
		draft.ImageURL = url
	}
	return f.finishCreate(ctx, s, draft)
}

func (f *CatalogFlow) finishCreate(ctx context.Context, s *Session, draft models.ProductDraft) error {
	if !draft.Complete() {
		f.logger.Warn("product draft incomplete at final step", logger.Phone(s.Phone))
		if _, err := f.sessions.Delete(ctx, s.Phone); err != nil {
			return err
		}
		f.notifier.Text(ctx, s.Phone, msgFlowIncomplete)
		return nil
	}

	product, err := f.store.CreateProduct(ctx, &models.Product{
		CategoryID:  draft.CategoryID,
		Name:        draft.Name,
		Description: draft.Description,
		Price:       *draft.Price,
		ImageURL:    draft.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	if _, err := f.sessions.Delete(ctx, s.Phone); err != nil {
		f.logger.Warn("product created but session not cleared", logger.Phone(s.Phone), zap.Error(err))
	}

	f.logger.Info("product created", zap.String("product_id", product.ID), zap.String("category", draft.CategoryName))
	f.notifier.Run(ctx, Notification{
		Label:    "product_created",
		To:       s.Phone,
		Text:     productSummary(product, draft.CategoryName),
		ImageURL: product.ImageURL,
	})
	return nil
}

// Edit wizard

func (f *CatalogFlow) pickProduct(ctx context.Context, s *Session, index int) error {
	draft, err := draftAs[models.EditTargetDraft](s)
	if err != nil {
		return err
	}
	if index < 1 || index > len(draft.Products) {
		f.notifier.Text(ctx, s.Phone, msgInvalidOption(len(draft.Products)))
		return nil
	}
	chosen := draft.Products[index-1]
	draft.EditTargetID = chosen.ID
	draft.TargetName = chosen.Name
	if _, err := f.sessions.Upsert(ctx, s.Phone, models.StepEditAwaitingField, s.CategoryID, draft); err != nil {
		return err
	}
	f.notifier.Text(ctx, s.Phone, fmt.Sprintf("📦 *%s*\n\n%s", chosen.Name, msgChooseField))
	return nil
}

var editFieldSteps = map[models.ProductField]models.Step{
	models.ProductFieldName:        models.StepEditAwaitingName,
	models.ProductFieldDescription: models.StepEditAwaitingDescription,
	models.ProductFieldPrice:       models.StepEditAwaitingPrice,
	models.ProductFieldImage:       models.StepEditAwaitingImage,
}

func parseField(text string) (models.ProductField, bool) {
	switch normalize(text) {
	case "1", "nome":
		return models.ProductFieldName, true
	case "2", "descricao":
		return models.ProductFieldDescription, true
	case "3", "preco", "valor":
		return models.ProductFieldPrice, true
	case "4", "imagem", "foto":
		return models.ProductFieldImage, true
	}
	return "", false
}

func (f *CatalogFlow) pickField(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.EditTargetDraft](s)
	if err != nil {
		return err
	}
	if draft.EditTargetID == "" {
		return fmt.Errorf("%w: no product picked", ErrCorruptedSession)
	}
	field, ok := parseField(text)
	if !ok {
		f.notifier.Text(ctx, s.Phone, msgInvalidOption(len(editFieldSteps)))
		return nil
	}
	draft.Field = field
	if _, err := f.sessions.Upsert(ctx, s.Phone, editFieldSteps[field], s.CategoryID, draft); err != nil {
		return err
	}
	f.notifier.Text(ctx, s.Phone, msgAskField(field, draft.TargetName))
	return nil
}

func (f *CatalogFlow) editValue(ctx context.Context, s *Session, text string) error {
	draft, err := draftAs[models.EditTargetDraft](s)
	if err != nil {
		return err
	}
	if draft.EditTargetID == "" || editFieldSteps[draft.Field] != s.Step {
		return fmt.Errorf("%w: field %q does not match step", ErrCorruptedSession, draft.Field)
	}

	update := models.ProductUpdate{Field: draft.Field}
	switch draft.Field {
	case models.ProductFieldName:
		name, ok := ValidateName(text)
		if !ok {
			f.notifier.Text(ctx, s.Phone, msgInvalidName)
			return nil
		}
		update.Text = name
	case models.ProductFieldDescription:
		description, ok := ValidateDescription(text)
		if !ok {
			f.notifier.Text(ctx, s.Phone, msgInvalidDescription)
			return nil
		}
		update.Text = description
	case models.ProductFieldPrice:
		price, err := ParsePrice(text)
		if err != nil {
			f.notifier.Text(ctx, s.Phone, msgInvalidPrice)
			return nil
		}
		update.Price = price
	case models.ProductFieldImage:
		// skipping on edit removes the current image
		if !IsSkip(text) {
			url, err := ValidateImageURL(text)
			if err != nil {
				f.notifier.Text(ctx, s.Phone, msgInvalidImage)
				return nil
			}
			update.Text = url
		}
	}
	return f.finishEdit(ctx, s, draft, update)
}

func (f *CatalogFlow) finishEdit(ctx context.Context, s *Session, draft models.EditTargetDraft, update models.ProductUpdate) error {
	product, err := f.store.UpdateProduct(ctx, draft.EditTargetID, update)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: product %s no longer exists", ErrCorruptedSession, draft.EditTargetID)
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if _, err := f.sessions.Delete(ctx, s.Phone); err != nil {
		f.logger.Warn("product updated but session not cleared", logger.Phone(s.Phone), zap.Error(err))
	}

	f.logger.Info("product updated", zap.String("product_id", product.ID), zap.String("field", string(update.Field)))
	f.notifier.Run(ctx, Notification{
		Label:    "product_updated",
		To:       s.Phone,
		Text:     productUpdatedSummary(product, update.Field),
		ImageURL: product.ImageURL,
	})
	return nil
}

func (f *CatalogFlow) sendCategoryList(ctx context.Context, phone, title string, draft models.CategoryListDraft) {
	rows := make([]ListRow, 0, len(draft.Categories))
	for _, c := range draft.Categories {
		rows = append(rows, ListRow{ID: categoryReplyPrefix + c.ID, Title: c.Name})
	}
	f.notifier.Run(ctx, Notification{Label: "category_list", To: phone, Text: title, Rows: rows})
}

// parseIndex reads a 1-based list index. Anything else yields 0.
func parseIndex(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ".")))
	if err != nil {
		return 0
	}
	return n
}
