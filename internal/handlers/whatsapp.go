package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/cache"
	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/media"
	"github.com/Ananth-NQI/delivery-backend/internal/services"
)

// MessageProcessor handles one normalized inbound message
type MessageProcessor interface {
	Process(ctx context.Context, msg services.InboundMessage)
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	processor MessageProcessor
	dedup     cache.Deduplicator
	dedupTTL  time.Duration
	logger    *zap.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler. dedup may be nil.
func NewWhatsAppHandler(processor MessageProcessor, dedup cache.Deduplicator, dedupTTL time.Duration, log *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		processor: processor,
		dedup:     dedup,
		dedupTTL:  dedupTTL,
		logger:    log,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // whatsapp:+5511999999999
	To                string `form:"To"`   // the bot number
	Body              string `form:"Body"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	ButtonPayload     string `form:"ButtonPayload"`
	ButtonText        string `form:"ButtonText"`
	ListId            string `form:"ListId"`
	ListTitle         string `form:"ListTitle"`
}

// Message converts the payload to the router's message shape
func (p TwilioWebhookPayload) Message() services.InboundMessage {
	msg := services.InboundMessage{
		ID:   p.MessageSid,
		From: config.NormalizePhone(p.From),
		To:   config.NormalizePhone(p.To),
		Kind: services.KindText,
		Text: p.Body,
	}

	numMedia, _ := strconv.Atoi(p.NumMedia)
	switch {
	case numMedia > 0 && media.IsImage(p.MediaContentType0):
		msg.Kind = services.KindImage
		msg.MediaURL = p.MediaUrl0
		msg.MediaContentType = p.MediaContentType0
	case p.ListId != "":
		msg.Kind = services.KindReply
		msg.ReplyID = p.ListId
		msg.Text = firstNonEmpty(p.ListTitle, p.Body)
	case p.ButtonPayload != "":
		msg.Kind = services.KindReply
		msg.ReplyID = p.ButtonPayload
		msg.Text = firstNonEmpty(p.ButtonText, p.Body)
	}
	return msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// HandleWebhook processes incoming WhatsApp messages. The gateway always
// gets 200 so it does not redeliver; failures are handled inside.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("unparseable webhook payload", zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	msg := payload.Message()
	if msg.From == "" {
		// status callbacks carry no sender
		return c.SendStatus(fiber.StatusOK)
	}

	if msg.ID != "" && h.dedup != nil {
		fresh, err := h.dedup.MarkProcessed(c.UserContext(), msg.ID, h.dedupTTL)
		if err != nil {
			h.logger.Warn("dedup check failed, processing anyway", zap.String("message_sid", msg.ID), zap.Error(err))
		} else if !fresh {
			h.logger.Info("duplicate webhook delivery ignored", zap.String("message_sid", msg.ID))
			return c.SendStatus(fiber.StatusOK)
		}
	}

	h.logger.Info("WhatsApp message received",
		zap.String("message_sid", msg.ID),
		logger.Phone(msg.From),
		zap.String("kind", string(msg.Kind)),
	)
	h.processor.Process(c.UserContext(), msg)
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is a JSON stand-in for the Twilio form, for development
type TestWebhookPayload struct {
	From             string `json:"from" validate:"required"`
	Message          string `json:"message"`
	ReplyID          string `json:"reply_id"`
	MediaURL         string `json:"media_url"`
	MediaContentType string `json:"media_content_type"`
}

// HandleTestWebhook processes test WhatsApp messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	msg := services.InboundMessage{
		ID:   "TEST" + strconv.FormatInt(time.Now().UnixNano(), 10),
		From: config.NormalizePhone(payload.From),
		Kind: services.KindText,
		Text: payload.Message,
	}
	switch {
	case payload.MediaURL != "":
		msg.Kind = services.KindImage
		msg.MediaURL = payload.MediaURL
		msg.MediaContentType = payload.MediaContentType
	case payload.ReplyID != "":
		msg.Kind = services.KindReply
		msg.ReplyID = payload.ReplyID
	}

	h.logger.Info("test webhook received", logger.Phone(msg.From), zap.String("kind", string(msg.Kind)))
	h.processor.Process(c.UserContext(), msg)

	return c.JSON(fiber.Map{
		"success":    true,
		"message_id": msg.ID,
	})
}
