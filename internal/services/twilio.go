package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/logger"
)

// ListRow is one selectable entry of a list message
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// Dispatcher sends outbound WhatsApp messages. Sends are best-effort;
// callers log failures and carry on.
type Dispatcher interface {
	SendText(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to, imageURL, caption string) error
	SendList(ctx context.Context, to, title string, rows []ListRow) error
}

// TwilioService sends WhatsApp messages through the Twilio REST API
type TwilioService struct {
	client *twilio.RestClient
	from   string // Format: "whatsapp:+14155238886"
	logger *zap.Logger
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg config.TwilioConfig, log *zap.Logger) (*TwilioService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	from := cfg.WhatsAppFrom
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	return &TwilioService{client: client, from: from, logger: log}, nil
}

// SendText sends a plain WhatsApp message
func (t *TwilioService) SendText(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetBody(body)
	return t.create(params, to)
}

// SendImage sends an image with an optional caption
func (t *TwilioService) SendImage(ctx context.Context, to, imageURL, caption string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetMediaUrl([]string{imageURL})
	if caption != "" {
		params.SetBody(caption)
	}
	return t.create(params, to)
}

// SendList sends a list as numbered text. Native list pickers need an
// approved content template per list, which a dynamic catalog cannot have.
func (t *TwilioService) SendList(ctx context.Context, to, title string, rows []ListRow) error {
	return t.SendText(ctx, to, RenderList(title, rows))
}

func (t *TwilioService) create(params *twilioApi.CreateMessageParams, to string) error {
	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.logger.Debug("WhatsApp message sent", logger.Phone(to), zap.String("sid", sid))
	return nil
}

func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// RenderList formats rows as a numbered list under title
func RenderList(title string, rows []ListRow) string {
	var b strings.Builder
	b.WriteString(title)
	for i, row := range rows {
		fmt.Fprintf(&b, "\n%d. %s", i+1, row.Title)
		if row.Description != "" {
			fmt.Fprintf(&b, " - %s", row.Description)
		}
	}
	return b.String()
}

// LogDispatcher logs outbound messages instead of sending them. Used when
// Twilio is not configured.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a LogDispatcher
func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log}
}

func (d *LogDispatcher) SendText(ctx context.Context, to, body string) error {
	d.logger.Info("Response not sent - Twilio not configured", logger.Phone(to), zap.String("body", body))
	return nil
}

func (d *LogDispatcher) SendImage(ctx context.Context, to, imageURL, caption string) error {
	d.logger.Info("Image not sent - Twilio not configured", logger.Phone(to),
		zap.String("image_url", imageURL), zap.String("caption", caption))
	return nil
}

func (d *LogDispatcher) SendList(ctx context.Context, to, title string, rows []ListRow) error {
	return d.SendText(ctx, to, RenderList(title, rows))
}

var (
	_ Dispatcher = (*TwilioService)(nil)
	_ Dispatcher = (*LogDispatcher)(nil)
)
