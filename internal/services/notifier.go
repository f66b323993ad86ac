package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/metrics"
)

// Notification is one outbound message of a notification batch
type Notification struct {
	Label    string
	To       string
	Text     string
	ImageURL string
	Rows     []ListRow
}

// Notifier runs outbound sends with a per-send timeout. A failed send is
// logged and never aborts the remaining ones, so it must only be used after
// the state change it reports is committed.
type Notifier struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewNotifier creates a Notifier
func NewNotifier(dispatcher Dispatcher, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{dispatcher: dispatcher, timeout: timeout, logger: log, metrics: m}
}

// Run sends the notifications in order. It returns how many were delivered
// to the gateway.
func (n *Notifier) Run(ctx context.Context, batch ...Notification) int {
	sent := 0
	for _, item := range batch {
		if item.To == "" {
			n.logger.Debug("notification skipped, no recipient", zap.String("label", item.Label))
			continue
		}
		if n.send(ctx, item) {
			sent++
		}
	}
	return sent
}

// Text sends a single text message, best-effort
func (n *Notifier) Text(ctx context.Context, to, text string) bool {
	return n.Run(ctx, Notification{Label: "reply", To: to, Text: text}) == 1
}

func (n *Notifier) send(ctx context.Context, item Notification) (ok bool) {
	sendCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notification panicked", zap.String("label", item.Label), zap.Any("panic", r))
			ok = false
		}
		n.metrics.Notification(ok)
	}()

	var err error
	switch {
	case len(item.Rows) > 0:
		err = n.dispatcher.SendList(sendCtx, item.To, item.Text, item.Rows)
	case item.ImageURL != "":
		err = n.dispatcher.SendImage(sendCtx, item.To, item.ImageURL, item.Text)
	default:
		err = n.dispatcher.SendText(sendCtx, item.To, item.Text)
	}
	if err != nil {
		n.logger.Warn("notification failed",
			zap.String("label", item.Label),
			logger.Phone(item.To),
			zap.Error(err),
		)
		return false
	}
	return true
}
