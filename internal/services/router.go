package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/media"
	"github.com/Ananth-NQI/delivery-backend/internal/metrics"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// Router classifies each inbound message and hands it to exactly one
// handler. It never returns an error to the transport: failures are logged
// and answered with a generic apology.
type Router struct {
	cfg      config.BotConfig
	sessions *SessionStore
	flow     *CatalogFlow
	orders   *OrderLifecycle
	notifier *Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates a Router
func NewRouter(cfg config.BotConfig, sessions *SessionStore, flow *CatalogFlow, orders *OrderLifecycle, notifier *Notifier, log *zap.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		cfg:      cfg,
		sessions: sessions,
		flow:     flow,
		orders:   orders,
		notifier: notifier,
		logger:   log,
		metrics:  m,
	}
}

// Process handles one inbound message end to end
func (r *Router) Process(ctx context.Context, msg InboundMessage) {
	log := r.logger.With(zap.String("message_sid", msg.ID), logger.Phone(msg.From))

	cmd, err := r.route(ctx, msg, log)
	if cmd.Kind != "" {
		r.metrics.Event(string(cmd.Kind))
	}
	if err != nil {
		log.Error("failed to process message", zap.String("command", string(cmd.Kind)), zap.Error(err))
		r.metrics.Event("error")
		r.notifier.Text(ctx, msg.From, msgGenericError)
	}
}

func (r *Router) route(ctx context.Context, msg InboundMessage, log *zap.Logger) (cmd Command, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			log.Error("panic while routing message", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
		}
	}()

	if msg.From == "" {
		return Command{Kind: CmdIgnore}, nil
	}
	if r.cfg.BotPhone != "" && msg.From == r.cfg.BotPhone {
		log.Debug("ignoring message sent by the bot itself")
		return Command{Kind: CmdIgnore}, nil
	}

	session, err := r.sessions.Get(ctx, msg.From)
	if err != nil {
		return Command{Kind: CmdIgnore}, err
	}

	isAdmin := msg.From == r.cfg.AdminPhone
	cmd = Classify(msg, session, isAdmin, r.cfg.CatalogAdminOnly)
	log.Debug("message classified", zap.String("command", string(cmd.Kind)), zap.Bool("admin", isAdmin))

	return cmd, r.dispatch(ctx, msg, session, cmd)
}

func (r *Router) dispatch(ctx context.Context, msg InboundMessage, session *Session, cmd Command) error {
	switch cmd.Kind {
	case CmdExpired:
		if _, err := r.sessions.Delete(ctx, msg.From); err != nil {
			return err
		}
		r.notifier.Text(ctx, msg.From, msgSessionExpired(session.IdleFor))
		return nil

	case CmdCancelFlow:
		_, err := r.flow.Cancel(ctx, msg.From)
		return err

	case CmdFlowImage:
		return r.flow.AttachImage(ctx, session, media.Ref{
			MessageSID:  msg.ID,
			URL:         msg.MediaURL,
			ContentType: msg.MediaContentType,
		})

	case CmdOrderAction, CmdOrderReply:
		return r.orderAction(ctx, msg.From, cmd.Action, cmd.ShortCode, session != nil)

	case CmdDeliveryCode:
		return r.deliveryCode(ctx, msg.From, cmd.Code)

	case CmdStartCreate:
		return r.flow.StartCreate(ctx, msg.From)

	case CmdStartEdit:
		return r.flow.StartEdit(ctx, msg.From)

	case CmdCatalogDenied:
		r.notifier.Text(ctx, msg.From, msgCatalogDenied)
		return nil

	case CmdFlowSelect:
		return r.flow.Select(ctx, session, cmd.ReplyID)

	case CmdAdminHelp:
		r.notifier.Text(ctx, msg.From, msgAdminHelp)
		return nil

	case CmdContinueFlow:
		return r.flow.Continue(ctx, session, msg.Text)
	}
	return nil
}

// orderAction runs an admin command. A wizard in progress is left as is so
// the admin can resume it afterwards.
func (r *Router) orderAction(ctx context.Context, from string, action OrderAction, shortCode string, inFlow bool) error {
	result, err := r.orders.Apply(ctx, action, shortCode)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r.notifier.Text(ctx, from, msgOrderNotFound(shortCode))
		return nil
	case errors.Is(err, storage.ErrAmbiguousShortCode):
		r.notifier.Text(ctx, from, msgOrderAmbiguous(shortCode))
		return nil
	case err != nil:
		return err
	}

	if !result.Applied {
		r.notifier.Text(ctx, from, result.Reason)
	}
	if inFlow {
		r.notifier.Text(ctx, from, msgFlowStillOpen)
	}
	return nil
}

func (r *Router) deliveryCode(ctx context.Context, from, code string) error {
	_, err := r.orders.DeliverByCode(ctx, code, from)
	if errors.Is(err, storage.ErrNotFound) {
		r.notifier.Text(ctx, from, msgInvalidDeliveryCode)
		return nil
	}
	return err
}
