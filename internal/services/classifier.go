package services

import (
	"regexp"
	"strings"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/utils"
)

// MessageKind is the shape of an inbound message
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindReply MessageKind = "reply"
)

// InboundMessage is a normalized inbound WhatsApp message
type InboundMessage struct {
	ID               string
	From             string
	To               string
	Kind             MessageKind
	Text             string
	ReplyID          string
	MediaURL         string
	MediaContentType string
}

// CommandKind identifies what the router does with a message
type CommandKind string

const (
	CmdIgnore        CommandKind = "ignore"
	CmdExpired       CommandKind = "session_expired"
	CmdCancelFlow    CommandKind = "cancel_flow"
	CmdFlowImage     CommandKind = "flow_image"
	CmdOrderAction   CommandKind = "order_action"
	CmdDeliveryCode  CommandKind = "delivery_code"
	CmdStartCreate   CommandKind = "start_create"
	CmdStartEdit     CommandKind = "start_edit"
	CmdOrderReply    CommandKind = "order_reply"
	CmdFlowSelect    CommandKind = "flow_select"
	CmdAdminHelp     CommandKind = "admin_help"
	CmdContinueFlow  CommandKind = "continue_flow"
	CmdCatalogDenied CommandKind = "catalog_denied"
)

// Command is the classification of one inbound message
type Command struct {
	Kind      CommandKind
	Action    OrderAction
	ShortCode string
	Code      string
	ReplyID   string
}

var (
	cancelUtterances = map[string]bool{
		"cancelar": true,
		"cancela":  true,
		"cancel":   true,
		"sair":     true,
	}
	helpUtterances = map[string]bool{
		"ajuda":    true,
		"menu":     true,
		"help":     true,
		"comandos": true,
	}

	orderCommandPattern = regexp.MustCompile(`^(?:\w+\s+)?(confirmar|confirma|confirm|cancelar|cancela|cancel|despachar|despacha|dispatch|enviar)\s+(?:o\s+)?(?:pedido|order)?\s*#?([0-9a-f][0-9a-f-]{7,35})$`)
	createPattern       = regexp.MustCompile(`\b(cadastrar|adicionar|criar|incluir|novo)\s+(?:um\s+|novo\s+)?produto\b`)
	editPattern         = regexp.MustCompile(`\b(editar|alterar|atualizar|mudar)\s+(?:um\s+|o\s+)?produto\b`)
	orderReplyPattern   = regexp.MustCompile(`^order:(confirm|cancel|dispatch):([0-9a-f-]{8,36})$`)
)

var orderVerbs = map[string]OrderAction{
	"confirmar": ActionConfirm,
	"confirma":  ActionConfirm,
	"confirm":   ActionConfirm,
	"cancelar":  ActionCancel,
	"cancela":   ActionCancel,
	"cancel":    ActionCancel,
	"despachar": ActionDispatch,
	"despacha":  ActionDispatch,
	"dispatch":  ActionDispatch,
	"enviar":    ActionDispatch,
}

// classifyInput is everything a matcher may look at
type classifyInput struct {
	msg              InboundMessage
	text             string
	session          *Session
	isAdmin          bool
	catalogAdminOnly bool
}

type matcher struct {
	name  string
	match func(in classifyInput) (Command, bool)
}

// matchers run in order; the first match wins. The order is load-bearing:
// an expired session is discarded before anything reads it, and the
// wizard only sees text no command claimed.
var matchers = []matcher{
	{"expired", matchExpired},
	{"cancel_flow", matchCancelFlow},
	{"flow_image", matchFlowImage},
	{"order_action", matchOrderAction},
	{"delivery_code", matchDeliveryCode},
	{"start_flow", matchStartFlow},
	{"structured_reply", matchStructuredReply},
	{"admin_help", matchAdminHelp},
	{"continue_flow", matchContinueFlow},
}

// Classify decides what to do with msg given the sender's session
func Classify(msg InboundMessage, session *Session, isAdmin, catalogAdminOnly bool) Command {
	in := classifyInput{
		msg:              msg,
		text:             normalize(msg.Text),
		session:          session,
		isAdmin:          isAdmin,
		catalogAdminOnly: catalogAdminOnly,
	}
	if msg.Kind == KindText && in.text == "" {
		return Command{Kind: CmdIgnore}
	}
	for _, m := range matchers {
		if cmd, ok := m.match(in); ok {
			return cmd
		}
	}
	return Command{Kind: CmdIgnore}
}

func matchExpired(in classifyInput) (Command, bool) {
	if in.session != nil && in.session.Expired {
		return Command{Kind: CmdExpired}, true
	}
	return Command{}, false
}

func matchCancelFlow(in classifyInput) (Command, bool) {
	if in.session != nil && in.msg.Kind == KindText && cancelUtterances[in.text] {
		return Command{Kind: CmdCancelFlow}, true
	}
	return Command{}, false
}

func matchFlowImage(in classifyInput) (Command, bool) {
	if in.session != nil && in.msg.Kind == KindImage && in.session.Step.ExpectsImage() {
		return Command{Kind: CmdFlowImage}, true
	}
	return Command{}, false
}

func matchOrderAction(in classifyInput) (Command, bool) {
	if !in.isAdmin || in.msg.Kind != KindText {
		return Command{}, false
	}
	m := orderCommandPattern.FindStringSubmatch(in.text)
	if m == nil {
		return Command{}, false
	}
	return Command{Kind: CmdOrderAction, Action: orderVerbs[m[1]], ShortCode: m[2]}, true
}

// matchDeliveryCode accepts a code from any sender. A price step takes a
// bare four-digit number as the price instead.
func matchDeliveryCode(in classifyInput) (Command, bool) {
	if in.msg.Kind != KindText {
		return Command{}, false
	}
	code := strings.TrimSpace(in.msg.Text)
	if !utils.IsDeliveryCode(code) {
		return Command{}, false
	}
	if in.session != nil && (in.session.Step == models.StepAwaitingPrice || in.session.Step == models.StepEditAwaitingPrice) {
		return Command{}, false
	}
	return Command{Kind: CmdDeliveryCode, Code: code}, true
}

func matchStartFlow(in classifyInput) (Command, bool) {
	if in.msg.Kind != KindText {
		return Command{}, false
	}
	var kind CommandKind
	switch {
	case editPattern.MatchString(in.text):
		kind = CmdStartEdit
	case createPattern.MatchString(in.text):
		kind = CmdStartCreate
	default:
		return Command{}, false
	}
	if in.catalogAdminOnly && !in.isAdmin {
		return Command{Kind: CmdCatalogDenied}, true
	}
	return Command{Kind: kind}, true
}

func matchStructuredReply(in classifyInput) (Command, bool) {
	if in.msg.Kind != KindReply || in.msg.ReplyID == "" {
		return Command{}, false
	}
	id := strings.ToLower(strings.TrimSpace(in.msg.ReplyID))
	if m := orderReplyPattern.FindStringSubmatch(id); m != nil {
		if !in.isAdmin {
			return Command{Kind: CmdIgnore}, true
		}
		return Command{Kind: CmdOrderReply, Action: OrderAction(m[1]), ShortCode: m[2]}, true
	}
	if in.session != nil {
		return Command{Kind: CmdFlowSelect, ReplyID: strings.TrimSpace(in.msg.ReplyID)}, true
	}
	return Command{Kind: CmdIgnore}, true
}

func matchAdminHelp(in classifyInput) (Command, bool) {
	if in.isAdmin && in.session == nil && in.msg.Kind == KindText && helpUtterances[in.text] {
		return Command{Kind: CmdAdminHelp}, true
	}
	return Command{}, false
}

func matchContinueFlow(in classifyInput) (Command, bool) {
	if in.session == nil || in.msg.Kind != KindText {
		return Command{}, false
	}
	return Command{Kind: CmdContinueFlow}, true
}
