package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
)

func text(s string) InboundMessage {
	return InboundMessage{From: "+5511900000001", Kind: KindText, Text: s}
}

func sessionAt(step models.Step) *Session {
	return &Session{Phone: "+5511900000001", Step: step}
}

func TestClassify_Precedence(t *testing.T) {
	expired := sessionAt(models.StepAwaitingName)
	expired.Expired = true

	tests := []struct {
		name    string
		msg     InboundMessage
		session *Session
		admin   bool
		want    CommandKind
	}{
		{"expired session wins over cancel", text("cancelar"), expired, true, CmdExpired},
		{"expired session wins over order command", text("confirmar pedido #a1b2c3d4"), expired, true, CmdExpired},
		{"cancel utterance ends wizard", text("Cancelar!"), sessionAt(models.StepAwaitingName), false, CmdCancelFlow},
		{"cancel without session is ignored", text("cancelar"), nil, false, CmdIgnore},
		{"image at image step", InboundMessage{Kind: KindImage}, sessionAt(models.StepAwaitingImage), false, CmdFlowImage},
		{"image elsewhere is ignored", InboundMessage{Kind: KindImage}, sessionAt(models.StepAwaitingName), false, CmdIgnore},
		{"admin order command mid-wizard", text("confirmar pedido #a1b2c3d4"), sessionAt(models.StepAwaitingName), true, CmdOrderAction},
		{"order command from non-admin", text("confirmar pedido #a1b2c3d4"), nil, false, CmdIgnore},
		{"order command from non-admin mid-wizard is wizard input", text("confirmar pedido #a1b2c3d4"), sessionAt(models.StepAwaitingName), false, CmdContinueFlow},
		{"delivery code from anyone", text("4821"), nil, false, CmdDeliveryCode},
		{"delivery code beats wizard", text("4821"), sessionAt(models.StepAwaitingDescription), false, CmdDeliveryCode},
		{"four digits at price step is a price", text("1500"), sessionAt(models.StepAwaitingPrice), true, CmdContinueFlow},
		{"create trigger", text("Quero cadastrar um produto"), nil, false, CmdStartCreate},
		{"edit trigger", text("editar produto"), nil, true, CmdStartEdit},
		{"create trigger restarts wizard", text("novo produto"), sessionAt(models.StepAwaitingPrice), true, CmdStartCreate},
		{"category list reply", InboundMessage{Kind: KindReply, ReplyID: "cat:abc"}, sessionAt(models.StepAwaitingCategory), false, CmdFlowSelect},
		{"order list reply from admin", InboundMessage{Kind: KindReply, ReplyID: "order:confirm:a1b2c3d4"}, nil, true, CmdOrderReply},
		{"order list reply from customer", InboundMessage{Kind: KindReply, ReplyID: "order:confirm:a1b2c3d4"}, nil, false, CmdIgnore},
		{"admin help", text("Ajuda"), nil, true, CmdAdminHelp},
		{"help for customers is ignored", text("ajuda"), nil, false, CmdIgnore},
		{"free text continues wizard", text("Margherita"), sessionAt(models.StepAwaitingName), false, CmdContinueFlow},
		{"free text without session", text("oi"), nil, false, CmdIgnore},
		{"blank text mid-wizard is dropped", text("   "), sessionAt(models.StepAwaitingName), false, CmdIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg, tt.session, tt.admin, false)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestClassify_OrderCommandForms(t *testing.T) {
	tests := []struct {
		in     string
		action OrderAction
		code   string
	}{
		{"confirmar pedido #a1b2c3d4", ActionConfirm, "a1b2c3d4"},
		{"Confirmar #A1B2C3D4", ActionConfirm, "a1b2c3d4"},
		{"confirma a1b2c3d4", ActionConfirm, "a1b2c3d4"},
		{"cancelar pedido #ffee0011", ActionCancel, "ffee0011"},
		{"despachar pedido #00aa11bb", ActionDispatch, "00aa11bb"},
		{"pode enviar o pedido #00aa11bb", ActionDispatch, "00aa11bb"},
		{"dispatch order #00aa11bb-1234", ActionDispatch, "00aa11bb-1234"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Classify(text(tt.in), nil, true, false)
			assert.Equal(t, CmdOrderAction, got.Kind)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.code, got.ShortCode)
		})
	}

	for _, in := range []string{"confirmar pedido", "confirmar pedido #xyz12345", "confirmar pedido #a1b2c3"} {
		assert.Equal(t, CmdIgnore, Classify(text(in), nil, true, false).Kind, in)
	}
}

func TestClassify_CatalogAdminOnly(t *testing.T) {
	got := Classify(text("cadastrar produto"), nil, false, true)
	assert.Equal(t, CmdCatalogDenied, got.Kind)

	got = Classify(text("cadastrar produto"), nil, true, true)
	assert.Equal(t, CmdStartCreate, got.Kind)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "descricao", normalize("  Descrição "))
	assert.Equal(t, "cancelar", normalize("CANCELAR!!"))
	assert.Equal(t, "editar produto", normalize("Editar   Produto."))
}
