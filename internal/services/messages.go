package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
)

// Outbound message texts. Everything the bot says lives here.

const (
	msgGenericError = "😕 Desculpe, algo deu errado. Tente novamente em instantes."

	msgFlowCancelled  = "❌ Cadastro cancelado. Nada foi salvo."
	msgFlowCorrupted  = "😕 Não consegui continuar seu cadastro. Comece novamente enviando *cadastrar produto* ou *editar produto*."
	msgFlowIncomplete = "😕 Faltaram informações no cadastro. Comece novamente enviando *cadastrar produto*."
	msgCatalogDenied  = "⛔ Apenas o administrador pode alterar o catálogo."
	msgNoCategories   = "⚠️ Nenhuma categoria cadastrada. Cadastre uma categoria antes de adicionar produtos."

	msgChooseCategory     = "📂 Escolha a categoria (responda com o número):"
	msgChooseEditCategory = "✏️ Editar produto\n📂 Escolha a categoria (responda com o número):"
	msgChooseField        = "O que você quer alterar? (responda com o número)\n1. Nome\n2. Descrição\n3. Preço\n4. Imagem"

	msgAskDescription = "📝 Agora envie a descrição do produto (mínimo de 10 caracteres)."
	msgAskPrice       = "💰 Qual o preço? Exemplo: 25,90"
	msgAskImage       = "📷 Envie uma foto do produto, um link (https://...) ou *PULAR* para cadastrar sem imagem."

	msgInvalidName        = "⚠️ O nome precisa ter pelo menos 3 caracteres. Envie novamente."
	msgInvalidDescription = "⚠️ A descrição precisa ter pelo menos 10 caracteres. Envie novamente."
	msgInvalidPrice       = "⚠️ Preço inválido. Envie um valor maior que zero, por exemplo 25,90."
	msgInvalidImage       = "⚠️ Envie uma foto, um link começando com http:// ou https://, ou *PULAR*."
	msgImageFailed        = "😕 Não consegui salvar a imagem. Tente enviar de novo, mande um link ou *PULAR*."
	msgImageNotExpected   = "ℹ️ Não estou esperando uma imagem agora."
	msgFlowStillOpen      = "ℹ️ Seu cadastro de produto continua aberto. Responda a última pergunta ou envie *cancelar* para sair."

	msgInvalidDeliveryCode = "❌ Código de entrega inválido. Confira os 4 dígitos com o cliente."

	msgAdminHelp = `📋 *Comandos do administrador*

• *confirmar pedido #abc12345* - aceita o pedido
• *despachar pedido #abc12345* - envia para entrega e gera o código
• *cancelar pedido #abc12345* - cancela o pedido
• *cadastrar produto* - adiciona um produto ao catálogo
• *editar produto* - altera um produto existente
• *cancelar* - sai do cadastro em andamento

O entregador confirma a entrega enviando o código de 4 dígitos.`
)

func msgSessionExpired(idle time.Duration) string {
	minutes := int(math.Round(idle.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⏰ Seu cadastro expirou após %d minutos sem resposta e foi descartado. Envie *cadastrar produto* ou *editar produto* para recomeçar.", minutes)
}

func msgCategoryChosen(name string) string {
	return fmt.Sprintf("📂 Categoria *%s* selecionada.\n\n✏️ Qual o nome do produto? (mínimo de 3 caracteres)", name)
}

func msgInvalidOption(count int) string {
	return fmt.Sprintf("⚠️ Opção inválida. Responda com um número de 1 a %d.", count)
}

func msgChooseProduct(category string) string {
	return fmt.Sprintf("📦 Produtos em *%s*. Qual você quer editar? (responda com o número)", category)
}

func msgEmptyCategory(category string) string {
	return fmt.Sprintf("⚠️ A categoria *%s* não tem produtos. Escolha outra categoria.", category)
}

func msgAskField(field models.ProductField, product string) string {
	switch field {
	case models.ProductFieldName:
		return fmt.Sprintf("✏️ Envie o novo nome de *%s*.", product)
	case models.ProductFieldDescription:
		return fmt.Sprintf("📝 Envie a nova descrição de *%s* (mínimo de 10 caracteres).", product)
	case models.ProductFieldPrice:
		return fmt.Sprintf("💰 Envie o novo preço de *%s*. Exemplo: 25,90", product)
	default:
		return fmt.Sprintf("📷 Envie a nova foto de *%s*, um link (https://...) ou *PULAR* para remover a imagem.", product)
	}
}

func fieldLabel(field models.ProductField) string {
	switch field {
	case models.ProductFieldName:
		return "Nome"
	case models.ProductFieldDescription:
		return "Descrição"
	case models.ProductFieldPrice:
		return "Preço"
	default:
		return "Imagem"
	}
}

// FormatPrice renders a price as Brazilian reais
func FormatPrice(p decimal.Decimal) string {
	return "R$ " + strings.Replace(p.StringFixed(2), ".", ",", 1)
}

func productSummary(p *models.Product, category string) string {
	var b strings.Builder
	b.WriteString("✅ *Produto cadastrado!*\n\n")
	fmt.Fprintf(&b, "📂 Categoria: %s\n", category)
	fmt.Fprintf(&b, "🏷️ Nome: %s\n", p.Name)
	fmt.Fprintf(&b, "📝 Descrição: %s\n", p.Description)
	fmt.Fprintf(&b, "💰 Preço: %s", FormatPrice(p.Price))
	if p.ImageURL == "" {
		b.WriteString("\n📷 Sem imagem")
	}
	return b.String()
}

func productUpdatedSummary(p *models.Product, field models.ProductField) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *%s* atualizado!\n\n", fieldLabel(field))
	fmt.Fprintf(&b, "🏷️ Nome: %s\n", p.Name)
	fmt.Fprintf(&b, "📝 Descrição: %s\n", p.Description)
	fmt.Fprintf(&b, "💰 Preço: %s", FormatPrice(p.Price))
	if p.ImageURL == "" {
		b.WriteString("\n📷 Sem imagem")
	}
	return b.String()
}

// StatusLabel returns the customer-facing name of a status
func StatusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusNew:
		return "aguardando confirmação"
	case models.OrderStatusPreparing:
		return "em preparo"
	case models.OrderStatusOutForDelivery:
		return "em rota de entrega"
	case models.OrderStatusDelivered:
		return "entregue"
	case models.OrderStatusCancelled:
		return "cancelado"
	}
	return string(s)
}

func msgOrderNotFound(shortCode string) string {
	return fmt.Sprintf("❓ Pedido #%s não encontrado.", shortCode)
}

func msgOrderAmbiguous(shortCode string) string {
	return fmt.Sprintf("⚠️ Mais de um pedido começa com #%s. Envie mais caracteres do código do pedido.", shortCode)
}

// explainRejected says why order cannot move to target
func explainRejected(order *models.Order, target models.OrderStatus) string {
	code := order.ShortCode()
	current := StatusLabel(order.Status)

	switch target {
	case models.OrderStatusPreparing:
		return fmt.Sprintf("ℹ️ Pedido #%s já está %s. Nada a confirmar.", code, current)
	case models.OrderStatusOutForDelivery:
		if order.Status == models.OrderStatusNew {
			return fmt.Sprintf("⚠️ Pedido #%s ainda não foi confirmado. Envie *confirmar pedido #%s* primeiro.", code, code)
		}
		return fmt.Sprintf("⚠️ Pedido #%s está %s e não pode ser despachado.", code, current)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("⚠️ Pedido #%s já está %s e não pode ser cancelado.", code, current)
	case models.OrderStatusDelivered:
		if order.Status == target {
			return fmt.Sprintf("ℹ️ Pedido #%s já foi entregue.", code)
		}
		return fmt.Sprintf("⚠️ Pedido #%s está %s, só pode ser entregue depois de despachado.", code, current)
	}
	return fmt.Sprintf("⚠️ Pedido #%s está %s.", code, current)
}

func orderItemsText(order *models.Order) string {
	var b strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&b, "\n• %dx %s", item.Quantity, item.ProductName)
	}
	fmt.Fprintf(&b, "\n💰 Total: %s", FormatPrice(order.Total))
	return b.String()
}

func msgAdminConfirmed(order *models.Order) string {
	code := order.ShortCode()
	return fmt.Sprintf("✅ Pedido #%s confirmado e em preparo.%s\n\nQuando sair para entrega envie *despachar pedido #%s*.",
		code, orderItemsText(order), code)
}

func msgCustomerConfirmed(order *models.Order) string {
	return fmt.Sprintf("✅ Seu pedido #%s foi confirmado e já está sendo preparado! 👨‍🍳", order.ShortCode())
}

func msgAdminDispatched(order *models.Order) string {
	return fmt.Sprintf("🛵 Pedido #%s saiu para entrega.\n🔑 Código de entrega: *%s*\n\nO entregador confirma a entrega enviando esse código.",
		order.ShortCode(), deref(order.DeliveryCode))
}

func msgCustomerDispatched(order *models.Order) string {
	return fmt.Sprintf("🛵 Seu pedido #%s saiu para entrega!\n🔑 Código de entrega: *%s*\n\nInforme esse código ao entregador quando ele chegar.",
		order.ShortCode(), deref(order.DeliveryCode))
}

func msgAdminCancelled(order *models.Order) string {
	return fmt.Sprintf("❌ Pedido #%s cancelado.", order.ShortCode())
}

func msgCustomerCancelled(order *models.Order) string {
	return fmt.Sprintf("❌ Seu pedido #%s foi cancelado. Se tiver dúvidas, fale com a gente por aqui.", order.ShortCode())
}

func msgDeliveryConfirmed(order *models.Order) string {
	return fmt.Sprintf("✅ Entrega do pedido #%s confirmada. Obrigado!", order.ShortCode())
}

func msgAdminDelivered(order *models.Order) string {
	return fmt.Sprintf("📦 Pedido #%s entregue.", order.ShortCode())
}

func msgCustomerDelivered(order *models.Order) string {
	return fmt.Sprintf("📦 Seu pedido #%s foi entregue. Bom apetite! 😋", order.ShortCode())
}

func msgDeliveryReminder(orders []*models.Order, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %d pedido(s) em rota há muito tempo:\n", len(orders))
	for _, o := range orders {
		fmt.Fprintf(&b, "\n• #%s - código %s - há %d min", o.ShortCode(), deref(o.DeliveryCode), int(now.Sub(o.UpdatedAt).Minutes()))
	}
	b.WriteString("\n\nConfira com o entregador se a entrega foi feita.")
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
