package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/telehostca/chatbot-backend/internal/models"
)

// Response composer. Every user-facing text of the conversation lives here.

const mainMenu = `*Menú principal*
1️⃣ Buscar productos
2️⃣ Ver carrito
3️⃣ Finalizar compra
4️⃣ Ayuda
5️⃣ Salir

También puedes escribir directamente lo que buscas, por ejemplo: _harina pan_`

// MainMenu returns the menu text
func MainMenu() string {
	return mainMenu
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.Spanish).String(fields[0])
}

// WelcomeKnown greets an authenticated customer
func WelcomeKnown(name string) string {
	return fmt.Sprintf("👋 ¡Hola %s! Qué bueno verte de nuevo.\n\n%s", firstName(name), mainMenu)
}

// AlreadyIdentified answers an ID number sent by a customer who is already identified
func AlreadyIdentified(name, idNumber string) string {
	return fmt.Sprintf("✅ Ya estás identificado como *%s* (%s).\n\n%s", name, idNumber, mainMenu)
}

// WelcomeBack greets a customer whose session was reactivated after inactivity
func WelcomeBack(name string) string {
	if name == "" {
		return "👋 ¡Hola de nuevo! Para continuar, indícame tu número de cédula o RIF."
	}
	return fmt.Sprintf("👋 ¡Hola de nuevo %s! Tu sesión anterior expiró por inactividad, pero tu carrito sigue guardado.\n\n%s",
		firstName(name), mainMenu)
}

// WelcomeNew asks an unknown sender to identify
func WelcomeNew() string {
	return `👋 ¡Bienvenido!

No encontramos tu número en nuestros registros. Para atenderte, envíame tu *cédula o RIF*.
Ejemplo: V12345678

Si solo quieres ver precios, escribe el producto que buscas.`
}

// AskIDNumber re-prompts for an ID number
func AskIDNumber() string {
	return "🪪 Para continuar necesito tu *cédula o RIF* (6 a 9 dígitos).\nEjemplo: V12345678"
}

// AskName starts the registration sub-flow
func AskName(idNumber string) string {
	return fmt.Sprintf(`📝 No encontramos la cédula *%s* en nuestros registros.

Vamos a registrarte. Escribe tu *nombre y apellido*.
(Escribe _cancelar_ para volver)`, idNumber)
}

// InvalidName explains the name rule
func InvalidName() string {
	return "❌ Escribe tu nombre y apellido usando solo letras.\nEjemplo: Maria Perez"
}

// RegistrationDone confirms a new customer record
func RegistrationDone(c *models.Customer) string {
	return fmt.Sprintf("✅ *¡Registro exitoso!*\n\n*Cliente:* %s\n*Cédula:* %s\n\n%s", c.Name, c.IDNumber, mainMenu)
}

// RegistrationCancelled returns to identification
func RegistrationCancelled() string {
	return "Registro cancelado. Cuando quieras, envíame tu cédula o RIF."
}

// Goodbye confirms menu option 5
func Goodbye() string {
	return "👋 Sesión cerrada. ¡Gracias por tu visita! Escribe cuando quieras volver."
}

// Help lists the shorthand the engine understands
func Help() string {
	return `ℹ️ *¿Cómo comprar?*

🔍 Escribe lo que buscas: _harina pan_ o _arroz y aceite_
🛒 Agrega con el número del resultado: _el 2_, _agregar 3 del producto 1_ o _1.2_
📋 _ver carrito_ para revisar tu pedido
🗑️ _quitar el 1_ o _vaciar carrito_
✏️ _cambiar el 2 a 3_ para ajustar una cantidad
💳 _pagar_ para finalizar la compra
❌ _cancelar_ durante el pago para salir

` + mainMenu
}

// Unknown answers a message no intent matched
func Unknown() string {
	return "🤔 No entendí tu mensaje. Escribe el nombre de un producto o elige una opción.\n\n" + mainMenu
}

// SearchPrompt answers menu option 1
func SearchPrompt() string {
	return "🔍 ¿Qué producto buscas? Escribe el nombre, por ejemplo: _aceite_ o _harina y arroz_"
}

// SearchResults lists the last search. Labels are what the customer types to pick an item.
func SearchResults(sc *models.SearchContext) string {
	var b strings.Builder
	if sc.Multi() {
		b.WriteString("🔍 *Resultados*\n")
		for _, g := range sc.Groups {
			fmt.Fprintf(&b, "\n*%s*\n", strings.ToUpper(g.Term))
			if len(g.Items) == 0 {
				b.WriteString("   Sin resultados\n")
				continue
			}
			for _, it := range g.Items {
				fmt.Fprintf(&b, "*%s.* %s - $%.2f\n", it.Label, it.Name, it.Price)
			}
		}
		b.WriteString("\nPara agregar escribe el número, por ejemplo: _1.2_ o _agregar 2 del 1.1_")
		return b.String()
	}

	fmt.Fprintf(&b, "🔍 *Resultados para \"%s\"*\n\n", sc.Query)
	for _, it := range sc.Flatten() {
		fmt.Fprintf(&b, "*%s.* %s - $%.2f\n", it.Label, it.Name, it.Price)
	}
	b.WriteString("\nPara agregar escribe el número, por ejemplo: _el 1_ o _agregar 2 del producto 1_")
	return b.String()
}

// NoResults answers an empty search, offering alternatives from the customer's history
func NoResults(query string, alternatives []string) string {
	msg := fmt.Sprintf("😕 No encontré productos para \"%s\".", query)
	if len(alternatives) > 0 {
		msg += "\n\nQuizás te interese:\n"
		for _, alt := range alternatives {
			msg += "• " + alt + "\n"
		}
		return strings.TrimRight(msg, "\n")
	}
	return msg + "\n\nIntenta con otra palabra, por ejemplo la marca o el tipo de producto."
}

// NeedSearchFirst answers a product reference without a previous search
func NeedSearchFirst() string {
	return "🔍 Primero busca un producto. Escribe su nombre, por ejemplo: _harina_"
}

// RefNotFound answers an ordinal outside the last results
func RefNotFound(ref ProductRef) string {
	return fmt.Sprintf("❌ No encontré el producto *%s* en la última búsqueda. Elige un número de la lista.", ref)
}

// AskWhichProduct answers an add/remove without a reference
func AskWhichProduct() string {
	return "¿Cuál producto? Indica el número, por ejemplo: _el 2_"
}

func formatTotals(t models.CartTotals) string {
	return fmt.Sprintf("*Total:* $%.2f | Bs. %.2f (%d artículos)", t.TotalUSD, t.TotalBs, t.ItemCount)
}

// ItemAdded confirms an add and shows the new totals
func ItemAdded(item models.SearchItem, quantity int, totals models.CartTotals) string {
	return fmt.Sprintf("✅ Agregado: %d x %s\n\n%s\n\nSigue buscando o escribe _pagar_ para finalizar.",
		quantity, item.Name, formatTotals(totals))
}

// CartView lists the active lines
func CartView(totals models.CartTotals) string {
	if totals.Empty() {
		return CartEmpty()
	}
	var b strings.Builder
	b.WriteString("🛒 *Tu carrito*\n\n")
	for i, l := range totals.Lines {
		fmt.Fprintf(&b, "*%d.* %s\n    %d x $%.2f", i+1, l.ProductName, l.Quantity, l.PriceUSD)
		if l.TaxRate > 0 {
			fmt.Fprintf(&b, " + IVA %.0f%%", l.TaxRate)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%s\n\nEscribe _pagar_ para finalizar o _quitar el N_ para eliminar un producto.", formatTotals(totals))
	return b.String()
}

// CartEmpty answers views and checkouts of an empty cart
func CartEmpty() string {
	return "🛒 Tu carrito está vacío. Escribe el nombre de un producto para empezar."
}

// ItemRemoved confirms a removal
func ItemRemoved(name string, totals models.CartTotals) string {
	return fmt.Sprintf("🗑️ Eliminado: %s\n\n%s", name, formatTotals(totals))
}

// QuantityUpdated confirms a quantity change
func QuantityUpdated(name string, quantity int, totals models.CartTotals) string {
	return fmt.Sprintf("✏️ %s: ahora %d unidad(es).\n\n%s", name, quantity, formatTotals(totals))
}

// AskQuantityChange explains how to change a quantity
func AskQuantityChange() string {
	return "✏️ Indica el número del producto en tu carrito y la nueva cantidad, por ejemplo: _cambiar el 2 a 3_."
}

// CartLineNotFound answers a removal of a line that does not exist
func CartLineNotFound(index int) string {
	return fmt.Sprintf("❌ Tu carrito no tiene un producto número %d. Escribe _ver carrito_ para revisarlo.", index)
}

// CartCleared confirms a clear
func CartCleared() string {
	return "🗑️ Carrito vaciado."
}

// NeedIdentification answers a checkout by an unauthenticated customer
func NeedIdentification() string {
	return "🪪 Para finalizar la compra necesito identificarte. Envíame tu *cédula o RIF*.\nEjemplo: V12345678"
}

const paymentOptions = `1️⃣ Pago Móvil
2️⃣ Transferencia bancaria
3️⃣ Efectivo
4️⃣ Zelle`

// PaymentOptions opens checkout
func PaymentOptions(totals models.CartTotals) string {
	return fmt.Sprintf("💳 *Finalizar compra*\n\n%s\n\nElige el método de pago:\n%s\n\n(Escribe _cancelar_ para volver)",
		formatTotals(totals), paymentOptions)
}

// InvalidPaymentOption re-prompts the method
func InvalidPaymentOption() string {
	return "❌ Opción no válida. Elige el método de pago:\n" + paymentOptions
}

// BankList asks for the issuing bank
func BankList(banks []models.Bank) string {
	var b strings.Builder
	b.WriteString("🏦 Indica el *código del banco* desde el que pagaste:\n\n")
	for _, bank := range banks {
		fmt.Fprintf(&b, "%s - %s\n", bank.Code, bank.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// InvalidBank re-prompts the bank code
func InvalidBank(banks []models.Bank) string {
	return "❌ Código de banco no válido. Debe tener 4 dígitos y estar en la lista.\n\n" + BankList(banks)
}

// AskPayerPhone asks for the payer phone
func AskPayerPhone(bankName string) string {
	return fmt.Sprintf("✅ Banco: %s\n\n📱 Indica el *teléfono* desde el que pagaste.\nEjemplo: 04141234567", bankName)
}

// InvalidPayerPhone re-prompts the phone
func InvalidPayerPhone() string {
	return "❌ Teléfono no válido. Debe ser un celular venezolano (0412, 0414, 0416, 0422, 0424 o 0426).\nEjemplo: 04141234567"
}

// AskPayerID asks for the payer ID number
func AskPayerID() string {
	return "🪪 Indica la *cédula* del titular de la cuenta.\nEjemplo: V12345678"
}

// InvalidPayerID re-prompts the ID number
func InvalidPayerID() string {
	return "❌ Cédula no válida. Debe tener entre 6 y 9 dígitos.\nEjemplo: V12345678"
}

// AskReference asks for the payment reference
func AskReference() string {
	return "🔢 Indica los *últimos 4 dígitos* de la referencia del pago."
}

// InvalidReference re-prompts the reference
func InvalidReference() string {
	return "❌ La referencia debe tener exactamente 4 dígitos."
}

// PaymentCancelled confirms "cancelar" during checkout
func PaymentCancelled() string {
	return "Pago cancelado. Tu carrito sigue guardado.\n\n" + mainMenu
}

var methodNames = map[string]string{
	models.PaymentMethodPagoMovil:     "Pago Móvil",
	models.PaymentMethodTransferencia: "Transferencia bancaria",
	models.PaymentMethodEfectivo:      "Efectivo",
	models.PaymentMethodZelle:         "Zelle",
}

// OrderConfirmed closes checkout
func OrderConfirmed(order *models.OrderResult, method string, proof *models.PaymentProof) string {
	msg := fmt.Sprintf(`🎉 *¡Pedido creado!*

*Pedido:* %s
*Método:* %s
*Total:* $%.2f | Bs. %.2f`, order.OrderNumber, methodNames[method], order.TotalUSD, order.TotalBs)

	if proof != nil {
		msg += fmt.Sprintf("\n*Banco:* %s\n*Referencia:* %s\n\nVerificaremos tu pago y te avisaremos.", proof.BankName, proof.Reference)
	} else {
		msg += "\n\nUn asesor te contactará para coordinar el pago."
	}
	return msg + "\n\n" + mainMenu
}

// TechnicalDifficulty is the reply for any collaborator fault
func TechnicalDifficulty(correlationID string) string {
	return fmt.Sprintf("⚠️ Tenemos dificultades técnicas en este momento. Por favor intenta de nuevo en unos minutos. (ref %s)", correlationID)
}
