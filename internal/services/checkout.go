package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

var (
	bankCode      = regexp.MustCompile(`^\d{4}$`)
	payerID       = regexp.MustCompile(`^([VEJGP])?-?(\d{6,9})$`)
	paymentRef    = regexp.MustCompile(`^\d{4}$`)
	idSeparators  = strings.NewReplacer(".", "", " ", "")
	cancelCommand = "cancelar"
)

// paymentChoices maps the option number or name typed at method selection
var paymentChoices = map[string]string{
	"1":          models.PaymentMethodPagoMovil,
	"opcion 1":   models.PaymentMethodPagoMovil,
	"pago movil": models.PaymentMethodPagoMovil,
	"pagomovil":  models.PaymentMethodPagoMovil,

	"2":                      models.PaymentMethodTransferencia,
	"opcion 2":               models.PaymentMethodTransferencia,
	"transferencia":          models.PaymentMethodTransferencia,
	"transferencia bancaria": models.PaymentMethodTransferencia,

	"3":        models.PaymentMethodEfectivo,
	"opcion 3": models.PaymentMethodEfectivo,
	"efectivo": models.PaymentMethodEfectivo,

	"4":        models.PaymentMethodZelle,
	"opcion 4": models.PaymentMethodZelle,
	"zelle":    models.PaymentMethodZelle,
}

// IsCancel reports whether the text is the "cancelar" command
func IsCancel(text string) bool {
	return NormalizeText(text) == cancelCommand
}

// CheckoutService walks the customer from payment selection to order creation
type CheckoutService struct {
	orders        storage.OrderBackend
	directory     storage.CustomerDirectory
	cart          *CartLedger
	defaultLetter string
	log           *logger.Logger
}

// NewCheckoutService creates the checkout state machine
func NewCheckoutService(orders storage.OrderBackend, directory storage.CustomerDirectory, cart *CartLedger, defaultLetter string, l *logger.Logger) *CheckoutService {
	if defaultLetter == "" {
		defaultLetter = "V"
	}
	return &CheckoutService{
		orders:        orders,
		directory:     directory,
		cart:          cart,
		defaultLetter: defaultLetter,
		log:           l,
	}
}

// Begin opens checkout for the session's cart
func (c *CheckoutService) Begin(ctx context.Context, session *models.WhatsAppSession) (string, error) {
	if !session.Authenticated {
		session.Context = models.ContextNewClient
		return NeedIdentification(), nil
	}

	totals, err := c.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	if totals.Empty() {
		return CartEmpty(), nil
	}

	session.Payment = &models.PendingPayment{TotalUSD: totals.TotalUSD, TotalBs: totals.TotalBs}
	session.Context = models.ContextCheckoutPaymentSelection
	return PaymentOptions(totals), nil
}

// Cancel aborts the flow. The cart is left untouched.
func (c *CheckoutService) Cancel(session *models.WhatsAppSession) string {
	session.Payment = nil
	session.Context = models.ContextMenu
	return PaymentCancelled()
}

// Handle processes one message in a payment context. Invalid input re-prompts without
// changing the context.
func (c *CheckoutService) Handle(ctx context.Context, session *models.WhatsAppSession, text string) (string, error) {
	if IsCancel(text) {
		return c.Cancel(session), nil
	}
	if session.Payment == nil {
		// lost flow state: start again from the method choice
		return c.Begin(ctx, session)
	}

	input := strings.TrimSpace(text)
	switch session.Context {
	case models.ContextCheckoutPaymentSelection:
		return c.selectMethod(ctx, session, input)
	case models.ContextPaymentBankSelection:
		return c.selectBank(ctx, session, input)
	case models.ContextPaymentPhoneInput:
		return c.capturePhone(session, input)
	case models.ContextPaymentCedulaInput:
		return c.captureID(ctx, session, input)
	case models.ContextPaymentReferenceInput:
		return c.captureReference(ctx, session, input)
	}
	return c.Cancel(session), nil
}

func (c *CheckoutService) selectMethod(ctx context.Context, session *models.WhatsAppSession, input string) (string, error) {
	method, ok := paymentChoices[NormalizeText(input)]
	if !ok {
		return InvalidPaymentOption(), nil
	}
	session.Payment.Method = method

	if !models.RequiresProof(method) {
		return c.complete(ctx, session)
	}

	banks, err := c.orders.ListBanks(ctx)
	if err != nil {
		return "", collaboratorFault("orders.ListBanks", err)
	}
	session.Context = models.ContextPaymentBankSelection
	return BankList(banks), nil
}

func (c *CheckoutService) selectBank(ctx context.Context, session *models.WhatsAppSession, input string) (string, error) {
	banks, err := c.orders.ListBanks(ctx)
	if err != nil {
		return "", collaboratorFault("orders.ListBanks", err)
	}
	if !bankCode.MatchString(input) {
		return InvalidBank(banks), nil
	}
	for _, b := range banks {
		if b.Code == input {
			session.Payment.BankCode = b.Code
			session.Payment.BankName = b.Name
			session.Context = models.ContextPaymentPhoneInput
			return AskPayerPhone(b.Name), nil
		}
	}
	return InvalidBank(banks), nil
}

func (c *CheckoutService) capturePhone(session *models.WhatsAppSession, input string) (string, error) {
	phone, ok := NormalizeMobile(input)
	if !ok {
		return InvalidPayerPhone(), nil
	}
	session.Payment.Phone = phone
	session.Context = models.ContextPaymentCedulaInput
	return AskPayerID(), nil
}

// NormalizePayerID validates an ID typed at checkout and returns it with its type letter
func NormalizePayerID(input, defaultLetter string) (string, bool) {
	m := payerID.FindStringSubmatch(strings.ToUpper(idSeparators.Replace(strings.TrimSpace(input))))
	if m == nil {
		return "", false
	}
	letter := m[1]
	if letter == "" {
		letter = defaultLetter
	}
	return letter + m[2], true
}

func (c *CheckoutService) captureID(ctx context.Context, session *models.WhatsAppSession, input string) (string, error) {
	id, ok := NormalizePayerID(input, c.defaultLetter)
	if !ok {
		return InvalidPayerID(), nil
	}
	session.Payment.IDNumber = id

	// the cross-check only tags the proof; it never blocks the flow
	_, err := c.directory.FindByID(ctx, IDCandidates(id[:1], id[1:]))
	switch {
	case err == nil:
		session.Payment.Verified = true
	case errors.Is(err, storage.ErrNotFound):
		session.Payment.Verified = false
	default:
		session.Payment.Verified = false
		c.log.Warnw("Payer ID cross-check failed", "phone", session.PhoneNumber, "error", err)
	}

	session.Context = models.ContextPaymentReferenceInput
	return AskReference(), nil
}

func (c *CheckoutService) captureReference(ctx context.Context, session *models.WhatsAppSession, input string) (string, error) {
	if !paymentRef.MatchString(input) {
		return InvalidReference(), nil
	}
	session.Payment.Reference = input
	return c.complete(ctx, session)
}

// complete creates the order, records the proof for bank-style methods, clears the cart,
// and returns the session to the menu
func (c *CheckoutService) complete(ctx context.Context, session *models.WhatsAppSession) (string, error) {
	payment := session.Payment
	if models.RequiresProof(payment.Method) && !payment.Complete() {
		return "", errors.New("payment proof incomplete")
	}

	totals, err := c.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	if totals.Empty() {
		session.Payment = nil
		session.Context = models.ContextMenu
		return CartEmpty(), nil
	}

	customer := &models.Customer{
		Code:     session.CustomerCode,
		Name:     session.CustomerName,
		IDNumber: session.CustomerIDNumber,
	}
	order, err := c.orders.CreateOrderFromCart(ctx, customer, totals.Lines, payment.Method)
	if err != nil {
		return "", collaboratorFault("orders.CreateOrderFromCart", err)
	}

	var proof *models.PaymentProof
	if models.RequiresProof(payment.Method) {
		proof = NewPaymentProof(order, payment)
		if err := c.orders.RecordPaymentProof(ctx, proof); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			return "", collaboratorFault("orders.RecordPaymentProof", err)
		}
	}

	if _, err := c.cart.Clear(ctx, session.PhoneNumber); err != nil {
		// the order exists; the stale lines expire with the sweeper
		c.log.Errorw("Failed to clear cart after order", "phone", session.PhoneNumber, "order", order.OrderNumber, "error", err)
	}

	c.log.Infow("Order created", "phone", session.PhoneNumber, "order", order.OrderNumber,
		"method", payment.Method, "total_usd", order.TotalUSD)
	session.Payment = nil
	session.Context = models.ContextMenu
	return OrderConfirmed(order, payment.Method, proof), nil
}
