package services

import (
	"context"
	"errors"
	"testing"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

type checkoutFixture struct {
	store    *storage.MemoryStore
	cart     *CartLedger
	checkout *CheckoutService
	session  *models.WhatsAppSession
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	store := newSeededStore(t)
	cart := NewCartLedger(store, store, store)
	f := &checkoutFixture{
		store:    store,
		cart:     cart,
		checkout: NewCheckoutService(store, store, cart, "V", logger.Nop()),
		session:  authenticatedSession(knownPhone),
	}
	if _, err := cart.Add(context.Background(), knownPhone, "P001", 2); err != nil {
		t.Fatal(err)
	}
	return f
}

// step sends inputs in order and fails on any error
func (f *checkoutFixture) step(t *testing.T, inputs ...string) string {
	t.Helper()
	var reply string
	var err error
	for _, in := range inputs {
		reply, err = f.checkout.Handle(context.Background(), f.session, in)
		if err != nil {
			t.Fatalf("Handle(%q) error = %v", in, err)
		}
	}
	return reply
}

func (f *checkoutFixture) begin(t *testing.T) {
	t.Helper()
	if _, err := f.checkout.Begin(context.Background(), f.session); err != nil {
		t.Fatal(err)
	}
	if f.session.Context != models.ContextCheckoutPaymentSelection {
		t.Fatalf("context after Begin = %q", f.session.Context)
	}
}

func TestCheckout_BankSelection(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	f.step(t, "1")
	if f.session.Context != models.ContextPaymentBankSelection {
		t.Fatalf("context = %q, want bank selection", f.session.Context)
	}

	f.step(t, "9999")
	if f.session.Context != models.ContextPaymentBankSelection || f.session.Payment.BankCode != "" {
		t.Errorf("unknown bank advanced: context %q, payment %+v", f.session.Context, f.session.Payment)
	}

	f.step(t, "banco")
	if f.session.Context != models.ContextPaymentBankSelection {
		t.Errorf("malformed bank advanced to %q", f.session.Context)
	}

	f.step(t, "0102")
	if f.session.Context != models.ContextPaymentPhoneInput {
		t.Errorf("context = %q, want phone input", f.session.Context)
	}
	if f.session.Payment.BankCode != "0102" || f.session.Payment.BankName != "Banco de Venezuela" {
		t.Errorf("payment = %+v", f.session.Payment)
	}
}

func TestCheckout_FieldValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	f.step(t, "2", "0134")

	f.step(t, "02121234567")
	if f.session.Context != models.ContextPaymentPhoneInput {
		t.Errorf("landline accepted, context %q", f.session.Context)
	}
	f.step(t, "0424 123 4567")
	if f.session.Payment.Phone != "04241234567" || f.session.Context != models.ContextPaymentCedulaInput {
		t.Errorf("phone = %q, context %q", f.session.Payment.Phone, f.session.Context)
	}

	f.step(t, "12345")
	if f.session.Context != models.ContextPaymentCedulaInput {
		t.Errorf("short ID accepted, context %q", f.session.Context)
	}
	f.step(t, "87.654.321")
	if f.session.Payment.IDNumber != "V87654321" || f.session.Payment.Verified {
		t.Errorf("payment = %+v, want unverified V87654321", f.session.Payment)
	}

	f.step(t, "12345")
	if f.session.Context != models.ContextPaymentReferenceInput {
		t.Errorf("5-digit reference accepted, context %q", f.session.Context)
	}
}

func TestCheckout_PagoMovilCompletes(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	reply := f.step(t, "pago movil", "0102", "04141234567", "V12345678", "4321")

	if f.session.Context != models.ContextMenu || f.session.Payment != nil {
		t.Errorf("session after order = context %q, payment %+v", f.session.Context, f.session.Payment)
	}
	orders := f.store.Orders()
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if orders[0].PaymentMethod != models.PaymentMethodPagoMovil || orders[0].TotalUSD != 2.40 {
		t.Errorf("order = %+v", orders[0])
	}
	proofs := f.store.PaymentProofs()
	if len(proofs) != 1 {
		t.Fatalf("proofs = %d, want 1", len(proofs))
	}
	p := proofs[0]
	if p.BankCode != "0102" || p.Reference != "4321" || p.Status != models.PaymentStatusVerified || p.Amount != 96 {
		t.Errorf("proof = %+v", p)
	}
	if totals, _ := f.cart.Totals(context.Background(), knownPhone); !totals.Empty() {
		t.Error("cart should be cleared after the order")
	}
	if reply == "" {
		t.Error("expected a confirmation reply")
	}
}

func TestCheckout_DirectMethod(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	f.step(t, "3")

	if f.session.Context != models.ContextMenu {
		t.Errorf("context = %q, want menu", f.session.Context)
	}
	if orders := f.store.Orders(); len(orders) != 1 || orders[0].PaymentMethod != models.PaymentMethodEfectivo {
		t.Errorf("orders = %+v", orders)
	}
	if len(f.store.PaymentProofs()) != 0 {
		t.Error("cash orders carry no payment proof")
	}
}

func TestCheckout_CancelFromEveryState(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
	}{
		{"method selection", nil},
		{"bank", []string{"1"}},
		{"phone", []string{"1", "0102"}},
		{"id", []string{"1", "0102", "04141234567"}},
		{"reference", []string{"1", "0102", "04141234567", "V12345678"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			f.begin(t)
			f.step(t, tt.inputs...)
			f.step(t, "Cancelar")

			if f.session.Context != models.ContextMenu || f.session.Payment != nil {
				t.Errorf("after cancel: context %q, payment %+v", f.session.Context, f.session.Payment)
			}
			totals, _ := f.cart.Totals(context.Background(), knownPhone)
			if totals.ItemCount != 2 {
				t.Errorf("cart item count = %d, want 2 (untouched)", totals.ItemCount)
			}
			if len(f.store.Orders()) != 0 {
				t.Error("cancel must not create an order")
			}
		})
	}
}

func TestCheckout_RequiresIdentification(t *testing.T) {
	f := newCheckoutFixture(t)
	f.session = newSession(knownPhone)

	if _, err := f.checkout.Begin(context.Background(), f.session); err != nil {
		t.Fatal(err)
	}
	if f.session.Context != models.ContextNewClient || f.session.Payment != nil {
		t.Errorf("session = %+v", f.session)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.cart.Clear(context.Background(), knownPhone)
	f.session.Context = models.ContextProductSearch

	reply, err := f.checkout.Begin(context.Background(), f.session)
	if err != nil {
		t.Fatal(err)
	}
	if reply != CartEmpty() || f.session.Context != models.ContextProductSearch {
		t.Errorf("reply %q, context %q", reply, f.session.Context)
	}
}

func TestCheckout_OrderFaultKeepsState(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	f.step(t, "1", "0102", "04141234567", "V12345678")

	f.store.Fail("CreateOrderFromCart", errors.New("backend unavailable"))
	_, err := f.checkout.Handle(context.Background(), f.session, "4321")
	if !IsCollaboratorFault(err) {
		t.Fatalf("error = %v, want collaborator fault", err)
	}
	if totals, _ := f.cart.Totals(context.Background(), knownPhone); totals.ItemCount != 2 {
		t.Error("cart must survive a failed order")
	}
}

func TestCheckout_RetryAfterProofFaultReusesOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	f.begin(t)
	f.step(t, "1", "0102", "04141234567", "V12345678")

	f.store.Fail("RecordPaymentProof", errors.New("backend unavailable"))
	if _, err := f.checkout.Handle(context.Background(), f.session, "1234"); !IsCollaboratorFault(err) {
		t.Fatalf("error = %v, want collaborator fault", err)
	}
	f.store.Fail("RecordPaymentProof", nil)

	// the engine never saved the failed turn, so the retry arrives in the reference step
	f.session.Context = models.ContextPaymentReferenceInput
	f.step(t, "1234")

	orders := f.store.Orders()
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	proofs := f.store.PaymentProofs()
	if len(proofs) != 1 || proofs[0].OrderID != orders[0].ID {
		t.Errorf("proofs = %+v, want one for order %d", proofs, orders[0].ID)
	}
	if f.session.Context != models.ContextMenu {
		t.Errorf("context = %q, want menu", f.session.Context)
	}
}

func TestNormalizePayerID(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"V12345678", "V12345678", true},
		{"v-12345678", "V12345678", true},
		{"12.345.678", "V12345678", true},
		{"E 8123456", "E8123456", true},
		{"J123456789", "J123456789", true},
		{"12345", "", false},
		{"X12345678", "", false},
		{"1234567890", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePayerID(tt.input, "V")
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePayerID(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
