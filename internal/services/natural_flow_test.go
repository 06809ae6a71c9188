package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

const technicalDifficulty = "dificultades técnicas"

type sentMessage struct {
	To   string
	Text string
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (c *recordingChannel) Send(ctx context.Context, to, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{To: to, Text: text})
	return nil
}

func (c *recordingChannel) Name() string { return "recording" }

// panickingStore blows up while loading sessions
type panickingStore struct {
	*storage.MemoryStore
}

func (p *panickingStore) FindSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	panic("corrupted session row")
}

func storedSession(t *testing.T, store *storage.MemoryStore, phone string) *models.WhatsAppSession {
	t.Helper()
	s, err := store.FindSession(context.Background(), phone)
	if err != nil {
		t.Fatalf("FindSession(%s) error = %v", phone, err)
	}
	return s
}

func TestEngine_PurchaseFlow(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	from := "whatsapp:+584141234567"

	steps := []struct {
		text        string
		wantContext string
		contains    string
	}{
		{"hola", models.ContextMenu, "Maria"},
		{"busco harina", models.ContextProductSearch, "Harina PAN"},
		{"agregar 2 del producto 1", models.ContextProductSearch, "2.40"},
		{"pagar", models.ContextCheckoutPaymentSelection, ""},
		{"1", models.ContextPaymentBankSelection, ""},
		{"9999", models.ContextPaymentBankSelection, ""},
		{"0102", models.ContextPaymentPhoneInput, "Banco de Venezuela"},
		{"0414-123-4567", models.ContextPaymentCedulaInput, ""},
		{"V12345678", models.ContextPaymentReferenceInput, ""},
		{"1234", models.ContextMenu, "PED000001"},
	}

	for _, step := range steps {
		reply := e.HandleMessage(ctx, from, step.text)
		if strings.Contains(reply, technicalDifficulty) {
			t.Fatalf("%q: unexpected fault reply %q", step.text, reply)
		}
		if step.contains != "" && !strings.Contains(reply, step.contains) {
			t.Errorf("%q: reply %q does not contain %q", step.text, reply, step.contains)
		}
		if got := storedSession(t, store, knownPhone).Context; got != step.wantContext {
			t.Fatalf("%q: context = %q, want %q", step.text, got, step.wantContext)
		}
	}

	orders := store.Orders()
	if len(orders) != 1 || orders[0].TotalUSD != 2.40 || orders[0].CustomerCode != "V12345678" {
		t.Fatalf("orders = %+v", orders)
	}
	proofs := store.PaymentProofs()
	if len(proofs) != 1 || proofs[0].Status != models.PaymentStatusVerified || proofs[0].Reference != "1234" {
		t.Errorf("proofs = %+v", proofs)
	}

	s := storedSession(t, store, knownPhone)
	if s.MessageCount != len(steps) || s.SearchCount != 1 || s.Payment != nil {
		t.Errorf("session = %+v", s)
	}
	if lines, _ := store.ActiveLines(ctx, knownPhone); len(lines) != 0 {
		t.Errorf("cart still holds %d lines", len(lines))
	}
}

func TestEngine_RegistersUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, unknownPhone, "hola")
	if s := storedSession(t, store, unknownPhone); s.Authenticated || s.Context != models.ContextNewClient {
		t.Fatalf("session after greeting = %+v", s)
	}

	e.HandleMessage(ctx, unknownPhone, "mi cedula es V87654321")
	if s := storedSession(t, store, unknownPhone); s.Context != models.ContextNewClientRegistration {
		t.Fatalf("context = %q, want registration", s.Context)
	}

	reply := e.HandleMessage(ctx, unknownPhone, "x1")
	if reply != InvalidName() {
		t.Errorf("reply = %q, want the invalid name prompt", reply)
	}

	e.HandleMessage(ctx, unknownPhone, "Pedro Lopez")
	s := storedSession(t, store, unknownPhone)
	if !s.Authenticated || s.CustomerCode != "V87654321" || s.Context != models.ContextMenu {
		t.Errorf("session after registration = %+v", s)
	}
}

func TestEngine_IdentifiedCustomerKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	for _, text := range []string{"87654321", "V12345678", "mi cedula es 87654321"} {
		reply := e.HandleMessage(ctx, knownPhone, text)
		if reply != AlreadyIdentified("Maria Perez", "V12345678") {
			t.Errorf("%q: reply = %q, want the already identified reply", text, reply)
		}
		s := storedSession(t, store, knownPhone)
		if !s.Authenticated || s.CustomerCode != "V12345678" || s.Registration != nil || s.Context != models.ContextMenu {
			t.Errorf("%q: session = %+v", text, s)
		}
	}

	// a name afterwards is not taken as a registration
	e.HandleMessage(ctx, knownPhone, "Pedro Gomez")
	if s := storedSession(t, store, knownPhone); s.CustomerName != "Maria Perez" {
		t.Errorf("customer name = %q, want Maria Perez", s.CustomerName)
	}
	if _, err := store.FindByID(ctx, []string{"V87654321"}); err == nil {
		t.Error("no customer should have been registered")
	}
}

func TestEngine_FaultLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	before := storedSession(t, store, knownPhone)

	store.Fail("SearchExact", errors.New("catalog offline"))
	reply := e.HandleMessage(ctx, knownPhone, "busco harina")
	if !strings.Contains(reply, technicalDifficulty) || !strings.Contains(reply, "ref ") {
		t.Errorf("reply = %q, want a technical difficulty reply with a reference", reply)
	}

	after := storedSession(t, store, knownPhone)
	if after.Context != before.Context || after.MessageCount != before.MessageCount || after.SearchCount != before.SearchCount {
		t.Errorf("session changed on fault: before %+v, after %+v", before, after)
	}

	store.Fail("SearchExact", nil)
	if reply := e.HandleMessage(ctx, knownPhone, "busco harina"); strings.Contains(reply, technicalDifficulty) {
		t.Errorf("still failing after recovery: %q", reply)
	}
}

func TestEngine_RecoversFromPanic(t *testing.T) {
	store := &panickingStore{MemoryStore: newSeededStore(t)}
	e := NewEngine(store, nil, logger.Nop(), EngineOptions{})

	reply := e.HandleMessage(context.Background(), knownPhone, "hola")
	if !strings.Contains(reply, technicalDifficulty) {
		t.Errorf("reply = %q, want a technical difficulty reply", reply)
	}
}

func TestEngine_RejectsEmptyIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	if reply := e.HandleMessage(context.Background(), "whatsapp:", "hola"); !strings.Contains(reply, technicalDifficulty) {
		t.Errorf("reply = %q", reply)
	}
}

func TestEngine_ReactivationWelcomesBack(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	e.HandleMessage(ctx, knownPhone, "busco arroz")
	if storedSession(t, store, knownPhone).Search == nil {
		t.Fatal("search results should be kept in the session")
	}

	e.sessions.now = func() time.Time { return time.Now().Add(time.Hour) }
	reply := e.HandleMessage(ctx, knownPhone, "hola")
	if reply != WelcomeBack("Maria Perez") {
		t.Errorf("reply = %q, want the welcome back message", reply)
	}
	s := storedSession(t, store, knownPhone)
	if !s.Authenticated || s.Search != nil || s.Context != models.ContextMenu {
		t.Errorf("session after reactivation = %+v", s)
	}
}

func TestEngine_AddWithoutSearch(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	if reply := e.HandleMessage(ctx, knownPhone, "agregar 2 del producto 1"); reply != NeedSearchFirst() {
		t.Errorf("reply = %q, want the search-first prompt", reply)
	}
}

func TestEngine_CartViewAndRemove(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	e.HandleMessage(ctx, knownPhone, "busco harina")
	e.HandleMessage(ctx, knownPhone, "quiero el 1")
	e.HandleMessage(ctx, knownPhone, "quiero el 2")
	if lines, _ := store.ActiveLines(ctx, knownPhone); len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	if reply := e.HandleMessage(ctx, knownPhone, "ver carrito"); !strings.Contains(reply, "Harina de trigo") {
		t.Errorf("cart view = %q", reply)
	}
	e.HandleMessage(ctx, knownPhone, "quitar el 1")
	lines, _ := store.ActiveLines(ctx, knownPhone)
	if len(lines) != 1 || lines[0].ProductCode != "P002" {
		t.Errorf("lines after remove = %+v", lines)
	}
}

func TestEngine_CartQuantityChange(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	e.HandleMessage(ctx, knownPhone, "hola")
	e.HandleMessage(ctx, knownPhone, "busco harina")
	e.HandleMessage(ctx, knownPhone, "quiero el 1")
	e.HandleMessage(ctx, knownPhone, "quiero el 2")

	reply := e.HandleMessage(ctx, knownPhone, "cambiar el 1 a 3")
	if !strings.Contains(reply, "Harina PAN") || !strings.Contains(reply, "3 unidad") {
		t.Errorf("reply = %q", reply)
	}
	line, err := store.FindActiveLine(ctx, knownPhone, "P001")
	if err != nil || line.Quantity != 3 {
		t.Fatalf("P001 line = %+v, %v, want quantity 3", line, err)
	}

	if reply := e.HandleMessage(ctx, knownPhone, "cambiar el 7 a 2"); reply != CartLineNotFound(7) {
		t.Errorf("reply = %q, want the missing line reply", reply)
	}
	if reply := e.HandleMessage(ctx, knownPhone, "cambiar cantidad"); reply != AskQuantityChange() {
		t.Errorf("reply = %q, want the usage hint", reply)
	}

	e.HandleMessage(ctx, knownPhone, "cambiar el 2 a 0")
	lines, _ := store.ActiveLines(ctx, knownPhone)
	if len(lines) != 1 || lines[0].ProductCode != "P001" {
		t.Errorf("lines after setting zero = %+v", lines)
	}
}

func TestEngine_ProcessMessageSends(t *testing.T) {
	store := newSeededStore(t)
	channel := &recordingChannel{}
	e := NewEngine(store, channel, logger.Nop(), EngineOptions{})

	reply, err := e.ProcessMessage(context.Background(), "whatsapp:+584141234567", "hola")
	if err != nil {
		t.Fatal(err)
	}
	if len(channel.sent) != 1 || channel.sent[0].Text != reply || channel.sent[0].To != "whatsapp:+584141234567" {
		t.Errorf("sent = %+v", channel.sent)
	}

	channel.err = errors.New("twilio unavailable")
	if _, err := e.ProcessMessage(context.Background(), "whatsapp:+584141234567", "2"); err == nil {
		t.Error("expected the delivery error")
	}
}
