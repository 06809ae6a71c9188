package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/telehostca/chatbot-backend/internal/config"
	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/services"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

type capturedChannel struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (c *capturedChannel) Send(ctx context.Context, to, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[to] = append(c.sent[to], text)
	return nil
}

func (c *capturedChannel) Name() string { return "captured" }

type testServer struct {
	app     *fiber.App
	store   *storage.MemoryStore
	channel *capturedChannel
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	store := storage.NewMemoryStore(0)
	if err := storage.ApplySeed(store, []byte(storage.DefaultSeed)); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Environment: "development", Storage: "memory"}
	if mutate != nil {
		mutate(cfg)
	}

	channel := &capturedChannel{sent: make(map[string][]string)}
	engine := services.NewEngine(store, channel, logger.Nop(), services.EngineOptions{})
	app := NewApp()
	SetupRoutes(app, cfg, store, engine, logger.Nop())
	return &testServer{app: app, store: store, channel: channel}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTestWebhook(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, jsonRequest(http.MethodPost, "/test/whatsapp", `{"from":"whatsapp:+584141234567","message":"hola"}`))
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("status %d, body %v", code, body)
	}
	if reply, _ := body["response"].(string); !strings.Contains(reply, "Maria") {
		t.Errorf("response = %q, want a personalized welcome", reply)
	}
	if len(s.channel.sent) != 0 {
		t.Error("the test webhook must not send through the channel")
	}

	code, _ = s.do(t, jsonRequest(http.MethodPost, "/test/whatsapp", `{"message":"hola"}`))
	if code != http.StatusBadRequest {
		t.Errorf("missing from: status %d, want 400", code)
	}
}

func TestTestWebhook_HiddenInProduction(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Environment = "production" })

	code, _ := s.do(t, jsonRequest(http.MethodPost, "/test/whatsapp", `{"from":"04141234567","message":"hola"}`))
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestTwilioWebhook(t *testing.T) {
	s := newTestServer(t, nil)
	from := "whatsapp:+584141234567"

	form := url.Values{"From": {from}, "Body": {"hola"}, "MessageSid": {"SM123"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	code, _ := s.do(t, req)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if sent := s.channel.sent[from]; len(sent) != 1 || !strings.Contains(sent[0], "Maria") {
		t.Errorf("sent = %v", sent)
	}

	// status callbacks are acknowledged without a turn
	status := url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}}
	req = httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(status.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code, _ := s.do(t, req); code != http.StatusOK {
		t.Errorf("status callback: %d, want 200", code)
	}
	if len(s.channel.sent[from]) != 1 {
		t.Error("status callback must not produce a reply")
	}
}

func TestTwilioWebhook_RequiresSignature(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Twilio.ValidateSignature = true
		c.Twilio.AuthToken = "token"
	})

	form := url.Values{"From": {"whatsapp:+584141234567"}, "Body": {"hola"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code, _ := s.do(t, req); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("status %d, body %v", code, body)
	}

	s.store.Fail("Ping", errors.New("connection refused"))
	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Errorf("status %d, body %v", code, body)
	}
}

func TestValidateAmount(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.OperatorKey = "secret" })

	tests := []struct {
		name      string
		body      string
		key       string
		wantCode  int
		wantValid bool
	}{
		{"within tolerance", `{"expected":100,"paid":97}`, "secret", http.StatusOK, true},
		{"outside tolerance", `{"expected":100,"paid":90}`, "secret", http.StatusOK, false},
		{"missing paid", `{"expected":100}`, "secret", http.StatusBadRequest, false},
		{"negative", `{"expected":-1,"paid":1}`, "secret", http.StatusBadRequest, false},
		{"no key", `{"expected":100,"paid":100}`, "", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/api/payments/validate-amount", tt.body)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			code, body := s.do(t, req)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%v)", code, tt.wantCode, body)
			}
			if code == http.StatusOK && body["valid"] != tt.wantValid {
				t.Errorf("valid = %v, want %v", body["valid"], tt.wantValid)
			}
		})
	}
}
