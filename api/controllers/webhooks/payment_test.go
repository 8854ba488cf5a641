package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	paymentwebhook "github.com/leadpulse/leadpulse-backend/internal/webhooks/payment"
)

const testWebhookSecret = "whsec_test"

func TestPaymentWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, signature := buildSignedEvent(t)
	service := &fakePaymentWebhookService{}
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, guard, testWebhookSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(paymentwebhook.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	// Replay the same event
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req2.Header.Set(paymentwebhook.SignatureHeader, signature)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestPaymentWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakePaymentWebhookService{}
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, guard, testWebhookSecret, nil)

	tampered := paymentwebhook.Sign(payload, "some-other-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(paymentwebhook.SignatureHeader, tampered)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestPaymentWebhook_MissingSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakePaymentWebhookService{}
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, guard, testWebhookSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked without a signature")
	}
}

func TestPaymentWebhook_ServiceErrorReleasesGuard(t *testing.T) {
	payload, signature := buildSignedEvent(t)
	service := &fakePaymentWebhookService{err: fmt.Errorf("downstream unavailable")}
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, guard, testWebhookSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(paymentwebhook.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%s)", rec.Code, rec.Body.String())
	}

	// A failed delivery must stay retryable.
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req2.Header.Set(paymentwebhook.SignatureHeader, signature)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected service called twice, got %d", service.calls)
	}
}

func TestPaymentWebhook_MissingEventID(t *testing.T) {
	event := paymentwebhook.Event{
		ReferenceID:   uuid.NewString(),
		TransactionID: "txn_" + uuid.NewString(),
		Outcome:       "success",
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	service := &fakePaymentWebhookService{}
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PaymentWebhook(service, guard, testWebhookSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(paymentwebhook.SignatureHeader, paymentwebhook.Sign(payload, testWebhookSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A signed but id-less event is the sender's fault, not a dependency
	// failure, and must never reach the guard or the service.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 0 {
		t.Fatalf("service must not be called, got %d calls", service.calls)
	}
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	event := paymentwebhook.Event{
		EventID:       "evt_" + uuid.NewString(),
		ReferenceID:   uuid.NewString(),
		TransactionID: "txn_" + uuid.NewString(),
		Outcome:       "success",
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, paymentwebhook.Sign(payload, testWebhookSecret)
}

type fakePaymentWebhookService struct {
	calls int
	err   error
}

func (f *fakePaymentWebhookService) HandleEvent(ctx context.Context, event *paymentwebhook.Event) error {
	f.calls++
	return f.err
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("lp:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
