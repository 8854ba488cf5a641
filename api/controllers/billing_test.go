package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

type testBillingService struct {
	listPlansFn func(ctx context.Context) ([]models.BillingPlan, error)
	startFn     func(ctx context.Context, input billing.StartSubscriptionInput) (*models.Subscription, error)
	topUpFn     func(ctx context.Context, input billing.TopUpInput) (*models.LedgerEntry, error)
	cancelFn    func(ctx context.Context, subscriptionID uuid.UUID, cause string) error
}

func (s *testBillingService) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	if s.listPlansFn != nil {
		return s.listPlansFn(ctx)
	}
	return nil, nil
}

func (s *testBillingService) StartSubscription(ctx context.Context, input billing.StartSubscriptionInput) (*models.Subscription, error) {
	if s.startFn != nil {
		return s.startFn(ctx, input)
	}
	return &models.Subscription{}, nil
}

func (s *testBillingService) TopUp(ctx context.Context, input billing.TopUpInput) (*models.LedgerEntry, error) {
	if s.topUpFn != nil {
		return s.topUpFn(ctx, input)
	}
	return &models.LedgerEntry{}, nil
}

func (s *testBillingService) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID, cause string) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, subscriptionID, cause)
	}
	return nil
}

func TestListPlansSuccess(t *testing.T) {
	svc := &testBillingService{
		listPlansFn: func(ctx context.Context) ([]models.BillingPlan, error) {
			return []models.BillingPlan{
				{ID: uuid.New(), Tier: enums.PlanTierStarter},
				{ID: uuid.New(), Tier: enums.PlanTierGrowth},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/plans", nil)
	resp := httptest.NewRecorder()
	ListPlans(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data []models.BillingPlan `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("expected 2 plans got %d", len(envelope.Data))
	}
}

func TestStartSubscriptionSuccess(t *testing.T) {
	userID := uuid.New()
	var captured billing.StartSubscriptionInput
	svc := &testBillingService{
		startFn: func(ctx context.Context, input billing.StartSubscriptionInput) (*models.Subscription, error) {
			captured = input
			return &models.Subscription{ID: uuid.New(), UserID: input.UserID}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","tier":"growth"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	StartSubscription(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	if captured.UserID != userID {
		t.Fatalf("unexpected user %s", captured.UserID)
	}
	if captured.Tier != enums.PlanTierGrowth {
		t.Fatalf("unexpected tier %s", captured.Tier)
	}
}

func TestStartSubscriptionRejectsUnknownTier(t *testing.T) {
	body := `{"user_id":"` + uuid.NewString() + `","tier":"platinum"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	StartSubscription(&testBillingService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTopUpSuccess(t *testing.T) {
	userID := uuid.New()
	var captured billing.TopUpInput
	svc := &testBillingService{
		topUpFn: func(ctx context.Context, input billing.TopUpInput) (*models.LedgerEntry, error) {
			captured = input
			return &models.LedgerEntry{ID: uuid.New(), UserID: input.UserID, Amount: input.Amount}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","category":"interaction","amount":500,"reference_id":"order-2211"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/topups", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	TopUp(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	if captured.Category != enums.CreditCategoryInteraction {
		t.Fatalf("unexpected category %s", captured.Category)
	}
	if captured.Amount != 500 {
		t.Fatalf("unexpected amount %d", captured.Amount)
	}
	if captured.ReferenceID != "order-2211" {
		t.Fatalf("unexpected reference %s", captured.ReferenceID)
	}
}

func TestTopUpRejectsNonPositiveAmount(t *testing.T) {
	body := `{"user_id":"` + uuid.NewString() + `","category":"scraper","amount":0,"reference_id":"order-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/topups", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	TopUp(&testBillingService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelSubscriptionSuccess(t *testing.T) {
	subscriptionID := uuid.New()
	called := false
	svc := &testBillingService{
		cancelFn: func(ctx context.Context, id uuid.UUID, cause string) error {
			called = true
			if id != subscriptionID {
				t.Fatalf("unexpected subscription %s", id)
			}
			if cause == "" {
				t.Fatal("expected a cancellation cause")
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/subscriptions/"+subscriptionID.String()+"/cancel", nil)
	req = addRouteParam(req, "subscriptionID", subscriptionID.String())
	resp := httptest.NewRecorder()
	CancelSubscription(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}
