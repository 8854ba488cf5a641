package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/internal/balances"
	"github.com/leadpulse/leadpulse-backend/internal/holds"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type testHoldService struct {
	holdFn    func(ctx context.Context, input holds.HoldInput) (*models.CreditHold, error)
	convertFn func(ctx context.Context, input holds.ConvertInput) (*holds.ConvertResult, error)
	releaseFn func(ctx context.Context, holdID uuid.UUID, reason *string) (int64, error)
	findFn    func(ctx context.Context, holdID uuid.UUID) (*models.CreditHold, error)
}

func (s *testHoldService) Hold(ctx context.Context, input holds.HoldInput) (*models.CreditHold, error) {
	if s.holdFn != nil {
		return s.holdFn(ctx, input)
	}
	return &models.CreditHold{}, nil
}

func (s *testHoldService) Convert(ctx context.Context, input holds.ConvertInput) (*holds.ConvertResult, error) {
	if s.convertFn != nil {
		return s.convertFn(ctx, input)
	}
	return &holds.ConvertResult{}, nil
}

func (s *testHoldService) Release(ctx context.Context, holdID uuid.UUID, reason *string) (int64, error) {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, holdID, reason)
	}
	return 0, nil
}

func (s *testHoldService) Find(ctx context.Context, holdID uuid.UUID) (*models.CreditHold, error) {
	if s.findFn != nil {
		return s.findFn(ctx, holdID)
	}
	return &models.CreditHold{}, nil
}

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestCreateHoldSuccess(t *testing.T) {
	userID := uuid.New()
	var captured holds.HoldInput
	svc := &testHoldService{
		holdFn: func(ctx context.Context, input holds.HoldInput) (*models.CreditHold, error) {
			captured = input
			return &models.CreditHold{ID: uuid.New(), UserID: input.UserID, Amount: input.Amount}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","category":"scraper","amount":25,"reference_id":"lead-scan-91","ttl_seconds":600}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	CreateHold(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	if captured.UserID != userID {
		t.Fatalf("unexpected user %s", captured.UserID)
	}
	if captured.Category != enums.CreditCategoryScraper {
		t.Fatalf("unexpected category %s", captured.Category)
	}
	if captured.Amount != 25 {
		t.Fatalf("unexpected amount %d", captured.Amount)
	}
	if captured.TTL != 10*time.Minute {
		t.Fatalf("unexpected ttl %s", captured.TTL)
	}
}

func TestCreateHoldRejectsBadCategory(t *testing.T) {
	body := `{"user_id":"` + uuid.NewString() + `","category":"minerals","amount":5,"reference_id":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	CreateHold(&testHoldService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateHoldSurfacesInsufficientCredits(t *testing.T) {
	svc := &testHoldService{
		holdFn: func(ctx context.Context, input holds.HoldInput) (*models.CreditHold, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient available credits")
		},
	}
	body := `{"user_id":"` + uuid.NewString() + `","category":"interaction","amount":5000,"reference_id":"bulk-outreach"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	CreateHold(svc, testControllerLogger())(resp, req)
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestConvertHoldSuccess(t *testing.T) {
	holdID := uuid.New()
	svc := &testHoldService{
		convertFn: func(ctx context.Context, input holds.ConvertInput) (*holds.ConvertResult, error) {
			if input.HoldID != holdID {
				t.Fatalf("unexpected hold %s", input.HoldID)
			}
			if input.ActualAmount != 18 {
				t.Fatalf("unexpected actual amount %d", input.ActualAmount)
			}
			return &holds.ConvertResult{TransactionID: uuid.New(), DebitedAmount: 18, RefundedAmount: 7}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds/"+holdID.String()+"/convert", strings.NewReader(`{"actual_amount":18}`))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "holdID", holdID.String())
	resp := httptest.NewRecorder()
	ConvertHold(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data holds.ConvertResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.RefundedAmount != 7 {
		t.Fatalf("expected refunded 7 got %d", envelope.Data.RefundedAmount)
	}
}

func TestConvertHoldRequiresActualAmount(t *testing.T) {
	holdID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds/"+holdID.String()+"/convert", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = addRouteParam(req, "holdID", holdID.String())
	resp := httptest.NewRecorder()
	ConvertHold(&testHoldService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReleaseHoldWithoutBody(t *testing.T) {
	holdID := uuid.New()
	svc := &testHoldService{
		releaseFn: func(ctx context.Context, id uuid.UUID, reason *string) (int64, error) {
			if id != holdID {
				t.Fatalf("unexpected hold %s", id)
			}
			if reason != nil {
				t.Fatalf("expected nil reason, got %q", *reason)
			}
			return 40, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/holds/"+holdID.String()+"/release", nil)
	req = addRouteParam(req, "holdID", holdID.String())
	resp := httptest.NewRecorder()
	ReleaseHold(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["credits_released"] != 40 {
		t.Fatalf("expected credits_released=40 got %v", envelope.Data)
	}
}

func TestGetHoldUnknownID(t *testing.T) {
	svc := &testHoldService{
		findFn: func(ctx context.Context, holdID uuid.UUID) (*models.CreditHold, error) {
			return nil, pkgerrors.New(pkgerrors.CodeHoldNotFound, "hold not found")
		},
	}
	holdID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/holds/"+holdID.String(), nil)
	req = addRouteParam(req, "holdID", holdID.String())
	resp := httptest.NewRecorder()
	GetHold(svc, testControllerLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

type testBalanceService struct {
	balancesFn func(ctx context.Context, userID uuid.UUID) (map[enums.CreditCategory]balances.CategoryBalance, error)
}

func (s *testBalanceService) Balances(ctx context.Context, userID uuid.UUID) (map[enums.CreditCategory]balances.CategoryBalance, error) {
	if s.balancesFn != nil {
		return s.balancesFn(ctx, userID)
	}
	return map[enums.CreditCategory]balances.CategoryBalance{}, nil
}

func TestGetBalanceSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &testBalanceService{
		balancesFn: func(ctx context.Context, id uuid.UUID) (map[enums.CreditCategory]balances.CategoryBalance, error) {
			if id != userID {
				t.Fatalf("unexpected user %s", id)
			}
			return map[enums.CreditCategory]balances.CategoryBalance{
				enums.CreditCategoryScraper: {Total: 100, Held: 30, Available: 70},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/balance", nil)
	req = addRouteParam(req, "userID", userID.String())
	resp := httptest.NewRecorder()
	GetBalance(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]balances.CategoryBalance `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["scraper"].Available != 70 {
		t.Fatalf("unexpected balances %+v", envelope.Data)
	}
}

func TestGetBalanceInvalidUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/nope/balance", nil)
	req = addRouteParam(req, "userID", "nope")
	resp := httptest.NewRecorder()
	GetBalance(&testBalanceService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

type testLedgerReader struct {
	historyFn func(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)
}

func (s *testLedgerReader) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, userID, limit)
	}
	return nil, nil
}

func TestLedgerHistoryDefaultsLimit(t *testing.T) {
	userID := uuid.New()
	var gotLimit int
	svc := &testLedgerReader{
		historyFn: func(ctx context.Context, id uuid.UUID, limit int) ([]models.LedgerEntry, error) {
			gotLimit = limit
			return []models.LedgerEntry{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/ledger", nil)
	req = addRouteParam(req, "userID", userID.String())
	resp := httptest.NewRecorder()
	LedgerHistory(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if gotLimit != 50 {
		t.Fatalf("expected default limit 50 got %d", gotLimit)
	}
}

func TestLedgerHistoryRejectsOutOfRangeLimit(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/ledger?limit=9999", nil)
	req = addRouteParam(req, "userID", userID.String())
	resp := httptest.NewRecorder()
	LedgerHistory(&testLedgerReader{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func addRouteParam(req *http.Request, pairs ...string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		routeCtx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
