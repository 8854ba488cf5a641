package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

type testAuditReader struct {
	listFn func(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

func (s *testAuditReader) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func TestAuditHistorySuccess(t *testing.T) {
	userID := uuid.New()
	svc := &testAuditReader{
		listFn: func(ctx context.Context, id uuid.UUID, limit int) ([]models.AuditEntry, error) {
			if id != userID {
				t.Fatalf("unexpected user %s", id)
			}
			if limit != 50 {
				t.Fatalf("expected default limit 50 got %d", limit)
			}
			return []models.AuditEntry{
				{ID: uuid.New(), UserID: userID, EventType: enums.AuditEventRenewalSuccess},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/audit", nil)
	req = addRouteParam(req, "userID", userID.String())
	resp := httptest.NewRecorder()
	AuditHistory(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data []models.AuditEntry `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected 1 entry got %d", len(envelope.Data))
	}
}

func TestAuditHistoryInvalidUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/bad/audit", nil)
	req = addRouteParam(req, "userID", "bad")
	resp := httptest.NewRecorder()
	AuditHistory(&testAuditReader{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
