package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

func TestSchedulerSecret(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		secret     string
		presented  string
		wantStatus int
	}{
		{"matching secret passes", "s3cret", "s3cret", http.StatusNoContent},
		{"wrong secret rejected", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header rejected", "s3cret", "", http.StatusUnauthorized},
		{"empty configured secret rejects everything", "", "", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := SchedulerSecret(tc.secret, logg)(okHandler)

			req := httptest.NewRequest(http.MethodPost, "/internal/v1/billing/renew", nil)
			if tc.presented != "" {
				req.Header.Set(schedulerSecretHeader, tc.presented)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
