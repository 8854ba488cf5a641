package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/leadpulse/leadpulse-backend/api/responses"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

const schedulerSecretHeader = "X-Scheduler-Secret"

// SchedulerSecret gates internal trigger endpoints behind a shared secret.
// A misconfigured empty secret rejects every request rather than opening
// the endpoints up.
func SchedulerSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(schedulerSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid scheduler secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
