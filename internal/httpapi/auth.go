package httpapi

import (
	"errors"
	"net/http"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/server"
)

// requireKey rejects requests without a valid API key in the Authorization
// header. It is a no-op when the API runs without an authenticator.
func (a *api) requireKey(next http.Handler) http.Handler {
	if a.Auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.Auth.Verify(r.Context(), r.Header.Get("Authorization"))
		if errors.Is(err, auth.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tally"`)
			a.respondError(w, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid API key")
			return
		}
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		a.logger.Debug("api key accepted",
			"key", key.ID,
			"name", key.Name,
			"request_id", server.RequestID(r.Context()),
		)
		next.ServeHTTP(w, r)
	})
}
