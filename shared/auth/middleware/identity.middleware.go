package middleware

import (
	"net/http"
	"strings"

	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"
)

const DefaultIdentityHeader = "X-Username"

// RequireIdentity trusts the username forwarded by the gateway in front of this service.
// It performs no credential check of its own.
func RequireIdentity(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(header))
			if username == "" {
				response.Error(w, http.StatusUnauthorized, xerrors.CodeValidation, "missing "+header+" header")
				return
			}
			next.ServeHTTP(w, setUsername(r, username))
		})
	}
}
