package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/logging"
)

// BearerAuth rejects requests whose Authorization header does not carry
// token. The scheme name is case-insensitive.
func BearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				logging.FromContext(r.Context()).Debugw("unauthorized request",
					"path", r.URL.Path, "credentials", ok)
				w.Header().Set("WWW-Authenticate", `Bearer realm="partsbin"`)
				ae := apperror.NewUnauthorized("invalid or missing bearer token")
				writeJSON(w, ae.HTTPStatus, map[string]any{"error": ae})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
