package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/platform/httpx"
	"github.com/linguadesk/translator/internal/platform/requestctx"
)

// BearerMiddleware authenticates API callers presenting "Authorization: Bearer <id token>".
// Requests without the header pass through unchanged so cookie sessions can apply. A header
// that fails verification is rejected with 401.
func BearerMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if strings.TrimSpace(header) == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := extractBearerToken(header)
			if !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if verifier == nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}
			identity, err := verifier.VerifyIDToken(r.Context(), token)
			if err != nil {
				requestctx.Logger(r.Context()).Info("bearer token rejected", zap.Error(err))
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_token", "id token is invalid or expired", http.StatusUnauthorized))
				return
			}
			ctx := requestctx.WithPrincipal(r.Context(), identity.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
