package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

type accountResolver interface {
	CurrentAccount(ctx context.Context, accessToken string) (model.Account, error)
}

type contextKey string

const accountContextKey contextKey = "account"

type AuthMiddleware struct {
	resolver accountResolver
}

func NewAuthMiddleware(resolver accountResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth resolves the bearer access token to an account and stores it in
// the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing or invalid authorization header")
			return
		}

		account, err := m.resolver.CurrentAccount(r.Context(), token)
		if err != nil {
			var apiErr *apierror.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
				writeUnauthorized(w, apiErr.Message)
				return
			}

			LoggerFromContext(r.Context()).Error("resolve current account", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
			return
		}

		noteAccount(r.Context(), account.ID)
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

func WithAccount(ctx context.Context, account model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

func AccountFromContext(ctx context.Context) (model.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(model.Account)
	return account, ok
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
