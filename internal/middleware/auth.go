package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/audit"
	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/token"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// GetClaims returns the authenticated identity, or nil outside an
// authenticated request.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*token.Claims); ok {
		return claims
	}
	return nil
}

// GetAccountID returns the authenticated account id, or "" when absent.
func GetAccountID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.AccountID
	}
	return ""
}

// TokenVerifier validates a bearer token. *service.AuthService
// implements it.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		claims, err := m.verifier.Verify(tokenString)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: rejected token")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the query parameter because browser WebSocket
// clients cannot set an Authorization header.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
