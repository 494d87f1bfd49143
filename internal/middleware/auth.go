package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baharkarakas/securebank/internal/api/httpx"
	"github.com/baharkarakas/securebank/internal/auth"
)

type operatorKey struct{}

// Operator is the authenticated caller of an operator route.
type Operator struct {
	ID   string
	Role string
}

func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok
}

type tokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer access token.
func Authenticate(tm tokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := tm.Parse(strings.TrimSpace(ah[7:]))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
				return
			}
			ctx := WithOperator(r.Context(), Operator{ID: claims.OperatorID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
