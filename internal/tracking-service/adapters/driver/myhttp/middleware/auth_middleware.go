package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driver"

	"github.com/goccy/go-json"
)

var errEmptyToken = errors.New("empty JWT-Token")

type principalKey struct{}

type AuthMiddleware struct {
	auth driver.IAuthService
}

func NewAuthMiddleware(auth driver.IAuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter used by browser websockets.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// SessionHandler authenticates the request and stores the principal in its
// context. When roles are given, principals with any other role get 403.
func (am *AuthMiddleware) SessionHandler(next http.Handler, roles ...model.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errEmptyToken)
			return
		}

		p, err := am.auth.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !hasRole(p.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("role "+string(p.Role)+" is not allowed here"))
			return
		}

		r.Header.Set("X-UserId", p.UserID)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func hasRole(role model.Role, allowed []model.Role) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by SessionHandler.
func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  model.CodeAuthorization,
	})
}
