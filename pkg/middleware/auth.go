package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/lifedash-auth/pkg/httputil"
	"github.com/utafrali/lifedash-auth/pkg/logger"
)

// Messages written by the access control middleware.
const (
	MsgNoToken                 = "Access denied. No token provided."
	MsgInvalidToken            = "Invalid or expired token."
	MsgInsufficientPermissions = "Insufficient permissions."
)

type contextKey struct{}

var identityKey contextKey

// Identity is the caller identity derived from a verified token.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenValidator verifies a raw bearer token and returns the identity it carries.
type TokenValidator func(ctx context.Context, token string) (*Identity, error)

// Auth rejects requests without a bearer token (401) or with a token the
// validator refuses (403). On success the identity is stored in the context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeDenied(w, http.StatusUnauthorized, MsgNoToken)
				return
			}

			id, err := validate(r.Context(), token)
			if err != nil || id == nil {
				if err != nil {
					logger.FromContext(r.Context()).DebugContext(r.Context(), "token rejected",
						slog.String("reason", err.Error()),
						slog.String("path", r.URL.Path),
					)
				}
				writeDenied(w, http.StatusForbidden, MsgInvalidToken)
				return
			}

			ctx := WithIdentity(r.Context(), *id)
			ctx = logger.WithUserID(ctx, id.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when the identity holds one of roles.
// It must be mounted after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, MsgNoToken)
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				writeDenied(w, http.StatusForbidden, MsgInsufficientPermissions)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by Auth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeDenied(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, httputil.Response{Success: false, Message: message})
}
