package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medicare/medicare/backend/internal/domain/entities"
)

type ctxKey string

const identityKey ctxKey = "identity"

// ErrBadToken is returned for tokens that fail signature or claim checks
var ErrBadToken = errors.New("invalid token")

// Claims are the bearer token claims issued by the account service
type Claims struct {
	UserID string        `json:"userId"`
	Role   entities.Role `json:"role"`
	jwt.RegisteredClaims
}

// WithIdentity stores the authenticated caller on ctx
func WithIdentity(ctx context.Context, identity entities.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller stored by Authenticator
func IdentityFromContext(ctx context.Context) (entities.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(entities.Identity)
	return identity, ok
}

// Authenticator validates HS256 bearer tokens
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator for tokens signed with secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken verifies raw and returns the identity it carries
func (a *Authenticator) ParseToken(raw string) (entities.Identity, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return a.secret, nil
	})
	if err != nil {
		return entities.Identity{}, err
	}

	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return entities.Identity{}, ErrBadToken
	}
	if c.Role != entities.RolePatient && c.Role != entities.RoleDoctor {
		return entities.Identity{}, ErrBadToken
	}
	return entities.Identity{ID: c.UserID, Role: c.Role}, nil
}

// Require rejects requests without a valid bearer token. EventSource clients
// cannot set headers, so GET requests may pass the token as access_token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHORIZED")
			return
		}

		identity, err := a.ParseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"kind":    kind,
	})
}
