package mcpserver

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// authContextKey is the context key for auth results.
type authContextKey struct{}

// AuthResult records whether the caller presented the operator token.
type AuthResult struct {
	Authenticated bool
	KeyID         string // first chars of the token hash, for logging
}

// WithAuthResult stores the auth result in context.
func WithAuthResult(ctx context.Context, result AuthResult) context.Context {
	return context.WithValue(ctx, authContextKey{}, result)
}

// AuthFromContext retrieves the auth result from context.
func AuthFromContext(ctx context.Context) AuthResult {
	result, ok := ctx.Value(authContextKey{}).(AuthResult)
	if !ok {
		return AuthResult{Authenticated: false}
	}
	return result
}

// tokenGate checks "Authorization: Bearer <token>" against a SHA-256 of the
// configured operator token. An empty token disables the check.
type tokenGate struct {
	hash [sha256.Size]byte
	open bool
}

func newTokenGate(token string) tokenGate {
	if token == "" {
		return tokenGate{open: true}
	}
	return tokenGate{hash: sha256.Sum256([]byte(token))}
}

func (g tokenGate) check(header string) AuthResult {
	if g.open {
		return AuthResult{Authenticated: true}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return AuthResult{}
	}
	got := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(got[:], g.hash[:]) != 1 {
		return AuthResult{}
	}
	return AuthResult{Authenticated: true, KeyID: hashPrefix(got)}
}

func hashPrefix(h [sha256.Size]byte) string { return hex.EncodeToString(h[:4]) }

func (g tokenGate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.check(r.Header.Get("Authorization"))
		if !res.Authenticated {
			w.Header().Set("WWW-Authenticate", `Bearer realm="summit-mcp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
	})
}
