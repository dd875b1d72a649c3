package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/spms/internal/domain/model"
)

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the caller stored by Require.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ErrorFunc writes an authentication or authorization failure.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Verifier checks bearer tokens against one signing key and issuer.
type Verifier struct {
	key     string
	issuer  string
	onError ErrorFunc
}

// NewVerifier creates a Verifier. onError renders rejected requests.
func NewVerifier(key, issuer string, onError ErrorFunc) *Verifier {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return &Verifier{key: key, issuer: issuer, onError: onError}
}

// Authenticate extracts and validates the request's bearer token.
func (v *Verifier) Authenticate(r *http.Request) (Principal, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return Principal{}, ErrMissingToken
	}
	return Parse(strings.TrimSpace(authz[len("bearer "):]), v.key, v.issuer)
}

// Require wraps next so it only runs for callers holding one of roles. No
// roles admits any authenticated caller.
func (v *Verifier) Require(next http.HandlerFunc, roles ...model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := v.Authenticate(r)
		if err != nil {
			v.onError(w, r, err)
			return
		}
		if !p.HasRole(roles...) {
			v.onError(w, r, ErrForbidden)
			return
		}
		next(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}
