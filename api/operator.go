package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/gym-ledger/generic"
)

// =============================================================================
// OPERATOR IDENTITY - Bearer token or dev header -> generic.Operator
// =============================================================================

// OperatorHeader carries the operator email when no JWT secret is configured.
const OperatorHeader = "X-Operator"

// OperatorClaims are the claims of a staff token issued by the identity
// provider. Subject is the staff id.
type OperatorClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// OperatorAuth resolves the operator of each request.
type OperatorAuth struct {
	secret []byte
}

// NewOperatorAuth returns an authenticator. An empty secret switches to
// development mode, where the X-Operator header is trusted as-is.
func NewOperatorAuth(secret string) *OperatorAuth {
	return &OperatorAuth{secret: []byte(secret)}
}

func (a *OperatorAuth) devMode() bool { return len(a.secret) == 0 }

// IssueToken signs a token for op, used by tooling and tests.
func (a *OperatorAuth) IssueToken(op generic.Operator, ttl time.Duration) (string, error) {
	if a.devMode() {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := OperatorClaims{
		Email: op.Email,
		Name:  op.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without an operator and stores the operator
// in the request context for the ledger.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := a.resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Operator identity required", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(generic.WithOperator(r.Context(), op)))
	})
}

func (a *OperatorAuth) resolve(r *http.Request) (generic.Operator, error) {
	if a.devMode() {
		email := strings.TrimSpace(r.Header.Get(OperatorHeader))
		if email == "" {
			return generic.Operator{}, fmt.Errorf("missing %s header", OperatorHeader)
		}
		return generic.Operator{ID: email, Email: email}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return generic.Operator{}, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return generic.Operator{}, errors.New("invalid authorization header format")
	}

	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return generic.Operator{}, fmt.Errorf("invalid token: %w", err)
	}

	op := generic.Operator{ID: claims.Subject, Email: claims.Email, Name: claims.Name}
	if op.ID == "" && op.Email == "" {
		return generic.Operator{}, errors.New("token has no subject or email")
	}
	return op, nil
}
