package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type authCtxKey int

const identityKey authCtxKey = 7

// Claims is the identity token issued by the account service. Only the
// subject is read; it is treated as an opaque user id.
type Claims struct {
	UID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller id carried by the claims, preferring uid.
func (c *Claims) Identity() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Authenticator resolves caller identity from bearer JWTs and guards admin
// routes with a bcrypt-hashed static token.
type Authenticator struct {
	secret    []byte
	adminHash []byte
}

func NewAuthenticator(jwtSecret, adminTokenHash string) *Authenticator {
	a := &Authenticator{}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	if adminTokenHash != "" {
		a.adminHash = []byte(adminTokenHash)
	}
	return a
}

// SignToken issues an HS256 identity token for uid.
func SignToken(secret, uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UID: uid, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// HashAdminToken returns the bcrypt hash to store as auth.admin_token_hash.
func HashAdminToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("admin token is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func (a *Authenticator) parseToken(tok string) (*Claims, error) {
	if a.secret == nil {
		return nil, errors.New("identity tokens are not configured")
	}
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.Identity() != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithIdentity attaches the caller identity to the context when the request
// carries a valid bearer token. Requests without one continue anonymously.
func (a *Authenticator) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearer(r); tok != "" {
			if c, err := a.parseToken(tok); err == nil {
				next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), c.Identity())))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose bearer token does not match the
// configured admin hash. Without a configured hash every admin request is
// refused.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		if a.adminHash == nil || tok == "" || bcrypt.CompareHashAndPassword(a.adminHash, []byte(tok)) != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller identity, or "" for anonymous.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}
