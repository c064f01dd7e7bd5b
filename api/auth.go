/*
auth.go - Identity middleware

PURPOSE:
  Turns an `Authorization: Bearer <jwt>` header into a leave.Actor on the
  request context. Token issuance belongs to the login service; this layer
  only verifies HS256 tokens and resolves the subject against the user
  directory.

RULES:
  - Missing or malformed header       -> 401
  - Bad signature, expired, wrong iss -> 401
  - Subject not a known user          -> 401
  - User not yet approved by an admin -> 403

  The role always comes from the stored user, never from token claims, so a
  demoted admin loses access on the next request.

SEE ALSO:
  - server.go: Where the middleware is mounted
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// UserLookup resolves a token subject.
type UserLookup interface {
	GetUser(ctx context.Context, id leave.UserID) (*leave.User, error)
}

type Authenticator struct {
	secret []byte
	issuer string
	users  UserLookup
	logger *zap.Logger
}

func NewAuthenticator(secret, issuer string, users UserLookup, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.L()
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		users:  users,
		logger: logger.Named("api.auth"),
	}
}

type actorKey struct{}

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a leave.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (leave.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(leave.Actor)
	return a, ok
}

// Middleware authenticates every request it wraps.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeErrorCode(w, http.StatusUnauthorized, "Authorization header required", "unauthorized")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeErrorCode(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}", "unauthorized")
			return
		}

		claims, err := a.Verify(parts[1])
		if err != nil {
			a.logger.Warn("invalid token", zap.Error(err))
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			}
			writeErrorCode(w, http.StatusUnauthorized, msg, "unauthorized")
			return
		}

		user, err := a.users.GetUser(r.Context(), leave.UserID(claims.Subject))
		if err != nil {
			if leave.IsNotFound(err) {
				writeErrorCode(w, http.StatusUnauthorized, "Unknown user", "unauthorized")
				return
			}
			a.logger.Error("user lookup failed", zap.String("user_id", claims.Subject), zap.Error(err))
			writeErrorCode(w, http.StatusInternalServerError, "Failed to resolve user", "storage_failure")
			return
		}
		if !user.Approved {
			writeErrorCode(w, http.StatusForbidden, "Account is awaiting admin approval", "unauthorized")
			return
		}

		actor := leave.Actor{UserID: user.ID, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// Verify checks the signature, expiry and issuer and returns the claims.
func (a *Authenticator) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token for userID. Used by the demo scenario loader and
// tests; production tokens come from the login service.
func (a *Authenticator) IssueToken(userID leave.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   string(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
