package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/apperr"
	"flipzone/envelope"
	"flipzone/models"
	"flipzone/store"
	"flipzone/utils"
)

// Cookie names shared with the auth controller
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Key type for context
type contextKey string

const identityContextKey = contextKey("identity")

// IdentityFrom returns the caller attached by the Authenticator, if any.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(models.Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// Authenticator verifies access tokens and resolves them to a stored user.
type Authenticator struct {
	tokens  *utils.Tokens
	users   store.UserRepository
	timeout time.Duration
	logger  *log.Entry
}

func NewAuthenticator(tokens *utils.Tokens, users store.UserRepository, timeout time.Duration) *Authenticator {
	return &Authenticator{
		tokens:  tokens,
		users:   users,
		timeout: timeout,
		logger:  log.WithField("component", "auth"),
	}
}

// Require rejects requests without a valid credential. An identity already attached
// by Optional is reused.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.resolve(r)
		if err != nil {
			envelope.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// Optional attaches the identity when the credential is valid and otherwise lets the
// request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.resolve(r)
		if err != nil {
			if apperr.Is(err, apperr.StorageUnavailable) {
				a.logger.WithError(err).Warn("treating caller as anonymous")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// Admin ensures that the user has admin privileges. It runs after Require.
func (a *Authenticator) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			envelope.Error(w, apperr.Unauthorized(""))
			return
		}
		if !id.IsAdmin() {
			envelope.Error(w, apperr.New(apperr.Forbidden, "Forbidden: Admins only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(r *http.Request) (models.Identity, error) {
	tokenStr, err := bearerToken(r)
	if err != nil {
		return models.Identity{}, err
	}

	claims, err := a.tokens.ParseAccess(tokenStr)
	if errors.Is(err, utils.ErrExpiredToken) {
		return models.Identity{}, apperr.Unauthorized("Token expired")
	}
	if err != nil {
		return models.Identity{}, apperr.Unauthorized("Invalid token")
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return models.Identity{}, apperr.Unauthorized("Invalid token")
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	user, err := a.users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Identity{}, apperr.Unauthorized("Invalid token")
	}
	if err != nil {
		return models.Identity{}, apperr.Unavailable(err)
	}
	return models.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// bearerToken reads the Authorization header and falls back to the access token cookie.
func bearerToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", apperr.Unauthorized("Invalid Authorization header format")
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", apperr.Unauthorized("")
}
