package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"flipzone/models"
)

const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// Tokens issues and verifies access and refresh tokens. The two kinds are signed with
// different secrets so one can never stand in for the other.
type Tokens struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokens(accessSecret, refreshSecret string) *Tokens {
	return &Tokens{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  AccessTokenTTL,
		refreshTTL: RefreshTokenTTL,
	}
}

// IssueAccess generates an access token for a user
func (t *Tokens) IssueAccess(u models.User) (string, time.Time, error) {
	return issue(u, t.accessKey, t.accessTTL)
}

// IssueRefresh generates a refresh token for a user
func (t *Tokens) IssueRefresh(u models.User) (string, time.Time, error) {
	return issue(u, t.refreshKey, t.refreshTTL)
}

func (t *Tokens) ParseAccess(token string) (*Claims, error) {
	return parse(token, t.accessKey)
}

func (t *Tokens) ParseRefresh(token string) (*Claims, error) {
	return parse(token, t.refreshKey)
}

func issue(u models.User, key []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(ttl)
	claims := &Claims{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.Hex(),
			IssuedAt:  now.Unix(),
			ExpiresAt: expirationTime.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expirationTime, nil
}

func parse(tokenStr string, key []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
