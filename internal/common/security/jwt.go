package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrWrongTokenKind = errors.New("wrong token kind")

// Principal is the identity carried by a verified token.
type Principal struct {
	UserID      int64
	Username    string
	Permissions []string
}

// TokenIssuer signs and verifies access and refresh tokens with one HS256 key.
type TokenIssuer struct {
	auth       *jwtauth.JWTAuth
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(key []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		auth:       jwtauth.New("HS256", key, nil),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// JWTAuth exposes the underlying verifier for the router middleware.
func (ti *TokenIssuer) JWTAuth() *jwtauth.JWTAuth {
	return ti.auth
}

func (ti *TokenIssuer) GenerateAccessToken(p Principal) (string, error) {
	return ti.generate(p, false, ti.accessTTL)
}

func (ti *TokenIssuer) GenerateRefreshToken(p Principal) (string, error) {
	return ti.generate(p, true, ti.refreshTTL)
}

func (ti *TokenIssuer) generate(p Principal, refresh bool, ttl time.Duration) (string, error) {
	now := ti.now()
	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	claims := jwt.MapClaims{
		"user_id":     p.UserID,
		"username":    p.Username,
		"permissions": perms,
		"refresh":     refresh,
		"jti":         uuid.NewString(),
		"exp":         now.Add(ttl).Unix(),
		"iat":         now.Unix(),
	}
	_, tokenString, err := ti.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("TokenIssuer.generate: %w", err)
	}
	return tokenString, nil
}

// VerifyRefreshToken checks signature and expiry and that the token was
// minted as a refresh token.
func (ti *TokenIssuer) VerifyRefreshToken(tokenString string) (Principal, error) {
	token, err := jwtauth.VerifyToken(ti.auth, tokenString)
	if err != nil {
		return Principal{}, fmt.Errorf("TokenIssuer.VerifyRefreshToken: %w", err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return Principal{}, fmt.Errorf("TokenIssuer.VerifyRefreshToken: %w", err)
	}
	if !IsRefreshClaims(claims) {
		return Principal{}, ErrWrongTokenKind
	}
	return PrincipalFromClaims(claims)
}

// IsRefreshClaims reports whether the claims belong to a refresh token.
func IsRefreshClaims(claims jwt.MapClaims) bool {
	refresh, _ := claims["refresh"].(bool)
	return refresh
}

// PrincipalFromClaims reads the identity claims. Numbers arrive as float64
// after a JSON round trip and lists as []interface{}.
func PrincipalFromClaims(claims jwt.MapClaims) (Principal, error) {
	var p Principal
	switch id := claims["user_id"].(type) {
	case float64:
		p.UserID = int64(id)
	case int64:
		p.UserID = id
	case int:
		p.UserID = int64(id)
	default:
		return Principal{}, errors.New("user_id claim is missing or not a number")
	}

	username, ok := claims["username"].(string)
	if !ok {
		return Principal{}, errors.New("username claim is missing or not a string")
	}
	p.Username = username

	switch perms := claims["permissions"].(type) {
	case []string:
		p.Permissions = perms
	case []interface{}:
		for _, v := range perms {
			if s, ok := v.(string); ok {
				p.Permissions = append(p.Permissions, s)
			}
		}
	case nil:
	default:
		return Principal{}, errors.New("permissions claim is not a list")
	}
	return p, nil
}
