package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("hash equals password")
	}
	if !CheckPasswordHash("hunter22", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("hunter23", hash) {
		t.Fatal("wrong password accepted")
	}

	other, _ := HashPassword("hunter22")
	if other == hash {
		t.Fatal("hashes should be salted")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), 20*time.Minute, time.Hour)
	want := Principal{UserID: 7, Username: "alice", Permissions: []string{"admin"}}

	tokenString, err := ti.GenerateAccessToken(want)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	token, err := jwtauth.VerifyToken(ti.JWTAuth(), tokenString)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		t.Fatalf("AsMap: %v", err)
	}
	if IsRefreshClaims(claims) {
		t.Fatal("access token marked as refresh")
	}
	got, err := PrincipalFromClaims(claims)
	if err != nil {
		t.Fatalf("PrincipalFromClaims: %v", err)
	}
	if got.UserID != 7 || got.Username != "alice" || len(got.Permissions) != 1 || got.Permissions[0] != "admin" {
		t.Fatalf("got %+v", got)
	}
}

func TestVerifyRefreshToken(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), time.Minute, time.Hour)
	p := Principal{UserID: 3, Username: "bob"}

	refresh, err := ti.GenerateRefreshToken(p)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	got, err := ti.VerifyRefreshToken(refresh)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if got.UserID != 3 || got.Username != "bob" {
		t.Fatalf("got %+v", got)
	}

	access, _ := ti.GenerateAccessToken(p)
	if _, err := ti.VerifyRefreshToken(access); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
}

func TestVerifyRefreshTokenExpired(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), time.Minute, time.Hour)
	ti.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	refresh, err := ti.GenerateRefreshToken(Principal{UserID: 1, Username: "old"})
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if _, err := ti.VerifyRefreshToken(refresh); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyRefreshTokenWrongKey(t *testing.T) {
	a := NewTokenIssuer([]byte("secret-a"), time.Minute, time.Hour)
	b := NewTokenIssuer([]byte("secret-b"), time.Minute, time.Hour)

	refresh, _ := a.GenerateRefreshToken(Principal{UserID: 1, Username: "x"})
	if _, err := b.VerifyRefreshToken(refresh); err == nil {
		t.Fatal("token signed with another key accepted")
	}
}
