package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"cargodesk/backend/internal/domain"
)

func TestSignedTokenRoundTrips(t *testing.T) {
	auth := NewAuthManager("test-secret-key-with-32-characters", time.Hour)
	token, err := auth.Sign(domain.Actor{StaffID: "10", Role: RoleOperator, BranchID: 2})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.StaffID != "10" || actor.Role != RoleOperator || actor.BranchID != 2 {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager("another-secret-key-with-32-chars!!", time.Hour)
	token, err := issuer.Sign(domain.Actor{StaffID: "10", Role: RoleOperator})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	auth := NewAuthManager("test-secret-key-with-32-characters", time.Hour)
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpiredAndUnsubjected(t *testing.T) {
	secret := []byte("test-secret-key-with-32-characters")
	auth := NewAuthManager(string(secret), time.Hour)

	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, cargoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "10",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleOperator,
	})
	signed, err := expired.SignedString(secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	anonymous := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, cargoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleOperator,
	})
	signed, err = anonymous.SignedString(secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatalf("expected token without subject to be rejected")
	}
}

func TestParseTokenRequiresExpiry(t *testing.T) {
	secret := []byte("test-secret-key-with-32-characters")
	auth := NewAuthManager(string(secret), time.Hour)

	forever := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, cargoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "10"},
		Role:             RoleOperator,
	})
	signed, err := forever.SignedString(secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}
