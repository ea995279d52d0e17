package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"cargodesk/backend/internal/domain"
)

const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"

	tokenIssuer = "cargodesk"
)

// AuthManager verifies the bearer tokens issued by the identity service. Sign
// exists for tooling and tests that need a token with the same secret.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type cargoClaims struct {
	jwtlib.RegisteredClaims
	Role     string `json:"role"`
	BranchID int64  `json:"branch_id"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), tokenTTL: tokenTTL}
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &cargoClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithExpirationRequired())
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if claims.BranchID < 0 {
		return domain.Actor{}, errors.New("invalid token branch")
	}
	return domain.Actor{StaffID: sub, Role: claims.Role, BranchID: claims.BranchID}, nil
}

// Sign issues a token for actor valid for the configured TTL.
func (a *AuthManager) Sign(actor domain.Actor) (string, error) {
	now := time.Now().UTC()
	claims := cargoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.StaffID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
			Issuer:    tokenIssuer,
		},
		Role:     actor.Role,
		BranchID: actor.BranchID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func actorLabel(actor domain.Actor) string {
	return actor.StaffID + "@" + strconv.FormatInt(actor.BranchID, 10)
}
