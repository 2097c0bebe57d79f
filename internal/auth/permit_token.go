package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PermitClaims is the self-contained permit credential. Possession is
// necessary but not sufficient: verification re-reads the permit row.
type PermitClaims struct {
	PermitID string `json:"permit_id"`
	IssuerID string `json:"issuer_id"`
	jwt.RegisteredClaims
}

// PermitTokens mints and parses permit credentials. A permit may have many
// tokens issued against it; all decode to the same permit row.
type PermitTokens struct {
	secret string
	issuer string
}

func NewPermitTokens(secret, issuer string) *PermitTokens {
	return &PermitTokens{secret: secret, issuer: issuer}
}

func (t *PermitTokens) Mint(permitID, issuerID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := PermitClaims{
		PermitID: permitID,
		IssuerID: issuerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   permitID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.secret))
}

// Parse verifies the signature and the exp claim; both failures are reported
// identically so callers treat the token as invalid either way.
func (t *PermitTokens) Parse(tokenString string) (*PermitClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PermitClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(t.secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*PermitClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
