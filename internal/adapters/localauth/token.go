package localauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A reset token must never verify where an access token is
// expected, and vice versa.
const (
	purposeAccess = "access"
	purposeReset  = "reset"
)

// tokenClaims is the claim set carried by every token this store mints.
// Version pins the token to the identity's token version at mint time, so
// bumping the version revokes everything outstanding.
type tokenClaims struct {
	Email   string `json:"email"`
	Version int    `json:"ver"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

func (t *tokenIssuer) mint(identityID, email string, version int, purpose string) (string, error) {
	ttl := t.accessTTL
	if purpose == purposeReset {
		ttl = t.resetTTL
	}
	now := t.now().UTC()
	claims := tokenClaims{
		Email:   email,
		Version: version,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (t *tokenIssuer) parse(raw, purpose string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("token purpose %q not accepted here", claims.Purpose)
	}
	return claims, nil
}
