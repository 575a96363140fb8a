// Package jwt issues and verifies the HS256 access and refresh tokens used
// by the API.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes.
const (
	AccessTTL  = time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// Token uses, carried in the "use" claim so a refresh token can never be
// presented where an access token is expected.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongUse     = errors.New("token presented for the wrong use")
)

// Claims are the registered claims plus the subject's role and token use.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Use    string `json:"use"`
}

// Issuer mints and verifies tokens under a shared HMAC secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Access mints a 1-hour access token for the user.
func (i *Issuer) Access(userID, role string) (string, error) {
	return i.sign(userID, role, UseAccess, AccessTTL)
}

// Refresh mints a 30-day refresh token for the user.
func (i *Issuer) Refresh(userID, role string) (string, error) {
	return i.sign(userID, role, UseRefresh, RefreshTTL)
}

func (i *Issuer) sign(userID, role, use string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
		UserID: userID,
		Role:   role,
		Use:    use,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tok, nil
}

// Verify parses tokenString, checks the signature and expiry, and requires
// the expected use.
func (i *Issuer) Verify(tokenString, expectedUse string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Use != expectedUse {
		return nil, ErrWrongUse
	}
	return claims, nil
}
