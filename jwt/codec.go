package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned by [Decode] when the input is not a structured
// bearer token.
var ErrMalformedToken = errors.New("malformed bearer token")

// Claims is the decoded payload of a bearer token.
//
// Only the expiry is interpreted by the portal. Everything else is passed
// through untouched in Raw.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	HasExpiry bool
	IssuedAt  time.Time
	Raw       map[string]any
}

// Decode parses the claims segment of token without checking its signature.
//
// Decode returns an error wrapping [ErrMalformedToken] for anything that is not
// three dot-separated base64url segments carrying a JSON header and payload.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", ErrMalformedToken, err)
	}
	iat, err := mapClaims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: iat: %v", ErrMalformedToken, err)
	}
	sub, err := mapClaims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: sub: %v", ErrMalformedToken, err)
	}

	claims := &Claims{
		Subject: sub,
		Raw:     map[string]any(mapClaims),
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
		claims.HasExpiry = true
	}
	if iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}

// Expired reports whether the token expiry, extended by leeway, lies before now.
// A token without an exp claim counts as expired.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c == nil || !c.HasExpiry {
		return true
	}
	return c.ExpiresAt.Add(leeway).Before(now)
}
