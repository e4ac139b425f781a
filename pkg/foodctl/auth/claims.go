package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is what foodctl reads out of an access token. Tokens are otherwise
// opaque: nothing here is verified, and a token that is not a JWT is not an
// error for callers that only need the credential.
type Claims struct {
	Subject   string
	Username  string
	Type      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// ParseClaims decodes the JWT payload of token without checking its signature.
func ParseClaims(token string) (Claims, error) {
	mapClaims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, mapClaims); err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	claims := Claims{
		Subject:   stringClaim(mapClaims, "sub"),
		Username:  stringClaim(mapClaims, "username"),
		Type:      stringClaim(mapClaims, "type"),
		ExpiresAt: timeClaim(mapClaims, "exp"),
		IssuedAt:  timeClaim(mapClaims, "iat"),
	}
	if claims.Username == "" {
		claims.Username = claims.Subject
	}
	return claims, nil
}

// Expired reports whether the token has an expiry at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func timeClaim(claims jwt.MapClaims, key string) time.Time {
	switch v := claims[key].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}
