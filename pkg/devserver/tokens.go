package devserver

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/vnfood/foodctl/pkg/metrics"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	errTokenInvalid = errors.New("invalid token")
	errTokenType    = errors.New("wrong token type")
	errTokenRevoked = errors.New("token revoked")
)

type tokenClaims struct {
	Username   string `json:"username"`
	Type       string `json:"type"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

// issuer signs and checks tokens. Each token type carries a generation;
// bumping it invalidates every token issued before.
type issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	accessGen  atomic.Int64
	refreshGen atomic.Int64
	now        func() time.Time
}

func newIssuer(secret string, accessTTL, refreshTTL time.Duration) *issuer {
	return &issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *issuer) issue(username, tokenType string) (string, error) {
	ttl, gen := i.accessTTL, i.accessGen.Load()
	if tokenType == tokenTypeRefresh {
		ttl, gen = i.refreshTTL, i.refreshGen.Load()
	}
	now := i.now()
	claims := tokenClaims{
		Username:   username,
		Type:       tokenType,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	metrics.DevServerTokensIssued.WithLabelValues(tokenType).Inc()
	return signed, nil
}

// verify returns the username of a valid token of the wanted type.
func (i *issuer) verify(token, tokenType string) (string, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errTokenInvalid
	}
	if claims.Type != tokenType {
		return "", errTokenType
	}
	current := i.accessGen.Load()
	if tokenType == tokenTypeRefresh {
		current = i.refreshGen.Load()
	}
	if claims.Generation < current {
		return "", errTokenRevoked
	}
	if claims.Username == "" {
		return "", errTokenInvalid
	}
	return claims.Username, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errTokenType):
		return "wrong_type"
	case errors.Is(err, errTokenRevoked):
		return "revoked"
	default:
		return "invalid"
	}
}
