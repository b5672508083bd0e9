package realtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid covers expired, malformed, or wrongly-signed tokens.
var ErrTokenInvalid = errors.New("invalid realtime token")

// TokenClaims scope a subscription token to one channel instance and a subset
// of its topics. Tokens expire independently of the observed job's lifetime.
type TokenClaims struct {
	ChannelKey string   `json:"channelKey"`
	Topics     []string `json:"topics"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies short-lived subscription tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer from the process-wide secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint creates a bearer token granting read access to the given topics of one
// channel instance. Requested topics outside the channel's fixed set are
// rejected; the minted grant is never wider than the channel allows.
func (i *TokenIssuer) Mint(ch Channel, topics []string) (string, error) {
	if len(topics) == 0 {
		return "", errors.New("at least one topic is required")
	}
	for _, t := range topics {
		if !ch.Allows(t) {
			return "", fmt.Errorf("channel %s does not carry topic %q", ch.Key, t)
		}
	}

	now := time.Now()
	claims := TokenClaims{
		ChannelKey: ch.Key,
		Topics:     topics,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign realtime token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its scope.
func (i *TokenIssuer) Verify(tokenString string) (TokenClaims, error) {
	var claims TokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.ChannelKey == "" || len(claims.Topics) == 0 {
		return TokenClaims{}, ErrTokenInvalid
	}
	return claims, nil
}
