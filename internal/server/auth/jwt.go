// Package auth holds the token codec: it encodes and decodes the signed,
// expiring claim sets used as bearer access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrEmptySecret          = errors.New("empty signing secret")
)

// Claims is the flat claim set carried by every token. Scopes and
// IsSuperuser are meaningful for access tokens only.
type Claims struct {
	jwt.RegisteredClaims
	Type        string   `json:"type"`
	Scopes      []string `json:"scopes,omitempty"`
	IsSuperuser bool     `json:"is_superuser,omitempty"`
}

// accessWire always emits scopes and is_superuser, even when empty/false.
type accessWire struct {
	jwt.RegisteredClaims
	Type        string   `json:"type"`
	Scopes      []string `json:"scopes"`
	IsSuperuser bool     `json:"is_superuser"`
}

type refreshWire struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// Codec signs and verifies tokens with a process-wide symmetric secret and a
// fixed HMAC algorithm. It is immutable and safe for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec returns a codec for one of HS256, HS384 or HS512.
func NewCodec(secret []byte, algorithm string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	m := jwt.GetSigningMethod(algorithm)
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return &Codec{secret: secret, method: m, now: time.Now}, nil
}

// Algorithm returns the configured algorithm identifier.
func (c *Codec) Algorithm() string { return c.method.Alg() }

// Encode stamps iat and exp (now+ttl) onto claims, signs them and returns the
// compact token with its absolute expiry.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := c.now().Truncate(time.Second)
	exp := now.Add(ttl)

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	var wire jwt.Claims
	switch claims.Type {
	case TokenTypeAccess:
		scopes := claims.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		wire = accessWire{RegisteredClaims: claims.RegisteredClaims, Type: claims.Type, Scopes: scopes, IsSuperuser: claims.IsSuperuser}
	case TokenTypeRefresh:
		wire = refreshWire{RegisteredClaims: claims.RegisteredClaims, Type: claims.Type}
	default:
		wire = claims
	}

	token, err := jwt.NewWithClaims(c.method, wire).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Decode parses token and always verifies its signature and algorithm.
// Expiry is checked only when verifyExpiry is set, so logout can still read
// the jti of an expired refresh token.
//
// Failures are one of common.ErrTokenExpired, common.ErrTokenSignatureInvalid
// or common.ErrTokenMalformed.
func (c *Codec) Decode(token string, verifyExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		// Reject signatures whose trailing base64 bits are not zero, so every
		// distinct signature string is a distinct signature.
		jwt.WithStrictDecoding(),
	}
	if verifyExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrTokenSignatureInvalid
	default:
		return common.ErrTokenMalformed
	}
}
