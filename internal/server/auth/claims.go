package auth

import (
	"time"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/google/uuid"
)

// AccessClaims is the verified content of an access token. It is never
// persisted; everything is reconstructed from the signed token.
type AccessClaims struct {
	Subject     string
	JTI         string
	Scopes      []string
	IsSuperuser bool
	ExpiresAt   time.Time
}

// HasScope reports whether the token grants scope. Superusers hold every scope.
func (a *AccessClaims) HasScope(scope string) bool {
	if a.IsSuperuser {
		return true
	}
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RefreshClaims is the verified content of a refresh token. JTI links it to
// its server-side record.
type RefreshClaims struct {
	Subject   string
	JTI       string
	ExpiresAt time.Time
}

// NewAccessClaims builds the claim set for an access token.
func NewAccessClaims(subject, jti string, scopes []string, superuser bool) Claims {
	c := Claims{Type: TokenTypeAccess, Scopes: append([]string(nil), scopes...), IsSuperuser: superuser}
	c.Subject = subject
	c.ID = jti
	return c
}

// NewRefreshClaims builds the claim set for a refresh token.
func NewRefreshClaims(subject, jti string) Claims {
	c := Claims{Type: TokenTypeRefresh}
	c.Subject = subject
	c.ID = jti
	return c
}

// Access narrows decoded claims to an access token. It fails with
// common.ErrTokenWrongType for any other type and common.ErrTokenMalformed
// when sub or jti is not a UUID.
func (c *Claims) Access() (*AccessClaims, error) {
	if c.Type != TokenTypeAccess {
		return nil, common.ErrTokenWrongType
	}
	if !c.validIDs() {
		return nil, common.ErrTokenMalformed
	}
	out := &AccessClaims{
		Subject:     c.Subject,
		JTI:         c.ID,
		Scopes:      c.Scopes,
		IsSuperuser: c.IsSuperuser,
	}
	if out.Scopes == nil {
		out.Scopes = []string{}
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// Refresh narrows decoded claims to a refresh token, with the same failure
// categories as Access.
func (c *Claims) Refresh() (*RefreshClaims, error) {
	if c.Type != TokenTypeRefresh {
		return nil, common.ErrTokenWrongType
	}
	if !c.validIDs() {
		return nil, common.ErrTokenMalformed
	}
	out := &RefreshClaims{Subject: c.Subject, JTI: c.ID}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// validIDs reports whether sub and jti are UUIDs, as issued by the server.
func (c *Claims) validIDs() bool {
	if _, err := uuid.Parse(c.Subject); err != nil {
		return false
	}
	_, err := uuid.Parse(c.ID)
	return err == nil
}
