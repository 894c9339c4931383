package models

import "time"

// RefreshToken is the server-side proof that a refresh token was issued and
// is still valid. TokenHash is a one-way hash; the plaintext token is never
// stored.
type RefreshToken struct {
	JTI       string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewRefreshToken(jti, userID, tokenHash string, expiresAt time.Time) *RefreshToken {
	return &RefreshToken{
		JTI:       jti,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
}
