package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/google/uuid"
)

// TokenTypeBearer is the OAuth-style token_type of every issued pair.
const TokenTypeBearer = "Bearer"

// TokenPair is handed to the client once and never stored verbatim.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshJTI       string
	RefreshExpiresAt time.Time
	TokenType        string
}

// SessionConfig carries the token lifetimes.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionManager logs users in, verifies access tokens, rotates refresh
// tokens and logs users out. It keeps no per-call state; all durable state
// lives behind UserDirectory and RefreshTokenStore.
type SessionManager struct {
	users  UserDirectory
	tokens RefreshTokenStore
	codec  TokenCodec
	hasher Hasher
	cfg    SessionConfig
	logger logging.Logger

	newJTI func() string

	// dummyDigest is verified against on unknown emails so that the miss
	// costs one hash verification like a hit does.
	dummyOnce   sync.Once
	dummyDigest string
}

func NewSessionManager(users UserDirectory, tokens RefreshTokenStore, codec TokenCodec, hasher Hasher, cfg SessionConfig, logger logging.Logger) *SessionManager {
	return &SessionManager{
		users:  users,
		tokens: tokens,
		codec:  codec,
		hasher: hasher,
		cfg:    cfg,
		logger: logger.With("module", "sessions"),
		newJTI: uuid.NewString,
	}
}

// Login checks the password of the user registered under email and issues a
// fresh token pair. Unknown email and wrong password fail identically with
// common.ErrorUnauthorized.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(password)
			return nil, common.ErrorUnauthorized
		}
		return nil, internal(err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn(ctx, "stored password digest unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok || !user.IsActive {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "refresh_jti", pair.RefreshJTI)
	return pair, nil
}

// VerifyAccessToken decodes an access token offline. It does not consult the
// directory, so a user deactivated after issuance keeps a working access
// token until it expires.
func (s *SessionManager) VerifyAccessToken(ctx context.Context, token string) (*auth.AccessClaims, bool) {
	claims, err := s.codec.Decode(token, true)
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "reason", err)
		return nil, false
	}
	access, err := claims.Access()
	if err != nil {
		s.logger.Debug(ctx, "access token rejected", "reason", err)
		return nil, false
	}
	return access, true
}

// RefreshTokens redeems a refresh token exactly once. The consumed record is
// deleted before the new pair is minted: if minting fails the user has to
// log in again, but the old token can never be reused.
func (s *SessionManager) RefreshTokens(ctx context.Context, token string) (*TokenPair, error) {
	claims, err := s.codec.Decode(token, true)
	if err != nil {
		return nil, s.reject(ctx, "decode failed", err)
	}
	rc, err := claims.Refresh()
	if err != nil {
		return nil, s.reject(ctx, "not a refresh token", err)
	}
	log := []any{"user_id", rc.Subject, "refresh_jti", rc.JTI}

	rec, err := s.tokens.GetByJTI(ctx, rc.JTI)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, "refresh token record not found", err, log...)
		}
		return nil, internal(err)
	}
	if rec.UserID != rc.Subject {
		return nil, s.reject(ctx, "refresh token record belongs to another user", nil, log...)
	}

	ok, err := s.hasher.Verify(token, rec.TokenHash)
	if err != nil || !ok {
		return nil, s.reject(ctx, "refresh token hash mismatch", err, log...)
	}

	user, err := s.users.GetUser(ctx, rc.Subject)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.revoke(ctx, rc.JTI)
		return nil, s.reject(ctx, "user no longer exists", err, log...)
	case err != nil:
		return nil, internal(err)
	case !user.IsActive:
		s.revoke(ctx, rc.JTI)
		return nil, s.reject(ctx, "user is inactive", nil, log...)
	}

	removed, err := s.tokens.DeleteByJTI(ctx, rc.JTI)
	if err != nil {
		return nil, internal(err)
	}
	if !removed {
		return nil, s.reject(ctx, "refresh token consumed concurrently", nil, log...)
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "refresh token rotated", append(log, "new_refresh_jti", pair.RefreshJTI)...)
	return pair, nil
}

// Logout revokes the refresh-token record behind token. It never fails:
// forged, malformed or already revoked tokens are silently ignored. Expired
// tokens are still honoured so their records get cleaned up.
func (s *SessionManager) Logout(ctx context.Context, token string) {
	claims, err := s.codec.Decode(token, false)
	if err != nil {
		s.logger.Debug(ctx, "logout ignored", "reason", err)
		return
	}
	rc, err := claims.Refresh()
	if err != nil {
		s.logger.Debug(ctx, "logout ignored", "reason", err)
		return
	}

	removed, err := s.tokens.DeleteByJTI(ctx, rc.JTI)
	if err != nil {
		s.logger.Error(ctx, "logout: deleting refresh token", "refresh_jti", rc.JTI, "error", err)
		return
	}
	if removed {
		s.logger.Info(ctx, "user logged out", "user_id", rc.Subject, "refresh_jti", rc.JTI)
	}
}

// GetScopes returns the user's current scopes.
func (s *SessionManager) GetScopes(ctx context.Context, userID string) ([]string, error) {
	return s.users.GetScopes(ctx, userID)
}

// AddScopes is set union with the stored scopes. Access tokens already issued
// keep their old snapshot; the change shows up on the next refresh.
func (s *SessionManager) AddScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return s.users.AddScopes(ctx, userID, scopes)
}

// UpdateScopes replaces the stored scopes.
func (s *SessionManager) UpdateScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return s.users.UpdateScopes(ctx, userID, scopes)
}

// RemoveScopes is set difference with the stored scopes.
func (s *SessionManager) RemoveScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return s.users.RemoveScopes(ctx, userID, scopes)
}

// issue mints an access/refresh pair for user and persists the refresh record.
func (s *SessionManager) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessJTI, refreshJTI := s.newJTI(), s.newJTI()

	access, accessExp, err := s.codec.Encode(
		auth.NewAccessClaims(user.ID, accessJTI, user.Scopes, user.IsSuperuser), s.cfg.AccessTTL)
	if err != nil {
		return nil, internal(err)
	}
	refresh, refreshExp, err := s.codec.Encode(auth.NewRefreshClaims(user.ID, refreshJTI), s.cfg.RefreshTTL)
	if err != nil {
		return nil, internal(err)
	}

	digest, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, internal(err)
	}
	if err := s.tokens.Create(ctx, models.NewRefreshToken(refreshJTI, user.ID, digest, refreshExp)); err != nil {
		return nil, internal(err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshJTI:       refreshJTI,
		RefreshExpiresAt: refreshExp,
		TokenType:        TokenTypeBearer,
	}, nil
}

// revoke deletes a record on a failed refresh. Errors are only logged since
// the caller is already being rejected.
func (s *SessionManager) revoke(ctx context.Context, jti string) {
	if _, err := s.tokens.DeleteByJTI(ctx, jti); err != nil {
		s.logger.Error(ctx, "revoking refresh token", "refresh_jti", jti, "error", err)
	}
}

func (s *SessionManager) reject(ctx context.Context, reason string, cause error, args ...any) error {
	if cause != nil {
		args = append(args, "cause", cause.Error())
	}
	s.logger.Warn(ctx, "refresh rejected: "+reason, args...)
	return common.ErrorUnauthorized
}

func (s *SessionManager) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("taskflow-dummy-password")
		if err == nil {
			s.dummyDigest = d
		}
	})
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
	}
}

// internal marks an infrastructure failure while keeping the cause inspectable.
func internal(err error) error {
	return errors.Join(common.ErrorInternal, err)
}
