package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/TimShare/TaskFlow/internal/server/services"
)

// fakeSessions accepts "good-token" as an access token for subject "u1"
// with the configured scopes.
type fakeSessions struct {
	mu         sync.Mutex
	scopes     []string
	superuser  bool
	loginErr   error
	refreshErr error
	scopeErr   error
	loggedOut  []string
	lastTarget string
}

func (f *fakeSessions) pair() *services.TokenPair {
	now := time.Unix(1700000000, 0)
	return &services.TokenPair{
		AccessToken:      "access",
		AccessExpiresAt:  now.Add(time.Minute),
		RefreshToken:     "refresh",
		RefreshJTI:       "jti",
		RefreshExpiresAt: now.Add(time.Hour),
		TokenType:        services.TokenTypeBearer,
	}
}

func (f *fakeSessions) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.pair(), nil
}

func (f *fakeSessions) VerifyAccessToken(ctx context.Context, token string) (*auth.AccessClaims, bool) {
	if token != "good-token" {
		return nil, false
	}
	return &auth.AccessClaims{Subject: "u1", JTI: "a1", Scopes: f.scopes, IsSuperuser: f.superuser}, true
}

func (f *fakeSessions) RefreshTokens(ctx context.Context, token string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.pair(), nil
}

func (f *fakeSessions) Logout(ctx context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
}

func (f *fakeSessions) scopeOp(userID string, scopes []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTarget = userID
	if f.scopeErr != nil {
		return nil, f.scopeErr
	}
	return models.NormalizeScopes(scopes), nil
}

func (f *fakeSessions) GetScopes(ctx context.Context, userID string) ([]string, error) {
	return f.scopeOp(userID, []string{"tasks:read"})
}

func (f *fakeSessions) AddScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return f.scopeOp(userID, scopes)
}

func (f *fakeSessions) UpdateScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return f.scopeOp(userID, scopes)
}

func (f *fakeSessions) RemoveScopes(ctx context.Context, userID string, scopes []string) ([]string, error) {
	return f.scopeOp(userID, nil)
}

type fakeUsers struct {
	registerErr error
	changeErr   error
	changed     string
}

func (f *fakeUsers) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	u := models.NewUser(username, email, "digest")
	u.ID = "u1"
	return u, nil
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id != "u1" {
		return nil, common.ErrorNotFound
	}
	u := models.NewUser("alice", "alice@example.com", "digest")
	u.ID = id
	return u, nil
}

func (f *fakeUsers) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if f.changeErr != nil {
		return f.changeErr
	}
	f.changed = id
	return nil
}
