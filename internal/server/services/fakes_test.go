package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/cryptox"
	"github.com/TimShare/TaskFlow/internal/dbx"
	"github.com/TimShare/TaskFlow/internal/events"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/TimShare/TaskFlow/internal/server/repositories/refreshtokens"
	"github.com/TimShare/TaskFlow/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newTestHasher() *cryptox.Argon2idHasher {
	return cryptox.NewArgon2idHasher(cryptox.HasherParams{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
}

// --- users repository ---

type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	getErr error
	setErr error
}

func newMemUsers(us ...*models.User) *memUsers {
	m := &memUsers{byID: map[string]*models.User{}}
	for _, u := range us {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.byID {
		if ex.Email == u.Email || ex.Username == u.Username {
			return common.ErrorAlreadyExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	cp.Scopes = append([]string{}, u.Scopes...)
	return &cp, nil
}

func (m *memUsers) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return nil, m.getErr
	}
	var id string
	for _, u := range m.byID {
		if u.Email == email {
			id = u.ID
		}
	}
	m.mu.Unlock()
	if id == "" {
		return nil, common.ErrorNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *memUsers) UpdateFields(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	u, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return nil, common.ErrorNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.IsSuperuser != nil {
		u.IsSuperuser = *upd.IsSuperuser
	}
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) SetScopes(_ context.Context, id string, scopes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Scopes = models.NormalizeScopes(scopes)
	return nil
}

// --- refresh token store ---

type memTokens struct {
	mu        sync.Mutex
	byJTI     map[string]*models.RefreshToken
	createErr error
	getErr    error
	deleteErr error
	// neverRemoves makes DeleteByJTI report false, as if another caller won.
	neverRemoves bool
}

func newMemTokens() *memTokens {
	return &memTokens{byJTI: map[string]*models.RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, rt *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byJTI[rt.JTI]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *rt
	m.byJTI[rt.JTI] = &cp
	return nil
}

func (m *memTokens) GetByJTI(_ context.Context, jti string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rt, ok := m.byJTI[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *memTokens) DeleteByJTI(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if m.neverRemoves {
		return false, nil
	}
	_, ok := m.byJTI[jti]
	delete(m.byJTI, jti)
	return ok, nil
}

func (m *memTokens) DeleteByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, rt := range m.byJTI {
		if rt.UserID == userID {
			delete(m.byJTI, jti)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, rt := range m.byJTI {
		if rt.ExpiresAt.Before(now) {
			delete(m.byJTI, jti)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byJTI)
}

// --- repository manager ---

type fakeRepoManager struct {
	u *memUsers
	r *memTokens
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error            { return nil }
func (m *fakeRepoManager) SchemaVersion(context.Context, *sql.DB) (int64, error) { return 1, nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                       { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository       { return m.r }

// --- directory used by session tests ---

// memDirectory adapts memUsers to UserDirectory without a database.
type memDirectory struct {
	users *memUsers
}

func (d *memDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	return d.users.GetByID(ctx, id)
}

func (d *memDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.users.GetByEmail(ctx, email)
}

func (d *memDirectory) GetScopes(ctx context.Context, id string) ([]string, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Scopes, nil
}

func (d *memDirectory) mutate(ctx context.Context, id string, f func([]string) []string) ([]string, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := f(u.Scopes)
	return next, d.users.SetScopes(ctx, id, next)
}

func (d *memDirectory) AddScopes(ctx context.Context, id string, s []string) ([]string, error) {
	return d.mutate(ctx, id, func(c []string) []string { return models.UnionScopes(c, s) })
}

func (d *memDirectory) UpdateScopes(ctx context.Context, id string, s []string) ([]string, error) {
	return d.mutate(ctx, id, func([]string) []string { return models.NormalizeScopes(s) })
}

func (d *memDirectory) RemoveScopes(ctx context.Context, id string, s []string) ([]string, error) {
	return d.mutate(ctx, id, func(c []string) []string { return models.SubtractScopes(c, s) })
}

// --- events and logging ---

type memPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *memPublisher) Start(context.Context) error { return nil }
func (p *memPublisher) Stop(context.Context) error  { return nil }
func (p *memPublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType())
	}
	return out
}

// recLogger keeps warn messages so tests can assert internal causes.
type recLogger struct {
	logging.Nop
	mu    *sync.Mutex
	warns *[]string
}

func newRecLogger() recLogger {
	return recLogger{mu: &sync.Mutex{}, warns: &[]string{}}
}

func (l recLogger) Warn(_ context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.warns = append(*l.warns, fmt.Sprintln(append([]any{msg}, args...)...))
}

func (l recLogger) With(...any) logging.Logger { return l }

func (l recLogger) lastWarn() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(*l.warns) == 0 {
		return ""
	}
	return (*l.warns)[len(*l.warns)-1]
}
