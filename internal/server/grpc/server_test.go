package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// startBufServer serves s over an in-memory listener and returns a client.
func startBufServer(t *testing.T, s *GRPCServer) *AuthServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return NewAuthServiceClient(conn)
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestServer(&fakeSessions{}, &fakeUsers{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BadAddress(t *testing.T) {
	s := NewGRPCServer("bad::address", logging.Nop{}, &fakeSessions{}, &fakeUsers{})
	err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestE2E_SignUpLoginRefreshLogout(t *testing.T) {
	ss := &fakeSessions{}
	c := startBufServer(t, newTestServer(ss, &fakeUsers{}))
	ctx := context.Background()

	u, err := c.SignUp(ctx, &SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{}, u.Scopes)

	tok, err := c.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, int64(1700000060), tok.AccessExpiresAt)

	tok, err = c.Refresh(ctx, &RefreshRequest{RefreshToken: tok.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)

	_, err = c.Logout(ctx, &LogoutRequest{RefreshToken: "refresh"})
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh"}, ss.loggedOut)
}

func TestE2E_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{fmt.Errorf("%w: bad email", common.ErrorValidation), codes.InvalidArgument},
		{common.ErrorAlreadyExists, codes.AlreadyExists},
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrorForbidden, codes.PermissionDenied},
		{errors.Join(common.ErrorInternal, errors.New("db down")), codes.Internal},
		{errors.New("unexpected"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			c := startBufServer(t, newTestServer(&fakeSessions{loginErr: tc.err}, &fakeUsers{}))
			_, err := c.Login(context.Background(), &LoginRequest{Email: "a@b.c", Password: "x"})
			assert.Equal(t, tc.code, status.Code(err))
			if tc.code == codes.Internal {
				assert.NotContains(t, status.Convert(err).Message(), "db down")
			}
		})
	}
}

func TestE2E_MeRequiresToken(t *testing.T) {
	c := startBufServer(t, newTestServer(&fakeSessions{}, &fakeUsers{}))

	_, err := c.Me(context.Background(), &MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	u, err := c.Me(withToken("good-token"), &MeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestE2E_ChangePassword(t *testing.T) {
	us := &fakeUsers{}
	c := startBufServer(t, newTestServer(&fakeSessions{}, us))

	_, err := c.ChangePassword(withToken("good-token"), &ChangePasswordRequest{OldPassword: "a", NewPassword: "b"})
	require.NoError(t, err)
	assert.Equal(t, "u1", us.changed)

	us.changeErr = common.ErrorUnauthorized
	_, err = c.ChangePassword(withToken("good-token"), &ChangePasswordRequest{OldPassword: "x", NewPassword: "b"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestE2E_GetScopes_OwnAndOthers(t *testing.T) {
	ss := &fakeSessions{}
	c := startBufServer(t, newTestServer(ss, &fakeUsers{}))

	resp, err := c.GetScopes(withToken("good-token"), &ScopesRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, []string{"tasks:read"}, resp.Scopes)

	_, err = c.GetScopes(withToken("good-token"), &ScopesRequest{UserID: "u2"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ss.scopes = []string{common.AdminScope}
	resp, err = c.GetScopes(withToken("good-token"), &ScopesRequest{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "u2", resp.UserID)
}

func TestE2E_MutateScopes_RequiresAdmin(t *testing.T) {
	ss := &fakeSessions{}
	c := startBufServer(t, newTestServer(ss, &fakeUsers{}))
	ctx := withToken("good-token")

	_, err := c.AddScopes(ctx, &ScopesRequest{Scopes: []string{"tasks:write"}})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ss.superuser = true

	resp, err := c.AddScopes(ctx, &ScopesRequest{UserID: "u2", Scopes: []string{"b", "a", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resp.Scopes)
	assert.Equal(t, "u2", ss.lastTarget)

	resp, err = c.UpdateScopes(ctx, &ScopesRequest{UserID: "u3", Scopes: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, resp.Scopes)

	resp, err = c.RemoveScopes(ctx, &ScopesRequest{UserID: "u3", Scopes: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Scopes)

	ss.scopeErr = common.ErrorNotFound
	_, err = c.RemoveScopes(ctx, &ScopesRequest{UserID: "ghost", Scopes: []string{"x"}})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_ExtraInterceptorsSeeRejectedCalls(t *testing.T) {
	var seen []string
	record := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return handler(ctx, req)
	}

	s := NewGRPCServer("", logging.Nop{}, &fakeSessions{}, &fakeUsers{}, record)
	c := startBufServer(t, s)

	_, err := c.Me(context.Background(), &MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, []string{MethodMe}, seen)
}
