package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu         sync.Mutex
	msgs       []published
	publishErr error
	drainErr   error
	drained    bool
	closed     bool
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error { return nil }

func (f *fakeConn) Drain() error {
	f.drained = true
	return f.drainErr
}

func (f *fakeConn) Close() { f.closed = true }

func withFakeConn(t *testing.T, fc *fakeConn, connectErr error) *string {
	t.Helper()
	var gotURL string
	orig := natsConnect
	natsConnect = func(url string, opts ...nats.Option) (conn, error) {
		gotURL = url
		if connectErr != nil {
			return nil, connectErr
		}
		return fc, nil
	}
	t.Cleanup(func() { natsConnect = orig })
	return &gotURL
}

func TestNATSPublisher_PublishJSON(t *testing.T) {
	fc := &fakeConn{}
	url := withFakeConn(t, fc, nil)
	p := NewNATSPublisher("nats://broker:4222", "taskflow", logging.Nop{})
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.Equal(t, "nats://broker:4222", *url)

	require.NoError(t, p.Publish(ctx, SubjectUsers, NewScopesChanged("u-1", []string{"tasks:read"})))

	require.Len(t, fc.msgs, 1)
	assert.Equal(t, "taskflow.users", fc.msgs[0].subject)

	var body map[string]any
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &body))
	assert.Equal(t, TypeScopesChanged, body["event_type"])
	assert.Equal(t, "u-1", body["user_id"])
	assert.Equal(t, []any{"tasks:read"}, body["scopes"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestNATSPublisher_NoPrefix(t *testing.T) {
	fc := &fakeConn{}
	withFakeConn(t, fc, nil)
	p := NewNATSPublisher("nats://x", "", logging.Nop{})
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Publish(context.Background(), "users", NewUserCreated("u", "n", "e")))
	assert.Equal(t, "users", fc.msgs[0].subject)
}

func TestNATSPublisher_NotStarted(t *testing.T) {
	p := NewNATSPublisher("nats://x", "p", logging.Nop{})
	err := p.Publish(context.Background(), "users", NewUserCreated("u", "n", "e"))
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNATSPublisher_ConnectError(t *testing.T) {
	withFakeConn(t, nil, errors.New("no route"))
	p := NewNATSPublisher("nats://x", "p", logging.Nop{})

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
}

func TestNATSPublisher_PublishError(t *testing.T) {
	fc := &fakeConn{publishErr: nats.ErrConnectionClosed}
	withFakeConn(t, fc, nil)
	p := NewNATSPublisher("nats://x", "p", logging.Nop{})
	require.NoError(t, p.Start(context.Background()))

	err := p.Publish(context.Background(), "users", NewPasswordChanged("u", 2))
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestNATSPublisher_StopDrains(t *testing.T) {
	fc := &fakeConn{}
	withFakeConn(t, fc, nil)
	p := NewNATSPublisher("nats://x", "p", logging.Nop{})
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	require.NoError(t, p.Stop(ctx))
	assert.True(t, fc.drained)
	assert.ErrorIs(t, p.Publish(ctx, "users", NewUserUpdated("u", nil)), ErrNotStarted)

	// second stop is a no-op
	require.NoError(t, p.Stop(ctx))
}

func TestNATSPublisher_DrainErrorCloses(t *testing.T) {
	fc := &fakeConn{drainErr: errors.New("drain")}
	withFakeConn(t, fc, nil)
	p := NewNATSPublisher("nats://x", "p", logging.Nop{})
	require.NoError(t, p.Start(context.Background()))

	require.Error(t, p.Stop(context.Background()))
	assert.True(t, fc.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	ctx := context.Background()
	assert.NoError(t, p.Start(ctx))
	assert.NoError(t, p.Publish(ctx, "users", NewUserCreated("u", "n", "e")))
	assert.NoError(t, p.Stop(ctx))
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{NewUserCreated("u", "n", "e"), TypeUserCreated},
		{NewUserUpdated("u", []string{"email"}), TypeUserUpdated},
		{NewPasswordChanged("u", 1), TypePasswordChanged},
		{NewScopesChanged("u", nil), TypeScopesChanged},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.EventType())
	}
}
