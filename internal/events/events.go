// Package events publishes domain events of the user directory to a message
// broker. Publication is fire-and-forget: emitters log failures and carry on.
package events

import (
	"context"
	"time"
)

// Subject for every user directory event, relative to the publisher prefix.
const SubjectUsers = "users"

const (
	TypeUserCreated     = "UserCreated"
	TypeUserUpdated     = "UserUpdated"
	TypePasswordChanged = "PasswordChanged"
	TypeScopesChanged   = "ScopesChanged"
)

// Event is anything with a type name that serializes to JSON.
type Event interface {
	EventType() string
}

// Publisher delivers events to subjects. Start must be called before Publish
// and Stop flushes whatever is still buffered.
type Publisher interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Publish(ctx context.Context, subject string, ev Event) error
}

// Meta is embedded in every event.
type Meta struct {
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

func (m Meta) EventType() string { return m.Type }

func newMeta(t string) Meta {
	return Meta{Type: t, Timestamp: time.Now().UTC()}
}

type UserCreated struct {
	Meta
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func NewUserCreated(userID, username, email string) UserCreated {
	return UserCreated{Meta: newMeta(TypeUserCreated), UserID: userID, Username: username, Email: email}
}

type UserUpdated struct {
	Meta
	UserID string `json:"user_id"`
	// Fields names the columns that changed.
	Fields []string `json:"fields"`
}

func NewUserUpdated(userID string, fields []string) UserUpdated {
	return UserUpdated{Meta: newMeta(TypeUserUpdated), UserID: userID, Fields: fields}
}

type PasswordChanged struct {
	Meta
	UserID string `json:"user_id"`
	// RevokedSessions is the number of refresh-token records removed.
	RevokedSessions int64 `json:"revoked_sessions"`
}

func NewPasswordChanged(userID string, revoked int64) PasswordChanged {
	return PasswordChanged{Meta: newMeta(TypePasswordChanged), UserID: userID, RevokedSessions: revoked}
}

type ScopesChanged struct {
	Meta
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}

func NewScopesChanged(userID string, scopes []string) ScopesChanged {
	return ScopesChanged{Meta: newMeta(TypeScopesChanged), UserID: userID, Scopes: scopes}
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Start(context.Context) error                  { return nil }
func (NopPublisher) Stop(context.Context) error                   { return nil }
func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
