// Package models defines server-side data models persisted in the database.
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// User is an identity record owned by the user directory.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	// Scopes is an unordered set; NormalizeScopes keeps it deduplicated.
	Scopes    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser stamps a fresh id and timestamps. New users are active, not
// superusers and hold no scopes.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		Scopes:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserUpdate carries the fields a generic update may touch. Nil means
// unchanged. PasswordHash and Scopes exist only so that a caller trying to
// route them through the generic path can be rejected.
type UserUpdate struct {
	Username     *string
	Email        *string
	IsActive     *bool
	IsSuperuser  *bool
	PasswordHash *string
	Scopes       []string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.IsActive == nil && u.IsSuperuser == nil &&
		u.PasswordHash == nil && u.Scopes == nil
}

// NormalizeScopes returns the scopes deduplicated, without empty strings and
// sorted, so that stored sets compare and diff predictably.
func NormalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UnionScopes is set union of current and add.
func UnionScopes(current, add []string) []string {
	return NormalizeScopes(append(append([]string{}, current...), add...))
}

// SubtractScopes is set difference current minus remove.
func SubtractScopes(current, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, s := range remove {
		drop[s] = struct{}{}
	}
	kept := make([]string, 0, len(current))
	for _, s := range current {
		if _, ok := drop[s]; !ok {
			kept = append(kept, s)
		}
	}
	return NormalizeScopes(kept)
}
