package grpc

// Wire messages of taskflow.auth.v1.AuthService. Timestamps are Unix seconds.

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type MeRequest struct{}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ScopesRequest addresses the caller's own scopes when UserID is empty.
type ScopesRequest struct {
	UserID string   `json:"user_id,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

type Empty struct{}

type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

type UserResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	IsActive    bool     `json:"is_active"`
	IsSuperuser bool     `json:"is_superuser"`
	Scopes      []string `json:"scopes"`
	CreatedAt   int64    `json:"created_at"`
}

type ScopesResponse struct {
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}
