package grpc

import (
	"context"
	"errors"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/TimShare/TaskFlow/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) SignUp(ctx context.Context, req *SignUpRequest) (*UserResponse, error) {

	s.logger.Info(ctx, "Registration request")

	u, err := s.users.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", u.ID)
	return toUserResponse(u), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {

	tokens, err := s.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toTokenResponse(tokens), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenResponse, error) {

	tokens, err := s.sessions.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toTokenResponse(tokens), nil
}

// Logout always succeeds.
func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*Empty, error) {
	s.sessions.Logout(ctx, req.RefreshToken)
	return &Empty{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *MeRequest) (*UserResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toUserResponse(u), nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.users.ChangePassword(ctx, claims.Subject, req.OldPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

// GetScopes reads the caller's scopes, or another user's with the admin scope.
func (s *GRPCServer) GetScopes(ctx context.Context, req *ScopesRequest) (*ScopesResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}

	target := req.UserID
	if target == "" {
		target = claims.Subject
	}
	if target != claims.Subject && !claims.HasScope(common.AdminScope) {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}

	scopes, err := s.sessions.GetScopes(ctx, target)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ScopesResponse{UserID: target, Scopes: scopes}, nil
}

func (s *GRPCServer) AddScopes(ctx context.Context, req *ScopesRequest) (*ScopesResponse, error) {
	return s.mutateScopes(ctx, req, s.sessions.AddScopes)
}

func (s *GRPCServer) UpdateScopes(ctx context.Context, req *ScopesRequest) (*ScopesResponse, error) {
	return s.mutateScopes(ctx, req, s.sessions.UpdateScopes)
}

func (s *GRPCServer) RemoveScopes(ctx context.Context, req *ScopesRequest) (*ScopesResponse, error) {
	return s.mutateScopes(ctx, req, s.sessions.RemoveScopes)
}

// mutateScopes requires the admin scope, including for the caller's own
// record, so nobody can grant themselves access.
func (s *GRPCServer) mutateScopes(ctx context.Context, req *ScopesRequest, op func(context.Context, string, []string) ([]string, error)) (*ScopesResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if !claims.HasScope(common.AdminScope) {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}

	target := req.UserID
	if target == "" {
		target = claims.Subject
	}

	scopes, err := op(ctx, target, req.Scopes)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Scopes changed", "user_id", target, "by", claims.Subject)
	return &ScopesResponse{UserID: target, Scopes: scopes}, nil
}

func requireClaims(ctx context.Context) (*auth.AccessClaims, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return claims, nil
}

// toStatus maps service errors onto gRPC codes. Internal causes are logged
// and never sent to the client.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorInternal):
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func toTokenResponse(p *services.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		AccessExpiresAt:  p.AccessExpiresAt.Unix(),
		RefreshExpiresAt: p.RefreshExpiresAt.Unix(),
	}
}

func toUserResponse(u *models.User) *UserResponse {
	scopes := u.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		Scopes:      scopes,
		CreatedAt:   u.CreatedAt.Unix(),
	}
}
