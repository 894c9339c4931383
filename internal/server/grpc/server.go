package grpc

import (
	"context"
	"net"

	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/TimShare/TaskFlow/internal/server/services"
	"google.golang.org/grpc"
)

// Sessions is the slice of the session manager the transport needs.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	VerifyAccessToken(ctx context.Context, token string) (*auth.AccessClaims, bool)
	RefreshTokens(ctx context.Context, token string) (*services.TokenPair, error)
	Logout(ctx context.Context, token string)
	GetScopes(ctx context.Context, userID string) ([]string, error)
	AddScopes(ctx context.Context, userID string, scopes []string) ([]string, error)
	UpdateScopes(ctx context.Context, userID string, scopes []string) ([]string, error)
	RemoveScopes(ctx context.Context, userID string, scopes []string) ([]string, error)
}

// Users covers account registration and self-service.
type Users interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
}

type GRPCServer struct {
	address      string
	sessions     Sessions
	users        Users
	logger       logging.Logger
	interceptors []grpc.UnaryServerInterceptor
}

var _ AuthServiceServer = (*GRPCServer)(nil)

// NewGRPCServer builds the server. Extra interceptors run before
// authentication, so they also observe rejected calls.
func NewGRPCServer(a string, l logging.Logger, ss Sessions, us Users, interceptors ...grpc.UnaryServerInterceptor) *GRPCServer {
	return &GRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		sessions:     ss,
		users:        us,
		interceptors: interceptors,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	chain := append(append([]grpc.UnaryServerInterceptor{}, s.interceptors...), s.accessTokenInterceptor)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	srv.RegisterService(&AuthServiceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
