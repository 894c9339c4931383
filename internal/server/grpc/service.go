package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "taskflow.auth.v1.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodSignUp         = "/" + ServiceName + "/SignUp"
	MethodLogin          = "/" + ServiceName + "/Login"
	MethodRefresh        = "/" + ServiceName + "/Refresh"
	MethodLogout         = "/" + ServiceName + "/Logout"
	MethodMe             = "/" + ServiceName + "/Me"
	MethodChangePassword = "/" + ServiceName + "/ChangePassword"
	MethodGetScopes      = "/" + ServiceName + "/GetScopes"
	MethodAddScopes      = "/" + ServiceName + "/AddScopes"
	MethodUpdateScopes   = "/" + ServiceName + "/UpdateScopes"
	MethodRemoveScopes   = "/" + ServiceName + "/RemoveScopes"
)

// AuthServiceServer is implemented by GRPCServer.
type AuthServiceServer interface {
	SignUp(context.Context, *SignUpRequest) (*UserResponse, error)
	Login(context.Context, *LoginRequest) (*TokenResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	Me(context.Context, *MeRequest) (*UserResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	GetScopes(context.Context, *ScopesRequest) (*ScopesResponse, error)
	AddScopes(context.Context, *ScopesRequest) (*ScopesResponse, error)
	UpdateScopes(context.Context, *ScopesRequest) (*ScopesResponse, error)
	RemoveScopes(context.Context, *ScopesRequest) (*ScopesResponse, error)
}

// AuthServiceDesc describes the service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SignUp", AuthServiceServer.SignUp),
		unary("Login", AuthServiceServer.Login),
		unary("Refresh", AuthServiceServer.Refresh),
		unary("Logout", AuthServiceServer.Logout),
		unary("Me", AuthServiceServer.Me),
		unary("ChangePassword", AuthServiceServer.ChangePassword),
		unary("GetScopes", AuthServiceServer.GetScopes),
		unary("AddScopes", AuthServiceServer.AddScopes),
		unary("UpdateScopes", AuthServiceServer.UpdateScopes),
		unary("RemoveScopes", AuthServiceServer.RemoveScopes),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskflow/auth/v1/auth.json",
}

func unary[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AuthServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// AuthServiceClient calls the service over a connection using the JSON codec.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, MethodSignUp, in, opts)
}

func (c *AuthServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *AuthServiceClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, MethodRefresh, in, opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodLogout, in, opts)
}

func (c *AuthServiceClient) Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, MethodMe, in, opts)
}

func (c *AuthServiceClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodChangePassword, in, opts)
}

func (c *AuthServiceClient) GetScopes(ctx context.Context, in *ScopesRequest, opts ...grpc.CallOption) (*ScopesResponse, error) {
	return invoke[ScopesResponse](ctx, c.cc, MethodGetScopes, in, opts)
}

func (c *AuthServiceClient) AddScopes(ctx context.Context, in *ScopesRequest, opts ...grpc.CallOption) (*ScopesResponse, error) {
	return invoke[ScopesResponse](ctx, c.cc, MethodAddScopes, in, opts)
}

func (c *AuthServiceClient) UpdateScopes(ctx context.Context, in *ScopesRequest, opts ...grpc.CallOption) (*ScopesResponse, error) {
	return invoke[ScopesResponse](ctx, c.cc, MethodUpdateScopes, in, opts)
}

func (c *AuthServiceClient) RemoveScopes(ctx context.Context, in *ScopesRequest, opts ...grpc.CallOption) (*ScopesResponse, error) {
	return invoke[ScopesResponse](ctx, c.cc, MethodRemoveScopes, in, opts)
}
