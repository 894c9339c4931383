// Package common contains shared constants and sentinel errors used across
// TaskFlow components.
package common

const (
	// AccessTokenHeaderName is the gRPC metadata key that may carry a bare
	// access token on inbound requests.
	AccessTokenHeaderName = "access_token"

	// AuthorizationHeaderName carries "Bearer <token>".
	AuthorizationHeaderName = "authorization"

	// BearerPrefix is the scheme prefix of the authorization header value.
	BearerPrefix = "Bearer "

	// AdminScope grants user and scope administration without the superuser flag.
	AdminScope = "users:admin"
)
