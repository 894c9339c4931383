package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/TimShare/TaskFlow/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string    gRPC bind address (e.g. ":50051")
//	-m string    metrics HTTP bind address
//	-d string    PostgreSQL DSN
//	-s string    JWT HMAC secret
//	-j string    JWT algorithm (HS256, HS384, HS512)
//	-t duration  access token lifetime (e.g. "15m")
//	-r duration  refresh token lifetime (e.g. "168h")
//	-n string    NATS URL
//	-l string    log level
//
// Only these flags are picked out of args, so -c/-config and flags meant for
// other components do not make parsing fail.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, "a", "m", "d", "s", "j", "t", "r", "n", "l")

	fs := flag.NewFlagSet("taskflow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "address and port to run the gRPC server")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "address and port of the metrics endpoint")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "JWT secret key")
	fs.StringVar(&cfg.JWTAlgorithm, "j", cfg.JWTAlgorithm, "JWT signing algorithm")
	fs.DurationVar(&cfg.AccessTokenTTL, "t", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "r", cfg.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&cfg.NATSURL, "n", cfg.NATSURL, "NATS server URL, empty disables events")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
