package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TimShare/TaskFlow/internal/flagx"
	"github.com/TimShare/TaskFlow/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the configuration. Pointer fields tell
// "absent" from "zero", so a file only overrides the keys it sets. Durations
// accept "15m" strings or integer nanoseconds.
type fileConfig struct {
	EndpointAddrGRPC   *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	MetricsAddr        *string         `json:"metrics_addr" yaml:"metrics_addr"`
	DatabaseDSN        *string         `json:"database_dsn" yaml:"database_dsn"`
	LogLevel           *string         `json:"log_level" yaml:"log_level"`
	JWTSecret          *string         `json:"jwt_secret" yaml:"jwt_secret"`
	JWTAlgorithm       *string         `json:"jwt_algorithm" yaml:"jwt_algorithm"`
	AccessTokenTTL     *timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL    *timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	Argon2MemoryKiB    *uint32         `json:"argon2_memory_kib" yaml:"argon2_memory_kib"`
	Argon2Iterations   *uint32         `json:"argon2_iterations" yaml:"argon2_iterations"`
	Argon2Parallelism  *uint8          `json:"argon2_parallelism" yaml:"argon2_parallelism"`
	NATSURL            *string         `json:"nats_url" yaml:"nats_url"`
	EventSubjectPrefix *string         `json:"event_subject_prefix" yaml:"event_subject_prefix"`
}

// parseFile overlays the file given by -c/-config, if any. The format is
// picked by extension: .yaml/.yml is YAML, anything else JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setIf(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setIf(&cfg.MetricsAddr, fc.MetricsAddr)
	setIf(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setIf(&cfg.LogLevel, fc.LogLevel)
	setIf(&cfg.JWTSecret, fc.JWTSecret)
	setIf(&cfg.JWTAlgorithm, fc.JWTAlgorithm)
	if fc.AccessTokenTTL != nil {
		cfg.AccessTokenTTL = fc.AccessTokenTTL.Duration
	}
	if fc.RefreshTokenTTL != nil {
		cfg.RefreshTokenTTL = fc.RefreshTokenTTL.Duration
	}
	setIf(&cfg.Argon2MemoryKiB, fc.Argon2MemoryKiB)
	setIf(&cfg.Argon2Iterations, fc.Argon2Iterations)
	setIf(&cfg.Argon2Parallelism, fc.Argon2Parallelism)
	setIf(&cfg.NATSURL, fc.NATSURL)
	setIf(&cfg.EventSubjectPrefix, fc.EventSubjectPrefix)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
