// Package config loads hostbridge settings from JSONC or YAML files and maps
// them onto session options.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/origins"
	"github.com/machinefabric/hostbridge-go/session"
)

// Environment overrides
const (
	EnvValidOrigins       = "HOSTBRIDGE_VALID_ORIGINS"
	EnvDiagnosticLogging  = "HOSTBRIDGE_DIAGNOSTIC_LOGGING"
	EnvOriginsRedisAddr   = "HOSTBRIDGE_ORIGINS_REDIS_ADDR"
	defaultResolveTimeout = 10
)

type Config struct {
	LibraryVersion    string        `json:"library_version" yaml:"library_version"`
	DiagnosticLogging bool          `json:"diagnostic_logging" yaml:"diagnostic_logging"`
	ValidOrigins      []string      `json:"valid_origins" yaml:"valid_origins"`
	Origins           OriginsConfig `json:"origins" yaml:"origins"`
	Bridge            BridgeConfig  `json:"bridge" yaml:"bridge"`
}

// OriginsConfig configures dynamic origin resolution.
type OriginsConfig struct {
	URL             string `json:"url" yaml:"url"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	RedisAddr       string `json:"redis_addr" yaml:"redis_addr"`
	CacheKey        string `json:"cache_key" yaml:"cache_key"`
}

// Bridge modes
const (
	BridgeModeStdio     = "stdio"
	BridgeModeWebSocket = "websocket"
)

// BridgeConfig selects the native bridge a frameless page talks through.
type BridgeConfig struct {
	Mode         string        `json:"mode" yaml:"mode"`
	WebSocketURL string        `json:"websocket_url" yaml:"websocket_url"`
	Limits       bifaci.Limits `json:"limits" yaml:"limits"`
}

func Default() Config {
	return Config{
		LibraryVersion: session.DefaultLibraryVersion,
		Origins: OriginsConfig{
			TimeoutSeconds: defaultResolveTimeout,
			CacheKey:       origins.DefaultCacheKey,
		},
		Bridge: BridgeConfig{
			Limits: bifaci.DefaultLimits(),
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path yields the defaults with overrides. .yaml and .yml files are
// YAML; anything else is JSON with comments and trailing commas allowed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config failed: %w", err)
		}
		if err := decode(path, content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config failed: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.LibraryVersion == "" {
		cfg.LibraryVersion = session.DefaultLibraryVersion
	}
	if cfg.Origins.TimeoutSeconds <= 0 {
		cfg.Origins.TimeoutSeconds = defaultResolveTimeout
	}
	if cfg.Origins.CacheKey == "" {
		cfg.Origins.CacheKey = origins.DefaultCacheKey
	}
	if cfg.Bridge.Limits.MaxFrame <= 0 {
		cfg.Bridge.Limits = bifaci.DefaultLimits()
	}
	return cfg, nil
}

func decode(path string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	default:
		standard, err := hujson.Standardize(content)
		if err != nil {
			return err
		}
		return json.Unmarshal(standard, cfg)
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvValidOrigins); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.ValidOrigins = append(cfg.ValidOrigins, o)
			}
		}
	}
	if v := os.Getenv(EnvDiagnosticLogging); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDiagnosticLogging, err)
		}
		cfg.DiagnosticLogging = enabled
	}
	if v := os.Getenv(EnvOriginsRedisAddr); v != "" {
		cfg.Origins.RedisAddr = v
	}
	return nil
}

// OriginResolver builds the resolver described by the origins section, nil
// when no URL is configured. Results are cached in Redis when an address is
// set, otherwise in memory, for CacheTTLSeconds.
func (c Config) OriginResolver(logger *slog.Logger) origins.Resolver {
	if c.Origins.URL == "" {
		return nil
	}
	var r origins.Resolver = origins.NewHTTPResolver(c.Origins.URL, time.Duration(c.Origins.TimeoutSeconds)*time.Second)
	if c.Origins.CacheTTLSeconds <= 0 {
		return r
	}

	var store origins.Store = origins.NewMemoryStore()
	if c.Origins.RedisAddr != "" {
		store = origins.NewRedisStore(c.Origins.RedisAddr)
	}
	cached := origins.NewCachedResolver(r, store, time.Duration(c.Origins.CacheTTLSeconds)*time.Second, logger)
	if c.Origins.CacheKey != "" {
		cached.Key = c.Origins.CacheKey
	}
	return cached
}

// SessionOptions maps the config onto session options.
func (c Config) SessionOptions(logger *slog.Logger) []session.Option {
	opts := []session.Option{
		session.WithLibraryVersion(c.LibraryVersion),
		session.WithDiagnosticLogging(c.DiagnosticLogging),
	}
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	if len(c.ValidOrigins) > 0 {
		opts = append(opts, session.WithValidOrigins(c.ValidOrigins...))
	}
	if r := c.OriginResolver(logger); r != nil {
		opts = append(opts, session.WithOriginResolver(r))
	}
	return opts
}

// NativeBridge is a bifaci.NativeBridge that must be pumped by Run.
type NativeBridge interface {
	bifaci.NativeBridge
	Run(ctx context.Context) error
}

// DialBridge opens the native bridge named by the bridge section. It returns
// nil for an empty mode, meaning the page is framed.
func (c Config) DialBridge(ctx context.Context, logger *slog.Logger) (NativeBridge, error) {
	switch c.Bridge.Mode {
	case "":
		return nil, nil
	case BridgeModeStdio:
		return bifaci.NewStreamBridge(os.Stdin, os.Stdout, c.Bridge.Limits, logger), nil
	case BridgeModeWebSocket:
		if c.Bridge.WebSocketURL == "" {
			return nil, fmt.Errorf("bridge mode %q needs websocket_url", c.Bridge.Mode)
		}
		b, err := bifaci.DialWebSocketBridge(ctx, c.Bridge.WebSocketURL, nil, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown bridge mode %q", c.Bridge.Mode)
	}
}
