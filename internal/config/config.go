package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/videofed/internal/fallback"
	"github.com/tributary-ai/videofed/internal/middleware"
	"github.com/tributary-ai/videofed/internal/security"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Router     RouterConfig              `yaml:"router"`
	Platforms  []videotypes.PlatformConfig `yaml:"platforms"`
	Network    NetworkConfig             `yaml:"network"`
	Fallback   FallbackConfig            `yaml:"fallback"`
	Logging    LoggingConfig             `yaml:"logging"`
	Security   SecurityConfig            `yaml:"security"`
}

// ServerConfig holds the optional ops HTTP surface's listener settings
// (spec.md SPEC_FULL §11).
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	// EnableOpenAPIValidation turns on the ops API's OpenAPI request
	// validation (internal/middleware.ValidationMiddleware) against
	// docs/openapi.yaml.
	EnableOpenAPIValidation bool `yaml:"enable_openapi_validation"`
}

// RouterConfig holds the Dynamic Platform Prioritizer's scoring strategy
// and the Registry's per-query timeout.
type RouterConfig struct {
	DefaultStrategy     string        `yaml:"default_strategy"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

// NetworkConfig captures spec.md §6's per-service VPN routing and the
// service-scoped HTTP transport strategy.
type NetworkConfig struct {
	Strategy        string `yaml:"strategy"`         // "single" or "split"
	VPNInterface    string `yaml:"vpn_interface"`
	DefaultInterface string `yaml:"default_interface"`
	DiscordUseVPN   bool   `yaml:"discord_use_vpn"`
	YouTubeUseVPN   bool   `yaml:"youtube_use_vpn"`
	RumbleUseVPN    bool   `yaml:"rumble_use_vpn"`
	OdyseeUseVPN    bool   `yaml:"odysee_use_vpn"`
	PeerTubeUseVPN  bool   `yaml:"peertube_use_vpn"`
}

// FallbackConfig mirrors internal/fallback.Config's fields for YAML/env
// loading, converted via ToFallbackConfig.
type FallbackConfig struct {
	Enabled                        bool    `yaml:"enabled"`
	RetryIntervalMinutes           int     `yaml:"retry_interval_minutes"`
	MaxFallbackDurationHours       int     `yaml:"max_fallback_duration_hours"`
	QuotaLimit                     int     `yaml:"youtube_quota_limit"`
	StrategyEffectivenessThreshold float64 `yaml:"strategy_effectiveness_threshold"`
	QuotaConservationThreshold     float64 `yaml:"quota_conservation_threshold"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds the ops HTTP surface's auth/rate-limit/validation
// settings, converted to middleware.SecurityMiddlewareConfig for
// internal/opsapi.
type SecurityConfig struct {
	APIKeys []string `yaml:"api_keys"`
	// HashedAPIKeys holds bcrypt hashes (see security.HashAPIKey) for keys
	// that should never be stored in the clear in this config.
	HashedAPIKeys     []string         `yaml:"hashed_api_keys"`
	RateLimiting      RateLimitConfig  `yaml:"rate_limiting"`
	CORS              CORSConfig       `yaml:"cors"`
	RequestValidation ValidationConfig `yaml:"request_validation"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RequestsPerMin int           `yaml:"requests_per_minute"`
	BurstSize      int           `yaml:"burst_size"`
	WindowDuration time.Duration `yaml:"window_duration"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ValidationConfig holds request validation configuration.
type ValidationConfig struct {
	MaxRequestSize   int64 `yaml:"max_request_size"`
	MaxMessageLength int   `yaml:"max_message_length"`
	MaxMessages      int   `yaml:"max_messages"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	cfg.setDefaults()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default configuration values.
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:                    "8080",
		ReadTimeout:             30 * time.Second,
		WriteTimeout:            30 * time.Second,
		MaxHeaderBytes:          1 << 20, // 1MB
		EnableOpenAPIValidation: true,
	}

	c.Router = RouterConfig{
		DefaultStrategy:     "balanced",
		HealthCheckInterval: 30 * time.Second,
		RequestTimeout:      120 * time.Second,
	}

	c.Network = NetworkConfig{
		Strategy:         "single",
		DefaultInterface: "eth0",
	}

	c.Fallback = FallbackConfig{
		Enabled:                        true,
		RetryIntervalMinutes:           30,
		MaxFallbackDurationHours:       24,
		QuotaLimit:                     10000,
		StrategyEffectivenessThreshold: 0.7,
		QuotaConservationThreshold:     0.8,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		APIKeys:       []string{},
		HashedAPIKeys: []string{},
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
			WindowDuration: time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		},
		RequestValidation: ValidationConfig{
			MaxRequestSize:   10 << 20, // 10MB
			MaxMessageLength: 100000,
			MaxMessages:      50,
		},
	}

	c.Platforms = []videotypes.PlatformConfig{
		{Name: "youtube", Enabled: true},
		{Name: "rumble", Enabled: true},
		{Name: "peertube", Enabled: true},
		{Name: "odysee", Enabled: true},
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// platform returns a pointer into c.Platforms for name, creating the entry
// (enabled) if it isn't already present. Used by loadFromEnv so
// credential env vars work even when the platform wasn't listed in the YAML
// file.
func (c *Config) platform(name string) *videotypes.PlatformConfig {
	for i := range c.Platforms {
		if c.Platforms[i].Name == name {
			return &c.Platforms[i]
		}
	}
	c.Platforms = append(c.Platforms, videotypes.PlatformConfig{Name: name, Enabled: true})
	return &c.Platforms[len(c.Platforms)-1]
}

func setCredential(p *videotypes.PlatformConfig, key, value string) {
	if p.Credentials == nil {
		p.Credentials = make(map[string]string)
	}
	p.Credentials[key] = value
}

// loadFromEnv overrides configuration from environment variables, per
// spec.md §6's environment variable table.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("VIDEOFED_PORT"); port != "" {
		c.Server.Port = port
	}

	if key := os.Getenv("YOUTUBE_API_KEY"); key != "" {
		setCredential(c.platform("youtube"), "api_key", key)
	}
	if token := os.Getenv("APIFY_API_TOKEN"); token != "" {
		setCredential(c.platform("rumble"), "api_token", token)
		setCredential(c.platform("odysee"), "api_token", token)
	}

	if v := os.Getenv("NETWORK_STRATEGY"); v != "" {
		c.Network.Strategy = v
	}
	if v := os.Getenv("VPN_INTERFACE"); v != "" {
		c.Network.VPNInterface = v
	}
	if v := os.Getenv("DEFAULT_INTERFACE"); v != "" {
		c.Network.DefaultInterface = v
	}
	if v := os.Getenv("DISCORD_USE_VPN"); v != "" {
		c.Network.DiscordUseVPN = v == "true" || v == "1"
	}
	if v := os.Getenv("YOUTUBE_USE_VPN"); v != "" {
		c.Network.YouTubeUseVPN = v == "true" || v == "1"
	}
	if v := os.Getenv("RUMBLE_USE_VPN"); v != "" {
		c.Network.RumbleUseVPN = v == "true" || v == "1"
	}
	if v := os.Getenv("ODYSEE_USE_VPN"); v != "" {
		c.Network.OdyseeUseVPN = v == "true" || v == "1"
	}
	if v := os.Getenv("PEERTUBE_USE_VPN"); v != "" {
		c.Network.PeerTubeUseVPN = v == "true" || v == "1"
	}

	if level := os.Getenv("VIDEOFED_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VIDEOFED_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if strategy := os.Getenv("VIDEOFED_DEFAULT_STRATEGY"); strategy != "" {
		c.Router.DefaultStrategy = strategy
	}
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validStrategies := map[string]bool{
		"balanced":           true,
		"speed_first":        true,
		"reliability_first":  true,
		"success_rate_first": true,
		"adaptive":           true,
	}
	if !validStrategies[c.Router.DefaultStrategy] {
		return fmt.Errorf("invalid default strategy: %s", c.Router.DefaultStrategy)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validNetworkStrategies := map[string]bool{"single": true, "split": true}
	if !validNetworkStrategies[c.Network.Strategy] {
		return fmt.Errorf("invalid network strategy: %s", c.Network.Strategy)
	}

	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform must be configured")
	}
	enabled := 0
	for _, p := range c.Platforms {
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one platform must be enabled")
	}

	return nil
}

// ToSecurityMiddlewareConfig converts to middleware.SecurityMiddlewareConfig,
// for the optional ops HTTP surface (SPEC_FULL §11).
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	return &middleware.SecurityMiddlewareConfig{
		Auth: &security.Config{
			APIKeys:        c.Security.APIKeys,
			HashedAPIKeys:  c.Security.HashedAPIKeys,
			RequireAuth:    len(c.Security.APIKeys) > 0 || len(c.Security.HashedAPIKeys) > 0,
			AllowedOrigins: c.Security.CORS.AllowedOrigins,
		},
		RateLimit: &security.RateLimitConfig{
			Enabled:           c.Security.RateLimiting.Enabled,
			RequestsPerMinute: c.Security.RateLimiting.RequestsPerMin,
			BurstSize:         c.Security.RateLimiting.BurstSize,
			WindowDuration:    c.Security.RateLimiting.WindowDuration,
			CleanupInterval:   5 * time.Minute,
		},
		Validation: &security.ValidationConfig{
			MaxRequestSize: c.Security.RequestValidation.MaxRequestSize,
			AllowedMethods: c.Security.CORS.AllowedMethods,
			ContentTypes:   []string{"application/json", "text/plain"},
			MaxJSONDepth:   20,
			MaxFieldLength: 1024,
		},
		Audit: &security.AuditConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 10 * time.Second,
		},
	}
}

// SaveToFile saves the current configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnabledPlatforms returns the names of every enabled platform.
func (c *Config) EnabledPlatforms() []string {
	var names []string
	for _, p := range c.Platforms {
		if p.Enabled {
			names = append(names, p.Name)
		}
	}
	return names
}

// PlatformConfig looks up one platform's configuration by name.
func (c *Config) PlatformConfig(name string) (videotypes.PlatformConfig, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return videotypes.PlatformConfig{}, false
}

// ToFallbackConfig converts to internal/fallback.Config.
func (c *Config) ToFallbackConfig() fallback.Config {
	f := c.Fallback
	return fallback.Config{
		Enabled:                        f.Enabled,
		RetryIntervalMinutes:           f.RetryIntervalMinutes,
		MaxFallbackDurationHours:       f.MaxFallbackDurationHours,
		QuotaLimit:                     f.QuotaLimit,
		StrategyEffectivenessThreshold: f.StrategyEffectivenessThreshold,
		QuotaConservationThreshold:     f.QuotaConservationThreshold,
	}
}
