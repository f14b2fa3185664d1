package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", cfg.Server.Port)
	}

	if cfg.Router.DefaultStrategy != "balanced" {
		t.Errorf("Expected default strategy 'balanced', got %s", cfg.Router.DefaultStrategy)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.Server.ReadTimeout)
	}

	if len(cfg.EnabledPlatforms()) == 0 {
		t.Error("expected at least one enabled platform by default")
	}
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	os.Setenv("VIDEOFED_PORT", "9090")
	os.Setenv("YOUTUBE_API_KEY", "test-youtube-key")
	os.Setenv("APIFY_API_TOKEN", "test-apify-token")
	os.Setenv("VIDEOFED_LOG_LEVEL", "debug")
	os.Setenv("VIDEOFED_LOG_FORMAT", "text")
	os.Setenv("VIDEOFED_DEFAULT_STRATEGY", "speed_first")
	os.Setenv("NETWORK_STRATEGY", "split")

	defer func() {
		os.Unsetenv("VIDEOFED_PORT")
		os.Unsetenv("YOUTUBE_API_KEY")
		os.Unsetenv("APIFY_API_TOKEN")
		os.Unsetenv("VIDEOFED_LOG_LEVEL")
		os.Unsetenv("VIDEOFED_LOG_FORMAT")
		os.Unsetenv("VIDEOFED_DEFAULT_STRATEGY")
		os.Unsetenv("NETWORK_STRATEGY")
	}()

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port '9090', got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected log format 'text', got %s", cfg.Logging.Format)
	}
	if cfg.Router.DefaultStrategy != "speed_first" {
		t.Errorf("Expected strategy 'speed_first', got %s", cfg.Router.DefaultStrategy)
	}
	if cfg.Network.Strategy != "split" {
		t.Errorf("Expected network strategy 'split', got %s", cfg.Network.Strategy)
	}

	yt, ok := cfg.PlatformConfig("youtube")
	if !ok || yt.Credentials["api_key"] != "test-youtube-key" {
		t.Errorf("expected youtube api_key credential to be set from env, got %+v", yt)
	}
	rumble, ok := cfg.PlatformConfig("rumble")
	if !ok || rumble.Credentials["api_token"] != "test-apify-token" {
		t.Errorf("expected rumble api_token credential to be set from env, got %+v", rumble)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		errMsg  string
	}{
		{
			name: "Invalid log level",
			setup: func() {
				os.Setenv("VIDEOFED_LOG_LEVEL", "invalid")
			},
			cleanup: func() {
				os.Unsetenv("VIDEOFED_LOG_LEVEL")
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name: "Invalid strategy",
			setup: func() {
				os.Setenv("VIDEOFED_DEFAULT_STRATEGY", "invalid_strategy")
			},
			cleanup: func() {
				os.Unsetenv("VIDEOFED_DEFAULT_STRATEGY")
			},
			wantErr: true,
			errMsg:  "invalid default strategy",
		},
		{
			name: "Invalid network strategy",
			setup: func() {
				os.Setenv("NETWORK_STRATEGY", "bogus")
			},
			cleanup: func() {
				os.Unsetenv("NETWORK_STRATEGY")
			},
			wantErr: true,
			errMsg:  "invalid network strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.cleanup()

			_, err := LoadConfig("")

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				} else if !containsString(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestLoadConfig_FileLoading(t *testing.T) {
	configContent := `
server:
  port: "3000"
  read_timeout: 60s

router:
  default_strategy: "reliability_first"

logging:
  level: "warn"
  format: "text"

platforms:
  - name: youtube
    enabled: true
  - name: rumble
    enabled: true
`

	tmpFile, err := os.CreateTemp("", "test_config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(configContent); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	tmpFile.Close()

	cfg, err := LoadConfig(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port '3000', got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("Expected read timeout 60s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Router.DefaultStrategy != "reliability_first" {
		t.Errorf("Expected strategy 'reliability_first', got %s", cfg.Router.DefaultStrategy)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn', got %s", cfg.Logging.Level)
	}
	if len(cfg.EnabledPlatforms()) != 2 {
		t.Errorf("Expected 2 enabled platforms from file, got %d", len(cfg.EnabledPlatforms()))
	}
}

func TestConfig_EnabledPlatforms(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()

	for i := range cfg.Platforms {
		if cfg.Platforms[i].Name == "odysee" {
			cfg.Platforms[i].Enabled = false
		}
	}

	names := cfg.EnabledPlatforms()
	for _, n := range names {
		if n == "odysee" {
			t.Error("odysee should not appear in enabled platforms once disabled")
		}
	}
}

func TestConfig_ToFallbackConfig(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Fallback.RetryIntervalMinutes = 15

	fc := cfg.ToFallbackConfig()
	if fc.RetryIntervalMinutes != 15 {
		t.Errorf("expected retry interval 15, got %d", fc.RetryIntervalMinutes)
	}
	if fc.QuotaLimit != 10000 {
		t.Errorf("expected default quota limit 10000, got %d", fc.QuotaLimit)
	}
}

func TestConfig_SaveToFile(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Server.Port = "4000"

	tmpFile, err := os.CreateTemp("", "test_save_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	if err := cfg.SaveToFile(tmpFile.Name()); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}

	content := string(data)
	if !containsString(content, "port: \"4000\"") {
		t.Error("Saved config should contain the custom port")
	}
	if !containsString(content, "default_strategy: balanced") {
		t.Error("Saved config should contain default strategy")
	}
}

func containsString(s, substr string) bool {
	return len(substr) <= len(s) && (substr == s || containsSubstring(s, substr))
}

func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func BenchmarkLoadConfig_Defaults(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = LoadConfig("")
	}
}

func BenchmarkConfig_EnabledPlatforms(b *testing.B) {
	cfg := &Config{}
	cfg.setDefaults()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.EnabledPlatforms()
	}
}
