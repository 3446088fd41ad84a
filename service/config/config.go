package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at startup and treated as immutable afterwards; components
// receive the values they need through their constructors.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL string
	RPCTimeout   time.Duration

	// Primary provider (Gemini)
	GeminiAPIKey string
	GeminiModel  string

	// Fallback provider (OpenRouter)
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	OpenRouterTimeout time.Duration

	// NATS configuration, empty disables explanation events
	NATSURL string
}

const (
	DefaultSolanaRPCURL      = "https://api.mainnet-beta.solana.com"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultOpenRouterModel   = "google/gemini-2.0-flash"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Load reads configuration from environment variables and validates it.
// A .env file in the working directory is loaded first if present, followed by
// any files listed in ENV_FILES, which override earlier values.
// Returns an error describing every invalid setting at once.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	errs = append(errs, loadEnvFiles()...)

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8000")
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	if _, ok := allowedLogLevels[cfg.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel))
	}

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultSolanaRPCURL)
	if !isHTTPURL(cfg.SolanaRPCURL) {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL must start with http:// or https://, got %q", cfg.SolanaRPCURL))
	}

	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	// Provider configuration. Missing keys are not fatal: requests report them.
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", DefaultGeminiModel)

	cfg.OpenRouterAPIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	cfg.OpenRouterModel = getEnvOrDefault("OPENROUTER_MODEL", DefaultOpenRouterModel)
	cfg.OpenRouterBaseURL = getEnvOrDefault("OPENROUTER_BASE_URL", DefaultOpenRouterBaseURL)
	if !isHTTPURL(cfg.OpenRouterBaseURL) {
		errs = append(errs, fmt.Errorf("OPENROUTER_BASE_URL must start with http:// or https://, got %q", cfg.OpenRouterBaseURL))
	}

	openRouterTimeout, err := parseDuration("OPENROUTER_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.OpenRouterTimeout = openRouterTimeout
	}

	// NATS configuration
	cfg.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if !isHTTPURL(c.SolanaRPCURL) {
		errs = append(errs, fmt.Errorf("SolanaRPCURL must be an http(s) URL"))
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}

	if c.GeminiModel == "" {
		errs = append(errs, fmt.Errorf("GeminiModel is required"))
	}

	if c.OpenRouterModel == "" {
		errs = append(errs, fmt.Errorf("OpenRouterModel is required"))
	}

	if !isHTTPURL(c.OpenRouterBaseURL) {
		errs = append(errs, fmt.Errorf("OpenRouterBaseURL must be an http(s) URL"))
	}

	if c.OpenRouterTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OpenRouterTimeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Credentials returns a masked view of the provider settings, safe to expose
// on the debug endpoint and to log at startup.
func (c *Config) Credentials() map[string]string {
	return map[string]string{
		"GEMINI_API_KEY":     maskSecret(c.GeminiAPIKey),
		"GEMINI_MODEL":       c.GeminiModel,
		"OPENROUTER_API_KEY": maskSecret(c.OpenRouterAPIKey),
		"OPENROUTER_MODEL":   c.OpenRouterModel,
	}
}

// maskSecret keeps the first 8 and last 4 characters of long secrets.
func maskSecret(secret string) string {
	if secret == "" {
		return "not set"
	}
	if len(secret) > 12 {
		return "set (" + secret[:8] + "..." + secret[len(secret)-4:] + ")"
	}
	return "set (***)"
}

// loadEnvFiles loads .env (if present) and then every file named in ENV_FILES.
func loadEnvFiles() []error {
	// A missing .env is the common case in containers.
	_ = godotenv.Load()

	var errs []error
	for _, path := range strings.Split(os.Getenv("ENV_FILES"), ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			errs = append(errs, fmt.Errorf("ENV_FILES: failed to load %q: %w", path, err))
		}
	}
	return errs
}

// getEnvOrDefault returns the trimmed environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, value)
	}
	return duration, nil
}

func isHTTPURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
