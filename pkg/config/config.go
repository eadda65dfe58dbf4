package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/heathcliff26/hookguard/pkg/retry"
	"sigs.k8s.io/yaml"
)

const (
	DEFAULT_CONFIG_PATH = "/config/config.yaml"

	DEFAULT_LOG_LEVEL   = "info"
	DEFAULT_SERVER_PORT = 8080

	DEFAULT_API_URL = "https://api.github.com"

	DEFAULT_IP_RANGES_TTL = time.Hour
)

// Environment variables that take precedence over the config file
const (
	ENV_WEBHOOK_SECRET       = "WEBHOOK_SECRET"
	ENV_ALLOWED_OWNERS       = "ALLOWED_OWNERS"
	ENV_WEBHOOK_IP_FAIL_OPEN = "WEBHOOK_IP_FAIL_OPEN"
	ENV_TRUST_PROXY          = "TRUST_PROXY"
)

var logLevel *slog.LevelVar

// Initialize the logger
func init() {
	logLevel = &slog.LevelVar{}
	opts := slog.HandlerOptions{
		Level: logLevel,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &opts))
	slog.SetDefault(logger)
}

type Config struct {
	LogLevel     string             `json:"logLevel,omitempty"`
	Server       ServerConfig       `json:"server,omitempty"`
	Github       GithubConfig       `json:"github"`
	IPValidation IPValidationConfig `json:"ipValidation,omitempty"`
	Retry        RetryConfig        `json:"retry,omitempty"`
}

type ServerConfig struct {
	Port int       `json:"port,omitempty"`
	SSL  SSLConfig `json:"ssl,omitempty"`
	// Use X-Forwarded-For and X-Real-IP to determine the client address.
	// Only enable this when running behind a reverse proxy that sets these headers.
	TrustProxy bool `json:"trustProxy,omitempty"`
}

type SSLConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Cert    string `json:"cert,omitempty"`
	Key     string `json:"key,omitempty"`
}

type GithubConfig struct {
	ClientID      string   `json:"client-id"`
	PrivateKey    string   `json:"private-key"`
	WebhookSecret string   `json:"webhook-secret"`
	API           string   `json:"api,omitempty"`
	AllowedOwners []string `json:"allowed-owners"`
}

// Validation of the webhook source address against the published GitHub hook ranges.
type IPValidationConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	// Accept requests when the ranges can't be retrieved
	FailOpen bool     `json:"failOpen,omitempty"`
	TTL      Duration `json:"ttl,omitempty"`
}

type RetryConfig struct {
	MaxRetries   int      `json:"maxRetries"`
	InitialDelay Duration `json:"initialDelay,omitempty"`
	MaxDelay     Duration `json:"maxDelay,omitempty"`
	Multiplier   float64  `json:"multiplier,omitempty"`
}

// Returns a Config with default values set
func DefaultConfig() Config {
	policy := retry.DefaultPolicy()
	return Config{
		LogLevel: DEFAULT_LOG_LEVEL,
		Server: ServerConfig{
			Port: DEFAULT_SERVER_PORT,
		},
		Github: GithubConfig{
			API: DEFAULT_API_URL,
		},
		IPValidation: IPValidationConfig{
			TTL: Duration(DEFAULT_IP_RANGES_TTL),
		},
		Retry: RetryConfig{
			MaxRetries:   policy.MaxRetries,
			InitialDelay: Duration(policy.InitialDelay),
			MaxDelay:     Duration(policy.MaxDelay),
			Multiplier:   policy.Multiplier,
		},
	}
}

// Convert the configuration into a retry policy
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:   r.MaxRetries,
		InitialDelay: time.Duration(r.InitialDelay),
		MaxDelay:     time.Duration(r.MaxDelay),
		Multiplier:   r.Multiplier,
	}
}

// Loads config from file, returns error if config is invalid
// Arguments:
//
//		path: Path to config file, if empty will use DEFAULT_CONFIG_PATH
//		env: Determines if enviroment variables in the file will be expanded before decoding
//	 logLevelOverride: Override the log level given by the config
func LoadConfig(path string, env bool, logLevelOverride string) (Config, error) {
	c, err := loadConfigFile(path, env)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load configuration file '%s': %w", path, err)
	}

	err = applyEnvOverrides(&c)
	if err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	level := c.LogLevel
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	err = setLogLevel(level)
	if err != nil {
		return Config{}, fmt.Errorf("failed to set log level to '%s': %w", level, err)
	}

	err = c.validate()
	if err != nil {
		return Config{}, err
	}

	f, err := os.OpenFile(c.Github.PrivateKey, os.O_RDONLY, 0600)
	if err != nil {
		return Config{}, fmt.Errorf("can't open Github App private key '%s': %w", c.Github.PrivateKey, err)
	}
	defer f.Close()

	return c, nil
}

func loadConfigFile(path string, env bool) (Config, error) {
	c := DefaultConfig()

	p := path
	if p == "" {
		p = DEFAULT_CONFIG_PATH
	}

	// #nosec G304 -- Local users can decide on their file path themselves.
	f, err := os.ReadFile(p)
	if path == "" && os.IsNotExist(err) {
		slog.Info("No config file specified and default file does not exist, falling back to default values.", slog.String("default-path", p))
		return c, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("failed to read config file '%s': %w", p, err)
	}

	if env {
		f = []byte(os.ExpandEnv(string(f)))
	}

	err = yaml.Unmarshal(f, &c)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file '%s': %w", p, err)
	}

	return c, nil
}

// Override security settings from the environment
func applyEnvOverrides(c *Config) error {
	if secret, ok := os.LookupEnv(ENV_WEBHOOK_SECRET); ok {
		c.Github.WebhookSecret = secret
	}
	if owners, ok := os.LookupEnv(ENV_ALLOWED_OWNERS); ok {
		c.Github.AllowedOwners = splitList(owners)
	}

	boolEnvs := []struct {
		name   string
		target *bool
	}{
		{ENV_WEBHOOK_IP_FAIL_OPEN, &c.IPValidation.FailOpen},
		{ENV_TRUST_PROXY, &c.Server.TrustProxy},
	}
	for _, e := range boolEnvs {
		value, ok := os.LookupEnv(e.name)
		if !ok || value == "" {
			continue
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean '%s' for %s: %w", value, e.name, err)
		}
		*e.target = b
	}
	return nil
}

func (c Config) validate() error {
	if c.Server.SSL.Enabled && (c.Server.SSL.Cert == "" || c.Server.SSL.Key == "") {
		return fmt.Errorf("incomplete SSL configuration: cert and key must be set if SSL is enabled")
	}

	if c.Github.ClientID == "" {
		return fmt.Errorf("GitHub Client ID must be set in the configuration")
	}

	if c.Github.WebhookSecret == "" {
		return fmt.Errorf("webhook secret must be set in the configuration or via %s", ENV_WEBHOOK_SECRET)
	}

	if len(splitList(strings.Join(c.Github.AllowedOwners, ","))) == 0 {
		return fmt.Errorf("at least one allowed owner must be set in the configuration or via %s", ENV_ALLOWED_OWNERS)
	}

	if c.IPValidation.TTL <= 0 {
		return fmt.Errorf("ip range ttl must be positive, got %s", c.IPValidation.TTL)
	}

	err := c.Retry.Policy().Validate()
	if err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}
	return nil
}

// Split a comma separated list, dropping empty entries
func splitList(s string) []string {
	result := []string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// Parse a given string and set the resulting log level
func setLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level '%s'", level)
	}
	return nil
}
