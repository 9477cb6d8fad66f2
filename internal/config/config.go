package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr          = ":8080"
	DefaultEndpoint      = "/ai/mcp"
	DefaultServerName    = "spring-ai-mcp-gateway"
	DefaultServerVersion = "1.0.0"
	DefaultSessionTTL    = 1800 * time.Second
	DefaultDatabasePath  = "mcp-gateway.db"
	DefaultChatPrefix    = "skill"
	DefaultQuotaLimit    = 60
	DefaultQuotaWindow   = time.Hour

	QuotaMemory = "memory"
	QuotaRedis  = "redis"
)

// Config is the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	MCP      MCPConfig      `yaml:"mcp"`
	Quota    QuotaConfig    `yaml:"quota"`
	Database DatabaseConfig `yaml:"database"`
	Skills   SkillsConfig   `yaml:"skills"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Endpoint string `yaml:"endpoint"`
}

// MCPConfig holds protocol and tool catalog settings.
type MCPConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ServerName    string `yaml:"server_name"`
	ServerVersion string `yaml:"server_version"`

	SessionTTL    time.Duration `yaml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl"`

	// ProtocolVersions lists the supported revisions, newest first.
	ProtocolVersions              []string     `yaml:"protocol_versions"`
	AutoRegisterUnconfiguredTools bool         `yaml:"auto_register_unconfigured_tools"`
	Tools                         []ToolConfig `yaml:"tools"`
}

// ToolConfig declares or overrides one tool.
type ToolConfig struct {
	Name           string         `yaml:"name"`
	Title          string         `yaml:"title"`
	Description    string         `yaml:"description"`
	InputSchema    map[string]any `yaml:"input_schema"`
	ReadOnlyHint   *bool          `yaml:"read_only_hint"`
	IdempotentHint *bool          `yaml:"idempotent_hint"`
	Enabled        *bool          `yaml:"enabled"`
}

// QuotaConfig holds per-caller request limits for the HTTP transport.
type QuotaConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Limit      int    `yaml:"limit"`
	UserHeader string `yaml:"user_header"`
	Message    string `yaml:"message"`

	Window    time.Duration `yaml:"-"`
	WindowRaw string        `yaml:"window"`

	// Backend is "memory" (per replica) or "redis" (shared counters).
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig holds the course store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SkillsConfig holds the chat model backend and the skill catalog.
type SkillsConfig struct {
	BaseURL                   string               `yaml:"base_url"`
	APIKey                    string               `yaml:"api_key"`
	Model                     string               `yaml:"model"`
	DefaultConversationPrefix string               `yaml:"default_conversation_prefix"`
	Profiles                  []SkillProfileConfig `yaml:"profiles"`
}

// SkillProfileConfig describes one skill.
type SkillProfileConfig struct {
	Code               string `yaml:"code"`
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	Mode               string `yaml:"mode"`
	Model              string `yaml:"model"`
	SystemPrompt       string `yaml:"system_prompt"`
	ConversationPrefix string `yaml:"conversation_prefix"`
	WelcomeMessage     string `yaml:"welcome_message"`
	Enabled            *bool  `yaml:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are the settings that may be replaced from the environment.
// Values are kept as strings so an unset variable is distinguishable from a
// zero value.
type envOverrides struct {
	Addr         string `env:"MCP_GATEWAY_ADDR"`
	Endpoint     string `env:"MCP_GATEWAY_ENDPOINT"`
	Enabled      string `env:"MCP_GATEWAY_ENABLED"`
	ServerName   string `env:"MCP_GATEWAY_SERVER_NAME"`
	SessionTTL   string `env:"MCP_GATEWAY_SESSION_TTL"`
	AutoRegister string `env:"MCP_GATEWAY_AUTO_REGISTER"`
	QuotaBackend string `env:"MCP_GATEWAY_QUOTA_BACKEND"`
	RedisAddr    string `env:"MCP_GATEWAY_REDIS_ADDR"`
	QuotaEnabled string `env:"MCP_GATEWAY_QUOTA_ENABLED"`
	QuotaLimit   string `env:"MCP_GATEWAY_QUOTA_LIMIT"`
	QuotaWindow  string `env:"MCP_GATEWAY_QUOTA_WINDOW"`
	DatabasePath string `env:"MCP_GATEWAY_DB_PATH"`
	SkillsURL    string `env:"MCP_GATEWAY_SKILLS_BASE_URL"`
	SkillsAPIKey string `env:"MCP_GATEWAY_SKILLS_API_KEY"`
	SkillsModel  string `env:"MCP_GATEWAY_SKILLS_MODEL"`
	LogLevel     string `env:"MCP_GATEWAY_LOG_LEVEL"`
	LogFormat    string `env:"MCP_GATEWAY_LOG_FORMAT"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: DefaultAddr, Endpoint: DefaultEndpoint},
		MCP: MCPConfig{
			Enabled:                       true,
			ServerName:                    DefaultServerName,
			ServerVersion:                 DefaultServerVersion,
			SessionTTL:                    DefaultSessionTTL,
			ProtocolVersions:              append([]string(nil), mcp.SupportedProtocolVersions...),
			AutoRegisterUnconfiguredTools: true,
		},
		Quota: QuotaConfig{
			Enabled:    true,
			Limit:      DefaultQuotaLimit,
			Window:     DefaultQuotaWindow,
			UserHeader: "X-User-Id",
			Backend:    QuotaMemory,
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "mcp:quota:",
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Skills:   SkillsConfig{DefaultConversationPrefix: DefaultChatPrefix},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration file at path (which may be empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg after expanding ${VAR} references. Keys absent
// from the document keep the values already in cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.MCP.SessionTTLRaw != "" {
		if cfg.MCP.SessionTTL, err = parseDuration(cfg.MCP.SessionTTLRaw); err != nil {
			return fmt.Errorf("parsing mcp.session_ttl %q: %w", cfg.MCP.SessionTTLRaw, err)
		}
	}
	if cfg.Quota.WindowRaw != "" {
		if cfg.Quota.Window, err = parseDuration(cfg.Quota.WindowRaw); err != nil {
			return fmt.Errorf("parsing quota.window %q: %w", cfg.Quota.WindowRaw, err)
		}
	}
	return nil
}

// parseDuration accepts Go duration strings and bare integers, which are
// read as seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}

	setString(&cfg.Server.Addr, env.Addr)
	setString(&cfg.Server.Endpoint, env.Endpoint)
	setString(&cfg.MCP.ServerName, env.ServerName)
	setString(&cfg.Quota.Backend, env.QuotaBackend)
	setString(&cfg.Quota.RedisAddr, env.RedisAddr)
	setString(&cfg.Database.Path, env.DatabasePath)
	setString(&cfg.Skills.BaseURL, env.SkillsURL)
	setString(&cfg.Skills.APIKey, env.SkillsAPIKey)
	setString(&cfg.Skills.Model, env.SkillsModel)
	setString(&cfg.Logging.Level, env.LogLevel)
	setString(&cfg.Logging.Format, env.LogFormat)

	if err := setBool(&cfg.MCP.Enabled, "MCP_GATEWAY_ENABLED", env.Enabled); err != nil {
		return err
	}
	if err := setBool(&cfg.MCP.AutoRegisterUnconfiguredTools, "MCP_GATEWAY_AUTO_REGISTER", env.AutoRegister); err != nil {
		return err
	}
	if err := setBool(&cfg.Quota.Enabled, "MCP_GATEWAY_QUOTA_ENABLED", env.QuotaEnabled); err != nil {
		return err
	}
	if env.QuotaLimit != "" {
		n, err := strconv.Atoi(strings.TrimSpace(env.QuotaLimit))
		if err != nil {
			return fmt.Errorf("MCP_GATEWAY_QUOTA_LIMIT: %w", err)
		}
		cfg.Quota.Limit = n
	}
	if env.SessionTTL != "" {
		d, err := parseDuration(env.SessionTTL)
		if err != nil {
			return fmt.Errorf("MCP_GATEWAY_SESSION_TTL: %w", err)
		}
		cfg.MCP.SessionTTL = d
	}
	if env.QuotaWindow != "" {
		d, err := parseDuration(env.QuotaWindow)
		if err != nil {
			return fmt.Errorf("MCP_GATEWAY_QUOTA_WINDOW: %w", err)
		}
		cfg.Quota.Window = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name, v string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.Endpoint, "/") {
		return fmt.Errorf("server.endpoint must start with '/'")
	}
	if c.MCP.SessionTTL <= 0 {
		return fmt.Errorf("mcp.session_ttl must be positive")
	}
	if len(c.MCP.ProtocolVersions) == 0 {
		return fmt.Errorf("mcp.protocol_versions must not be empty")
	}
	for i, t := range c.MCP.Tools {
		if t.Enabled != nil && !*t.Enabled {
			continue
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("mcp.tools[%d].name is required", i)
		}
	}
	if c.Quota.Enabled {
		if c.Quota.Limit <= 0 {
			return fmt.Errorf("quota.limit must be positive when quota is enabled")
		}
		if c.Quota.Window <= 0 {
			return fmt.Errorf("quota.window must be positive when quota is enabled")
		}
		switch strings.ToLower(c.Quota.Backend) {
		case QuotaMemory:
		case QuotaRedis:
			if c.Quota.RedisAddr == "" {
				return fmt.Errorf("quota.redis_addr is required for the redis backend")
			}
		default:
			return fmt.Errorf("quota.backend %q must be memory or redis", c.Quota.Backend)
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	seen := make(map[string]bool, len(c.Skills.Profiles))
	for i, p := range c.Skills.Profiles {
		code := strings.ToLower(strings.TrimSpace(p.Code))
		if code == "" {
			return fmt.Errorf("skills.profiles[%d].code is required", i)
		}
		if seen[code] {
			return fmt.Errorf("duplicate skill code: %s", p.Code)
		}
		seen[code] = true
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

// RegistryConfig converts the tool section into the registry's declarative
// input.
func (c *Config) RegistryConfig() mcpservice.RegistryConfig {
	rc := mcpservice.RegistryConfig{
		Enabled:                       c.MCP.Enabled,
		AutoRegisterUnconfiguredTools: c.MCP.AutoRegisterUnconfiguredTools,
	}
	for _, t := range c.MCP.Tools {
		o := mcpservice.ToolOverride{
			Name:           t.Name,
			Title:          t.Title,
			Description:    t.Description,
			ReadOnlyHint:   t.ReadOnlyHint,
			IdempotentHint: t.IdempotentHint,
			Enabled:        t.Enabled,
		}
		if len(t.InputSchema) > 0 {
			o.InputSchema = mcp.Schema(t.InputSchema)
		}
		rc.Overrides = append(rc.Overrides, o)
	}
	return rc
}

// ResolvePath picks the config file to load: the explicit flag value, then
// $MCP_GATEWAY_CONFIG, then $XDG_CONFIG_HOME/mcp-gateway/gateway.yaml when
// that file exists. An empty result means built-in defaults.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("MCP_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	candidate := filepath.Join(configDir, "mcp-gateway", "gateway.yaml")
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
