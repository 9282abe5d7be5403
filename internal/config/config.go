/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete query service configuration
type Config struct {
	// Registered databases; the first one is the default unless
	// DefaultDatabase names another
	Databases       []DatabaseConfig `yaml:"databases"`
	DefaultDatabase string           `yaml:"default_database"`

	LLM        LLMConfig        `yaml:"llm"`
	Limits     LimitsConfig     `yaml:"limits"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Translator TranslatorConfig `yaml:"translator"`
	Validator  ValidatorConfig  `yaml:"validator"`
	Schema     SchemaConfig     `yaml:"schema"`
	History    HistoryConfig    `yaml:"history"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig holds the connection and pool settings of one database
type DatabaseConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // postgres, sqlite (modernc) or sqlite3 (mattn)

	// Either URL, or the discrete PostgreSQL fields, or Path for SQLite
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`

	PoolMaxConns        int    `yaml:"pool_max_conns"`          // default: 4
	PoolMinConns        int    `yaml:"pool_min_conns"`          // default: 0
	PoolMaxConnIdleTime string `yaml:"pool_max_conn_idle_time"` // default: 30m
	PoolWait            string `yaml:"pool_wait"`               // how long a query waits for a free connection (default: 5s)
	QueryTimeout        string `yaml:"query_timeout"`           // default: 30s
	DiscoveryTimeout    string `yaml:"discovery_timeout"`       // default: 30s
}

// LLMConfig holds the generation service settings
type LLMConfig struct {
	Provider            string  `yaml:"provider"` // "anthropic", "openai", or "ollama"
	Model               string  `yaml:"model"`
	AnthropicAPIKey     string  `yaml:"anthropic_api_key"`
	AnthropicAPIKeyFile string  `yaml:"anthropic_api_key_file"`
	OpenAIAPIKey        string  `yaml:"openai_api_key"`
	OpenAIAPIKeyFile    string  `yaml:"openai_api_key_file"`
	OllamaURL           string  `yaml:"ollama_url"`
	BaseURL             string  `yaml:"base_url"` // overrides the provider endpoint
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
	Timeout             string  `yaml:"timeout"`
}

// LimitsConfig bounds result sizes
type LimitsConfig struct {
	DefaultRows    int `yaml:"default_rows"`     // injected when a statement has no LIMIT
	MaxRows        int `yaml:"max_rows"`         // LIMIT values above this are clamped
	MaxDisplayRows int `yaml:"max_display_rows"` // rows rendered by the formatter
}

// AnalyzerConfig tunes question analysis
type AnalyzerConfig struct {
	// canonical term -> surface synonyms, merged over the built-in map
	BusinessTerms     map[string][]string `yaml:"business_terms"`
	UnknownConfidence float64             `yaml:"unknown_confidence"`
	RejectBelow       float64             `yaml:"reject_below"`
}

// MatcherConfig tunes schema relevance matching
type MatcherConfig struct {
	TopK           int     `yaml:"top_k"`
	RelevanceFloor float64 `yaml:"relevance_floor"`
}

// TranslatorConfig bounds SQL generation
type TranslatorConfig struct {
	// Total generation attempts per query, the first included
	MaxAttempts int `yaml:"max_attempts"`
	// Explanations asks the generation service to describe each answered
	// query in plain language. Unset means on.
	Explanations *bool `yaml:"explanations,omitempty"`
}

// ExplanationsEnabled reports whether results get a generated explanation
func (cfg *TranslatorConfig) ExplanationsEnabled() bool {
	return cfg.Explanations == nil || *cfg.Explanations
}

// ValidatorConfig tunes the safety policy
type ValidatorConfig struct {
	SystemTables []string `yaml:"system_tables"`
}

// SchemaConfig bounds schema discovery retries
type SchemaConfig struct {
	DiscoveryAttempts int    `yaml:"discovery_attempts"`
	BackoffInitial    string `yaml:"backoff_initial"`
	BackoffMax        string `yaml:"backoff_max"`
}

// HistoryConfig controls the persistent query history
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	// .env file loaded before environment variables are applied
	EnvFile string

	DefaultDatabase    string
	DefaultDatabaseSet bool

	DatabaseURL    string
	DatabaseURLSet bool

	LLMProvider    string
	LLMProviderSet bool
	LLMModel       string
	LLMModelSet    bool

	MaxRows    int
	MaxRowsSet bool

	HistoryEnabled    bool
	HistoryEnabledSet bool
	HistoryPath       string
	HistoryPathSet    bool

	LogLevel    string
	LogLevelSet bool
}

var databaseNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables (including a .env file)
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	if err := loadEnvFile(cliFlags.EnvFile); err != nil {
		return nil, err
	}
	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)
	applyDatabaseDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			OllamaURL:   "http://localhost:11434",
			MaxTokens:   1024,
			Temperature: 0.1,
			Timeout:     "60s",
		},
		Limits: LimitsConfig{
			DefaultRows:    100,
			MaxRows:        1000,
			MaxDisplayRows: 100,
		},
		Analyzer: AnalyzerConfig{
			UnknownConfidence: 0.3,
			RejectBelow:       0.05,
		},
		Matcher: MatcherConfig{
			TopK:           4,
			RelevanceFloor: 1.0,
		},
		Translator: TranslatorConfig{
			MaxAttempts: 2,
		},
		Schema: SchemaConfig{
			DiscoveryAttempts: 3,
			BackoffInitial:    "200ms",
			BackoffMax:        "2s",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "~/.nldb/history.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile reads KEY=VALUE pairs without overriding variables already
// present in the environment. A missing default .env is not an error.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return fmt.Errorf("env file %s not found", path)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// mergeConfig merges source config into dest, only overriding non-zero values
func mergeConfig(dest, src *Config) {
	// a database list in the file replaces the defaults entirely
	if len(src.Databases) > 0 {
		dest.Databases = append([]DatabaseConfig(nil), src.Databases...)
	}
	if src.DefaultDatabase != "" {
		dest.DefaultDatabase = src.DefaultDatabase
	}

	// LLM
	if src.LLM.Provider != "" {
		dest.LLM.Provider = src.LLM.Provider
	}
	if src.LLM.Model != "" {
		dest.LLM.Model = src.LLM.Model
	}
	if src.LLM.AnthropicAPIKey != "" {
		dest.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
	}
	if src.LLM.AnthropicAPIKeyFile != "" {
		dest.LLM.AnthropicAPIKeyFile = src.LLM.AnthropicAPIKeyFile
	}
	if src.LLM.OpenAIAPIKey != "" {
		dest.LLM.OpenAIAPIKey = src.LLM.OpenAIAPIKey
	}
	if src.LLM.OpenAIAPIKeyFile != "" {
		dest.LLM.OpenAIAPIKeyFile = src.LLM.OpenAIAPIKeyFile
	}
	if src.LLM.OllamaURL != "" {
		dest.LLM.OllamaURL = src.LLM.OllamaURL
	}
	if src.LLM.BaseURL != "" {
		dest.LLM.BaseURL = src.LLM.BaseURL
	}
	if src.LLM.MaxTokens != 0 {
		dest.LLM.MaxTokens = src.LLM.MaxTokens
	}
	if src.LLM.Temperature != 0 {
		dest.LLM.Temperature = src.LLM.Temperature
	}
	if src.LLM.Timeout != "" {
		dest.LLM.Timeout = src.LLM.Timeout
	}

	// Limits
	if src.Limits.DefaultRows != 0 {
		dest.Limits.DefaultRows = src.Limits.DefaultRows
	}
	if src.Limits.MaxRows != 0 {
		dest.Limits.MaxRows = src.Limits.MaxRows
	}
	if src.Limits.MaxDisplayRows != 0 {
		dest.Limits.MaxDisplayRows = src.Limits.MaxDisplayRows
	}

	// Analyzer
	if len(src.Analyzer.BusinessTerms) > 0 {
		dest.Analyzer.BusinessTerms = src.Analyzer.BusinessTerms
	}
	if src.Analyzer.UnknownConfidence != 0 {
		dest.Analyzer.UnknownConfidence = src.Analyzer.UnknownConfidence
	}
	if src.Analyzer.RejectBelow != 0 {
		dest.Analyzer.RejectBelow = src.Analyzer.RejectBelow
	}

	// Matcher
	if src.Matcher.TopK != 0 {
		dest.Matcher.TopK = src.Matcher.TopK
	}
	if src.Matcher.RelevanceFloor != 0 {
		dest.Matcher.RelevanceFloor = src.Matcher.RelevanceFloor
	}

	if src.Translator.MaxAttempts != 0 {
		dest.Translator.MaxAttempts = src.Translator.MaxAttempts
	}
	if src.Translator.Explanations != nil {
		on := *src.Translator.Explanations
		dest.Translator.Explanations = &on
	}
	if len(src.Validator.SystemTables) > 0 {
		dest.Validator.SystemTables = src.Validator.SystemTables
	}

	// Schema
	if src.Schema.DiscoveryAttempts != 0 {
		dest.Schema.DiscoveryAttempts = src.Schema.DiscoveryAttempts
	}
	if src.Schema.BackoffInitial != "" {
		dest.Schema.BackoffInitial = src.Schema.BackoffInitial
	}
	if src.Schema.BackoffMax != "" {
		dest.Schema.BackoffMax = src.Schema.BackoffMax
	}

	// History - a path in the file implies the section is intentional
	if src.History.Enabled || src.History.Path != "" {
		dest.History.Enabled = src.History.Enabled
		if src.History.Path != "" {
			dest.History.Path = src.History.Path
		}
	}

	if src.Logging.Level != "" {
		dest.Logging.Level = src.Logging.Level
	}
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback checks multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setBoolFromEnv accepts "true", "1", or "yes" as true values
func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			*dest = intVal
		}
	}
}

// setFloatFromEnv sets a float config value from an environment variable if it exists
func setFloatFromEnv(dest *float64, key string) {
	if val := os.Getenv(key); val != "" {
		var floatVal float64
		if _, err := fmt.Sscanf(val, "%f", &floatVal); err == nil {
			*dest = floatVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist.
// All variables use the NLDB_ prefix; a few unprefixed names are accepted as fallbacks.
func applyEnvironmentVariables(cfg *Config) {
	// Single database shortcut
	var dbURL, dbName string
	setStringFromEnvWithFallback(&dbURL, "NLDB_DATABASE_URL", "DATABASE_URL")
	setStringFromEnv(&dbName, "NLDB_DATABASE_NAME")
	if dbURL != "" {
		upsertDatabaseURL(cfg, dbName, dbURL)
	}
	setStringFromEnv(&cfg.DefaultDatabase, "NLDB_DEFAULT_DATABASE")

	var queryTimeout, poolWait string
	setStringFromEnv(&queryTimeout, "NLDB_QUERY_TIMEOUT")
	setStringFromEnv(&poolWait, "NLDB_POOL_WAIT")
	for i := range cfg.Databases {
		if queryTimeout != "" {
			cfg.Databases[i].QueryTimeout = queryTimeout
		}
		if poolWait != "" {
			cfg.Databases[i].PoolWait = poolWait
		}
	}

	// LLM
	setStringFromEnv(&cfg.LLM.Provider, "NLDB_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "NLDB_LLM_MODEL")
	// API key loading priority: env vars > api_key_file > direct config value
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "NLDB_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OpenAIAPIKey, "NLDB_OPENAI_API_KEY", "OPENAI_API_KEY")
	if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.AnthropicAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.AnthropicAPIKeyFile); err == nil && key != "" {
			cfg.LLM.AnthropicAPIKey = key
		}
	}
	if cfg.LLM.OpenAIAPIKey == "" && cfg.LLM.OpenAIAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.OpenAIAPIKeyFile); err == nil && key != "" {
			cfg.LLM.OpenAIAPIKey = key
		}
	}
	setStringFromEnv(&cfg.LLM.OllamaURL, "NLDB_OLLAMA_URL")
	setStringFromEnv(&cfg.LLM.BaseURL, "NLDB_LLM_BASE_URL")
	setIntFromEnv(&cfg.LLM.MaxTokens, "NLDB_LLM_MAX_TOKENS")
	setFloatFromEnv(&cfg.LLM.Temperature, "NLDB_LLM_TEMPERATURE")
	setStringFromEnv(&cfg.LLM.Timeout, "NLDB_LLM_TIMEOUT")

	// Limits and tuning
	setIntFromEnv(&cfg.Limits.DefaultRows, "NLDB_DEFAULT_ROWS")
	setIntFromEnv(&cfg.Limits.MaxRows, "NLDB_MAX_ROWS")
	setIntFromEnv(&cfg.Limits.MaxDisplayRows, "NLDB_MAX_DISPLAY_ROWS")
	setIntFromEnv(&cfg.Matcher.TopK, "NLDB_TOP_K")
	setFloatFromEnv(&cfg.Matcher.RelevanceFloor, "NLDB_RELEVANCE_FLOOR")
	setIntFromEnv(&cfg.Translator.MaxAttempts, "NLDB_TRANSLATION_ATTEMPTS")
	if os.Getenv("NLDB_EXPLANATIONS") != "" {
		var on bool
		setBoolFromEnv(&on, "NLDB_EXPLANATIONS")
		cfg.Translator.Explanations = &on
	}

	// History
	setBoolFromEnv(&cfg.History.Enabled, "NLDB_HISTORY_ENABLED")
	setStringFromEnv(&cfg.History.Path, "NLDB_HISTORY_PATH")

	setStringFromEnv(&cfg.Logging.Level, "NLDB_LOG_LEVEL")
}

// upsertDatabaseURL replaces the named database's URL, or registers a new one
func upsertDatabaseURL(cfg *Config, name, url string) {
	if name == "" {
		name = "default"
		if len(cfg.Databases) == 1 {
			name = cfg.Databases[0].Name
		}
	}
	for i := range cfg.Databases {
		if cfg.Databases[i].Name == name {
			cfg.Databases[i].URL = url
			cfg.Databases[i].Driver = DriverForURL(url)
			return
		}
	}
	cfg.Databases = append(cfg.Databases, DatabaseConfig{
		Name:   name,
		Driver: DriverForURL(url),
		URL:    url,
	})
}

// DriverForURL infers the driver from a connection URL or file path
func DriverForURL(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "sqlite3://"):
		return "sqlite3"
	case strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"),
		strings.HasSuffix(lower, ".sqlite"),
		strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	default:
		return "postgres"
	}
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.DatabaseURLSet {
		upsertDatabaseURL(cfg, flags.DefaultDatabase, flags.DatabaseURL)
	}
	if flags.DefaultDatabaseSet {
		cfg.DefaultDatabase = flags.DefaultDatabase
	}
	if flags.LLMProviderSet {
		cfg.LLM.Provider = flags.LLMProvider
	}
	if flags.LLMModelSet {
		cfg.LLM.Model = flags.LLMModel
	}
	if flags.MaxRowsSet {
		cfg.Limits.MaxRows = flags.MaxRows
	}
	if flags.HistoryEnabledSet {
		cfg.History.Enabled = flags.HistoryEnabled
	}
	if flags.HistoryPathSet {
		cfg.History.Path = flags.HistoryPath
	}
	if flags.LogLevelSet {
		cfg.Logging.Level = flags.LogLevel
	}
}

// applyDatabaseDefaults fills unset per-database settings
func applyDatabaseDefaults(cfg *Config) {
	for i := range cfg.Databases {
		db := &cfg.Databases[i]
		if db.Driver == "" {
			if db.Path != "" {
				db.Driver = "sqlite"
			} else {
				db.Driver = DriverForURL(db.URL)
			}
		}
		if db.Driver == "postgres" && db.URL == "" {
			if db.Host == "" {
				db.Host = "localhost"
			}
			if db.Port == 0 {
				db.Port = 5432
			}
			if db.SSLMode == "" {
				db.SSLMode = "prefer"
			}
		}
		if db.PoolMaxConns == 0 {
			db.PoolMaxConns = 4
		}
		if db.PoolMaxConnIdleTime == "" {
			db.PoolMaxConnIdleTime = "30m"
		}
		if db.PoolWait == "" {
			db.PoolWait = "5s"
		}
		if db.QueryTimeout == "" {
			db.QueryTimeout = "30s"
		}
		if db.DiscoveryTimeout == "" {
			db.DiscoveryTimeout = "30s"
		}
	}
	if cfg.DefaultDatabase == "" && len(cfg.Databases) > 0 {
		cfg.DefaultDatabase = cfg.Databases[0].Name
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	if len(cfg.Databases) == 0 {
		return fmt.Errorf("no databases configured (set NLDB_DATABASE_URL, --database-url, or databases in the config file)")
	}

	seen := make(map[string]bool, len(cfg.Databases))
	for _, db := range cfg.Databases {
		if !databaseNamePattern.MatchString(db.Name) {
			return fmt.Errorf("invalid database name %q: must start with a letter and contain only letters, digits and underscores", db.Name)
		}
		if seen[db.Name] {
			return fmt.Errorf("duplicate database name %q", db.Name)
		}
		seen[db.Name] = true

		switch db.Driver {
		case "postgres":
			if db.URL == "" && db.User == "" {
				return fmt.Errorf("database %s: url or user is required", db.Name)
			}
		case "sqlite", "sqlite3":
			if db.Path == "" && db.URL == "" {
				return fmt.Errorf("database %s: path is required for %s", db.Name, db.Driver)
			}
		default:
			return fmt.Errorf("database %s: unsupported driver %q", db.Name, db.Driver)
		}

		if db.PoolMinConns > db.PoolMaxConns {
			return fmt.Errorf("database %s: pool_min_conns exceeds pool_max_conns", db.Name)
		}
		for field, value := range map[string]string{
			"pool_max_conn_idle_time": db.PoolMaxConnIdleTime,
			"pool_wait":               db.PoolWait,
			"query_timeout":           db.QueryTimeout,
			"discovery_timeout":       db.DiscoveryTimeout,
		} {
			if d, err := time.ParseDuration(value); err != nil || d <= 0 {
				return fmt.Errorf("database %s: invalid %s %q", db.Name, field, value)
			}
		}
	}
	if !seen[cfg.DefaultDatabase] {
		return fmt.Errorf("default database %q is not configured", cfg.DefaultDatabase)
	}

	switch cfg.LLM.Provider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	if _, err := time.ParseDuration(cfg.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm timeout %q", cfg.LLM.Timeout)
	}

	if cfg.Limits.DefaultRows <= 0 || cfg.Limits.MaxRows <= 0 {
		return fmt.Errorf("row limits must be positive")
	}
	if cfg.Limits.DefaultRows > cfg.Limits.MaxRows {
		return fmt.Errorf("default_rows (%d) exceeds max_rows (%d)", cfg.Limits.DefaultRows, cfg.Limits.MaxRows)
	}
	if cfg.Matcher.TopK < 1 {
		return fmt.Errorf("matcher top_k must be at least 1")
	}
	if cfg.Matcher.RelevanceFloor < 0 {
		return fmt.Errorf("matcher relevance_floor must not be negative")
	}
	if cfg.Analyzer.UnknownConfidence < 0 || cfg.Analyzer.UnknownConfidence > 1 {
		return fmt.Errorf("analyzer unknown_confidence must be within [0,1]")
	}
	if cfg.Translator.MaxAttempts < 1 || cfg.Translator.MaxAttempts > 5 {
		return fmt.Errorf("translator max_attempts must be between 1 and 5")
	}
	if cfg.Schema.DiscoveryAttempts < 1 || cfg.Schema.DiscoveryAttempts > 10 {
		return fmt.Errorf("schema discovery_attempts must be between 1 and 10")
	}
	for _, value := range []string{cfg.Schema.BackoffInitial, cfg.Schema.BackoffMax} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid schema backoff %q", value)
		}
	}

	return nil
}

// readAPIKeyFromFile reads an API key from a file
// Returns the key with whitespace trimmed, or empty string if file doesn't exist
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	filePath, err := ExpandPath(filePath)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/nldb/ first, then the binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/nldb/nldb.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	return filepath.Join(filepath.Dir(binaryPath), "nldb.yaml")
}

// ValidDatabaseName reports whether name is usable as a database identifier
func ValidDatabaseName(name string) bool {
	return databaseNamePattern.MatchString(name)
}

// Database returns the named database configuration
func (cfg *Config) Database(name string) (DatabaseConfig, bool) {
	for _, db := range cfg.Databases {
		if db.Name == name {
			return db, true
		}
	}
	return DatabaseConfig{}, false
}

// DatabaseNames returns the registered database names in configuration order
func (cfg *Config) DatabaseNames() []string {
	names := make([]string, len(cfg.Databases))
	for i, db := range cfg.Databases {
		names[i] = db.Name
	}
	return names
}

// ConnectionString returns the DSN handed to the driver
func (cfg *DatabaseConfig) ConnectionString() string {
	switch cfg.Driver {
	case "sqlite", "sqlite3":
		path := cfg.Path
		if path == "" {
			path = cfg.URL
			path = strings.TrimPrefix(path, "sqlite3://")
			path = strings.TrimPrefix(path, "sqlite://")
		}
		return path
	}
	if cfg.URL != "" {
		return cfg.URL
	}
	return cfg.BuildConnectionString()
}

// BuildConnectionString creates a PostgreSQL connection string from DatabaseConfig
// If password is not set, pgx will automatically look it up from .pgpass file
func (cfg *DatabaseConfig) BuildConnectionString() string {
	connStr := fmt.Sprintf("postgres://%s", cfg.User)

	if cfg.Password != "" {
		connStr += ":" + cfg.Password
	}

	connStr += fmt.Sprintf("@%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)

	if cfg.SSLMode != "" {
		connStr += "?sslmode=" + cfg.SSLMode
	}

	return connStr
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// PoolWaitDuration is how long Acquire blocks before giving up
func (cfg *DatabaseConfig) PoolWaitDuration() time.Duration {
	return parseDuration(cfg.PoolWait, 5*time.Second)
}

// QueryTimeoutDuration is the execution budget of one statement
func (cfg *DatabaseConfig) QueryTimeoutDuration() time.Duration {
	return parseDuration(cfg.QueryTimeout, 30*time.Second)
}

// DiscoveryTimeoutDuration bounds one schema refresh
func (cfg *DatabaseConfig) DiscoveryTimeoutDuration() time.Duration {
	return parseDuration(cfg.DiscoveryTimeout, 30*time.Second)
}

// IdleTimeDuration is the pool's idle connection lifetime
func (cfg *DatabaseConfig) IdleTimeDuration() time.Duration {
	return parseDuration(cfg.PoolMaxConnIdleTime, 30*time.Minute)
}

// TimeoutDuration is the generation request timeout
func (cfg *LLMConfig) TimeoutDuration() time.Duration {
	return parseDuration(cfg.Timeout, 60*time.Second)
}

// BackoffInitialDuration is the first retry delay of schema discovery
func (cfg *SchemaConfig) BackoffInitialDuration() time.Duration {
	return parseDuration(cfg.BackoffInitial, 200*time.Millisecond)
}

// BackoffMaxDuration caps the schema discovery retry delay
func (cfg *SchemaConfig) BackoffMaxDuration() time.Duration {
	return parseDuration(cfg.BackoffMax, 2*time.Second)
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// may hold credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
