// Package config loads per-environment YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/invoicedex/internal/domain"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds the invoicedex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyKB       int `yaml:"max_body_kb"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, sqlite, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // sqlite file
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UsesKV reports whether the driver provides the key-value store used by
// the embedding cache and budget persistence.
func (d DatabaseConfig) UsesKV() bool {
	return d.Driver == DriverRedis || d.Driver == DriverValkey
}

// OpenAIConfig holds the model provider settings shared by embedding and extraction.
type OpenAIConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	CacheEnabled bool   `yaml:"cache_enabled"`
	CacheTTLHour int    `yaml:"cache_ttl_hours"` // 0 = no expiry
}

// ExtractionConfig holds structured extraction settings.
type ExtractionConfig struct {
	Model                string  `yaml:"model"`
	ResponseFormat       string  `yaml:"response_format"` // json_schema (default) | json_object
	TimeoutSec           int     `yaml:"timeout_sec"`
	StrictReconciliation bool    `yaml:"strict_reconciliation"`
	MaxTaxRate           float64 `yaml:"max_tax_rate"`
	Concurrency          int     `yaml:"concurrency"`
}

// IndexConfig holds collection and HNSW settings.
type IndexConfig struct {
	Collection      string `yaml:"collection"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// SearchConfig holds result count limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded first;
// variables already set in the environment win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in a YAML document, decodes it,
// applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTP.Port, 8080)
	setDefault(&c.HTTP.ReadTimeoutSec, 10)
	// Extraction calls routinely take several seconds.
	setDefault(&c.HTTP.WriteTimeoutSec, 90)
	setDefault(&c.HTTP.ShutdownSec, 10)
	setDefault(&c.HTTP.MaxBodyKB, 256)

	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "invoicedex.db"
	}
	setDefault(&c.Database.ReadinessTimeout, 10)

	vc := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vc.Model
	}
	setDefault(&c.Embedding.Dimensions, vc.Dimensions)

	if c.Extraction.Model == "" {
		c.Extraction.Model = domain.DefaultExtractionModel
	}
	if c.Extraction.ResponseFormat == "" {
		c.Extraction.ResponseFormat = "json_schema"
	}
	setDefault(&c.Extraction.TimeoutSec, 60)
	setDefault(&c.Extraction.Concurrency, 4)
	if c.Extraction.MaxTaxRate <= 0 {
		c.Extraction.MaxTaxRate = 0.27
	}

	if c.Index.Collection == "" {
		c.Index.Collection = domain.CollectionName
	}
	setDefault(&c.Index.HNSWM, 16)
	setDefault(&c.Index.HNSWEFConstruct, 200)

	setDefault(&c.Search.DefaultLimit, 5)
	setDefault(&c.Search.MaxLimit, 100)

	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.KeyPrefix
	}
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			errs = append(errs, fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver))
		}
	case DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf(
			"database.driver must be one of redis, valkey, sqlite, memory, got %q", c.Database.Driver))
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required (set OPENAI_API_KEY)"))
	}
	switch c.OpenAI.Budget.Action {
	case "", "warn", "reject":
	default:
		errs = append(errs, fmt.Errorf(
			"openai.budget.action must be \"warn\" or \"reject\", got %q", c.OpenAI.Budget.Action))
	}

	switch c.Extraction.ResponseFormat {
	case "json_schema", "json_object":
	default:
		errs = append(errs, fmt.Errorf(
			"extraction.response_format must be \"json_schema\" or \"json_object\", got %q", c.Extraction.ResponseFormat))
	}
	if c.Extraction.MaxTaxRate >= 1 {
		errs = append(errs, fmt.Errorf("extraction.max_tax_rate must be below 1, got %v", c.Extraction.MaxTaxRate))
	}

	if c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit))
	}
	if !strings.HasSuffix(c.Storage.KeyPrefix, ":") {
		errs = append(errs, fmt.Errorf("storage.key_prefix must end with ':', got %q", c.Storage.KeyPrefix))
	}

	return errors.Join(errs...)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
