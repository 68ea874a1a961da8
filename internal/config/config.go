package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the tagrec API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Records    RecordsConfig    `yaml:"records"`
	Index      IndexConfig      `yaml:"index"`
	Encoder    EncoderConfig    `yaml:"encoder"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
// Only used when the index driver or the encoder cache needs a server.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecordsConfig points at the SQLite record store.
type RecordsConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Driver          string `yaml:"driver"` // bolt, redis, valkey (default: bolt)
	Path            string `yaml:"path"`   // bolt file
	Collection      string `yaml:"collection"`
	KeyPrefix       string `yaml:"key_prefix"`
	Algorithm       string `yaml:"algorithm"` // hnsw, flat (redis/valkey only, default: hnsw)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
}

// EncoderConfig holds embedding settings.
type EncoderConfig struct {
	Provider   string `yaml:"provider"` // hashing, openai (default: hashing)
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Cache      bool   `yaml:"cache"`
}

// ReasoningConfig holds the remote reasoning provider settings.
// An empty APIKey leaves the analyzer running without model passes.
type ReasoningConfig struct {
	Provider           string  `yaml:"provider"` // glm, openai, gemini (default: glm)
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	Temperature        float32 `yaml:"temperature"`
	TimeoutSec         int     `yaml:"timeout_sec"`
	VerifyMaxTokens    int     `yaml:"verify_max_tokens"`
	RecommendMaxTokens int     `yaml:"recommend_max_tokens"`
}

// RecommendConfig holds recommender and analyzer limits.
// Similarity thresholds are pointers so an explicit 0 differs from an unset key.
type RecommendConfig struct {
	DefaultTopK             int      `yaml:"default_top_k"`
	MaxTopK                 int      `yaml:"max_top_k"`
	MinSimilarity           *float64 `yaml:"min_similarity"`
	HistoricalTopK          int      `yaml:"historical_top_k"`
	HistoricalMinSimilarity *float64 `yaml:"historical_min_similarity"`
}

// VocabularyConfig selects the tag vocabulary source.
type VocabularyConfig struct {
	Source string `yaml:"source"` // default, file, records
	Path   string `yaml:"path"`
}

// Index drivers.
const (
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Vector algorithms for the redis FT index.
const (
	AlgorithmHNSW = "hnsw"
	AlgorithmFlat = "flat"
)

// Encoder providers.
const (
	EncoderHashing = "hashing"
	EncoderOpenAI  = "openai"
)

// Reasoning providers.
const (
	ReasoningGLM    = "glm"
	ReasoningOpenAI = "openai"
	ReasoningGemini = "gemini"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, seeds the environment first.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// analysis runs two sequential model calls
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Records.Path == "" {
		c.Records.Path = "data/records.db"
	}
	c.applyIndexDefaults()
	c.applyEncoderDefaults()
	c.applyReasoningDefaults()
	c.applyRecommendDefaults()
	if c.Vocabulary.Source == "" {
		c.Vocabulary.Source = "default"
	}
}

func (c *Config) applyIndexDefaults() {
	if c.Index.Driver == "" {
		c.Index.Driver = DriverBolt
	}
	if c.Index.Path == "" {
		c.Index.Path = "data/index.db"
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "conversations"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "tagrec:"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = AlgorithmHNSW
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.MaxBatchSize <= 0 {
		c.Index.MaxBatchSize = 500
	}
}

func (c *Config) applyEncoderDefaults() {
	if c.Encoder.Provider == "" {
		c.Encoder.Provider = EncoderHashing
	}
	if c.Encoder.Dimensions <= 0 {
		c.Encoder.Dimensions = 512
	}
}

// reasoningKeyEnv lists the variables consulted, in order, when reasoning.api_key is empty.
var reasoningKeyEnv = map[string][]string{
	ReasoningGLM:    {"GLM_API_KEY", "ZHIPU_API_KEY"},
	ReasoningOpenAI: {"OPENAI_API_KEY"},
	ReasoningGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) applyReasoningDefaults() {
	if c.Reasoning.Provider == "" {
		c.Reasoning.Provider = ReasoningGLM
	}
	if c.Reasoning.Model == "" {
		switch c.Reasoning.Provider {
		case ReasoningGemini:
			c.Reasoning.Model = "gemini-2.5-flash"
		case ReasoningOpenAI:
			c.Reasoning.Model = "gpt-4o-mini"
		default:
			c.Reasoning.Model = "glm-4-flash"
		}
	}
	if c.Reasoning.APIKey == "" {
		c.Reasoning.APIKey = firstEnv(reasoningKeyEnv[c.Reasoning.Provider]...)
	}
	if c.Reasoning.Temperature <= 0 {
		c.Reasoning.Temperature = 0.3
	}
	if c.Reasoning.TimeoutSec <= 0 {
		c.Reasoning.TimeoutSec = 30
	}
	if c.Reasoning.VerifyMaxTokens <= 0 {
		c.Reasoning.VerifyMaxTokens = 1500
	}
	if c.Reasoning.RecommendMaxTokens <= 0 {
		c.Reasoning.RecommendMaxTokens = 2000
	}
}

func (c *Config) applyRecommendDefaults() {
	if c.Recommend.DefaultTopK <= 0 {
		c.Recommend.DefaultTopK = 3
	}
	if c.Recommend.MaxTopK <= 0 {
		c.Recommend.MaxTopK = 10
	}
	if c.Recommend.MinSimilarity == nil {
		c.Recommend.MinSimilarity = floatPtr(0.5)
	}
	if c.Recommend.HistoricalTopK <= 0 {
		c.Recommend.HistoricalTopK = 10
	}
	if c.Recommend.HistoricalMinSimilarity == nil {
		c.Recommend.HistoricalMinSimilarity = floatPtr(0.3)
	}
}

func floatPtr(v float64) *float64 { return &v }

// NeedsServer reports whether any component talks to Redis/Valkey.
func (c *Config) NeedsServer() bool {
	return c.Index.Driver == DriverRedis || c.Index.Driver == DriverValkey
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Index.Driver {
	case DriverBolt:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for index.driver %q", c.Index.Driver)
		}
	default:
		return fmt.Errorf("index.driver must be \"bolt\", \"redis\" or \"valkey\", got %q", c.Index.Driver)
	}
	if c.Index.Algorithm != AlgorithmHNSW && c.Index.Algorithm != AlgorithmFlat {
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}
	switch c.Encoder.Provider {
	case EncoderHashing:
	case EncoderOpenAI:
		if c.Encoder.Model == "" {
			return fmt.Errorf("encoder.model is required for provider %q", c.Encoder.Provider)
		}
	default:
		return fmt.Errorf("encoder.provider must be \"hashing\" or \"openai\", got %q", c.Encoder.Provider)
	}
	switch c.Reasoning.Provider {
	case ReasoningGLM, ReasoningOpenAI, ReasoningGemini:
	default:
		return fmt.Errorf("reasoning.provider must be \"glm\", \"openai\" or \"gemini\", got %q", c.Reasoning.Provider)
	}
	switch c.Vocabulary.Source {
	case "default", "records":
	case "file":
		if c.Vocabulary.Path == "" {
			return fmt.Errorf("vocabulary.path is required for source \"file\"")
		}
	default:
		return fmt.Errorf("vocabulary.source must be \"default\", \"file\" or \"records\", got %q", c.Vocabulary.Source)
	}
	r := c.Recommend
	if r.DefaultTopK > r.MaxTopK {
		return fmt.Errorf("recommend.default_top_k (%d) exceeds recommend.max_top_k (%d)", r.DefaultTopK, r.MaxTopK)
	}
	for _, th := range []*float64{r.MinSimilarity, r.HistoricalMinSimilarity} {
		if th != nil && (*th < 0 || *th > 1) {
			return fmt.Errorf("recommend similarity thresholds must be in [0, 1]")
		}
	}
	return nil
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
