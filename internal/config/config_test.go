package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_RedisDriverRequiresAddrs(t *testing.T) {
	for _, driver := range []string{DriverRedis, DriverValkey} {
		t.Run(driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Index.Driver = driver

			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error for missing database addrs")
			}

			cfg.Database.Addrs = []string{"localhost:6379"}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_UnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"index driver", func(c *Config) { c.Index.Driver = "faiss" }, "index.driver"},
		{"index algorithm", func(c *Config) { c.Index.Algorithm = "ivf" }, "index.algorithm"},
		{"encoder provider", func(c *Config) { c.Encoder.Provider = "bert" }, "encoder.provider"},
		{"openai encoder without model", func(c *Config) { c.Encoder.Provider = EncoderOpenAI }, "encoder.model"},
		{"reasoning provider", func(c *Config) { c.Reasoning.Provider = "claude" }, "reasoning.provider"},
		{"vocabulary source", func(c *Config) { c.Vocabulary.Source = "web" }, "vocabulary.source"},
		{"vocabulary file without path", func(c *Config) { c.Vocabulary.Source = "file" }, "vocabulary.path"},
		{"top k bounds", func(c *Config) { c.Recommend.DefaultTopK = 20 }, "default_top_k"},
		{"similarity range", func(c *Config) { c.Recommend.MinSimilarity = floatPtr(1.5) }, "similarity"},
		{"negative similarity", func(c *Config) { c.Recommend.HistoricalMinSimilarity = floatPtr(-0.1) }, "similarity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 90 {
		t.Errorf("expected WriteTimeoutSec=90, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.Driver != DriverBolt || cfg.Index.Collection != "conversations" {
		t.Errorf("unexpected index defaults %+v", cfg.Index)
	}
	if cfg.Index.KeyPrefix != "tagrec:" {
		t.Errorf("expected KeyPrefix='tagrec:', got %q", cfg.Index.KeyPrefix)
	}
	if cfg.Index.MaxBatchSize != 500 {
		t.Errorf("expected MaxBatchSize=500, got %d", cfg.Index.MaxBatchSize)
	}
	if cfg.Encoder.Provider != EncoderHashing || cfg.Encoder.Dimensions != 512 {
		t.Errorf("unexpected encoder defaults %+v", cfg.Encoder)
	}
	if cfg.Reasoning.Provider != ReasoningGLM || cfg.Reasoning.Model != "glm-4-flash" {
		t.Errorf("unexpected reasoning defaults %+v", cfg.Reasoning)
	}
	if cfg.Reasoning.VerifyMaxTokens != 1500 || cfg.Reasoning.RecommendMaxTokens != 2000 {
		t.Errorf("unexpected token limits %+v", cfg.Reasoning)
	}
	r := cfg.Recommend
	if r.DefaultTopK != 3 || r.MaxTopK != 10 || *r.MinSimilarity != 0.5 {
		t.Errorf("unexpected recommend defaults %+v", r)
	}
	if r.HistoricalTopK != 10 || *r.HistoricalMinSimilarity != 0.3 {
		t.Errorf("unexpected historical defaults %+v", r)
	}
	if cfg.Vocabulary.Source != "default" {
		t.Errorf("expected vocabulary source default, got %q", cfg.Vocabulary.Source)
	}
}

func TestApplyDefaults_ReasoningModelPerProvider(t *testing.T) {
	cfg := Config{Reasoning: ReasoningConfig{Provider: ReasoningGemini}}
	cfg.ApplyDefaults()
	if cfg.Reasoning.Model != "gemini-2.5-flash" {
		t.Errorf("got %q", cfg.Reasoning.Model)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{ReadinessTimeout: 15},
		Index:     IndexConfig{Driver: DriverValkey, HNSWM: 32, HNSWEFConstruct: 400, MaxBatchSize: 50, KeyPrefix: "custom:"},
		Recommend: RecommendConfig{DefaultTopK: 5, MinSimilarity: floatPtr(0.2), HistoricalMinSimilarity: floatPtr(0)},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 60 || cfg.HTTP.ShutdownSec != 5 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Database.ReadinessTimeout != 15 {
		t.Errorf("expected ReadinessTimeout=15, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Index.Driver != DriverValkey || cfg.Index.HNSWM != 32 || cfg.Index.KeyPrefix != "custom:" {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if cfg.Recommend.DefaultTopK != 5 || *cfg.Recommend.MinSimilarity != 0.2 {
		t.Errorf("recommend overridden: %+v", cfg.Recommend)
	}
	if *cfg.Recommend.HistoricalMinSimilarity != 0 {
		t.Errorf("explicit zero threshold replaced: %v", *cfg.Recommend.HistoricalMinSimilarity)
	}
	if !cfg.NeedsServer() {
		t.Error("valkey driver needs a server")
	}
}

func TestApplyDefaults_ReasoningKeyFromEnv(t *testing.T) {
	t.Setenv("GLM_API_KEY", "")
	t.Setenv("ZHIPU_API_KEY", "zhipu-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	glm := Config{}
	glm.ApplyDefaults()
	if glm.Reasoning.APIKey != "zhipu-key" {
		t.Errorf("glm key = %q, want ZHIPU_API_KEY fallback", glm.Reasoning.APIKey)
	}

	explicit := Config{Reasoning: ReasoningConfig{Provider: ReasoningOpenAI, APIKey: "from-file"}}
	explicit.ApplyDefaults()
	if explicit.Reasoning.APIKey != "from-file" {
		t.Errorf("configured key overwritten: %q", explicit.Reasoning.APIKey)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TAGREC_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${TAGREC_TEST_KEY}\nb: ${TAGREC_TEST_UNSET:-fallback}\nc: ${TAGREC_TEST_UNSET}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: ${TAGREC_TEST_PORT:-9090}
index:
  driver: bolt
  path: /tmp/idx.db
reasoning:
  provider: openai
  api_key: ${TAGREC_TEST_REASONING_KEY}
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unit.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("TAGREC_TEST_REASONING_KEY", "sk-test")

	cfg, err := Load("unit")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port: got %d", cfg.HTTP.Port)
	}
	if cfg.Index.Path != "/tmp/idx.db" {
		t.Errorf("index path: got %q", cfg.Index.Path)
	}
	if cfg.Reasoning.APIKey != "sk-test" || cfg.Reasoning.Model != "gpt-4o-mini" {
		t.Errorf("reasoning: %+v", cfg.Reasoning)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config")
	}
}
