package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string         `yaml:"port"`
	Env      string         `yaml:"env"`
	LLM      LLM            `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Artifact ArtifactConfig `yaml:"artifact"`
}

type LLM struct {
	// Provider is one of gemini, openai or fake.
	Provider    string          `yaml:"provider"`
	Model       string          `yaml:"model"`
	APIKey      string          `yaml:"api_key"`
	BaseURL     string          `yaml:"base_url"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float64         `yaml:"temperature"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Retry       RetryConfig     `yaml:"retry"`
	CacheSize   int             `yaml:"cache_size"`
}

type RateLimitConfig struct {
	Calls  int           `yaml:"calls"`
	Window time.Duration `yaml:"window"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

type PipelineConfig struct {
	MaxConcurrentRuns    int `yaml:"max_concurrent_runs"`
	MaxDescriptionLength int `yaml:"max_description_length"`
}

type ArtifactConfig struct {
	// Backend is one of memory, s3 or postgres.
	Backend     string `yaml:"backend"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	UseSSL      bool   `yaml:"use_ssl"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

func Default() Config {
	return Config{
		Port: ":8081",
		Env:  "local",
		LLM: LLM{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			MaxTokens:   8192,
			Temperature: 0.2,
			RateLimit:   RateLimitConfig{Calls: 10, Window: time.Minute},
			Retry: RetryConfig{
				MaxAttempts: 4,
				BaseDelay:   500 * time.Millisecond,
				Multiplier:  2,
				MaxDelay:    20 * time.Second,
				Jitter:      0.2,
			},
			CacheSize: 128,
		},
		Pipeline: PipelineConfig{MaxConcurrentRuns: 4, MaxDescriptionLength: 5000},
		Artifact: ArtifactConfig{
			Backend: "memory",
			Region:  "us-east-1",
			Bucket:  "project-architect-artifacts",
		},
	}
}

// Load reads .env (if present), then the YAML file named by ARCHITECT_CONFIG
// (if set), then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("ARCHITECT_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return c.mergeYAML(b)
}

func (c *Config) mergeYAML(b []byte) error {
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if p := get("PORT"); p != "" {
		if strings.HasPrefix(p, ":") {
			c.Port = p
		} else {
			c.Port = ":" + p
		}
	}
	c.Env = firstNonEmpty(get("APP_ENV"), c.Env)

	c.LLM.Provider = strings.ToLower(firstNonEmpty(get("LLM_PROVIDER"), c.LLM.Provider))
	c.LLM.Model = firstNonEmpty(get("LLM_MODEL"), c.LLM.Model)
	c.LLM.BaseURL = firstNonEmpty(get("LLM_BASE_URL"), get("OPENAI_BASE_URL"), c.LLM.BaseURL)
	switch c.LLM.Provider {
	case "openai":
		c.LLM.APIKey = firstNonEmpty(get("LLM_API_KEY"), get("OPENAI_API_KEY"), c.LLM.APIKey)
	default:
		c.LLM.APIKey = firstNonEmpty(get("LLM_API_KEY"), get("GEMINI_API_KEY"), get("GOOGLE_API_KEY"), c.LLM.APIKey)
	}

	var err error
	set := func(key string, fn func(string) error) {
		if err != nil {
			return
		}
		if v := get(key); v != "" {
			if perr := fn(v); perr != nil {
				err = fmt.Errorf("%s=%q: %w", key, v, perr)
			}
		}
	}
	set("LLM_MAX_TOKENS", intInto(&c.LLM.MaxTokens))
	set("LLM_TEMPERATURE", floatInto(&c.LLM.Temperature))
	set("LLM_RATE_LIMIT_CALLS", intInto(&c.LLM.RateLimit.Calls))
	set("LLM_RATE_LIMIT_WINDOW", durationInto(&c.LLM.RateLimit.Window))
	set("LLM_RETRY_MAX_ATTEMPTS", intInto(&c.LLM.Retry.MaxAttempts))
	set("LLM_RETRY_BASE_DELAY", durationInto(&c.LLM.Retry.BaseDelay))
	set("LLM_RETRY_MAX_DELAY", durationInto(&c.LLM.Retry.MaxDelay))
	set("LLM_CACHE_SIZE", intInto(&c.LLM.CacheSize))
	set("PIPELINE_MAX_CONCURRENT_RUNS", intInto(&c.Pipeline.MaxConcurrentRuns))
	set("PIPELINE_MAX_DESCRIPTION_LENGTH", intInto(&c.Pipeline.MaxDescriptionLength))
	set("ARTIFACT_S3_USE_SSL", boolInto(&c.Artifact.UseSSL))
	if err != nil {
		return err
	}

	c.Artifact.Backend = strings.ToLower(firstNonEmpty(get("ARTIFACT_BACKEND"), c.Artifact.Backend))
	c.Artifact.Endpoint = firstNonEmpty(get("ARTIFACT_S3_ENDPOINT"), get("ARTIFACT_MINIO_ENDPOINT"), c.Artifact.Endpoint)
	c.Artifact.Region = firstNonEmpty(get("ARTIFACT_S3_REGION"), c.Artifact.Region)
	c.Artifact.AccessKey = firstNonEmpty(get("ARTIFACT_S3_ACCESS_KEY"), get("MINIO_ROOT_USER"), c.Artifact.AccessKey)
	c.Artifact.SecretKey = firstNonEmpty(get("ARTIFACT_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD"), c.Artifact.SecretKey)
	c.Artifact.Bucket = firstNonEmpty(get("ARTIFACT_S3_BUCKET"), c.Artifact.Bucket)
	c.Artifact.PostgresDSN = firstNonEmpty(get("ARTIFACT_POSTGRES_DSN"), get("DATABASE_URL"), c.Artifact.PostgresDSN)
	return nil
}

func intInto(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

func floatInto(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func boolInto(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func durationInto(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
