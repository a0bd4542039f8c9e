package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/igcseprep/internal/llm"
)

// Config is the application configuration. Values come from defaults, then
// the YAML file, then environment variables named by the env tags.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Batch      BatchConfig      `yaml:"batch"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"IGCSE_SERVER_HOST"`
	Port            int           `yaml:"port" env:"IGCSE_SERVER_PORT"`
	Mode            string        `yaml:"mode" env:"IGCSE_SERVER_MODE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"IGCSE_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"IGCSE_SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IGCSE_SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"IGCSE_SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"IGCSE_ALLOWED_ORIGINS"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string        `yaml:"driver" env:"IGCSE_DB_DRIVER"`
	DSN             string        `yaml:"dsn" env:"IGCSE_DB_DSN"`
	Host            string        `yaml:"host" env:"IGCSE_DB_HOST"`
	Port            int           `yaml:"port" env:"IGCSE_DB_PORT"`
	User            string        `yaml:"user" env:"IGCSE_DB_USER"`
	Password        string        `yaml:"password" env:"IGCSE_DB_PASSWORD"`
	Name            string        `yaml:"name" env:"IGCSE_DB_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"IGCSE_DB_SSLMODE"`
	MaxConns        int           `yaml:"max_conns" env:"IGCSE_DB_MAX_CONNS"`
	MinConns        int           `yaml:"min_conns" env:"IGCSE_DB_MIN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"IGCSE_DB_CONN_MAX_LIFETIME"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"IGCSE_JWT_SECRET"`
	Issuer     string        `yaml:"issuer" env:"IGCSE_JWT_ISSUER"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"IGCSE_JWT_ACCESS_TTL"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"IGCSE_JWT_REFRESH_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"IGCSE_BCRYPT_COST"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"IGCSE_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"IGCSE_LOG_PRETTY"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider" env:"IGCSE_LLM_PROVIDER"`
	Timeout  time.Duration `yaml:"timeout" env:"IGCSE_LLM_TIMEOUT"`

	GeminiAPIKey string `yaml:"gemini_api_key" env:"IGCSE_GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" env:"IGCSE_GEMINI_MODEL"`

	OpenAIAPIKey  string `yaml:"openai_api_key" env:"IGCSE_OPENAI_API_KEY"`
	OpenAIModel   string `yaml:"openai_model" env:"IGCSE_OPENAI_MODEL"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"IGCSE_OPENAI_BASE_URL"`

	HuggingFaceAPIKey  string `yaml:"huggingface_api_key" env:"IGCSE_HUGGINGFACE_API_KEY"`
	HuggingFaceModel   string `yaml:"huggingface_model" env:"IGCSE_HUGGINGFACE_MODEL"`
	HuggingFaceBaseURL string `yaml:"huggingface_base_url" env:"IGCSE_HUGGINGFACE_BASE_URL"`

	AnthropicAPIKey string `yaml:"anthropic_api_key" env:"IGCSE_ANTHROPIC_API_KEY"`
	AnthropicModel  string `yaml:"anthropic_model" env:"IGCSE_ANTHROPIC_MODEL"`

	OpenRouterAPIKey string `yaml:"openrouter_api_key" env:"IGCSE_OPENROUTER_API_KEY"`
	OpenRouterModel  string `yaml:"openrouter_model" env:"IGCSE_OPENROUTER_MODEL"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts" env:"IGCSE_LLM_RETRY_MAX_ATTEMPTS"`
	RetryInitialWait time.Duration `yaml:"retry_initial_wait" env:"IGCSE_LLM_RETRY_INITIAL_WAIT"`
	RetryMaxWait     time.Duration `yaml:"retry_max_wait" env:"IGCSE_LLM_RETRY_MAX_WAIT"`
}

type GenerationConfig struct {
	Temperature          float64 `yaml:"temperature" env:"IGCSE_GEN_TEMPERATURE"`
	MaxTokens            int     `yaml:"max_tokens" env:"IGCSE_GEN_MAX_TOKENS"`
	QuestionsPerCall     int     `yaml:"questions_per_call" env:"IGCSE_GEN_QUESTIONS_PER_CALL"`
	ExamAttempts         int     `yaml:"exam_attempts" env:"IGCSE_GEN_EXAM_ATTEMPTS"`
	ExamTolerance        float64 `yaml:"exam_tolerance" env:"IGCSE_GEN_EXAM_TOLERANCE"`
	MinQuestionLength    int     `yaml:"min_question_length" env:"IGCSE_GEN_MIN_QUESTION_LENGTH"`
	MaxQuestionLength    int     `yaml:"max_question_length" env:"IGCSE_GEN_MAX_QUESTION_LENGTH"`
	MinExplanationLength int     `yaml:"min_explanation_length" env:"IGCSE_GEN_MIN_EXPLANATION_LENGTH"`
	OptionsCount         int     `yaml:"options_count" env:"IGCSE_GEN_OPTIONS_COUNT"`
}

type BatchConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent" env:"IGCSE_BATCH_MAX_CONCURRENT"`
	Delay            time.Duration `yaml:"delay" env:"IGCSE_BATCH_DELAY"`
	DailyCap         int           `yaml:"daily_cap" env:"IGCSE_BATCH_DAILY_CAP"`
	MinPerTopic      int           `yaml:"min_per_topic" env:"IGCSE_BATCH_MIN_PER_TOPIC"`
	TargetPerTopic   int           `yaml:"target_per_topic" env:"IGCSE_BATCH_TARGET_PER_TOPIC"`
	PerTopicCap      int           `yaml:"per_topic_cap" env:"IGCSE_BATCH_PER_TOPIC_CAP"`
	QualityThreshold float64       `yaml:"quality_threshold" env:"IGCSE_BATCH_QUALITY_THRESHOLD"`
	RetryAttempts    int           `yaml:"retry_attempts" env:"IGCSE_BATCH_RETRY_ATTEMPTS"`
}

type SchedulerConfig struct {
	Frequency  string        `yaml:"frequency" env:"IGCSE_SCHEDULE_FREQUENCY"`
	StartTime  string        `yaml:"start_time" env:"IGCSE_SCHEDULE_START_TIME"`
	MaxRuntime time.Duration `yaml:"max_runtime" env:"IGCSE_SCHEDULE_MAX_RUNTIME"`
	Subjects   []string      `yaml:"subjects" env:"IGCSE_SCHEDULE_SUBJECTS"`
}

type IngestConfig struct {
	FirecrawlAPIKey  string        `yaml:"firecrawl_api_key" env:"FIRECRAWL_API_KEY"`
	FirecrawlBaseURL string        `yaml:"firecrawl_base_url" env:"IGCSE_FIRECRAWL_BASE_URL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"IGCSE_INGEST_REQUEST_TIMEOUT"`
	MinContentLength int           `yaml:"min_content_length" env:"IGCSE_INGEST_MIN_LENGTH"`
	MaxContentLength int           `yaml:"max_content_length" env:"IGCSE_INGEST_MAX_LENGTH"`
	MinIndicators    int           `yaml:"min_indicators" env:"IGCSE_INGEST_MIN_INDICATORS"`
}

type ArchiveConfig struct {
	// Backend is "local" or "s3".
	Backend    string `yaml:"backend" env:"IGCSE_ARCHIVE_BACKEND"`
	Dir        string `yaml:"dir" env:"IGCSE_ARCHIVE_DIR"`
	S3Bucket   string `yaml:"s3_bucket" env:"IGCSE_ARCHIVE_S3_BUCKET"`
	S3Region   string `yaml:"s3_region" env:"IGCSE_ARCHIVE_S3_REGION"`
	S3Endpoint string `yaml:"s3_endpoint" env:"IGCSE_ARCHIVE_S3_ENDPOINT"`
	S3Prefix   string `yaml:"s3_prefix" env:"IGCSE_ARCHIVE_S3_PREFIX"`
}

// Load reads .env files, the YAML file at path (if it exists) and the
// environment, in that order of increasing priority.
func Load(path string) (*Config, error) {
	// Missing .env files are fine; the process environment still applies.
	_ = godotenv.Load(".env.local", ".env")

	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := processStructFields(cfg); err != nil {
		return nil, fmt.Errorf("load from environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(c *Config) {
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.Mode = "release"
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 180 * time.Second
	c.Server.IdleTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

	c.Database.Driver = "sqlite"
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.User = "postgres"
	c.Database.Name = "igcseprep"
	c.Database.SSLMode = "disable"
	c.Database.MaxConns = 20
	c.Database.MinConns = 2
	c.Database.ConnMaxLifetime = time.Hour

	c.Auth.Issuer = "igcseprep"
	c.Auth.AccessTTL = time.Hour
	c.Auth.RefreshTTL = 30 * 24 * time.Hour
	c.Auth.BcryptCost = 12

	c.Log.Level = "info"
	c.Log.Pretty = true

	c.LLM.Timeout = 120 * time.Second
	c.LLM.GeminiModel = "gemini-flash"
	c.LLM.OpenAIModel = "gpt-4o-mini"
	c.LLM.HuggingFaceModel = "meta-llama/Llama-3.1-8B-Instruct"
	c.LLM.AnthropicModel = "claude-haiku"
	c.LLM.OpenRouterModel = "google/gemini-2.0-flash-exp"
	c.LLM.RetryMaxAttempts = 3
	c.LLM.RetryInitialWait = time.Second
	c.LLM.RetryMaxWait = 10 * time.Second

	c.Generation.Temperature = 0.7
	c.Generation.MaxTokens = 4000
	c.Generation.QuestionsPerCall = 5
	c.Generation.ExamAttempts = 3
	c.Generation.ExamTolerance = 0.2
	c.Generation.MinQuestionLength = 20
	c.Generation.MaxQuestionLength = 500
	c.Generation.MinExplanationLength = 30
	c.Generation.OptionsCount = 4

	c.Batch.MaxConcurrent = 3
	c.Batch.Delay = 2 * time.Second
	c.Batch.DailyCap = 100
	c.Batch.MinPerTopic = 20
	c.Batch.TargetPerTopic = 50
	c.Batch.PerTopicCap = 20
	c.Batch.QualityThreshold = 0.7
	c.Batch.RetryAttempts = 2

	c.Scheduler.Frequency = "daily"
	c.Scheduler.StartTime = "02:00"
	c.Scheduler.MaxRuntime = 120 * time.Minute
	c.Scheduler.Subjects = []string{
		"Mathematics", "Physics", "Chemistry", "Biology",
		"English Language", "Geography", "History",
	}

	c.Ingest.FirecrawlBaseURL = "https://api.firecrawl.dev"
	c.Ingest.RequestTimeout = 60 * time.Second
	c.Ingest.MinContentLength = 100
	c.Ingest.MaxContentLength = 50000
	c.Ingest.MinIndicators = 2

	c.Archive.Backend = "local"
	c.Archive.Dir = "data/archive"
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Scheduler.Frequency {
	case "hourly", "daily", "weekly":
	default:
		return fmt.Errorf("unsupported schedule frequency %q", c.Scheduler.Frequency)
	}
	if _, err := time.Parse("15:04", c.Scheduler.StartTime); err != nil {
		return fmt.Errorf("invalid schedule start time %q: %w", c.Scheduler.StartTime, err)
	}
	if c.Batch.QualityThreshold < 0 || c.Batch.QualityThreshold > 1 {
		return fmt.Errorf("batch quality threshold must be within [0,1]")
	}
	if c.Generation.ExamTolerance < 0 || c.Generation.ExamTolerance >= 1 {
		return fmt.Errorf("exam tolerance must be within [0,1)")
	}
	switch c.Archive.Backend {
	case "", "local":
	case "s3":
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("archive s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported archive backend %q", c.Archive.Backend)
	}
	return nil
}

// RequireJWTSecret is checked by commands that serve or issue tokens.
func (c *Config) RequireJWTSecret() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("IGCSE_JWT_SECRET must be at least 16 characters")
	}
	return nil
}

// PostgresDSN returns the DSN for the postgres driver, preferring an
// explicit DSN.
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name, ssl)
}

// LLMConfig converts the llm section. When the selected provider has no
// key, standard provider env vars are checked instead.
func (c *Config) LLMConfig() llm.Config {
	out := llm.DefaultConfig()
	if c.LLM.Provider != "" {
		out.Provider = c.LLM.Provider
	}
	if c.LLM.Timeout > 0 {
		out.Timeout = c.LLM.Timeout
	}

	out.Gemini.APIKey = c.LLM.GeminiAPIKey
	out.OpenAI.APIKey = c.LLM.OpenAIAPIKey
	out.OpenAI.BaseURL = c.LLM.OpenAIBaseURL
	out.HuggingFace.APIKey = c.LLM.HuggingFaceAPIKey
	out.Anthropic.APIKey = c.LLM.AnthropicAPIKey
	out.OpenRouter.APIKey = c.LLM.OpenRouterAPIKey
	setIf(&out.Gemini.Model, c.LLM.GeminiModel)
	setIf(&out.OpenAI.Model, c.LLM.OpenAIModel)
	setIf(&out.HuggingFace.Model, c.LLM.HuggingFaceModel)
	setIf(&out.HuggingFace.BaseURL, c.LLM.HuggingFaceBaseURL)
	setIf(&out.Anthropic.Model, c.LLM.AnthropicModel)
	setIf(&out.OpenRouter.Model, c.LLM.OpenRouterModel)

	if c.LLM.RetryMaxAttempts > 0 {
		out.Retry.MaxAttempts = c.LLM.RetryMaxAttempts
	}
	if c.LLM.RetryInitialWait > 0 {
		out.Retry.InitialWait = c.LLM.RetryInitialWait
	}
	if c.LLM.RetryMaxWait > 0 {
		out.Retry.MaxWait = c.LLM.RetryMaxWait
	}

	if out.Validate() != nil {
		if found, ok := llm.DiscoverConfig(); ok {
			found.Timeout = out.Timeout
			found.Retry = out.Retry
			return found
		}
	}
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
