package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Generation.QuestionsPerCall)
	assert.Equal(t, 100, cfg.Batch.DailyCap)
	assert.Equal(t, 0.7, cfg.Batch.QualityThreshold)
	assert.Equal(t, "02:00", cfg.Scheduler.StartTime)
	assert.Len(t, cfg.Scheduler.Subjects, 7)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
batch:
  daily_cap: 40
  delay: 5s
scheduler:
  frequency: weekly
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("IGCSE_BATCH_DAILY_CAP", "60")
	t.Setenv("IGCSE_SCHEDULE_SUBJECTS", "Physics, Chemistry")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 60, cfg.Batch.DailyCap, "env overrides yaml")
	assert.Equal(t, 5*time.Second, cfg.Batch.Delay)
	assert.Equal(t, "weekly", cfg.Scheduler.Frequency)
	assert.Equal(t, []string{"Physics", "Chemistry"}, cfg.Scheduler.Subjects)
	assert.Equal(t, "postgres://postgres:@db.internal:5432/igcseprep?sslmode=disable", cfg.PostgresDSN())
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("IGCSE_BATCH_DELAY", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"driver", map[string]string{"IGCSE_DB_DRIVER": "mysql"}},
		{"frequency", map[string]string{"IGCSE_SCHEDULE_FREQUENCY": "monthly"}},
		{"start time", map[string]string{"IGCSE_SCHEDULE_START_TIME": "25:99"}},
		{"threshold", map[string]string{"IGCSE_BATCH_QUALITY_THRESHOLD": "1.5"}},
		{"s3 without bucket", map[string]string{"IGCSE_ARCHIVE_BACKEND": "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestRequireJWTSecret(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireJWTSecret())
	cfg.Auth.JWTSecret = "a-long-enough-secret-value"
	assert.NoError(t, cfg.RequireJWTSecret())
}

func TestLLMConfig(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "HF_TOKEN", "HUGGINGFACE_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}

	t.Run("explicit provider", func(t *testing.T) {
		cfg := &Config{}
		setDefaults(cfg)
		cfg.LLM.Provider = "huggingface"
		cfg.LLM.HuggingFaceAPIKey = "hf_x"
		cfg.LLM.RetryMaxAttempts = 5

		out := cfg.LLMConfig()
		assert.Equal(t, "huggingface", out.Provider)
		assert.Equal(t, "hf_x", out.HuggingFace.APIKey)
		assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", out.HuggingFace.Model)
		assert.Equal(t, 5, out.Retry.MaxAttempts)
		assert.NoError(t, out.Validate())
	})

	t.Run("discovers env key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		cfg := &Config{}
		setDefaults(cfg)

		out := cfg.LLMConfig()
		assert.Equal(t, "openai", out.Provider)
		assert.Equal(t, "sk-env", out.OpenAI.APIKey)
		assert.Equal(t, 120*time.Second, out.Timeout)
	})
}
