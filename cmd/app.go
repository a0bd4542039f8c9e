package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/archive"
	"github.com/abhisek/igcseprep/internal/batch"
	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

// app bundles what most commands need. Fields are filled lazily by the
// need* helpers so commands that only read the database never touch the
// LLM configuration.
type app struct {
	cfg       *config.Config
	store     *store.Store
	provider  llm.Provider
	generator *generation.LLMGenerator
	archive   archive.Archiver
}

// openApp loads config and opens the store.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cmd.Context(), opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, store: st}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// needGenerator builds the provider chain and the content generator.
func (a *app) needGenerator(ctx context.Context) (*generation.LLMGenerator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	lc := a.cfg.LLMConfig()
	if err := lc.Validate(); err != nil {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}
	p, err := llm.NewProvider(ctx, lc, a.store.Events())
	if err != nil {
		return nil, err
	}
	a.provider = p
	a.generator = generation.New(p, generationConfig(a.cfg.Generation, lc.Provider))
	logger.Debug().Str("provider", lc.Provider).Str("model", p.ModelID()).Msg("LLM provider ready")
	return a.generator, nil
}

func (a *app) needArchive(ctx context.Context) (archive.Archiver, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	arch, err := archive.New(ctx, a.cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a.archive = arch
	return arch, nil
}

func (a *app) batchGenerator(ctx context.Context) (*batch.Generator, error) {
	gen, err := a.needGenerator(ctx)
	if err != nil {
		return nil, err
	}
	return batch.New(a.store, gen, batch.ConfigFrom(a.cfg.Batch)), nil
}

// generationConfig overlays the configured knobs on the defaults.
func generationConfig(c config.GenerationConfig, provider string) generation.Config {
	out := generation.DefaultConfig()
	out.Method = content.GenerationMethod(provider)
	if c.Temperature > 0 {
		out.Temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		out.MaxTokens = c.MaxTokens
	}
	if c.QuestionsPerCall > 0 {
		out.QuestionsPerCall = c.QuestionsPerCall
	}
	if c.ExamAttempts > 0 {
		out.ExamAttempts = c.ExamAttempts
	}
	if c.ExamTolerance > 0 {
		out.ExamTolerance = c.ExamTolerance
	}
	if c.MinQuestionLength > 0 {
		out.Quality.MinQuestionLength = c.MinQuestionLength
	}
	if c.MaxQuestionLength > 0 {
		out.Quality.MaxQuestionLength = c.MaxQuestionLength
	}
	if c.MinExplanationLength > 0 {
		out.Quality.MinExplanationLength = c.MinExplanationLength
	}
	if c.OptionsCount > 0 {
		out.Quality.OptionsCount = c.OptionsCount
	}
	out.Validators = generation.DefaultValidators(out.Quality)
	return out
}
