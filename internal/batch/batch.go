// Package batch fills the question bank for topics that are short of
// practice questions, under a daily generation budget.
package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

func (p Priority) rank() int {
	if p == PriorityHigh {
		return 0
	}
	return 1
}

type Config struct {
	MaxConcurrent int
	// Delay separates the start of consecutive topics.
	Delay            time.Duration
	DailyCap         int
	MinPerTopic      int
	TargetPerTopic   int
	PerTopicCap      int
	QualityThreshold float64
	// RetryAttempts is how many extra generation attempts a topic gets.
	RetryAttempts int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    3,
		Delay:            2 * time.Second,
		DailyCap:         100,
		MinPerTopic:      20,
		TargetPerTopic:   50,
		PerTopicCap:      20,
		QualityThreshold: 0.7,
		RetryAttempts:    2,
	}
}

// ConfigFrom converts the batch config section, keeping defaults for
// unset values.
func ConfigFrom(c config.BatchConfig) Config {
	out := DefaultConfig()
	if c.MaxConcurrent > 0 {
		out.MaxConcurrent = c.MaxConcurrent
	}
	if c.Delay >= 0 {
		out.Delay = c.Delay
	}
	if c.DailyCap > 0 {
		out.DailyCap = c.DailyCap
	}
	if c.MinPerTopic > 0 {
		out.MinPerTopic = c.MinPerTopic
	}
	if c.TargetPerTopic > 0 {
		out.TargetPerTopic = c.TargetPerTopic
	}
	if c.PerTopicCap > 0 {
		out.PerTopicCap = c.PerTopicCap
	}
	if c.QualityThreshold > 0 {
		out.QualityThreshold = c.QualityThreshold
	}
	if c.RetryAttempts >= 0 {
		out.RetryAttempts = c.RetryAttempts
	}
	return out
}

// TopicNeed is a topic below its question target.
type TopicNeed struct {
	store.TopicQuestionCount
	Priority Priority `json:"priority"`
	Needed   int      `json:"needed"`
}

type RunOptions struct {
	// Subject filters topics by subject name or id.
	Subject   string
	MaxTopics int
	// QuestionsPerTopic overrides the computed need when positive.
	QuestionsPerTopic int
	Kind              store.RunKind
	// OnStart is called with the run id once the run row exists.
	OnStart func(runID string)
}

type Result struct {
	RunID              string        `json:"run_id"`
	TopicsProcessed    int           `json:"topics_processed"`
	Successful         int           `json:"successful"`
	Failed             int           `json:"failed"`
	QuestionsGenerated int           `json:"questions_generated"`
	AverageQuality     float64       `json:"average_quality"`
	Duration           time.Duration `json:"duration"`
	Errors             []string      `json:"errors,omitempty"`
	LimitReached       bool          `json:"limit_reached"`
}

type Status struct {
	GeneratedToday int        `json:"generated_today"`
	DailyCap       int        `json:"daily_cap"`
	Remaining      int        `json:"remaining"`
	LastRun        *store.Run `json:"last_run,omitempty"`
}

// Generator runs batch generation over the topics that need questions.
type Generator struct {
	store *store.Store
	gen   generation.Generator
	svc   *generation.Service
	cfg   Config
	now   func() time.Time
}

func New(st *store.Store, gen generation.Generator, cfg Config) *Generator {
	return &Generator{
		store: st,
		gen:   gen,
		svc:   generation.NewService(gen, st),
		cfg:   cfg,
		now:   time.Now,
	}
}

func (g *Generator) Config() Config {
	return g.cfg
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AnalyzeNeeds lists topics below the target question count, most urgent
// first. maxTopics <= 0 means no limit.
func (g *Generator) AnalyzeNeeds(ctx context.Context, subject string, maxTopics int) ([]TopicNeed, error) {
	counts, err := g.store.QuestionCounts(ctx)
	if err != nil {
		return nil, err
	}
	var needs []TopicNeed
	for _, c := range counts {
		if subject != "" && !strings.EqualFold(c.SubjectName, subject) && c.SubjectID != subject {
			continue
		}
		var p Priority
		switch {
		case c.QuestionCount < g.cfg.MinPerTopic:
			p = PriorityHigh
		case c.QuestionCount < g.cfg.TargetPerTopic:
			p = PriorityMedium
		default:
			continue
		}
		needs = append(needs, TopicNeed{
			TopicQuestionCount: c,
			Priority:           p,
			Needed:             min(g.cfg.TargetPerTopic-c.QuestionCount, g.cfg.PerTopicCap),
		})
	}
	slices.SortStableFunc(needs, func(a, b TopicNeed) int {
		if d := cmp.Compare(a.Priority.rank(), b.Priority.rank()); d != 0 {
			return d
		}
		return cmp.Compare(b.Needed, a.Needed)
	})
	if maxTopics > 0 && len(needs) > maxTopics {
		needs = needs[:maxTopics]
	}
	return needs, nil
}

func (g *Generator) generatedToday(ctx context.Context) (int, error) {
	return g.store.Quizzes().CountGeneratedSince(ctx, startOfDay(g.now()))
}

// Status reports today's usage of the daily budget and the latest run.
func (g *Generator) Status(ctx context.Context) (*Status, error) {
	today, err := g.generatedToday(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := g.store.Runs().List(ctx, 1)
	if err != nil {
		return nil, err
	}
	st := &Status{
		GeneratedToday: today,
		DailyCap:       g.cfg.DailyCap,
		Remaining:      max(g.cfg.DailyCap-today, 0),
	}
	if len(runs) > 0 {
		st.LastRun = &runs[0]
	}
	return st, nil
}

// tally is the shared state of a run.
type tally struct {
	mu         sync.Mutex
	res        *Result
	remaining  int
	scoreSum   float64
	scoreCount int
}

// reserve takes up to want questions from the remaining budget.
func (t *tally) reserve(want int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := min(want, t.remaining)
	t.remaining -= n
	return n
}

func (t *tally) release(n int) {
	t.mu.Lock()
	t.remaining += n
	t.mu.Unlock()
}

func (t *tally) fail(topic string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res.TopicsProcessed++
	t.res.Failed++
	t.res.Errors = append(t.res.Errors, fmt.Sprintf("%s: %v", topic, err))
	if errors.Is(err, apperrors.ErrDailyLimitReached) {
		t.res.LimitReached = true
	}
}

func (t *tally) succeed(questions []content.QuizQuestion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res.TopicsProcessed++
	t.res.Successful++
	t.res.QuestionsGenerated += len(questions)
	for _, q := range questions {
		if q.QualityScore != nil {
			t.scoreSum += *q.QualityScore
			t.scoreCount++
		}
	}
}

// Run generates questions for the neediest topics. Topic failures are
// recorded in the result; the error return is for failures of the run
// itself. When the daily budget is already spent it returns
// ErrDailyLimitReached without starting a run.
func (g *Generator) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := g.now()
	today, err := g.generatedToday(ctx)
	if err != nil {
		return nil, err
	}
	remaining := g.cfg.DailyCap - today
	if remaining <= 0 {
		return nil, apperrors.New(apperrors.ErrDailyLimitReached,
			fmt.Sprintf("daily limit of %d questions reached", g.cfg.DailyCap))
	}

	needs, err := g.AnalyzeNeeds(ctx, opts.Subject, opts.MaxTopics)
	if err != nil {
		return nil, err
	}

	kind := opts.Kind
	if kind == "" {
		kind = store.RunBatch
	}
	run := &store.Run{Kind: kind, Subject: opts.Subject}
	if err := g.store.Runs().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if opts.OnStart != nil {
		opts.OnStart(run.ID)
	}
	log := logger.WithField("run_id", run.ID)
	log.Info().
		Str("subject", opts.Subject).
		Int("topics", len(needs)).
		Int("budget", remaining).
		Msg("batch generation started")

	t := &tally{res: &Result{RunID: run.ID}, remaining: remaining}

	var eg errgroup.Group
	eg.SetLimit(max(g.cfg.MaxConcurrent, 1))
	for i, need := range needs {
		if i > 0 && g.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(g.cfg.Delay):
			}
		}
		if ctx.Err() != nil {
			t.fail(need.TopicTitle, ctx.Err())
			continue
		}
		want := need.Needed
		if opts.QuestionsPerTopic > 0 {
			want = opts.QuestionsPerTopic
		}
		n := t.reserve(want)
		if n == 0 {
			t.fail(need.TopicTitle, apperrors.ErrDailyLimitReached)
			continue
		}
		eg.Go(func() error {
			saved, err := g.processTopic(ctx, need, n)
			t.release(n - len(saved))
			if err != nil {
				log.Warn().Err(err).Str("topic_id", need.TopicID).Msg("topic generation failed")
				t.fail(need.TopicTitle, err)
				return nil
			}
			log.Info().Str("topic_id", need.TopicID).Int("questions", len(saved)).Msg("topic generated")
			t.succeed(saved)
			return nil
		})
	}
	_ = eg.Wait()

	res := t.res
	if t.scoreCount > 0 {
		res.AverageQuality = t.scoreSum / float64(t.scoreCount)
	}
	res.Duration = g.now().Sub(start)

	run.TopicsProcessed = res.TopicsProcessed
	run.Successful = res.Successful
	run.Failed = res.Failed
	run.QuestionsGenerated = res.QuestionsGenerated
	run.AverageQuality = res.AverageQuality
	run.Errors = res.Errors
	switch {
	case res.Failed == 0:
		run.Status = store.RunCompleted
	case res.Successful > 0:
		run.Status = store.RunPartial
	default:
		run.Status = store.RunFailed
	}
	// The run row is finished even when ctx hit its deadline.
	if err := g.store.Runs().Finish(context.WithoutCancel(ctx), run); err != nil {
		return res, fmt.Errorf("finish run: %w", err)
	}
	log.Info().
		Str("status", string(run.Status)).
		Int("successful", res.Successful).
		Int("failed", res.Failed).
		Int("questions", res.QuestionsGenerated).
		Float64("avg_quality", res.AverageQuality).
		Dur("duration", res.Duration).
		Msg("batch generation finished")
	return res, nil
}

// processTopic generates up to n questions, keeps those at or above the
// quality threshold and saves them as a published practice quiz.
func (g *Generator) processTopic(ctx context.Context, need TopicNeed, n int) ([]content.QuizQuestion, error) {
	topic, err := g.store.Topics().GetInfo(ctx, need.TopicID)
	if err != nil {
		return nil, err
	}
	avoid, err := g.store.Quizzes().RecentQuestionTexts(ctx, need.TopicID, 50)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := g.gen.GenerateQuiz(ctx, *topic, generation.QuizOptions{Count: n, Avoid: avoid})
		if err != nil {
			lastErr = err
			continue
		}
		kept := g.filterQuality(res.Questions)
		if len(kept) == 0 {
			lastErr = fmt.Errorf("no questions met quality threshold %.2f", g.cfg.QualityThreshold)
			continue
		}
		for i := range kept {
			kept[i].DisplayOrder = i + 1
		}
		if _, err := g.svc.SaveQuiz(ctx, *topic, kept, generation.QuizRequest{
			TopicID: topic.ID,
			Title:   fmt.Sprintf("%s: Practice Set %s", topic.Title, g.now().Format("2006-01-02")),
			Publish: true,
		}); err != nil {
			return nil, err
		}
		return kept, nil
	}
	return nil, lastErr
}

func (g *Generator) filterQuality(qs []content.QuizQuestion) []content.QuizQuestion {
	out := make([]content.QuizQuestion, 0, len(qs))
	for _, q := range qs {
		if q.QualityScore != nil && *q.QualityScore < g.cfg.QualityThreshold {
			continue
		}
		out = append(out, q)
	}
	return out
}
