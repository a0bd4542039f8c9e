// Package monitoring collects system, generation and quality metrics for
// the admin API and the status command.
package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/abhisek/igcseprep/internal/store"
)

type Config struct {
	// QualityDays is the window for quality score aggregates.
	QualityDays      int
	QualityThreshold float64
}

func DefaultConfig() Config {
	return Config{QualityDays: 7, QualityThreshold: 0.7}
}

type SystemMetrics struct {
	GoVersion  string        `json:"go_version"`
	Goroutines int           `json:"goroutines"`
	HeapMB     float64       `json:"heap_mb"`
	Uptime     time.Duration `json:"uptime"`
	DBDriver   string        `json:"db_driver"`
	DBOK       bool          `json:"db_ok"`
	DBError    string        `json:"db_error,omitempty"`
}

type GenerationMetrics struct {
	QuestionsToday   int        `json:"questions_today"`
	QuestionsTotal   int        `json:"questions_total"`
	LLMCallsToday    int        `json:"llm_calls_today"`
	LLMSuccessRate   float64    `json:"llm_success_rate"`
	LLMFailuresToday int        `json:"llm_failures_today"`
	AvgLatencyMs     float64    `json:"avg_latency_ms"`
	TokensToday      int        `json:"tokens_today"`
	FailedRunsToday  int        `json:"failed_runs_today"`
	LastRunStatus    string     `json:"last_run_status,omitempty"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
}

type QualityMetrics struct {
	Days      int     `json:"days"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	P10       float64 `json:"p10"`
	P90       float64 `json:"p90"`
	Threshold float64 `json:"threshold"`
	// BelowThreshold is the share of scores under Threshold.
	BelowThreshold float64 `json:"below_threshold"`
}

type Metrics struct {
	CollectedAt time.Time         `json:"collected_at"`
	System      SystemMetrics     `json:"system"`
	Generation  GenerationMetrics `json:"generation"`
	Quality     QualityMetrics    `json:"quality"`
}

type Collector struct {
	store   *store.Store
	cfg     Config
	started time.Time
	now     func() time.Time
}

func NewCollector(st *store.Store, cfg Config) *Collector {
	if cfg.QualityDays <= 0 {
		cfg.QualityDays = 7
	}
	return &Collector{store: st, cfg: cfg, started: time.Now(), now: time.Now}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Snapshot gathers all metrics. A failed database ping is reported in the
// system section; other query errors are returned.
func (c *Collector) Snapshot(ctx context.Context) (*Metrics, error) {
	now := c.now()
	m := &Metrics{CollectedAt: now.UTC(), System: c.system(ctx, now)}
	if !m.System.DBOK {
		return m, nil
	}

	gen, err := c.generation(ctx, startOfDay(now))
	if err != nil {
		return nil, err
	}
	m.Generation = gen

	scores, err := c.store.Quizzes().QualityScoresSince(ctx, now.AddDate(0, 0, -c.cfg.QualityDays))
	if err != nil {
		return nil, err
	}
	m.Quality = Summarize(scores, c.cfg.QualityThreshold)
	m.Quality.Days = c.cfg.QualityDays
	return m, nil
}

func (c *Collector) system(ctx context.Context, now time.Time) SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s := SystemMetrics{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
		Uptime:     now.Sub(c.started).Round(time.Second),
		DBDriver:   c.store.Dialect(),
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.store.Ping(pctx); err != nil {
		s.DBError = err.Error()
	} else {
		s.DBOK = true
	}
	return s
}

func (c *Collector) generation(ctx context.Context, today time.Time) (GenerationMetrics, error) {
	var g GenerationMetrics
	var err error
	if g.QuestionsToday, err = c.store.Quizzes().CountGeneratedSince(ctx, today); err != nil {
		return g, err
	}
	if g.QuestionsTotal, err = c.store.Quizzes().CountQuestions(ctx); err != nil {
		return g, err
	}
	llmStats, err := c.store.Events().GenerationStats(ctx, today)
	if err != nil {
		return g, err
	}
	g.LLMCallsToday = llmStats.Calls
	g.LLMSuccessRate = llmStats.SuccessRate
	g.LLMFailuresToday = llmStats.Failures
	g.AvgLatencyMs = llmStats.AvgLatencyMs
	g.TokensToday = llmStats.InputTokens + llmStats.OutputTokens

	for _, kind := range []store.RunKind{store.RunBatch, store.RunScheduled} {
		n, err := c.store.Runs().CountSince(ctx, kind, store.RunFailed, today)
		if err != nil {
			return g, err
		}
		g.FailedRunsToday += n
	}
	runs, err := c.store.Runs().List(ctx, 1)
	if err != nil {
		return g, err
	}
	if len(runs) > 0 {
		g.LastRunStatus = string(runs[0].Status)
		started := runs[0].StartedAt
		g.LastRunAt = &started
	}
	return g, nil
}

// Summarize aggregates quality scores. Empty input gives zero values.
func Summarize(scores []float64, threshold float64) QualityMetrics {
	q := QualityMetrics{Count: len(scores), Threshold: threshold}
	if len(scores) == 0 {
		return q
	}
	data := stats.Float64Data(scores)
	q.Mean, _ = stats.Mean(data)
	q.Median, _ = stats.Median(data)
	q.P10 = percentile(data, 10)
	q.P90 = percentile(data, 90)

	below := 0
	for _, s := range scores {
		if s < threshold {
			below++
		}
	}
	q.BelowThreshold = float64(below) / float64(len(scores))
	return q
}

// percentile falls back to the minimum or maximum when the sample is too
// small for the requested rank.
func percentile(data stats.Float64Data, p float64) float64 {
	v, err := stats.Percentile(data, p)
	if err == nil {
		return v
	}
	if p < 50 {
		v, _ = stats.Min(data)
	} else {
		v, _ = stats.Max(data)
	}
	return v
}
