// Package scheduler runs batch generation on a recurring schedule, rotating
// through subjects.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abhisek/igcseprep/internal/archive"
	"github.com/abhisek/igcseprep/internal/batch"
	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

const (
	Hourly = "hourly"
	Daily  = "daily"
	Weekly = "weekly"
)

var (
	ErrAlreadyRunning = errors.New("a scheduled run is already in progress")
	ErrAlreadyRan     = errors.New("a scheduled run already completed in this period")
)

// DefaultSubjects is the rotation used when none is configured.
var DefaultSubjects = []string{
	"Mathematics", "Physics", "Chemistry", "Biology",
	"English Language", "Geography", "History",
}

type Config struct {
	Frequency string
	// StartTime is "HH:MM" local time. Hourly schedules use only the minutes.
	StartTime  string
	MaxRuntime time.Duration
	Subjects   []string
}

func ConfigFrom(c config.SchedulerConfig) Config {
	return Config{
		Frequency:  c.Frequency,
		StartTime:  c.StartTime,
		MaxRuntime: c.MaxRuntime,
		Subjects:   c.Subjects,
	}
}

// Runner is the batch generator as seen by the scheduler.
type Runner interface {
	Run(ctx context.Context, opts batch.RunOptions) (*batch.Result, error)
}

// Summary describes one scheduled run. It is archived as JSON.
type Summary struct {
	RunID      string        `json:"run_id,omitempty"`
	Subject    string        `json:"subject"`
	Frequency  string        `json:"frequency"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Result     *batch.Result `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type Scheduler struct {
	cfg     Config
	hour    int
	minute  int
	runner  Runner
	store   *store.Store
	archive archive.Archiver
	running atomic.Bool
	now     func() time.Time
}

func New(cfg Config, runner Runner, st *store.Store, arch archive.Archiver) (*Scheduler, error) {
	if cfg.Frequency == "" {
		cfg.Frequency = Daily
	}
	switch cfg.Frequency {
	case Hourly, Daily, Weekly:
	default:
		return nil, fmt.Errorf("unsupported frequency %q", cfg.Frequency)
	}
	if cfg.StartTime == "" {
		cfg.StartTime = "02:00"
	}
	at, err := time.Parse("15:04", cfg.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", cfg.StartTime, err)
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = DefaultSubjects
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = 2 * time.Hour
	}
	return &Scheduler{
		cfg:     cfg,
		hour:    at.Hour(),
		minute:  at.Minute(),
		runner:  runner,
		store:   st,
		archive: arch,
		now:     time.Now,
	}, nil
}

// NextRun returns the first scheduled time strictly after now. Weekly
// runs fall on Mondays.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	y, m, d := now.Date()
	switch s.cfg.Frequency {
	case Hourly:
		next := time.Date(y, m, d, now.Hour(), s.minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(time.Hour)
		}
		return next
	case Weekly:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		next := time.Date(y, m, d-sinceMonday, s.hour, s.minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		next := time.Date(y, m, d, s.hour, s.minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// SubjectFor picks the rotation subject for t: by day of year, or by hour
// of year for hourly schedules.
func (s *Scheduler) SubjectFor(t time.Time) string {
	slot := t.YearDay() - 1
	if s.cfg.Frequency == Hourly {
		slot = slot*24 + t.Hour()
	}
	return s.cfg.Subjects[slot%len(s.cfg.Subjects)]
}

// periodStart is the start of the period in which at most one scheduled
// run completes.
func (s *Scheduler) periodStart(t time.Time) time.Time {
	y, m, d := t.Date()
	if s.cfg.Frequency == Hourly {
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
	}
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RunOnce runs the batch generator for one subject. An empty subject means
// a scheduled run: the rotation picks the subject and the run is skipped
// when one already completed in the current period.
func (s *Scheduler) RunOnce(ctx context.Context, subject string) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	start := s.now()
	if subject == "" {
		done, err := s.store.Runs().CountSince(ctx, store.RunScheduled, store.RunCompleted, s.periodStart(start))
		if err != nil {
			return nil, err
		}
		if done > 0 {
			return nil, ErrAlreadyRan
		}
		subject = s.SubjectFor(start)
	}

	log := logger.WithField("subject", subject)
	log.Info().Str("frequency", s.cfg.Frequency).Dur("max_runtime", s.cfg.MaxRuntime).Msg("scheduled generation starting")

	rctx, cancel := context.WithTimeout(ctx, s.cfg.MaxRuntime)
	defer cancel()
	res, runErr := s.runner.Run(rctx, batch.RunOptions{Subject: subject, Kind: store.RunScheduled})

	sum := &Summary{
		Subject:    subject,
		Frequency:  s.cfg.Frequency,
		StartedAt:  start,
		FinishedAt: s.now(),
		Result:     res,
	}
	if res != nil {
		sum.RunID = res.RunID
	}
	if runErr != nil {
		sum.Error = runErr.Error()
		log.Warn().Err(runErr).Msg("scheduled generation failed")
	} else {
		log.Info().
			Str("run_id", res.RunID).
			Int("questions", res.QuestionsGenerated).
			Int("failed", res.Failed).
			Msg("scheduled generation finished")
	}

	if err := s.archiveSummary(context.WithoutCancel(ctx), sum); err != nil {
		log.Warn().Err(err).Msg("archive run summary")
	}
	return sum, runErr
}

func (s *Scheduler) archiveSummary(ctx context.Context, sum *Summary) error {
	if s.archive == nil {
		return nil
	}
	id := sum.RunID
	if id == "" {
		id = fmt.Sprintf("none-%d", sum.StartedAt.Unix())
	}
	body, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return s.archive.Put(ctx, SummaryKey(sum.StartedAt, id), "application/json", body)
}

// SummaryKey is the archive key for a run summary.
func SummaryKey(t time.Time, runID string) string {
	return fmt.Sprintf("runs/%s/%s.json", t.Format("2006/01/02"), runID)
}

// Start runs on schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := s.NextRun(s.now())
		logger.Info().Time("next_run", next).Str("frequency", s.cfg.Frequency).Msg("scheduler waiting")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("scheduler stopped")
			return nil
		case <-timer.C:
		}

		_, err := s.RunOnce(ctx, "")
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyRan), errors.Is(err, ErrAlreadyRunning):
			logger.Info().Err(err).Msg("scheduled run skipped")
		default:
			logger.Error().Err(err).Msg("scheduled run failed")
		}
	}
}
