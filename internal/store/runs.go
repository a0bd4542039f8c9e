package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// RunKind identifies what started a generation run.
type RunKind string

const (
	RunBatch     RunKind = "batch"
	RunScheduled RunKind = "scheduled"
	RunManual    RunKind = "manual"
)

// RunStatus is the state of a generation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
)

// Run is a persisted batch or scheduled generation run.
type Run struct {
	ID                 string     `json:"id"`
	Kind               RunKind    `json:"kind"`
	Subject            string     `json:"subject,omitempty"`
	Status             RunStatus  `json:"status"`
	TopicsProcessed    int        `json:"topics_processed"`
	Successful         int        `json:"successful"`
	Failed             int        `json:"failed"`
	QuestionsGenerated int        `json:"questions_generated"`
	AverageQuality     float64    `json:"average_quality"`
	Errors             []string   `json:"errors,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

var runColumns = []string{
	"id", "kind", "subject", "status", "topics_processed", "successful", "failed",
	"questions_generated", "average_quality", "errors", "started_at", "finished_at",
}

type runRow struct {
	ID                 string       `sql:"id"`
	Kind               string       `sql:"kind"`
	Subject            string       `sql:"subject"`
	Status             string       `sql:"status"`
	TopicsProcessed    int          `sql:"topics_processed"`
	Successful         int          `sql:"successful"`
	Failed             int          `sql:"failed"`
	QuestionsGenerated int          `sql:"questions_generated"`
	AverageQuality     float64      `sql:"average_quality"`
	Errors             string       `sql:"errors"`
	StartedAt          time.Time    `sql:"started_at"`
	FinishedAt         sql.NullTime `sql:"finished_at"`
}

func (r runRow) toRun() Run {
	run := Run{
		ID:                 r.ID,
		Kind:               RunKind(r.Kind),
		Subject:            r.Subject,
		Status:             RunStatus(r.Status),
		TopicsProcessed:    r.TopicsProcessed,
		Successful:         r.Successful,
		Failed:             r.Failed,
		QuestionsGenerated: r.QuestionsGenerated,
		AverageQuality:     r.AverageQuality,
		Errors:             fromJSON[[]string](r.Errors),
		StartedAt:          r.StartedAt,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		run.FinishedAt = &t
	}
	return run
}

// RunRepo stores generation runs.
type RunRepo struct {
	c conn
}

// Create inserts run in the running state.
func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = newID()
	}
	run.Status = RunRunning
	run.StartedAt = now()
	q := r.c.b().Insert("generation_runs").
		Columns("id", "kind", "subject", "status", "errors", "started_at").
		Values(run.ID, string(run.Kind), run.Subject, string(run.Status), "[]", run.StartedAt)
	return translate(r.c.exec(ctx, q), "generation run")
}

// Finish writes the final counters and status of run.
func (r *RunRepo) Finish(ctx context.Context, run *Run) error {
	t := now()
	run.FinishedAt = &t
	n, err := r.c.execAffected(ctx, r.c.b().Update("generation_runs").
		Set("status", string(run.Status)).
		Set("topics_processed", run.TopicsProcessed).
		Set("successful", run.Successful).
		Set("failed", run.Failed).
		Set("questions_generated", run.QuestionsGenerated).
		Set("average_quality", run.AverageQuality).
		Set("errors", toJSON(orEmpty(run.Errors))).
		Set("finished_at", t).
		Where(entsql.EQ("id", run.ID)))
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return notFound("generation run", run.ID)
	}
	return nil
}

func (r *RunRepo) find(ctx context.Context, p *entsql.Predicate, limit int) ([]Run, error) {
	var rows []runRow
	sel := r.c.b().Select(runColumns...).From(r.c.table("generation_runs")).
		OrderBy(entsql.Desc("started_at"))
	if p != nil {
		sel.Where(p)
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = row.toRun()
	}
	return out, nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*Run, error) {
	runs, err := r.find(ctx, entsql.EQ("id", id), 1)
	if err != nil {
		return nil, err
	}
	return one(runs, "generation run", id)
}

// List returns the newest runs first.
func (r *RunRepo) List(ctx context.Context, limit int) ([]Run, error) {
	return r.find(ctx, nil, limit)
}

// LastByKind returns the newest run of kind, or nil when there is none.
func (r *RunRepo) LastByKind(ctx context.Context, kind RunKind) (*Run, error) {
	runs, err := r.find(ctx, entsql.EQ("kind", string(kind)), 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// CountSince counts runs of kind with status started at or after since.
func (r *RunRepo) CountSince(ctx context.Context, kind RunKind, status RunStatus, since time.Time) (int, error) {
	n, err := r.c.queryInt(ctx, r.c.b().Select(entsql.Count("*")).
		From(r.c.table("generation_runs")).
		Where(entsql.And(
			entsql.EQ("kind", string(kind)),
			entsql.EQ("status", string(status)),
			entsql.GTE("started_at", since.UTC()),
		)))
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
