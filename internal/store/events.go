package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request. ID is the global sequence number.
type LLMEvent struct {
	ID           int64     `json:"id" sql:"id"`
	Timestamp    time.Time `json:"timestamp" sql:"timestamp"`
	Provider     string    `json:"provider" sql:"provider"`
	Model        string    `json:"model" sql:"model"`
	Purpose      string    `json:"purpose" sql:"purpose"`
	InputTokens  int       `json:"input_tokens" sql:"input_tokens"`
	OutputTokens int       `json:"output_tokens" sql:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms" sql:"latency_ms"`
	Success      bool      `json:"success" sql:"success"`
	ErrorMessage string    `json:"error_message,omitempty" sql:"error_message"`
	RequestBody  string    `json:"request_body,omitempty" sql:"request_body"`
	ResponseBody string    `json:"response_body,omitempty" sql:"response_body"`
}

var eventColumns = []string{
	"id", "timestamp", "provider", "model", "purpose", "input_tokens", "output_tokens",
	"latency_ms", "success", "error_message", "request_body", "response_body",
}

// EventRepo appends and queries LLM request events.
type EventRepo struct {
	c   conn
	seq *sequenceCounter
}

// AppendLLMRequest records an LLM API call event.
func (r *EventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	q := r.c.b().Insert("llm_request_events").
		Columns(eventColumns...).
		Values(seqNum, now(), data.Provider, data.Model, data.Purpose, data.InputTokens, data.OutputTokens,
			data.LatencyMs, data.Success, data.ErrorMessage, data.RequestBody, data.ResponseBody)
	if err := r.c.exec(ctx, q); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

// QueryLLMEvents returns events newest first.
func (r *EventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("id", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("id", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UTC()))
	}
	if opts.Purpose != "" {
		preds = append(preds, entsql.EQ("purpose", opts.Purpose))
	}
	sel := r.c.b().Select(eventColumns...).From(r.c.table("llm_request_events")).OrderBy(entsql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	var events []LLMEvent
	if err := r.c.query(ctx, sel, &events); err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	return events, nil
}

// GetLLMEvent returns one event, or nil when it does not exist.
func (r *EventRepo) GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error) {
	var events []LLMEvent
	sel := r.c.b().Select(eventColumns...).From(r.c.table("llm_request_events")).Where(entsql.EQ("id", id))
	if err := r.c.query(ctx, sel, &events); err != nil {
		return nil, fmt.Errorf("get LLM event: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// PurposeUsage aggregates token use per request purpose.
type PurposeUsage struct {
	Purpose      string `json:"purpose" sql:"purpose"`
	Calls        int    `json:"calls" sql:"calls"`
	InputTokens  int    `json:"input_tokens" sql:"input_tokens"`
	OutputTokens int    `json:"output_tokens" sql:"output_tokens"`
	AvgLatencyMs int64  `json:"avg_latency_ms" sql:"avg_latency_ms"`
}

// ModelUsage aggregates token use per model.
type ModelUsage struct {
	Model        string `json:"model" sql:"model"`
	Calls        int    `json:"calls" sql:"calls"`
	InputTokens  int    `json:"input_tokens" sql:"input_tokens"`
	OutputTokens int    `json:"output_tokens" sql:"output_tokens"`
}

func (r *EventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	sel := r.c.b().Select(
		"purpose",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
		entsql.As("CAST(AVG(latency_ms) AS BIGINT)", "avg_latency_ms"),
	).From(r.c.table("llm_request_events")).
		GroupBy("purpose").
		OrderBy("purpose")
	var out []PurposeUsage
	if err := r.c.query(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("usage by purpose: %w", err)
	}
	return out, nil
}

func (r *EventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	sel := r.c.b().Select(
		"model",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum("input_tokens"), "input_tokens"),
		entsql.As(entsql.Sum("output_tokens"), "output_tokens"),
	).From(r.c.table("llm_request_events")).
		GroupBy("model").
		OrderBy("model")
	var out []ModelUsage
	if err := r.c.query(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}
	return out, nil
}

// GenerationStats summarizes LLM activity since a point in time.
type GenerationStats struct {
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

type latencyRow struct {
	LatencyMs    int64 `sql:"latency_ms"`
	Success      bool  `sql:"success"`
	InputTokens  int   `sql:"input_tokens"`
	OutputTokens int   `sql:"output_tokens"`
}

// GenerationStats aggregates events at or after since.
func (r *EventRepo) GenerationStats(ctx context.Context, since time.Time) (GenerationStats, error) {
	var rows []latencyRow
	sel := r.c.b().Select("latency_ms", "success", "input_tokens", "output_tokens").
		From(r.c.table("llm_request_events")).
		Where(entsql.GTE("timestamp", since.UTC()))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return GenerationStats{}, fmt.Errorf("generation stats: %w", err)
	}
	var st GenerationStats
	var latency int64
	for _, row := range rows {
		st.Calls++
		if !row.Success {
			st.Failures++
		}
		latency += row.LatencyMs
		st.InputTokens += row.InputTokens
		st.OutputTokens += row.OutputTokens
	}
	if st.Calls > 0 {
		st.SuccessRate = float64(st.Calls-st.Failures) / float64(st.Calls)
		st.AvgLatencyMs = float64(latency) / float64(st.Calls)
	}
	return st, nil
}
