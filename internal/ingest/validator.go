package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

type Severity string

const (
	SeverityFail    Severity = "fail"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Type, i.Message)
}

// Passed reports whether no issue is a failure.
func Passed(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityFail {
			return false
		}
	}
	return true
}

var educationalIndicators = []string{
	"definition", "example", "exercise", "formula", "theorem",
	"experiment", "diagram", "solution", "learning objective", "key term",
}

var subjectKeywords = map[string][]string{
	"mathematics":      {"equation", "algebra", "function", "graph", "angle", "probability", "fraction"},
	"physics":          {"force", "energy", "velocity", "wave", "current", "pressure", "motion"},
	"chemistry":        {"atom", "molecule", "reaction", "element", "compound", "acid", "bond"},
	"biology":          {"cell", "organism", "enzyme", "photosynthesis", "respiration", "gene", "tissue"},
	"geography":        {"climate", "population", "river", "settlement", "ecosystem", "erosion"},
	"history":          {"war", "treaty", "revolution", "empire", "century", "government"},
	"english language": {"grammar", "vocabulary", "paragraph", "narrative", "punctuation", "audience"},
}

var boilerplatePhrases = []string{
	"cookie", "privacy policy", "subscribe", "sign up", "newsletter",
	"all rights reserved", "terms of service", "advertisement",
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

const (
	minSentences = 3
	// boilerplateLimit is the number of distinct boilerplate phrases that
	// marks a page as mostly site chrome.
	boilerplateLimit = 4
)

type ValidatorConfig struct {
	MinLength     int
	MaxLength     int
	MinIndicators int
}

func ValidatorConfigFrom(c config.IngestConfig) ValidatorConfig {
	return ValidatorConfig{
		MinLength:     c.MinContentLength,
		MaxLength:     c.MaxContentLength,
		MinIndicators: c.MinIndicators,
	}
}

// Validator screens raw content before it reaches the LLM.
type Validator struct {
	cfg   ValidatorConfig
	store *store.Store
}

// NewValidator returns a validator. st is only needed for ValidatePending.
func NewValidator(cfg ValidatorConfig, st *store.Store) *Validator {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 100
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 50000
	}
	if cfg.MinIndicators <= 0 {
		cfg.MinIndicators = 2
	}
	return &Validator{cfg: cfg, store: st}
}

func (v *Validator) Validate(text, subject string) []Issue {
	var issues []Issue
	lower := strings.ToLower(text)

	switch n := len(text); {
	case n < v.cfg.MinLength:
		issues = append(issues, Issue{"content_length", SeverityFail,
			fmt.Sprintf("content too short: %d characters (minimum %d)", n, v.cfg.MinLength)})
	case n > v.cfg.MaxLength:
		issues = append(issues, Issue{"content_length", SeverityFail,
			fmt.Sprintf("content too long: %d characters (maximum %d)", n, v.cfg.MaxLength)})
	}

	var found []string
	for _, ind := range educationalIndicators {
		if strings.Contains(lower, ind) {
			found = append(found, ind)
		}
	}
	if len(found) < v.cfg.MinIndicators {
		issues = append(issues, Issue{"educational_content", SeverityFail,
			fmt.Sprintf("found %d educational indicators %v, need %d", len(found), found, v.cfg.MinIndicators)})
	}

	if kws, ok := subjectKeywords[strings.ToLower(strings.TrimSpace(subject))]; ok {
		hit := false
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			issues = append(issues, Issue{"subject_relevance", SeverityWarning,
				fmt.Sprintf("no %s keywords found", subject)})
		}
	}

	var chrome []string
	for _, p := range boilerplatePhrases {
		if strings.Contains(lower, p) {
			chrome = append(chrome, p)
		}
	}
	switch {
	case len(chrome) >= boilerplateLimit:
		issues = append(issues, Issue{"boilerplate", SeverityFail,
			fmt.Sprintf("mostly site boilerplate: %v", chrome)})
	case len(chrome) > 0:
		issues = append(issues, Issue{"boilerplate", SeverityWarning,
			fmt.Sprintf("boilerplate phrases present: %v", chrome)})
	}

	sentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if len(strings.TrimSpace(s)) > 10 {
			sentences++
		}
	}
	if sentences < minSentences {
		issues = append(issues, Issue{"content_structure", SeverityFail,
			fmt.Sprintf("only %d meaningful sentences", sentences)})
	}
	return issues
}

type ValidationStats struct {
	Checked   int `json:"checked"`
	Validated int `json:"validated"`
	Rejected  int `json:"rejected"`
}

func notes(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}

// ValidatePending moves up to limit pending rows to validated or rejected.
// The notes column keeps every issue found.
func (v *Validator) ValidatePending(ctx context.Context, limit int) (ValidationStats, error) {
	var st ValidationStats
	rows, err := v.store.RawContent().ListByStatus(ctx, store.RawPending, limit)
	if err != nil {
		return st, err
	}
	for _, rc := range rows {
		issues := v.Validate(rc.Content, rc.Subject)
		status := store.RawValidated
		if !Passed(issues) {
			status = store.RawRejected
		}
		if err := v.store.RawContent().UpdateStatus(ctx, rc.ID, status, notes(issues)); err != nil {
			return st, err
		}
		st.Checked++
		if status == store.RawValidated {
			st.Validated++
		} else {
			st.Rejected++
		}
		logger.Debug().Str("id", rc.ID).Str("status", string(status)).Int("issues", len(issues)).Msg("raw content validated")
	}
	logger.Info().Int("checked", st.Checked).Int("validated", st.Validated).Int("rejected", st.Rejected).Msg("pending content validated")
	return st, nil
}
