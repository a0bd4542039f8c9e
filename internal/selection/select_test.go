package selection

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/abhisek/igcseprep/internal/content"
)

func bank(topic string, difficulty int, marks ...int) []content.ExamQuestion {
	out := make([]content.ExamQuestion, len(marks))
	for i, m := range marks {
		out[i] = content.ExamQuestion{
			ID:              fmt.Sprintf("%s-%d-%02d", topic, difficulty, i),
			TopicID:         topic,
			Marks:           m,
			DifficultyLevel: difficulty,
		}
	}
	return out
}

func ids(qs []content.ExamQuestion) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestSelect_Exact(t *testing.T) {
	pool := bank("t", 3, 2, 2, 5, 5, 10, 3)
	res, err := Select(pool, Criteria{TargetMarks: 20, Seed: 7})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !res.Exact || res.TotalMarks != 20 || sum(res.Questions) != 20 {
		t.Fatalf("got total %d exact %v", res.TotalMarks, res.Exact)
	}
	if len(res.Questions) != 3 {
		t.Errorf("expected fewest questions (10+5+5), got %d", len(res.Questions))
	}
}

func TestSelect_Tolerance(t *testing.T) {
	pool := bank("t", 3, 5, 5, 5)

	res, err := Select(pool, Criteria{TargetMarks: 17, Tolerance: 2})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.TotalMarks != 15 || res.Exact {
		t.Errorf("total = %d exact = %v, want 15 inexact", res.TotalMarks, res.Exact)
	}

	_, err = Select(pool, Criteria{TargetMarks: 17, Tolerance: 1})
	var unreachable *ErrTargetUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected ErrTargetUnreachable, got %v", err)
	}
	if unreachable.Best != 15 || unreachable.Target != 17 {
		t.Errorf("unreachable = %+v", unreachable)
	}
}

func TestSelect_Errors(t *testing.T) {
	if _, err := Select(bank("t", 3, 5), Criteria{TargetMarks: 0}); err == nil {
		t.Error("expected error for zero target")
	}
	if _, err := Select(nil, Criteria{TargetMarks: 10}); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("nil pool: got %v", err)
	}
	if _, err := Select(bank("t", 3, 12, 15), Criteria{TargetMarks: 10}); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("oversized pool: got %v", err)
	}
	if _, err := Select(bank("t", 3, 5, 5), Criteria{TargetMarks: 10, Tolerance: -1}); !errors.Is(err, ErrInvalidCriteria) {
		t.Errorf("negative tolerance: got %v", err)
	}
	if _, err := Select(bank("t", 3, 5), Criteria{TargetMarks: -4}); !errors.Is(err, ErrInvalidCriteria) {
		t.Errorf("negative target: got %v", err)
	}
}

func TestSelect_HugeTargetBoundedByPool(t *testing.T) {
	pool := bank("t", 3, 5, 5, 3)
	res, err := Select(pool, Criteria{TargetMarks: 1_000_000_000, Tolerance: 1_000_000_000})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.TotalMarks != 13 || res.Exact || len(res.Questions) != 3 {
		t.Errorf("got total %d exact %v with %d questions", res.TotalMarks, res.Exact, len(res.Questions))
	}

	_, err = Select(pool, Criteria{TargetMarks: 1_000_000_000})
	var unreachable *ErrTargetUnreachable
	if !errors.As(err, &unreachable) || unreachable.Best != 13 {
		t.Errorf("expected unreachable with best 13, got %v", err)
	}
}

func TestSelect_MaxQuestions(t *testing.T) {
	pool := append(bank("a", 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), bank("b", 2, 5, 5)...)

	res, err := Select(pool, Criteria{TargetMarks: 10, MaxQuestions: 2})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Questions) != 2 || res.TotalMarks != 10 {
		t.Errorf("got %d questions for %d marks", len(res.Questions), res.TotalMarks)
	}

	res, err = Select(pool, Criteria{TargetMarks: 10, MaxQuestions: 1, Tolerance: 5})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Questions) != 1 || res.TotalMarks != 5 {
		t.Errorf("got %d questions for %d marks", len(res.Questions), res.TotalMarks)
	}
}

func TestSelect_DeterministicBySeed(t *testing.T) {
	pool := bank("t", 3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 3, 3, 3, 3)

	a, err := Select(pool, Criteria{TargetMarks: 12, Seed: 42})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	b, err := Select(pool, Criteria{TargetMarks: 12, Seed: 42})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !slices.Equal(ids(a.Questions), ids(b.Questions)) {
		t.Errorf("same seed gave %v and %v", ids(a.Questions), ids(b.Questions))
	}
	if pool[0].ID != "t-3-00" {
		t.Error("Select must not reorder the caller's pool")
	}
}

func TestSelect_DifficultyFocus(t *testing.T) {
	pool := append(bank("easy", 1, 5, 5, 5, 5), bank("hard", 5, 5, 5)...)
	for seed := int64(1); seed <= 5; seed++ {
		res, err := Select(pool, Criteria{TargetMarks: 10, DifficultyFocus: 5, Seed: seed})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		for _, q := range res.Questions {
			if q.DifficultyLevel != 5 {
				t.Errorf("seed %d picked difficulty %d", seed, q.DifficultyLevel)
			}
		}
	}
}

func TestSelect_TopicSpread(t *testing.T) {
	pool := append(bank("a", 3, 5, 5, 5, 5), bank("b", 3, 5, 5, 5, 5)...)
	for seed := int64(1); seed <= 5; seed++ {
		res, err := Select(pool, Criteria{TargetMarks: 10, TopicSpread: true, Seed: seed})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if len(res.Questions) != 2 || res.Questions[0].TopicID == res.Questions[1].TopicID {
			t.Errorf("seed %d: expected one question per topic, got %v", seed, ids(res.Questions))
		}
	}
}

func TestSelect_ResultOrder(t *testing.T) {
	pool := []content.ExamQuestion{
		{ID: "x", Marks: 6, DifficultyLevel: 4},
		{ID: "y", Marks: 2, DifficultyLevel: 1},
		{ID: "z", Marks: 4, DifficultyLevel: 1},
	}
	res, err := Select(pool, Criteria{TargetMarks: 12})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(res.Questions); !slices.Equal(got, []string{"y", "z", "x"}) {
		t.Errorf("order = %v", got)
	}
}

func TestInterleave(t *testing.T) {
	in := append(bank("a", 3, 1, 1, 1), bank("b", 3, 1)...)
	got := ids(interleave(in))
	want := []string{"a-3-00", "b-3-00", "a-3-01", "a-3-02"}
	if !slices.Equal(got, want) {
		t.Errorf("interleave = %v, want %v", got, want)
	}
}
