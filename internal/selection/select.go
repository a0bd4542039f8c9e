// Package selection assembles exam papers from the question bank so the
// marks add up to a target total.
package selection

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/abhisek/igcseprep/internal/content"
)

var (
	// ErrEmptyPool is returned when no candidate fits under the target.
	ErrEmptyPool = errors.New("no candidate questions")
	// ErrInvalidCriteria is returned for a non-positive target or a
	// negative tolerance.
	ErrInvalidCriteria = errors.New("invalid selection criteria")
)

// ErrTargetUnreachable reports that no subset lands within tolerance.
type ErrTargetUnreachable struct {
	Target    int
	Best      int
	Tolerance int
}

func (e *ErrTargetUnreachable) Error() string {
	return fmt.Sprintf("cannot reach %d marks (tolerance %d): best reachable total is %d", e.Target, e.Tolerance, e.Best)
}

// Criteria controls a selection.
type Criteria struct {
	TargetMarks int
	// Tolerance is how many marks below the target are acceptable.
	Tolerance int
	// MaxQuestions caps the paper length; zero means unlimited.
	MaxQuestions int
	// DifficultyFocus prefers questions near this level; zero means any.
	DifficultyFocus int
	// TopicSpread interleaves topics so ties favour a broad paper.
	TopicSpread bool
	Seed        int64
}

// Result is the selected set.
type Result struct {
	// Questions are ordered by difficulty, then marks.
	Questions  []content.ExamQuestion
	TotalMarks int
	Target     int
	Exact      bool
}

// Select picks questions whose marks sum to the target, or to the highest
// reachable total within tolerance below it. Among subsets with the same
// total the one with the fewest questions wins, ties going to the one found
// first in candidate order. The result is deterministic for a given seed.
func Select(pool []content.ExamQuestion, c Criteria) (Result, error) {
	if c.TargetMarks <= 0 {
		return Result{}, fmt.Errorf("%w: target marks must be positive, got %d", ErrInvalidCriteria, c.TargetMarks)
	}
	if c.Tolerance < 0 {
		return Result{}, fmt.Errorf("%w: tolerance must not be negative, got %d", ErrInvalidCriteria, c.Tolerance)
	}
	cands := order(filter(pool, c.TargetMarks), c)
	if len(cands) == 0 {
		return Result{}, ErrEmptyPool
	}

	// A subset never exceeds the pool total.
	capacity := min(c.TargetMarks, sum(cands))
	best := subsetSum(cands, capacity, c.MaxQuestions)
	total := -1
	for s := capacity; s > 0; s-- {
		if best[s] != nil {
			total = s
			break
		}
	}
	if total < 0 || c.TargetMarks-total > c.Tolerance {
		return Result{}, &ErrTargetUnreachable{Target: c.TargetMarks, Best: max(total, 0), Tolerance: c.Tolerance}
	}

	picked := make([]content.ExamQuestion, len(best[total]))
	for i, idx := range best[total] {
		picked[i] = cands[idx]
	}
	slices.SortStableFunc(picked, func(a, b content.ExamQuestion) int {
		if d := cmp.Compare(a.DifficultyLevel, b.DifficultyLevel); d != 0 {
			return d
		}
		return cmp.Compare(a.Marks, b.Marks)
	})
	return Result{
		Questions:  picked,
		TotalMarks: total,
		Target:     c.TargetMarks,
		Exact:      total == c.TargetMarks,
	}, nil
}

func sum(qs []content.ExamQuestion) int {
	total := 0
	for _, q := range qs {
		total += q.Marks
	}
	return total
}

func filter(pool []content.ExamQuestion, target int) []content.ExamQuestion {
	out := make([]content.ExamQuestion, 0, len(pool))
	for _, q := range pool {
		if q.Marks > 0 && q.Marks <= target {
			out = append(out, q)
		}
	}
	return out
}

// order shuffles with the seed, then applies the difficulty preference and
// topic interleaving.
func order(cands []content.ExamQuestion, c Criteria) []content.ExamQuestion {
	r := rand.New(rand.NewPCG(uint64(c.Seed), uint64(c.Seed)^0x9e3779b97f4a7c15))
	r.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

	if c.DifficultyFocus > 0 {
		slices.SortStableFunc(cands, func(a, b content.ExamQuestion) int {
			return cmp.Compare(absInt(a.DifficultyLevel-c.DifficultyFocus), absInt(b.DifficultyLevel-c.DifficultyFocus))
		})
	}
	if c.TopicSpread {
		cands = interleave(cands)
	}
	return cands
}

// interleave takes one question per topic in turn, keeping each topic's
// relative order and the order topics first appear in.
func interleave(cands []content.ExamQuestion) []content.ExamQuestion {
	var topics []string
	groups := map[string][]content.ExamQuestion{}
	for _, q := range cands {
		if _, ok := groups[q.TopicID]; !ok {
			topics = append(topics, q.TopicID)
		}
		groups[q.TopicID] = append(groups[q.TopicID], q)
	}
	out := make([]content.ExamQuestion, 0, len(cands))
	for len(out) < len(cands) {
		for _, t := range topics {
			if g := groups[t]; len(g) > 0 {
				out = append(out, g[0])
				groups[t] = g[1:]
			}
		}
	}
	return out
}

// subsetSum returns, for every total up to target, the candidate indexes of
// the smallest subset reaching it (nil when unreachable). best[0] is the
// empty set.
func subsetSum(cands []content.ExamQuestion, target, maxQuestions int) [][]int {
	best := make([][]int, target+1)
	best[0] = []int{}
	for i, q := range cands {
		m := q.Marks
		for s := target; s >= m; s-- {
			prev := best[s-m]
			if prev == nil {
				continue
			}
			if maxQuestions > 0 && len(prev)+1 > maxQuestions {
				continue
			}
			if best[s] != nil && len(best[s]) <= len(prev)+1 {
				continue
			}
			next := make([]int, len(prev)+1)
			copy(next, prev)
			next[len(prev)] = i
			best[s] = next
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
