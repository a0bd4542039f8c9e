package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/spacedrep"
)

// QuizAttempt is one scored submission of a quiz.
type QuizAttempt struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	QuizID      string            `json:"quiz_id"`
	TopicID     string            `json:"topic_id"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"max_score"`
	Percentage  float64           `json:"percentage"`
	Answers     map[string]string `json:"answers"`
	CompletedAt time.Time         `json:"completed_at"`
}

// TopicProgress aggregates a learner's attempts on one topic.
type TopicProgress struct {
	UserID        string    `json:"user_id" sql:"user_id"`
	TopicID       string    `json:"topic_id" sql:"topic_id"`
	Attempts      int       `json:"attempts" sql:"attempts"`
	BestScore     float64   `json:"best_score" sql:"best_score"`
	AverageScore  float64   `json:"average_score" sql:"average_score"`
	LastAttemptAt time.Time `json:"last_attempt_at" sql:"last_attempt_at"`
}

var progressColumns = []string{"user_id", "topic_id", "attempts", "best_score", "average_score", "last_attempt_at"}

// ProgressRepo records quiz attempts and flashcard reviews.
type ProgressRepo struct {
	c conn
}

// RecordQuizAttempt stores the attempt and folds its percentage into the
// learner's running topic average and best score.
func (r *ProgressRepo) RecordQuizAttempt(ctx context.Context, a *QuizAttempt) (*TopicProgress, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CompletedAt = now()
	if a.MaxScore > 0 {
		a.Percentage = float64(a.Score) / float64(a.MaxScore) * 100
	}

	var out *TopicProgress
	err := r.c.withTx(ctx, func(c conn) error {
		ins := c.b().Insert("quiz_attempts").
			Columns("id", "user_id", "quiz_id", "topic_id", "score", "max_score", "percentage", "answers", "completed_at").
			Values(a.ID, a.UserID, a.QuizID, a.TopicID, a.Score, a.MaxScore, a.Percentage, toJSON(a.Answers), a.CompletedAt)
		if err := c.exec(ctx, ins); err != nil {
			return translate(err, "quiz attempt")
		}

		p := TopicProgress{UserID: a.UserID, TopicID: a.TopicID}
		existing, err := (&ProgressRepo{c: c}).GetTopicProgress(ctx, a.UserID, a.TopicID)
		switch {
		case err == nil:
			p = *existing
		case !isNotFound(err):
			return err
		}
		p.AverageScore = (p.AverageScore*float64(p.Attempts) + a.Percentage) / float64(p.Attempts+1)
		p.Attempts++
		p.BestScore = max(p.BestScore, a.Percentage)
		p.LastAttemptAt = a.CompletedAt

		up := c.b().Insert("user_progress").
			Columns(progressColumns...).
			Values(p.UserID, p.TopicID, p.Attempts, p.BestScore, p.AverageScore, p.LastAttemptAt).
			OnConflict(
				entsql.ConflictColumns("user_id", "topic_id"),
				entsql.ResolveWithNewValues(),
			)
		if err := c.exec(ctx, up); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProgressRepo) GetTopicProgress(ctx context.Context, userID, topicID string) (*TopicProgress, error) {
	var rows []TopicProgress
	sel := r.c.b().Select(progressColumns...).From(r.c.table("user_progress")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("topic_id", topicID)))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return one(rows, "progress for topic", topicID)
}

func (r *ProgressRepo) ListUserProgress(ctx context.Context, userID string) ([]TopicProgress, error) {
	var rows []TopicProgress
	sel := r.c.b().Select(progressColumns...).From(r.c.table("user_progress")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("last_attempt_at"))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return rows, nil
}

var reviewColumns = []string{"user_id", "flashcard_id", "ease_factor", "interval_days", "repetitions", "due_at", "last_reviewed_at"}

type reviewRow struct {
	UserID         string    `sql:"user_id"`
	FlashcardID    string    `sql:"flashcard_id"`
	EaseFactor     float64   `sql:"ease_factor"`
	IntervalDays   int       `sql:"interval_days"`
	Repetitions    int       `sql:"repetitions"`
	DueAt          time.Time `sql:"due_at"`
	LastReviewedAt time.Time `sql:"last_reviewed_at"`
}

func (r reviewRow) toState() spacedrep.ReviewState {
	return spacedrep.ReviewState{
		FlashcardID:    r.FlashcardID,
		EaseFactor:     r.EaseFactor,
		IntervalDays:   r.IntervalDays,
		Repetitions:    r.Repetitions,
		DueAt:          r.DueAt,
		LastReviewedAt: r.LastReviewedAt,
	}
}

// GetFlashcardReview returns the learner's SM-2 state for a card.
func (r *ProgressRepo) GetFlashcardReview(ctx context.Context, userID, flashcardID string) (*spacedrep.ReviewState, error) {
	var rows []reviewRow
	sel := r.c.b().Select(reviewColumns...).From(r.c.table("flashcard_reviews")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("flashcard_id", flashcardID)))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get flashcard review: %w", err)
	}
	row, err := one(rows, "review for flashcard", flashcardID)
	if err != nil {
		return nil, err
	}
	st := row.toState()
	return &st, nil
}

func (r *ProgressRepo) UpsertFlashcardReview(ctx context.Context, userID string, st spacedrep.ReviewState) error {
	q := r.c.b().Insert("flashcard_reviews").
		Columns(reviewColumns...).
		Values(userID, st.FlashcardID, st.EaseFactor, st.IntervalDays, st.Repetitions, st.DueAt.UTC(), st.LastReviewedAt.UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id", "flashcard_id"),
			entsql.ResolveWithNewValues(),
		)
	if err := r.c.exec(ctx, q); err != nil {
		return fmt.Errorf("upsert flashcard review: %w", err)
	}
	return nil
}

// DueFlashcard pairs a card with its review state.
type DueFlashcard struct {
	Flashcard content.Flashcard     `json:"flashcard"`
	Review    spacedrep.ReviewState `json:"review"`
}

type dueRow struct {
	ID               string    `sql:"id"`
	TopicID          string    `sql:"topic_id"`
	Front            string    `sql:"front"`
	Back             string    `sql:"back"`
	CardType         string    `sql:"card_type"`
	Hint             string    `sql:"hint"`
	Explanation      string    `sql:"explanation"`
	DifficultyLevel  int       `sql:"difficulty_level"`
	Tags             string    `sql:"tags"`
	GenerationMethod string    `sql:"generation_method"`
	CreatedAt        time.Time `sql:"created_at"`
	EaseFactor       float64   `sql:"ease_factor"`
	IntervalDays     int       `sql:"interval_days"`
	Repetitions      int       `sql:"repetitions"`
	DueAt            time.Time `sql:"due_at"`
	LastReviewedAt   time.Time `sql:"last_reviewed_at"`
}

// DueFlashcards returns up to limit reviewed cards due at or before at,
// most overdue first.
func (r *ProgressRepo) DueFlashcards(ctx context.Context, userID string, at time.Time, limit int) ([]DueFlashcard, error) {
	f := r.c.table("flashcards").As("f")
	rv := r.c.table("flashcard_reviews").As("r")
	cols := append(f.Columns(flashcardColumns...),
		rv.C("ease_factor"), rv.C("interval_days"), rv.C("repetitions"), rv.C("due_at"), rv.C("last_reviewed_at"))
	sel := r.c.b().Select(cols...).
		From(f).
		Join(rv).On(rv.C("flashcard_id"), f.C("id")).
		Where(entsql.And(entsql.EQ(rv.C("user_id"), userID), entsql.LTE(rv.C("due_at"), at.UTC()))).
		OrderBy(rv.C("due_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	var rows []dueRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("due flashcards: %w", err)
	}
	out := make([]DueFlashcard, len(rows))
	for i, row := range rows {
		out[i] = DueFlashcard{
			Flashcard: flashcardRow{
				ID: row.ID, TopicID: row.TopicID, Front: row.Front, Back: row.Back, CardType: row.CardType,
				Hint: row.Hint, Explanation: row.Explanation, DifficultyLevel: row.DifficultyLevel,
				Tags: row.Tags, GenerationMethod: row.GenerationMethod, CreatedAt: row.CreatedAt,
			}.toFlashcard(),
			Review: spacedrep.ReviewState{
				FlashcardID:    row.ID,
				EaseFactor:     row.EaseFactor,
				IntervalDays:   row.IntervalDays,
				Repetitions:    row.Repetitions,
				DueAt:          row.DueAt,
				LastReviewedAt: row.LastReviewedAt,
			},
		}
	}
	return out, nil
}
