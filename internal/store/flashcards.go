package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
)

var flashcardColumns = []string{
	"id", "topic_id", "front", "back", "card_type", "hint", "explanation",
	"difficulty_level", "tags", "generation_method", "created_at",
}

type flashcardRow struct {
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
}

func (r flashcardRow) toFlashcard() content.Flashcard {
	return content.Flashcard{
		ID:               r.ID,
		TopicID:          r.TopicID,
		Front:            r.Front,
		Back:             r.Back,
		CardType:         r.CardType,
		Hint:             r.Hint,
		Explanation:      r.Explanation,
		DifficultyLevel:  r.DifficultyLevel,
		Tags:             fromJSON[[]string](r.Tags),
		GenerationMethod: content.GenerationMethod(r.GenerationMethod),
		CreatedAt:        r.CreatedAt,
	}
}

// FlashcardRepo stores flashcards.
type FlashcardRepo struct {
	c conn
}

// CreateMany inserts cards in batches inside one transaction.
func (r *FlashcardRepo) CreateMany(ctx context.Context, cards []content.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	created := now()
	return r.c.withTx(ctx, func(c conn) error {
		for start := 0; start < len(cards); start += questionInsertBatch {
			end := min(start+questionInsertBatch, len(cards))
			ins := c.b().Insert("flashcards").Columns(flashcardColumns...)
			for i := start; i < end; i++ {
				f := &cards[i]
				if f.ID == "" {
					f.ID = newID()
				}
				if f.CardType == "" {
					f.CardType = "basic"
				}
				if f.GenerationMethod == "" {
					f.GenerationMethod = content.MethodManual
				}
				f.DifficultyLevel = content.ClampDifficulty(f.DifficultyLevel)
				f.CreatedAt = created
				ins.Values(f.ID, f.TopicID, f.Front, f.Back, f.CardType, f.Hint, f.Explanation,
					f.DifficultyLevel, toJSON(orEmpty(f.Tags)), string(f.GenerationMethod), f.CreatedAt)
			}
			if err := c.exec(ctx, ins); err != nil {
				return translate(err, "flashcard")
			}
		}
		return nil
	})
}

func (r *FlashcardRepo) find(ctx context.Context, p *entsql.Predicate) ([]content.Flashcard, error) {
	var rows []flashcardRow
	sel := r.c.b().Select(flashcardColumns...).From(r.c.table("flashcards")).
		Where(p).
		OrderBy("created_at", "front")
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query flashcards: %w", err)
	}
	out := make([]content.Flashcard, len(rows))
	for i, row := range rows {
		out[i] = row.toFlashcard()
	}
	return out, nil
}

func (r *FlashcardRepo) ListByTopic(ctx context.Context, topicID string) ([]content.Flashcard, error) {
	return r.find(ctx, entsql.EQ("topic_id", topicID))
}

func (r *FlashcardRepo) Get(ctx context.Context, id string) (*content.Flashcard, error) {
	cards, err := r.find(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	return one(cards, "flashcard", id)
}

func (r *FlashcardRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "flashcards", "flashcard", id)
}
