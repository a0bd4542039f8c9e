package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
)

const defaultFlashcardCount = 10

type flashcardOutput struct {
	Front           string   `json:"front"`
	Back            string   `json:"back"`
	CardType        string   `json:"card_type"`
	Hint            string   `json:"hint"`
	Explanation     string   `json:"explanation"`
	DifficultyLevel int      `json:"difficulty_level"`
	Tags            []string `json:"tags"`
	Topic           string   `json:"topic,omitempty"`
}

type flashcardsOutput struct {
	Flashcards []flashcardOutput `json:"flashcards"`
}

func (o flashcardOutput) toFlashcard(defaultDifficulty int, method content.GenerationMethod) content.Flashcard {
	difficulty := o.DifficultyLevel
	if difficulty == 0 {
		difficulty = defaultDifficulty
	}
	cardType := strings.TrimSpace(o.CardType)
	if cardType == "" {
		cardType = "basic"
	}
	return content.Flashcard{
		Front:            strings.TrimSpace(o.Front),
		Back:             strings.TrimSpace(o.Back),
		CardType:         cardType,
		Hint:             strings.TrimSpace(o.Hint),
		Explanation:      strings.TrimSpace(o.Explanation),
		DifficultyLevel:  content.ClampDifficulty(difficulty),
		Tags:             o.Tags,
		GenerationMethod: method,
	}
}

// GenerateFlashcards asks for opts.Count cards in one call. Cards with an
// empty side or a front already seen (case-insensitive) are dropped.
func (g *LLMGenerator) GenerateFlashcards(ctx context.Context, topic content.TopicInfo, opts FlashcardOptions) (*FlashcardResult, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeFlashcardGen)
	start := g.now()

	count := opts.Count
	if count <= 0 {
		count = defaultFlashcardCount
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      flashcardSystemPrompt,
		Messages:    llm.UserPrompt(buildFlashcardPrompt(topic, count, opts.Avoid, g.config.MaxAvoid)),
		Schema:      FlashcardSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate flashcards: %w", err)
	}

	var out flashcardsOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse flashcards response: %w", err)
	}

	res := &FlashcardResult{Usage: resp.Usage, Model: g.model(resp)}
	dd := newFrontDedup(opts.Avoid)
	for _, raw := range out.Flashcards {
		card := raw.toFlashcard(topic.DifficultyLevel, g.config.Method)
		card.TopicID = topic.ID
		if len(res.Flashcards) == count || !dd.keep(card) {
			res.Dropped++
			continue
		}
		res.Flashcards = append(res.Flashcards, card)
	}
	res.Duration = g.now().Sub(start)

	logger.Info().
		Str("topic_id", topic.ID).
		Int("accepted", len(res.Flashcards)).
		Int("dropped", res.Dropped).
		Msg("flashcards generated")
	return res, nil
}

// frontDedup drops empty cards and repeated fronts.
type frontDedup map[string]bool

func newFrontDedup(existing []string) frontDedup {
	d := frontDedup{}
	for _, f := range existing {
		d[normalizeText(f)] = true
	}
	return d
}

func (d frontDedup) keep(c content.Flashcard) bool {
	if c.Front == "" || c.Back == "" {
		return false
	}
	key := normalizeText(c.Front)
	if d[key] {
		return false
	}
	d[key] = true
	return true
}
