package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/llm"
	"github.com/abhisek/igcseprep/internal/logger"
)

// charsPerToken is the rough token estimate used for chunking.
const charsPerToken = 4

// ContentMeta describes where a piece of raw material came from.
type ContentMeta struct {
	Subject         string
	SyllabusCode    string
	Title           string
	DifficultyLevel int
}

type ExtractedTopic struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	DifficultyLevel    int      `json:"difficulty_level"`
	LearningObjectives []string `json:"learning_objectives"`
}

// ExtractedFlashcard is a card plus the title of the topic it belongs to.
type ExtractedFlashcard struct {
	Topic string            `json:"topic"`
	Card  content.Flashcard `json:"card"`
}

type ExtractedQuestion struct {
	Topic    string               `json:"topic"`
	Question content.QuizQuestion `json:"question"`
}

// Extraction is everything produced from one piece of raw content.
type Extraction struct {
	Topics     []ExtractedTopic     `json:"topics"`
	Flashcards []ExtractedFlashcard `json:"flashcards"`
	Questions  []ExtractedQuestion  `json:"questions"`
	Rejected   []Rejection          `json:"rejected,omitempty"`
	Chunks     int                  `json:"chunks"`
	Failed     int                  `json:"failed"`
	Usage      llm.Usage            `json:"usage"`
	Model      string               `json:"model"`
}

type extractOutput struct {
	Topics     []ExtractedTopic  `json:"topics"`
	Flashcards []flashcardOutput `json:"flashcards"`
	Questions  []questionOutput  `json:"questions"`
}

// FromContent splits text into chunks of about ChunkTokens tokens and asks
// the LLM for topics, flashcards and questions from each. A failed chunk is
// skipped; an error is returned only when every chunk fails.
func (g *LLMGenerator) FromContent(ctx context.Context, text string, meta ContentMeta) (*Extraction, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeContentExtract)

	chunks := chunkText(text, g.config.ChunkTokens)
	if len(chunks) == 0 {
		return nil, errors.New("no content to extract from")
	}

	res := &Extraction{Chunks: len(chunks), Model: g.provider.ModelID()}
	difficulty := content.ClampDifficulty(meta.DifficultyLevel)
	topics := map[string]bool{}
	fronts := newFrontDedup(nil)
	questions := map[string]bool{}
	var lastErr error

	for i, chunk := range chunks {
		out, err := g.extractChunk(ctx, chunk, meta, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("extract content: %w", err)
			}
			res.Failed++
			lastErr = err
			logger.Warn().Err(err).Int("chunk", i+1).Int("chunks", len(chunks)).Msg("content extraction failed")
			continue
		}

		for _, t := range out.Topics {
			t.Title = strings.TrimSpace(t.Title)
			slug := content.Slugify(t.Title)
			if slug == "" || topics[slug] {
				continue
			}
			topics[slug] = true
			if t.DifficultyLevel == 0 {
				t.DifficultyLevel = difficulty
			}
			t.DifficultyLevel = content.ClampDifficulty(t.DifficultyLevel)
			res.Topics = append(res.Topics, t)
		}

		for _, raw := range out.Flashcards {
			card := raw.toFlashcard(difficulty, g.config.Method)
			if !fronts.keep(card) {
				continue
			}
			res.Flashcards = append(res.Flashcards, ExtractedFlashcard{Topic: strings.TrimSpace(raw.Topic), Card: card})
		}

		for _, raw := range out.Questions {
			q := raw.toQuestion(difficulty)
			q.GenerationMethod = g.config.Method
			q.GenerationModel = res.Model
			info := content.TopicInfo{Title: raw.Topic, SubjectName: meta.Subject, DifficultyLevel: difficulty}
			if verr := g.validate(&q, info); verr != nil {
				res.Rejected = append(res.Rejected, Rejection{QuestionText: q.QuestionText, Validator: verr.Validator, Reason: verr.Message})
				continue
			}
			key := normalizeText(q.QuestionText)
			if questions[key] {
				continue
			}
			questions[key] = true
			res.Questions = append(res.Questions, ExtractedQuestion{Topic: strings.TrimSpace(raw.Topic), Question: q})
		}
	}

	if res.Failed == len(chunks) {
		return nil, fmt.Errorf("extract content: all %d chunks failed: %w", len(chunks), lastErr)
	}
	return res, nil
}

func (g *LLMGenerator) extractChunk(ctx context.Context, chunk string, meta ContentMeta, res *Extraction) (*extractOutput, error) {
	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      extractSystemPrompt,
		Messages:    llm.UserPrompt(buildExtractPrompt(chunk, meta)),
		Schema:      ExtractionSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return nil, err
	}
	res.Usage.Add(resp.Usage)
	res.Model = g.model(resp)

	var out extractOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	return &out, nil
}

// chunkText splits text on paragraph boundaries into pieces of at most
// maxTokens estimated tokens. A paragraph larger than a chunk is split on
// word boundaries.
func chunkText(text string, maxTokens int) []string {
	maxChars := maxTokens * charsPerToken
	if maxChars <= 0 {
		maxChars = 3000 * charsPerToken
	}

	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			chunks = append(chunks, splitWords(para, maxChars)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

func splitWords(s string, maxChars int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, w := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > maxChars {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
