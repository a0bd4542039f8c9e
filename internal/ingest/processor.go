package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

// fallbackTopic receives items whose topic the model left blank or did
// not declare.
const fallbackTopic = "General Concepts"

// Extractor turns raw text into study material.
type Extractor interface {
	FromContent(ctx context.Context, text string, meta generation.ContentMeta) (*generation.Extraction, error)
}

type ProcessStats struct {
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Topics     int `json:"topics_created"`
	Flashcards int `json:"flashcards"`
	Questions  int `json:"questions"`
}

// Processor stores extracted material for validated raw content.
type Processor struct {
	extractor Extractor
	store     *store.Store
}

func NewProcessor(ex Extractor, st *store.Store) *Processor {
	return &Processor{extractor: ex, store: st}
}

// ProcessValidated handles up to limit validated rows. A row that fails is
// marked failed with the reason and processing moves on.
func (p *Processor) ProcessValidated(ctx context.Context, limit int) (ProcessStats, error) {
	var st ProcessStats
	rows, err := p.store.RawContent().ListByStatus(ctx, store.RawValidated, limit)
	if err != nil {
		return st, err
	}
	for _, rc := range rows {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		log := logger.WithField("raw_id", rc.ID)
		res, err := p.processOne(ctx, rc)
		if err != nil {
			st.Failed++
			log.Warn().Err(err).Msg("raw content processing failed")
			if uerr := p.store.RawContent().UpdateStatus(ctx, rc.ID, store.RawFailed, err.Error()); uerr != nil {
				return st, uerr
			}
			continue
		}
		st.Processed++
		st.Topics += res.Topics
		st.Flashcards += res.Flashcards
		st.Questions += res.Questions
		note := fmt.Sprintf("topics_created=%d flashcards=%d questions=%d", res.Topics, res.Flashcards, res.Questions)
		if err := p.store.RawContent().UpdateStatus(ctx, rc.ID, store.RawProcessed, note); err != nil {
			return st, err
		}
		log.Info().Int("flashcards", res.Flashcards).Int("questions", res.Questions).Msg("raw content processed")
	}
	return st, nil
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// topicSet resolves extracted topic titles to stored topics of one subject.
type topicSet struct {
	store   *store.Store
	subject *content.Subject
	meta    generation.ContentMeta
	byslug  map[string]*content.Topic
	created int
}

func (ts *topicSet) resolve(ctx context.Context, title string, desc string, objectives []string, difficulty int) (*content.Topic, error) {
	title = strings.TrimSpace(title)
	slug := content.Slugify(title)
	if slug == "" {
		title, slug = fallbackTopic, content.Slugify(fallbackTopic)
	}
	if t, ok := ts.byslug[slug]; ok {
		return t, nil
	}
	t, err := ts.store.Topics().GetBySlug(ctx, ts.subject.ID, slug)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	if t == nil {
		if difficulty == 0 {
			difficulty = ts.meta.DifficultyLevel
		}
		t = &content.Topic{
			SubjectID:          ts.subject.ID,
			Title:              title,
			Slug:               slug,
			Description:        desc,
			SyllabusCode:       ts.meta.SyllabusCode,
			DifficultyLevel:    difficulty,
			LearningObjectives: objectives,
		}
		if err := ts.store.Topics().Create(ctx, t); err != nil {
			return nil, err
		}
		ts.created++
	}
	ts.byslug[slug] = t
	return t, nil
}

// lookup returns the topic for an item, falling back to the general topic
// for titles that were not declared in the extraction.
func (ts *topicSet) lookup(ctx context.Context, title string) (*content.Topic, error) {
	if t, ok := ts.byslug[content.Slugify(title)]; ok {
		return t, nil
	}
	return ts.resolve(ctx, fallbackTopic, "Concepts not tied to a specific topic", nil, 0)
}

type processResult struct {
	Topics, Flashcards, Questions int
}

func (p *Processor) processOne(ctx context.Context, rc store.RawContent) (processResult, error) {
	var out processResult
	subjectName := rc.Subject
	if subjectName == "" {
		subjectName = metaString(rc.Metadata, "subject")
	}
	if subjectName == "" {
		return out, fmt.Errorf("raw content has no subject")
	}
	meta := generation.ContentMeta{
		Subject:         subjectName,
		SyllabusCode:    metaString(rc.Metadata, "syllabus_code"),
		Title:           metaString(rc.Metadata, "title"),
		DifficultyLevel: content.ClampDifficulty(metaInt(rc.Metadata, "difficulty_level")),
	}

	subject, err := p.store.Subjects().GetByName(ctx, subjectName)
	if store.IsNotFound(err) {
		subject = &content.Subject{Name: subjectName, Code: meta.SyllabusCode}
		err = p.store.Subjects().Create(ctx, subject)
	}
	if err != nil {
		return out, fmt.Errorf("resolve subject: %w", err)
	}

	ext, err := p.extractor.FromContent(ctx, rc.Content, meta)
	if err != nil {
		return out, err
	}

	ts := &topicSet{store: p.store, subject: subject, meta: meta, byslug: map[string]*content.Topic{}}
	for _, t := range ext.Topics {
		if _, err := ts.resolve(ctx, t.Title, t.Description, t.LearningObjectives, t.DifficultyLevel); err != nil {
			return out, fmt.Errorf("resolve topic %q: %w", t.Title, err)
		}
	}

	var cards []content.Flashcard
	for _, fc := range ext.Flashcards {
		t, err := ts.lookup(ctx, fc.Topic)
		if err != nil {
			return out, err
		}
		card := fc.Card
		card.TopicID = t.ID
		cards = append(cards, card)
	}
	if err := p.store.Flashcards().CreateMany(ctx, cards); err != nil {
		return out, fmt.Errorf("save flashcards: %w", err)
	}

	byTopic := map[string][]content.QuizQuestion{}
	var order []*content.Topic
	for _, eq := range ext.Questions {
		t, err := ts.lookup(ctx, eq.Topic)
		if err != nil {
			return out, err
		}
		if _, ok := byTopic[t.ID]; !ok {
			order = append(order, t)
		}
		q := eq.Question
		q.DisplayOrder = len(byTopic[t.ID]) + 1
		byTopic[t.ID] = append(byTopic[t.ID], q)
	}
	for _, t := range order {
		qs := byTopic[t.ID]
		quiz := &content.Quiz{
			TopicID:          t.ID,
			Title:            fmt.Sprintf("%s: Source Questions", t.Title),
			Description:      "Extracted from " + rc.SourceURL,
			QuizType:         content.QuizPractice,
			DifficultyLevel:  t.DifficultyLevel,
			ShowAnswers:      true,
			GenerationMethod: qs[0].GenerationMethod,
			GenerationModel:  qs[0].GenerationModel,
			Questions:        qs,
		}
		if err := p.store.Quizzes().Create(ctx, quiz); err != nil {
			return out, fmt.Errorf("save questions: %w", err)
		}
	}

	out.Topics = ts.created
	out.Flashcards = len(cards)
	out.Questions = len(ext.Questions)
	return out, nil
}
