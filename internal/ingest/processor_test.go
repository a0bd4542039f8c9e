package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/generation"
	"github.com/abhisek/igcseprep/internal/store"
	"github.com/abhisek/igcseprep/internal/store/storetest"
)

type fakeExtractor struct {
	res   *generation.Extraction
	err   error
	metas []generation.ContentMeta
}

func (f *fakeExtractor) FromContent(_ context.Context, _ string, meta generation.ContentMeta) (*generation.Extraction, error) {
	f.metas = append(f.metas, meta)
	return f.res, f.err
}

func extractedQuestion(topic, text string) generation.ExtractedQuestion {
	return generation.ExtractedQuestion{Topic: topic, Question: content.QuizQuestion{
		QuestionText:     text,
		QuestionType:     content.TrueFalse,
		CorrectAnswer:    "true",
		Explanation:      "Cells are the basic unit of life in all organisms.",
		DifficultyLevel:  2,
		Points:           1,
		GenerationMethod: content.MethodGemini,
	}}
}

func insertValidated(t *testing.T, st *store.Store, subject, text string) *store.RawContent {
	t.Helper()
	ctx := context.Background()
	rc := &store.RawContent{
		SourceURL:   "https://example.org/" + ContentHash(text)[:8],
		Subject:     subject,
		Content:     text,
		ContentHash: ContentHash(text),
		Metadata:    map[string]any{"syllabus_code": "0610", "difficulty_level": 2, "title": "Cells"},
	}
	require.NoError(t, st.RawContent().Insert(ctx, rc))
	require.NoError(t, st.RawContent().UpdateStatus(ctx, rc.ID, store.RawValidated, ""))
	return rc
}

func TestProcessValidated(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	existing := storetest.Topic(t, st, "Biology", "Cell Structure")
	rc := insertValidated(t, st, "Biology", cellsText)

	ex := &fakeExtractor{res: &generation.Extraction{
		Topics: []generation.ExtractedTopic{
			{Title: "Cell Structure"},
			{Title: "Specialised Cells", Description: "Cells adapted to a function", LearningObjectives: []string{"Relate structure to function"}},
		},
		Flashcards: []generation.ExtractedFlashcard{
			{Topic: "cell structure", Card: content.Flashcard{Front: "Nucleus", Back: "Controls the cell", DifficultyLevel: 2}},
			{Topic: "", Card: content.Flashcard{Front: "Cell", Back: "Basic unit of life", DifficultyLevel: 1}},
		},
		Questions: []generation.ExtractedQuestion{
			extractedQuestion("Specialised Cells", "Root hair cells have a large surface area. True or false?"),
			extractedQuestion("Specialised Cells", "Red blood cells lack a nucleus. True or false?"),
			extractedQuestion("Unknown", "All cells are living units. True or false?"),
		},
	}}
	stats, err := NewProcessor(ex, st).ProcessValidated(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ProcessStats{Processed: 1, Topics: 2, Flashcards: 2, Questions: 3}, stats)

	require.Len(t, ex.metas, 1)
	assert.Equal(t, generation.ContentMeta{Subject: "Biology", SyllabusCode: "0610", Title: "Cells", DifficultyLevel: 2}, ex.metas[0])

	cards, err := st.Flashcards().ListByTopic(ctx, existing.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1, "existing topic matched by slug")

	general, err := st.Topics().GetBySlug(ctx, existing.SubjectID, "general-concepts")
	require.NoError(t, err)
	cards, err = st.Flashcards().ListByTopic(ctx, general.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	specialised, err := st.Topics().GetBySlug(ctx, existing.SubjectID, "specialised-cells")
	require.NoError(t, err)
	assert.Equal(t, "0610", specialised.SyllabusCode)
	quizzes, _, err := st.Quizzes().List(ctx, store.QuizFilter{TopicID: specialised.ID})
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.False(t, quizzes[0].Published)

	got, err := st.RawContent().Get(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RawProcessed, got.Status)
	assert.Contains(t, got.ValidationNotes, "questions=3")
}

func TestProcessValidated_CreatesSubject(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	insertValidated(t, st, "Geography", cellsText)

	ex := &fakeExtractor{res: &generation.Extraction{Topics: []generation.ExtractedTopic{{Title: "Rivers"}}}}
	_, err := NewProcessor(ex, st).ProcessValidated(ctx, 0)
	require.NoError(t, err)

	sub, err := st.Subjects().GetByName(ctx, "Geography")
	require.NoError(t, err)
	assert.Equal(t, "0610", sub.Code)
	_, err = st.Topics().GetBySlug(ctx, sub.ID, "rivers")
	assert.NoError(t, err)
}

func TestProcessValidated_MarksFailures(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	rc := insertValidated(t, st, "Biology", cellsText)
	noSubject := insertValidated(t, st, "", cellsText+" again")

	ex := &fakeExtractor{err: errors.New("all chunks failed")}
	stats, err := NewProcessor(ex, st).ProcessValidated(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)

	got, err := st.RawContent().Get(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RawFailed, got.Status)
	assert.Equal(t, "all chunks failed", got.ValidationNotes)

	got, err = st.RawContent().Get(ctx, noSubject.ID)
	require.NoError(t, err)
	assert.Contains(t, got.ValidationNotes, "no subject")
}
