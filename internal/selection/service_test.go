package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store"
	"github.com/abhisek/igcseprep/internal/store/storetest"
)

func seedBank(t *testing.T, st *store.Store, topic *content.Topic, marks ...int) {
	t.Helper()
	qs := make([]content.ExamQuestion, len(marks))
	for i, m := range marks {
		qs[i] = content.ExamQuestion{
			SubjectID:       topic.SubjectID,
			TopicID:         topic.ID,
			QuestionText:    fmt.Sprintf("Explain observation %d about %s in detail.", i, topic.Title),
			Marks:           m,
			DifficultyLevel: 3,
			ModelAnswer:     "A complete model answer for the marker.",
		}
	}
	require.NoError(t, st.ExamQuestions().CreateMany(context.Background(), qs))
}

func TestService_BuildPaper(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	topic := storetest.Topic(t, st, "Physics", "Electricity")
	seedBank(t, st, topic, 2, 2, 3, 4, 5, 6, 10)

	svc := NewService(st)
	paper, res, err := svc.BuildPaper(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 25, Seed: 3})
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Equal(t, "IGCSE Physics Practice Paper (25 marks)", paper.Title)
	assert.Equal(t, 90, paper.DurationMinutes)

	stored, err := st.ExamPapers().Get(ctx, paper.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.TotalMarks)
	assert.Equal(t, 25, stored.SumMarks())
	assert.Equal(t, content.MethodManual, stored.GenerationMethod)
	for i, q := range stored.Questions {
		assert.Equal(t, i+1, q.Order)
	}

	// Bank questions are linked, not copied.
	bankQs, err := st.ExamQuestions().Candidates(ctx, store.CandidateFilter{SubjectID: topic.SubjectID})
	require.NoError(t, err)
	assert.Len(t, bankQs, 7)
}

func TestService_Preview_Exclusions(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	topic := storetest.Topic(t, st, "Biology", "Enzymes")
	seedBank(t, st, topic, 5, 5, 10)

	svc := NewService(st)
	first, _, err := svc.Preview(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 10, Seed: 1, Title: "Short"})
	require.NoError(t, err)
	assert.Equal(t, 60, first.DurationMinutes)
	assert.Equal(t, "Short", first.Title)

	var exclude []string
	for _, q := range first.Questions {
		exclude = append(exclude, q.ID)
	}
	second, _, err := svc.Preview(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 10, Seed: 1, ExcludeIDs: exclude})
	require.NoError(t, err)
	for _, q := range second.Questions {
		assert.NotContains(t, exclude, q.ID)
	}

	papers, err := st.ExamPapers().List(ctx, topic.SubjectID)
	require.NoError(t, err)
	assert.Empty(t, papers, "preview must not save")
}

func TestService_BuildPaper_Errors(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	topic := storetest.Topic(t, st, "Chemistry", "Acids")
	svc := NewService(st)

	_, _, err := svc.BuildPaper(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 10})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "empty bank: %v", err)

	seedBank(t, st, topic, 4, 4)
	_, _, err = svc.BuildPaper(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 10, Tolerance: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	var unreachable *ErrTargetUnreachable
	require.True(t, errors.As(err, &unreachable))
	assert.Equal(t, 8, unreachable.Best)

	_, _, err = svc.BuildPaper(ctx, PaperRequest{SubjectID: topic.SubjectID, TargetMarks: 8, Tolerance: -2})
	assert.True(t, errors.Is(err, apperrors.ErrValidation), "negative tolerance: %v", err)
	assert.True(t, errors.Is(err, ErrInvalidCriteria))

	_, _, err = svc.BuildPaper(ctx, PaperRequest{SubjectID: "missing", TargetMarks: 10})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
