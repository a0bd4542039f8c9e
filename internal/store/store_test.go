package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/spacedrep"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedTopic creates a subject and a topic under it.
func seedTopic(t *testing.T, s *Store, subject, title string) (*content.Subject, *content.Topic) {
	t.Helper()
	ctx := context.Background()
	sub, err := s.Subjects().GetByName(ctx, subject)
	if err != nil {
		sub = &content.Subject{Name: subject}
		require.NoError(t, s.Subjects().Create(ctx, sub))
	}
	topic := &content.Topic{SubjectID: sub.ID, Title: title, DifficultyLevel: 3, LearningObjectives: []string{"Recall " + title}}
	require.NoError(t, s.Topics().Create(ctx, topic))
	return sub, topic
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, "sqlite3", s.Dialect())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is not checked here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- b\nCREATE TABLE b (y INT);\nINSERT INTO b VALUES (1);")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)", "INSERT INTO b VALUES (1)"}, got)
}

func TestUsers_CreateAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := s.Users()

	u := &content.User{Email: " Ada@Example.com ", FullName: "Ada", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, u))
	assert.Equal(t, content.RoleStudent, u.Role)

	got, err := users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	err = users.Create(ctx, &content.User{Email: "ada@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUsers_RefreshTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := &content.User{Email: "r@example.com", PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Users().SaveRefreshToken(ctx, RefreshToken{Token: "tok", UserID: u.ID, ExpiresAt: exp}))

	rt, err := s.Users().GetRefreshToken(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, rt.Revoked)
	assert.True(t, rt.ExpiresAt.Equal(exp))

	require.NoError(t, s.Users().RevokeRefreshToken(ctx, "tok"))
	rt, err = s.Users().GetRefreshToken(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, rt.Revoked)

	assert.ErrorIs(t, s.Users().RevokeRefreshToken(ctx, "nope"), apperrors.ErrNotFound)
}

func TestUsers_ConsumeRefreshTokenOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := &content.User{Email: "c@example.com", PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))
	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.Users().SaveRefreshToken(ctx, RefreshToken{Token: "once", UserID: u.ID, ExpiresAt: exp}))
	require.NoError(t, s.Users().SaveRefreshToken(ctx, RefreshToken{Token: "gone", UserID: u.ID, ExpiresAt: exp}))

	require.NoError(t, s.Users().ConsumeRefreshToken(ctx, "once"))
	assert.ErrorIs(t, s.Users().ConsumeRefreshToken(ctx, "once"), apperrors.ErrTokenRevoked)

	require.NoError(t, s.Users().RevokeRefreshToken(ctx, "gone"))
	assert.ErrorIs(t, s.Users().ConsumeRefreshToken(ctx, "gone"), apperrors.ErrTokenRevoked)
	assert.ErrorIs(t, s.Users().ConsumeRefreshToken(ctx, "missing"), apperrors.ErrTokenRevoked)
}

func TestSubjectsChaptersTopics_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub := &content.Subject{Name: "Biology", Code: "0610"}
	require.NoError(t, s.Subjects().Create(ctx, sub))
	assert.ErrorIs(t, s.Subjects().Create(ctx, &content.Subject{Name: "Biology"}), apperrors.ErrConflict)

	byName, err := s.Subjects().GetByName(ctx, "biology")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byName.ID)

	ch := &content.Chapter{SubjectID: sub.ID, Title: "Cells", DisplayOrder: 1}
	require.NoError(t, s.Chapters().Create(ctx, ch))
	chapters, err := s.Chapters().ListBySubject(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)

	for i, title := range []string{"Cell Structure", "Osmosis", "Enzymes"} {
		topic := &content.Topic{SubjectID: sub.ID, ChapterID: ch.ID, Title: title, DisplayOrder: i}
		require.NoError(t, s.Topics().Create(ctx, topic))
	}

	topics, total, err := s.Topics().List(ctx, TopicFilter{SubjectID: sub.ID, Page: Page{Page: 1, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, topics, 2)
	assert.Equal(t, "cell-structure", topics[0].Slug)
	assert.Equal(t, 3, topics[0].DifficultyLevel)

	info, err := s.Topics().GetInfo(ctx, topics[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", info.SubjectName)
	assert.Equal(t, "Osmosis", info.Title)

	topics[1].Title = "Diffusion and Osmosis"
	topics[1].Slug = ""
	require.NoError(t, s.Topics().Update(ctx, &topics[1]))
	got, err := s.Topics().GetBySlug(ctx, sub.ID, "diffusion-and-osmosis")
	require.NoError(t, err)
	assert.Equal(t, topics[1].ID, got.ID)

	// Deleting the chapter detaches its topics.
	require.NoError(t, s.Chapters().Delete(ctx, ch.ID))
	got, err = s.Topics().Get(ctx, topics[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got.ChapterID)

	require.NoError(t, s.Subjects().Delete(ctx, sub.ID))
	_, err = s.Topics().Get(ctx, topics[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func sampleQuestions(n int) []content.QuizQuestion {
	out := make([]content.QuizQuestion, n)
	score := 0.9
	gen := time.Now()
	for i := range out {
		out[i] = content.QuizQuestion{
			QuestionText:     fmt.Sprintf("Question number %d about photosynthesis?", i),
			QuestionType:     content.MultipleChoice,
			Options:          map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer:    "A",
			Explanation:      "Because chlorophyll absorbs light.",
			DifficultyLevel:  2,
			Points:           1,
			Tags:             []string{"plants"},
			GenerationMethod: content.MethodMock,
			GeneratedAt:      &gen,
			QualityScore:     &score,
		}
	}
	return out
}

func TestQuizzes_CreateGetList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, topic := seedTopic(t, s, "Biology", "Photosynthesis")

	// More than one insert batch.
	quiz := &content.Quiz{TopicID: topic.ID, Title: "Photosynthesis practice", Questions: sampleQuestions(60)}
	require.NoError(t, s.Quizzes().Create(ctx, quiz))
	assert.Equal(t, content.QuizPractice, quiz.QuizType)

	got, err := s.Quizzes().Get(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 60)
	assert.Equal(t, 1, got.Questions[0].DisplayOrder)
	assert.Equal(t, 60, got.Questions[59].DisplayOrder)
	assert.Equal(t, "b", got.Questions[0].Options["B"])
	assert.Equal(t, []string{"plants"}, got.Questions[0].Tags)
	require.NotNil(t, got.Questions[0].QualityScore)
	assert.InDelta(t, 0.9, *got.Questions[0].QualityScore, 1e-9)
	assert.NotNil(t, got.Questions[0].GeneratedAt)

	list, total, err := s.Quizzes().List(ctx, QuizFilter{TopicID: topic.ID, PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)

	require.NoError(t, s.Quizzes().SetPublished(ctx, quiz.ID, true))
	list, total, err = s.Quizzes().List(ctx, QuizFilter{TopicID: topic.ID, PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.True(t, list[0].Published)

	texts, err := s.Quizzes().RecentQuestionTexts(ctx, topic.ID, 5)
	require.NoError(t, err)
	assert.Len(t, texts, 5)

	n, err := s.Quizzes().CountGeneratedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 60, n)
	n, err = s.Quizzes().CountGeneratedSince(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	scores, err := s.Quizzes().QualityScoresSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, scores, 60)

	require.NoError(t, s.Quizzes().AddQuestions(ctx, quiz.ID, sampleQuestions(2)))
	qs, err := s.Quizzes().Questions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, qs, 62)
	assert.Equal(t, 62, qs[61].DisplayOrder)

	require.NoError(t, s.Quizzes().Delete(ctx, quiz.ID))
	_, err = s.Quizzes().Get(ctx, quiz.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuizzes_CreateRollsBackOnFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	quiz := &content.Quiz{TopicID: "no-such-topic", Title: "Orphan", Questions: sampleQuestions(1)}
	require.Error(t, s.Quizzes().Create(ctx, quiz))

	_, total, err := s.Quizzes().List(ctx, QuizFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestQuestionCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, t1 := seedTopic(t, s, "Physics", "Forces")
	_, t2 := seedTopic(t, s, "Physics", "Waves")

	require.NoError(t, s.Quizzes().Create(ctx, &content.Quiz{TopicID: t1.ID, Title: "A", Questions: sampleQuestions(3)}))
	require.NoError(t, s.Quizzes().Create(ctx, &content.Quiz{TopicID: t1.ID, Title: "B", Questions: sampleQuestions(2)}))

	counts, err := s.QuestionCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	byID := map[string]TopicQuestionCount{}
	for _, c := range counts {
		byID[c.TopicID] = c
	}
	assert.Equal(t, 5, byID[t1.ID].QuestionCount)
	assert.Equal(t, 0, byID[t2.ID].QuestionCount)
	assert.Equal(t, "Physics", byID[t2.ID].SubjectName)
	assert.Equal(t, "Waves", byID[t2.ID].TopicTitle)
}

func TestFlashcards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, topic := seedTopic(t, s, "Chemistry", "Bonding")

	cards := []content.Flashcard{
		{TopicID: topic.ID, Front: "Ionic bond", Back: "Transfer of electrons", Tags: []string{"bonding"}},
		{TopicID: topic.ID, Front: "Covalent bond", Back: "Sharing of electrons"},
	}
	require.NoError(t, s.Flashcards().CreateMany(ctx, cards))
	assert.NotEmpty(t, cards[0].ID)

	got, err := s.Flashcards().ListByTopic(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "basic", got[0].CardType)
	assert.Equal(t, 3, got[0].DifficultyLevel)

	require.NoError(t, s.Flashcards().Delete(ctx, cards[0].ID))
	_, err = s.Flashcards().Get(ctx, cards[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExamBankAndPapers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sub, topic := seedTopic(t, s, "Mathematics", "Algebra")

	bank := []content.ExamQuestion{
		{SubjectID: sub.ID, TopicID: topic.ID, QuestionText: "Solve the equation 2x + 3 = 11 for x.", Marks: 2, DifficultyLevel: 1, ModelAnswer: "x = 4 by subtraction"},
		{SubjectID: sub.ID, TopicID: topic.ID, QuestionText: "Factorise fully the expression x^2 - 9.", Marks: 3, DifficultyLevel: 3, ModelAnswer: "(x - 3)(x + 3) difference"},
		{SubjectID: sub.ID, QuestionText: "Prove that the sum of two odd numbers is even.", Marks: 5, DifficultyLevel: 5, ModelAnswer: "2a+1 + 2b+1 = 2(a+b+1)"},
	}
	require.NoError(t, s.ExamQuestions().CreateMany(ctx, bank))

	all, err := s.ExamQuestions().Candidates(ctx, CandidateFilter{SubjectID: sub.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := s.ExamQuestions().Candidates(ctx, CandidateFilter{
		SubjectID:     sub.ID,
		TopicIDs:      []string{topic.ID},
		MaxDifficulty: 3,
		ExcludeIDs:    []string{bank[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, bank[1].ID, filtered[0].ID)
	assert.Equal(t, content.Structured, filtered[0].QuestionType)

	paper := &content.ExamPaper{
		SubjectID:       sub.ID,
		Title:           "Algebra paper",
		DurationMinutes: 60,
		TotalMarks:      8,
		Questions: []content.ExamQuestion{
			bank[2],
			bank[0],
			{QuestionText: "Expand and simplify (x + 2)(x + 5).", Marks: 1, ModelAnswer: "x^2 + 7x + 10"},
		},
	}
	require.NoError(t, s.ExamPapers().Create(ctx, paper))
	assert.NotEmpty(t, paper.Questions[2].ID)

	got, err := s.ExamPapers().Get(ctx, paper.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 3)
	assert.Equal(t, bank[2].ID, got.Questions[0].ID)
	assert.Equal(t, 1, got.Questions[0].Order)
	assert.Equal(t, 3, got.Questions[2].Order)
	assert.Equal(t, sub.ID, got.Questions[2].SubjectID)

	papers, err := s.ExamPapers().List(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, papers, 1)

	require.NoError(t, s.ExamPapers().Delete(ctx, paper.ID))
	_, err = s.ExamPapers().Get(ctx, paper.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProgress_QuizAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, topic := seedTopic(t, s, "Biology", "Respiration")
	u := &content.User{Email: "p@example.com", PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))
	quiz := &content.Quiz{TopicID: topic.ID, Title: "Q", Questions: sampleQuestions(4)}
	require.NoError(t, s.Quizzes().Create(ctx, quiz))

	p, err := s.Progress().RecordQuizAttempt(ctx, &QuizAttempt{UserID: u.ID, QuizID: quiz.ID, TopicID: topic.ID, Score: 2, MaxScore: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Attempts)
	assert.InDelta(t, 50, p.AverageScore, 1e-9)

	p, err = s.Progress().RecordQuizAttempt(ctx, &QuizAttempt{UserID: u.ID, QuizID: quiz.ID, TopicID: topic.ID, Score: 4, MaxScore: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Attempts)
	assert.InDelta(t, 75, p.AverageScore, 1e-9)
	assert.InDelta(t, 100, p.BestScore, 1e-9)

	stored, err := s.Progress().GetTopicProgress(ctx, u.ID, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Attempts)

	all, err := s.Progress().ListUserProgress(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProgress_FlashcardReviews(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, topic := seedTopic(t, s, "Biology", "Genetics")
	u := &content.User{Email: "f@example.com", PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))
	cards := []content.Flashcard{{TopicID: topic.ID, Front: "Allele", Back: "Variant of a gene"}}
	require.NoError(t, s.Flashcards().CreateMany(ctx, cards))

	_, err := s.Progress().GetFlashcardReview(ctx, u.ID, cards[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	reviewed := time.Now().UTC().Add(-48 * time.Hour)
	st, err := spacedrep.Review(spacedrep.NewState(cards[0].ID, reviewed), 4, reviewed)
	require.NoError(t, err)
	require.NoError(t, s.Progress().UpsertFlashcardReview(ctx, u.ID, st))

	due, err := s.Progress().DueFlashcards(ctx, u.ID, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Allele", due[0].Flashcard.Front)
	assert.Equal(t, 1, due[0].Review.Repetitions)

	st, err = spacedrep.Review(st, 5, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.Progress().UpsertFlashcardReview(ctx, u.ID, st))
	due, err = s.Progress().DueFlashcards(ctx, u.ID, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRawContent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.RawContent()

	rc := &RawContent{SourceURL: "https://example.com/a", Subject: "Physics", Content: "Newton's laws", ContentHash: "abc", Metadata: map[string]any{"title": "Laws"}}
	require.NoError(t, repo.Insert(ctx, rc))
	assert.Equal(t, RawPending, rc.Status)
	assert.Equal(t, len("Newton's laws"), rc.ContentSize)

	dup := &RawContent{SourceURL: "https://example.com/b", Content: "x", ContentHash: "abc"}
	assert.ErrorIs(t, repo.Insert(ctx, dup), apperrors.ErrConflict)

	exists, err := repo.ExistsByHash(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.UpdateStatus(ctx, rc.ID, RawValidated, "ok"))
	validated, err := repo.ListByStatus(ctx, RawValidated, 10)
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, "Laws", validated[0].Metadata["title"])
	assert.Equal(t, "ok", validated[0].ValidationNotes)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[RawValidated])
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.Runs().LastByKind(ctx, RunScheduled)
	require.NoError(t, err)
	assert.Nil(t, last)

	run := &Run{Kind: RunScheduled, Subject: "Physics"}
	require.NoError(t, s.Runs().Create(ctx, run))
	assert.Equal(t, RunRunning, run.Status)

	run.Status = RunCompleted
	run.QuestionsGenerated = 12
	run.Errors = []string{"topic x: boom"}
	require.NoError(t, s.Runs().Finish(ctx, run))

	last, err = s.Runs().LastByKind(ctx, RunScheduled)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 12, last.QuestionsGenerated)
	assert.Equal(t, []string{"topic x: boom"}, last.Errors)
	assert.NotNil(t, last.FinishedAt)

	n, err := s.Runs().CountSince(ctx, RunScheduled, RunCompleted, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Subjects().Create(ctx, &content.Subject{Name: "History"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = s.Subjects().GetByName(ctx, "History")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.Subjects().Create(ctx, &content.Subject{Name: "Geography"})
	}))
	_, err = s.Subjects().GetByName(ctx, "Geography")
	assert.NoError(t, err)
}

func TestDefaultDBPath_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	want := dir + "/nested/test.db"
	t.Setenv("IGCSE_DB", want)
	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.DirExists(t, dir+"/nested")
}
