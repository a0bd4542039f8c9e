package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
)

// questionInsertBatch bounds the rows per multi-row INSERT.
const questionInsertBatch = 50

var quizColumns = []string{
	"id", "topic_id", "title", "description", "quiz_type", "difficulty_level", "time_limit_minutes",
	"randomize_questions", "show_answers", "published", "generation_method", "generation_model", "created_at",
}

type quizRow struct {
	ID                 string    `sql:"id"`
	TopicID            string    `sql:"topic_id"`
	Title              string    `sql:"title"`
	Description        string    `sql:"description"`
	QuizType           string    `sql:"quiz_type"`
	DifficultyLevel    int       `sql:"difficulty_level"`
	TimeLimitMinutes   int       `sql:"time_limit_minutes"`
	RandomizeQuestions bool      `sql:"randomize_questions"`
	ShowAnswers        bool      `sql:"show_answers"`
	Published          bool      `sql:"published"`
	GenerationMethod   string    `sql:"generation_method"`
	GenerationModel    string    `sql:"generation_model"`
	CreatedAt          time.Time `sql:"created_at"`
}

func (r quizRow) toQuiz() content.Quiz {
	return content.Quiz{
		ID:                 r.ID,
		TopicID:            r.TopicID,
		Title:              r.Title,
		Description:        r.Description,
		QuizType:           content.QuizType(r.QuizType),
		DifficultyLevel:    r.DifficultyLevel,
		TimeLimitMinutes:   r.TimeLimitMinutes,
		RandomizeQuestions: r.RandomizeQuestions,
		ShowAnswers:        r.ShowAnswers,
		Published:          r.Published,
		GenerationMethod:   content.GenerationMethod(r.GenerationMethod),
		GenerationModel:    r.GenerationModel,
		CreatedAt:          r.CreatedAt,
	}
}

var questionColumns = []string{
	"id", "quiz_id", "question_text", "question_type", "options", "correct_answer", "explanation",
	"difficulty_level", "points", "tags", "display_order", "generation_method", "generation_model",
	"generated_at", "quality_score", "created_at",
}

type questionRow struct {
	ID               string          `sql:"id"`
	QuizID           string          `sql:"quiz_id"`
	QuestionText     string          `sql:"question_text"`
	QuestionType     string          `sql:"question_type"`
	Options          string          `sql:"options"`
	CorrectAnswer    string          `sql:"correct_answer"`
	Explanation      string          `sql:"explanation"`
	DifficultyLevel  int             `sql:"difficulty_level"`
	Points           int             `sql:"points"`
	Tags             string          `sql:"tags"`
	DisplayOrder     int             `sql:"display_order"`
	GenerationMethod string          `sql:"generation_method"`
	GenerationModel  string          `sql:"generation_model"`
	GeneratedAt      sql.NullTime    `sql:"generated_at"`
	QualityScore     sql.NullFloat64 `sql:"quality_score"`
	CreatedAt        time.Time       `sql:"created_at"`
}

func (r questionRow) toQuestion() content.QuizQuestion {
	q := content.QuizQuestion{
		ID:               r.ID,
		QuizID:           r.QuizID,
		QuestionText:     r.QuestionText,
		QuestionType:     content.QuestionType(r.QuestionType),
		Options:          fromJSON[map[string]string](r.Options),
		CorrectAnswer:    r.CorrectAnswer,
		Explanation:      r.Explanation,
		DifficultyLevel:  r.DifficultyLevel,
		Points:           r.Points,
		Tags:             fromJSON[[]string](r.Tags),
		DisplayOrder:     r.DisplayOrder,
		GenerationMethod: content.GenerationMethod(r.GenerationMethod),
		GenerationModel:  r.GenerationModel,
		CreatedAt:        r.CreatedAt,
	}
	if r.GeneratedAt.Valid {
		t := r.GeneratedAt.Time
		q.GeneratedAt = &t
	}
	if r.QualityScore.Valid {
		s := r.QualityScore.Float64
		q.QualityScore = &s
	}
	return q
}

// QuizFilter narrows quiz listings.
type QuizFilter struct {
	TopicID string
	// PublishedOnly hides drafts.
	PublishedOnly bool
	Page
}

// QuizRepo stores quizzes and their questions.
type QuizRepo struct {
	c conn
}

// Create inserts the quiz and its questions in one transaction.
func (r *QuizRepo) Create(ctx context.Context, q *content.Quiz) error {
	if q.ID == "" {
		q.ID = newID()
	}
	if q.QuizType == "" {
		q.QuizType = content.QuizPractice
	}
	if q.GenerationMethod == "" {
		q.GenerationMethod = content.MethodManual
	}
	q.DifficultyLevel = content.ClampDifficulty(q.DifficultyLevel)
	q.CreatedAt = now()

	return r.c.withTx(ctx, func(c conn) error {
		ins := c.b().Insert("quizzes").
			Columns(quizColumns...).
			Values(q.ID, q.TopicID, q.Title, q.Description, string(q.QuizType), q.DifficultyLevel,
				q.TimeLimitMinutes, q.RandomizeQuestions, q.ShowAnswers, q.Published,
				string(q.GenerationMethod), q.GenerationModel, q.CreatedAt)
		if err := c.exec(ctx, ins); err != nil {
			return translate(err, "quiz")
		}
		return insertQuestions(ctx, c, q.ID, q.Questions)
	})
}

// AddQuestions appends questions to an existing quiz after its current ones.
func (r *QuizRepo) AddQuestions(ctx context.Context, quizID string, questions []content.QuizQuestion) error {
	return r.c.withTx(ctx, func(c conn) error {
		offset, err := c.queryInt(ctx, c.b().Select(entsql.Count("*")).
			From(c.table("quiz_questions")).
			Where(entsql.EQ("quiz_id", quizID)))
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		for i := range questions {
			questions[i].DisplayOrder = offset + i + 1
		}
		return insertQuestions(ctx, c, quizID, questions)
	})
}

func insertQuestions(ctx context.Context, c conn, quizID string, questions []content.QuizQuestion) error {
	created := now()
	for start := 0; start < len(questions); start += questionInsertBatch {
		end := min(start+questionInsertBatch, len(questions))
		ins := c.b().Insert("quiz_questions").Columns(questionColumns...)
		for i := start; i < end; i++ {
			qq := &questions[i]
			if qq.ID == "" {
				qq.ID = newID()
			}
			qq.QuizID = quizID
			if qq.DisplayOrder == 0 {
				qq.DisplayOrder = i + 1
			}
			if qq.GenerationMethod == "" {
				qq.GenerationMethod = content.MethodManual
			}
			if qq.Points == 0 {
				qq.Points = 1
			}
			qq.CreatedAt = created
			var generatedAt, score any
			if qq.GeneratedAt != nil {
				generatedAt = qq.GeneratedAt.UTC()
			}
			if qq.QualityScore != nil {
				score = *qq.QualityScore
			}
			ins.Values(qq.ID, quizID, qq.QuestionText, string(qq.QuestionType), toJSON(orEmptyMap(qq.Options)),
				qq.CorrectAnswer, qq.Explanation, content.ClampDifficulty(qq.DifficultyLevel), qq.Points,
				toJSON(orEmpty(qq.Tags)), qq.DisplayOrder, string(qq.GenerationMethod), qq.GenerationModel,
				generatedAt, score, qq.CreatedAt)
		}
		if err := c.exec(ctx, ins); err != nil {
			return translate(err, "quiz question")
		}
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func (r *QuizRepo) find(ctx context.Context, p *entsql.Predicate, limit, offset int) ([]content.Quiz, error) {
	var rows []quizRow
	sel := r.c.b().Select(quizColumns...).From(r.c.table("quizzes")).OrderBy(entsql.Desc("created_at"))
	if p != nil {
		sel.Where(p)
	}
	if limit > 0 {
		sel.Limit(limit).Offset(offset)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	out := make([]content.Quiz, len(rows))
	for i, row := range rows {
		out[i] = row.toQuiz()
	}
	return out, nil
}

// Get returns the quiz with its questions in display order.
func (r *QuizRepo) Get(ctx context.Context, id string) (*content.Quiz, error) {
	quizzes, err := r.find(ctx, entsql.EQ("id", id), 0, 0)
	if err != nil {
		return nil, err
	}
	q, err := one(quizzes, "quiz", id)
	if err != nil {
		return nil, err
	}
	q.Questions, err = r.Questions(ctx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Questions lists the questions of a quiz in display order.
func (r *QuizRepo) Questions(ctx context.Context, quizID string) ([]content.QuizQuestion, error) {
	var rows []questionRow
	sel := r.c.b().Select(questionColumns...).From(r.c.table("quiz_questions")).
		Where(entsql.EQ("quiz_id", quizID)).
		OrderBy("display_order")
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query quiz questions: %w", err)
	}
	out := make([]content.QuizQuestion, len(rows))
	for i, row := range rows {
		out[i] = row.toQuestion()
	}
	return out, nil
}

// List returns one page of quizzes without questions, plus the total count.
func (r *QuizRepo) List(ctx context.Context, f QuizFilter) ([]content.Quiz, int, error) {
	var preds []*entsql.Predicate
	if f.TopicID != "" {
		preds = append(preds, entsql.EQ("topic_id", f.TopicID))
	}
	if f.PublishedOnly {
		preds = append(preds, entsql.EQ("published", true))
	}
	var p *entsql.Predicate
	if len(preds) > 0 {
		p = entsql.And(preds...)
	}

	count := r.c.b().Select(entsql.Count("*")).From(r.c.table("quizzes"))
	if p != nil {
		count.Where(p)
	}
	total, err := r.c.queryInt(ctx, count)
	if err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}
	limit, offset := f.normalize()
	quizzes, err := r.find(ctx, p, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return quizzes, total, nil
}

func (r *QuizRepo) SetPublished(ctx context.Context, id string, published bool) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("quizzes").
		Set("published", published).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("publish quiz: %w", err)
	}
	if n == 0 {
		return notFound("quiz", id)
	}
	return nil
}

func (r *QuizRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "quizzes", "quiz", id)
}

type textRow struct {
	Text string `sql:"question_text"`
}

// RecentQuestionTexts returns up to n of the newest question texts stored for
// a topic across all of its quizzes.
func (r *QuizRepo) RecentQuestionTexts(ctx context.Context, topicID string, n int) ([]string, error) {
	qq := r.c.table("quiz_questions").As("qq")
	qz := r.c.table("quizzes").As("qz")
	sel := r.c.b().Select(qq.C("question_text")).
		From(qq).
		Join(qz).On(qq.C("quiz_id"), qz.C("id")).
		Where(entsql.EQ(qz.C("topic_id"), topicID)).
		OrderBy(entsql.Desc(qq.C("created_at")))
	if n > 0 {
		sel.Limit(n)
	}
	var rows []textRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("recent question texts: %w", err)
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Text
	}
	return out, nil
}

// CountGeneratedSince counts LLM-generated quiz questions created at or after
// since.
func (r *QuizRepo) CountGeneratedSince(ctx context.Context, since time.Time) (int, error) {
	n, err := r.c.queryInt(ctx, r.c.b().Select(entsql.Count("*")).
		From(r.c.table("quiz_questions")).
		Where(entsql.And(
			entsql.GTE("created_at", since.UTC()),
			entsql.NEQ("generation_method", string(content.MethodManual)),
		)))
	if err != nil {
		return 0, fmt.Errorf("count generated questions: %w", err)
	}
	return n, nil
}

// CountQuestions counts every stored quiz question.
func (r *QuizRepo) CountQuestions(ctx context.Context) (int, error) {
	n, err := r.c.queryInt(ctx, r.c.b().Select(entsql.Count("*")).From(r.c.table("quiz_questions")))
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

type scoreRow struct {
	Score float64 `sql:"quality_score"`
}

// QualityScoresSince returns the quality scores of questions created at or
// after since. Unscored questions are skipped.
func (r *QuizRepo) QualityScoresSince(ctx context.Context, since time.Time) ([]float64, error) {
	sel := r.c.b().Select("quality_score").From(r.c.table("quiz_questions")).
		Where(entsql.And(
			entsql.GTE("created_at", since.UTC()),
			entsql.NotNull("quality_score"),
		))
	var rows []scoreRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("quality scores: %w", err)
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row.Score
	}
	return out, nil
}
