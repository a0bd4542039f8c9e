package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
)

var topicColumns = []string{
	"id", "subject_id", "chapter_id", "title", "slug", "description", "syllabus_code",
	"difficulty_level", "learning_objectives", "display_order", "created_at",
}

type topicRow struct {
	ID                 string         `sql:"id"`
	SubjectID          string         `sql:"subject_id"`
	ChapterID          sql.NullString `sql:"chapter_id"`
	Title              string         `sql:"title"`
	Slug               string         `sql:"slug"`
	Description        string         `sql:"description"`
	SyllabusCode       string         `sql:"syllabus_code"`
	DifficultyLevel    int            `sql:"difficulty_level"`
	LearningObjectives string         `sql:"learning_objectives"`
	DisplayOrder       int            `sql:"display_order"`
	CreatedAt          time.Time      `sql:"created_at"`
}

func (r topicRow) toTopic() content.Topic {
	return content.Topic{
		ID:                 r.ID,
		SubjectID:          r.SubjectID,
		ChapterID:          r.ChapterID.String,
		Title:              r.Title,
		Slug:               r.Slug,
		Description:        r.Description,
		SyllabusCode:       r.SyllabusCode,
		DifficultyLevel:    r.DifficultyLevel,
		LearningObjectives: fromJSON[[]string](r.LearningObjectives),
		DisplayOrder:       r.DisplayOrder,
		CreatedAt:          r.CreatedAt,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// TopicFilter narrows topic listings.
type TopicFilter struct {
	SubjectID string
	ChapterID string
	Page
}

// TopicRepo stores topics.
type TopicRepo struct {
	c conn
}

// Create inserts t. The slug defaults to the slugified title.
func (r *TopicRepo) Create(ctx context.Context, t *content.Topic) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Slug == "" {
		t.Slug = content.Slugify(t.Title)
	}
	t.DifficultyLevel = content.ClampDifficulty(t.DifficultyLevel)
	t.CreatedAt = now()
	q := r.c.b().Insert("topics").
		Columns(topicColumns...).
		Values(t.ID, t.SubjectID, nullable(t.ChapterID), t.Title, t.Slug, t.Description, t.SyllabusCode,
			t.DifficultyLevel, toJSON(orEmpty(t.LearningObjectives)), t.DisplayOrder, t.CreatedAt)
	return translate(r.c.exec(ctx, q), "topic")
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *TopicRepo) find(ctx context.Context, p *entsql.Predicate, limit, offset int) ([]content.Topic, error) {
	var rows []topicRow
	sel := r.c.b().Select(topicColumns...).From(r.c.table("topics")).OrderBy("display_order", "title")
	if p != nil {
		sel.Where(p)
	}
	if limit > 0 {
		sel.Limit(limit).Offset(offset)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	out := make([]content.Topic, len(rows))
	for i, row := range rows {
		out[i] = row.toTopic()
	}
	return out, nil
}

func (r *TopicRepo) Get(ctx context.Context, id string) (*content.Topic, error) {
	topics, err := r.find(ctx, entsql.EQ("id", id), 0, 0)
	if err != nil {
		return nil, err
	}
	return one(topics, "topic", id)
}

// GetBySlug finds a topic by slug within a subject.
func (r *TopicRepo) GetBySlug(ctx context.Context, subjectID, slug string) (*content.Topic, error) {
	topics, err := r.find(ctx, entsql.And(entsql.EQ("subject_id", subjectID), entsql.EQ("slug", slug)), 0, 0)
	if err != nil {
		return nil, err
	}
	return one(topics, "topic", slug)
}

// List returns one page of topics and the total matching count.
func (r *TopicRepo) List(ctx context.Context, f TopicFilter) ([]content.Topic, int, error) {
	var preds []*entsql.Predicate
	if f.SubjectID != "" {
		preds = append(preds, entsql.EQ("subject_id", f.SubjectID))
	}
	if f.ChapterID != "" {
		preds = append(preds, entsql.EQ("chapter_id", f.ChapterID))
	}
	var p *entsql.Predicate
	if len(preds) > 0 {
		p = entsql.And(preds...)
	}

	count := r.c.b().Select(entsql.Count("*")).From(r.c.table("topics"))
	if p != nil {
		count.Where(p)
	}
	total, err := r.c.queryInt(ctx, count)
	if err != nil {
		return nil, 0, fmt.Errorf("count topics: %w", err)
	}

	limit, offset := f.normalize()
	topics, err := r.find(ctx, p, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

func (r *TopicRepo) Update(ctx context.Context, t *content.Topic) error {
	if t.Slug == "" {
		t.Slug = content.Slugify(t.Title)
	}
	n, err := r.c.execAffected(ctx, r.c.b().Update("topics").
		Set("chapter_id", nullable(t.ChapterID)).
		Set("title", t.Title).
		Set("slug", t.Slug).
		Set("description", t.Description).
		Set("syllabus_code", t.SyllabusCode).
		Set("difficulty_level", content.ClampDifficulty(t.DifficultyLevel)).
		Set("learning_objectives", toJSON(orEmpty(t.LearningObjectives))).
		Set("display_order", t.DisplayOrder).
		Where(entsql.EQ("id", t.ID)))
	if err != nil {
		return translate(err, "topic")
	}
	if n == 0 {
		return notFound("topic", t.ID)
	}
	return nil
}

func (r *TopicRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "topics", "topic", id)
}

type topicInfoRow struct {
	ID                 string `sql:"id"`
	Title              string `sql:"title"`
	SubjectID          string `sql:"subject_id"`
	SubjectName        string `sql:"subject_name"`
	DifficultyLevel    int    `sql:"difficulty_level"`
	SyllabusCode       string `sql:"syllabus_code"`
	Description        string `sql:"description"`
	LearningObjectives string `sql:"learning_objectives"`
}

// GetInfo returns the topic joined with its subject name.
func (r *TopicRepo) GetInfo(ctx context.Context, id string) (*content.TopicInfo, error) {
	t := r.c.table("topics").As("t")
	s := r.c.table("subjects").As("s")
	sel := r.c.b().Select(
		t.C("id"), t.C("title"), t.C("subject_id"),
		entsql.As(s.C("name"), "subject_name"),
		t.C("difficulty_level"), t.C("syllabus_code"), t.C("description"), t.C("learning_objectives"),
	).From(t).Join(s).On(t.C("subject_id"), s.C("id")).
		Where(entsql.EQ(t.C("id"), id))

	var rows []topicInfoRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get topic info: %w", err)
	}
	row, err := one(rows, "topic", id)
	if err != nil {
		return nil, err
	}
	return &content.TopicInfo{
		ID:                 row.ID,
		Title:              row.Title,
		SubjectID:          row.SubjectID,
		SubjectName:        row.SubjectName,
		DifficultyLevel:    row.DifficultyLevel,
		SyllabusCode:       row.SyllabusCode,
		Description:        row.Description,
		LearningObjectives: fromJSON[[]string](row.LearningObjectives),
	}, nil
}

// TopicQuestionCount is the number of stored quiz questions for one topic.
type TopicQuestionCount struct {
	TopicID         string `sql:"topic_id"`
	TopicTitle      string `sql:"topic_title"`
	SubjectID       string `sql:"subject_id"`
	SubjectName     string `sql:"subject_name"`
	DifficultyLevel int    `sql:"difficulty_level"`
	SyllabusCode    string `sql:"syllabus_code"`
	QuestionCount   int    `sql:"question_count"`
}

// QuestionCounts reports quiz question counts for every topic, including
// topics with none.
func (s *Store) QuestionCounts(ctx context.Context) ([]TopicQuestionCount, error) {
	return questionCounts(ctx, s.c)
}

func questionCounts(ctx context.Context, c conn) ([]TopicQuestionCount, error) {
	t := c.table("topics").As("t")
	sub := c.table("subjects").As("s")
	qz := c.table("quizzes").As("qz")
	qq := c.table("quiz_questions").As("qq")
	sel := c.b().Select(
		entsql.As(t.C("id"), "topic_id"),
		entsql.As(t.C("title"), "topic_title"),
		t.C("subject_id"),
		entsql.As(sub.C("name"), "subject_name"),
		t.C("difficulty_level"),
		t.C("syllabus_code"),
		entsql.As(entsql.Count(qq.C("id")), "question_count"),
	).From(t).
		Join(sub).On(t.C("subject_id"), sub.C("id")).
		LeftJoin(qz).On(qz.C("topic_id"), t.C("id")).
		LeftJoin(qq).On(qq.C("quiz_id"), qz.C("id")).
		GroupBy(t.C("id"), t.C("title"), t.C("subject_id"), sub.C("name"), t.C("difficulty_level"), t.C("syllabus_code")).
		OrderBy(sub.C("name"), t.C("title"))

	var out []TopicQuestionCount
	if err := c.query(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("question counts: %w", err)
	}
	return out, nil
}
