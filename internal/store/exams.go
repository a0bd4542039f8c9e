package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
)

var examQuestionColumns = []string{
	"id", "subject_id", "topic_id", "question_text", "question_type", "marks",
	"difficulty_level", "model_answer", "marking_scheme", "created_at",
}

type examQuestionRow struct {
	ID              string         `sql:"id"`
	SubjectID       string         `sql:"subject_id"`
	TopicID         sql.NullString `sql:"topic_id"`
	QuestionText    string         `sql:"question_text"`
	QuestionType    string         `sql:"question_type"`
	Marks           int            `sql:"marks"`
	DifficultyLevel int            `sql:"difficulty_level"`
	ModelAnswer     string         `sql:"model_answer"`
	MarkingScheme   string         `sql:"marking_scheme"`
	CreatedAt       time.Time      `sql:"created_at"`
}

func (r examQuestionRow) toQuestion() content.ExamQuestion {
	return content.ExamQuestion{
		ID:              r.ID,
		SubjectID:       r.SubjectID,
		TopicID:         r.TopicID.String,
		QuestionText:    r.QuestionText,
		QuestionType:    content.QuestionType(r.QuestionType),
		Marks:           r.Marks,
		DifficultyLevel: r.DifficultyLevel,
		ModelAnswer:     r.ModelAnswer,
		MarkingScheme:   r.MarkingScheme,
		CreatedAt:       r.CreatedAt,
	}
}

// CandidateFilter selects bank questions for paper assembly.
type CandidateFilter struct {
	SubjectID     string
	TopicIDs      []string
	MinDifficulty int
	MaxDifficulty int
	ExcludeIDs    []string
}

// ExamQuestionRepo is the exam question bank.
type ExamQuestionRepo struct {
	c conn
}

// CreateMany adds questions to the bank.
func (r *ExamQuestionRepo) CreateMany(ctx context.Context, questions []content.ExamQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return r.c.withTx(ctx, func(c conn) error {
		return insertExamQuestions(ctx, c, questions)
	})
}

func insertExamQuestions(ctx context.Context, c conn, questions []content.ExamQuestion) error {
	created := now()
	for start := 0; start < len(questions); start += questionInsertBatch {
		end := min(start+questionInsertBatch, len(questions))
		ins := c.b().Insert("exam_questions").Columns(examQuestionColumns...)
		for i := start; i < end; i++ {
			q := &questions[i]
			if q.ID == "" {
				q.ID = newID()
			}
			if q.QuestionType == "" {
				q.QuestionType = content.Structured
			}
			q.DifficultyLevel = content.ClampDifficulty(q.DifficultyLevel)
			q.CreatedAt = created
			ins.Values(q.ID, q.SubjectID, nullable(q.TopicID), q.QuestionText, string(q.QuestionType), q.Marks,
				q.DifficultyLevel, q.ModelAnswer, q.MarkingScheme, q.CreatedAt)
		}
		if err := c.exec(ctx, ins); err != nil {
			return translate(err, "exam question")
		}
	}
	return nil
}

func (r *ExamQuestionRepo) Get(ctx context.Context, id string) (*content.ExamQuestion, error) {
	var rows []examQuestionRow
	sel := r.c.b().Select(examQuestionColumns...).From(r.c.table("exam_questions")).Where(entsql.EQ("id", id))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get exam question: %w", err)
	}
	row, err := one(rows, "exam question", id)
	if err != nil {
		return nil, err
	}
	q := row.toQuestion()
	return &q, nil
}

// Candidates returns bank questions matching f, ordered by id so callers
// that shuffle with a seed get reproducible input.
func (r *ExamQuestionRepo) Candidates(ctx context.Context, f CandidateFilter) ([]content.ExamQuestion, error) {
	preds := []*entsql.Predicate{entsql.EQ("subject_id", f.SubjectID)}
	if len(f.TopicIDs) > 0 {
		preds = append(preds, entsql.In("topic_id", anys(f.TopicIDs)...))
	}
	if f.MinDifficulty > 0 {
		preds = append(preds, entsql.GTE("difficulty_level", f.MinDifficulty))
	}
	if f.MaxDifficulty > 0 {
		preds = append(preds, entsql.LTE("difficulty_level", f.MaxDifficulty))
	}
	if len(f.ExcludeIDs) > 0 {
		preds = append(preds, entsql.NotIn("id", anys(f.ExcludeIDs)...))
	}
	sel := r.c.b().Select(examQuestionColumns...).From(r.c.table("exam_questions")).
		Where(entsql.And(preds...)).
		OrderBy("id")
	var rows []examQuestionRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	out := make([]content.ExamQuestion, len(rows))
	for i, row := range rows {
		out[i] = row.toQuestion()
	}
	return out, nil
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

var examPaperColumns = []string{
	"id", "subject_id", "topic_id", "title", "description", "duration_minutes", "total_marks",
	"generation_method", "generation_model", "created_at",
}

type examPaperRow struct {
	ID               string         `sql:"id"`
	SubjectID        string         `sql:"subject_id"`
	TopicID          sql.NullString `sql:"topic_id"`
	Title            string         `sql:"title"`
	Description      string         `sql:"description"`
	DurationMinutes  int            `sql:"duration_minutes"`
	TotalMarks       int            `sql:"total_marks"`
	GenerationMethod string         `sql:"generation_method"`
	GenerationModel  string         `sql:"generation_model"`
	CreatedAt        time.Time      `sql:"created_at"`
}

func (r examPaperRow) toPaper() content.ExamPaper {
	return content.ExamPaper{
		ID:               r.ID,
		SubjectID:        r.SubjectID,
		TopicID:          r.TopicID.String,
		Title:            r.Title,
		Description:      r.Description,
		DurationMinutes:  r.DurationMinutes,
		TotalMarks:       r.TotalMarks,
		GenerationMethod: content.GenerationMethod(r.GenerationMethod),
		GenerationModel:  r.GenerationModel,
		CreatedAt:        r.CreatedAt,
	}
}

// ExamPaperRepo stores papers and their ordered question links.
type ExamPaperRepo struct {
	c conn
}

// Create inserts the paper and one junction row per question. Questions
// without an ID are added to the bank first. Order defaults to position.
func (r *ExamPaperRepo) Create(ctx context.Context, p *content.ExamPaper) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.GenerationMethod == "" {
		p.GenerationMethod = content.MethodManual
	}
	p.CreatedAt = now()

	var fresh []content.ExamQuestion
	var freshIdx []int
	for i := range p.Questions {
		if p.Questions[i].Order == 0 {
			p.Questions[i].Order = i + 1
		}
		if p.Questions[i].SubjectID == "" {
			p.Questions[i].SubjectID = p.SubjectID
		}
		if p.Questions[i].ID == "" {
			fresh = append(fresh, p.Questions[i])
			freshIdx = append(freshIdx, i)
		}
	}

	return r.c.withTx(ctx, func(c conn) error {
		if len(fresh) > 0 {
			if err := insertExamQuestions(ctx, c, fresh); err != nil {
				return err
			}
			for j, i := range freshIdx {
				p.Questions[i].ID = fresh[j].ID
				p.Questions[i].CreatedAt = fresh[j].CreatedAt
				p.Questions[i].DifficultyLevel = fresh[j].DifficultyLevel
				p.Questions[i].QuestionType = fresh[j].QuestionType
			}
		}
		ins := c.b().Insert("exam_papers").
			Columns(examPaperColumns...).
			Values(p.ID, p.SubjectID, nullable(p.TopicID), p.Title, p.Description, p.DurationMinutes,
				p.TotalMarks, string(p.GenerationMethod), p.GenerationModel, p.CreatedAt)
		if err := c.exec(ctx, ins); err != nil {
			return translate(err, "exam paper")
		}
		if len(p.Questions) == 0 {
			return nil
		}
		links := c.b().Insert("exam_paper_questions").Columns("paper_id", "question_id", "question_order")
		for _, q := range p.Questions {
			links.Values(p.ID, q.ID, q.Order)
		}
		if err := c.exec(ctx, links); err != nil {
			return translate(err, "exam paper question")
		}
		return nil
	})
}

func (r *ExamPaperRepo) find(ctx context.Context, p *entsql.Predicate) ([]content.ExamPaper, error) {
	var rows []examPaperRow
	sel := r.c.b().Select(examPaperColumns...).From(r.c.table("exam_papers")).OrderBy(entsql.Desc("created_at"))
	if p != nil {
		sel.Where(p)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query exam papers: %w", err)
	}
	out := make([]content.ExamPaper, len(rows))
	for i, row := range rows {
		out[i] = row.toPaper()
	}
	return out, nil
}

type paperQuestionRow struct {
	ID              string         `sql:"id"`
	SubjectID       string         `sql:"subject_id"`
	TopicID         sql.NullString `sql:"topic_id"`
	QuestionText    string         `sql:"question_text"`
	QuestionType    string         `sql:"question_type"`
	Marks           int            `sql:"marks"`
	DifficultyLevel int            `sql:"difficulty_level"`
	ModelAnswer     string         `sql:"model_answer"`
	MarkingScheme   string         `sql:"marking_scheme"`
	CreatedAt       time.Time      `sql:"created_at"`
	Order           int            `sql:"question_order"`
}

// Get returns the paper with its questions in paper order.
func (r *ExamPaperRepo) Get(ctx context.Context, id string) (*content.ExamPaper, error) {
	papers, err := r.find(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	paper, err := one(papers, "exam paper", id)
	if err != nil {
		return nil, err
	}

	q := r.c.table("exam_questions").As("q")
	j := r.c.table("exam_paper_questions").As("j")
	sel := r.c.b().Select(append(q.Columns(examQuestionColumns...), j.C("question_order"))...).
		From(q).
		Join(j).On(j.C("question_id"), q.C("id")).
		Where(entsql.EQ(j.C("paper_id"), id)).
		OrderBy(j.C("question_order"))
	var rows []paperQuestionRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query paper questions: %w", err)
	}
	paper.Questions = make([]content.ExamQuestion, len(rows))
	for i, row := range rows {
		eq := examQuestionRow{
			ID:              row.ID,
			SubjectID:       row.SubjectID,
			TopicID:         row.TopicID,
			QuestionText:    row.QuestionText,
			QuestionType:    row.QuestionType,
			Marks:           row.Marks,
			DifficultyLevel: row.DifficultyLevel,
			ModelAnswer:     row.ModelAnswer,
			MarkingScheme:   row.MarkingScheme,
			CreatedAt:       row.CreatedAt,
		}.toQuestion()
		eq.Order = row.Order
		paper.Questions[i] = eq
	}
	return paper, nil
}

// List returns papers, newest first. An empty subjectID lists all.
func (r *ExamPaperRepo) List(ctx context.Context, subjectID string) ([]content.ExamPaper, error) {
	if subjectID == "" {
		return r.find(ctx, nil)
	}
	return r.find(ctx, entsql.EQ("subject_id", subjectID))
}

func (r *ExamPaperRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "exam_papers", "exam paper", id)
}
