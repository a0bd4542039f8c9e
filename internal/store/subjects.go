package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/content"
)

var subjectColumns = []string{"id", "name", "code", "description", "created_at"}

type subjectRow struct {
	ID          string    `sql:"id"`
	Name        string    `sql:"name"`
	Code        string    `sql:"code"`
	Description string    `sql:"description"`
	CreatedAt   time.Time `sql:"created_at"`
}

func (r subjectRow) toSubject() content.Subject {
	return content.Subject{ID: r.ID, Name: r.Name, Code: r.Code, Description: r.Description, CreatedAt: r.CreatedAt}
}

// SubjectRepo stores subjects.
type SubjectRepo struct {
	c conn
}

func (r *SubjectRepo) Create(ctx context.Context, s *content.Subject) error {
	if s.ID == "" {
		s.ID = newID()
	}
	s.CreatedAt = now()
	q := r.c.b().Insert("subjects").
		Columns(subjectColumns...).
		Values(s.ID, s.Name, s.Code, s.Description, s.CreatedAt)
	return translate(r.c.exec(ctx, q), "subject")
}

func (r *SubjectRepo) find(ctx context.Context, p *entsql.Predicate) ([]content.Subject, error) {
	var rows []subjectRow
	sel := r.c.b().Select(subjectColumns...).From(r.c.table("subjects")).OrderBy("name")
	if p != nil {
		sel.Where(p)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	out := make([]content.Subject, len(rows))
	for i, row := range rows {
		out[i] = row.toSubject()
	}
	return out, nil
}

func (r *SubjectRepo) Get(ctx context.Context, id string) (*content.Subject, error) {
	subjects, err := r.find(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	return one(subjects, "subject", id)
}

// GetByName matches the subject name case-insensitively.
func (r *SubjectRepo) GetByName(ctx context.Context, name string) (*content.Subject, error) {
	subjects, err := r.find(ctx, entsql.EqualFold("name", name))
	if err != nil {
		return nil, err
	}
	return one(subjects, "subject", name)
}

func (r *SubjectRepo) List(ctx context.Context) ([]content.Subject, error) {
	return r.find(ctx, nil)
}

func (r *SubjectRepo) Update(ctx context.Context, s *content.Subject) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("subjects").
		Set("name", s.Name).
		Set("code", s.Code).
		Set("description", s.Description).
		Where(entsql.EQ("id", s.ID)))
	if err != nil {
		return translate(err, "subject")
	}
	if n == 0 {
		return notFound("subject", s.ID)
	}
	return nil
}

func (r *SubjectRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "subjects", "subject", id)
}

func deleteByID(ctx context.Context, c conn, table, what, id string) error {
	n, err := c.execAffected(ctx, c.b().Delete(table).Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if n == 0 {
		return notFound(what, id)
	}
	return nil
}

var chapterColumns = []string{"id", "subject_id", "title", "description", "display_order", "created_at"}

type chapterRow struct {
	ID           string    `sql:"id"`
	SubjectID    string    `sql:"subject_id"`
	Title        string    `sql:"title"`
	Description  string    `sql:"description"`
	DisplayOrder int       `sql:"display_order"`
	CreatedAt    time.Time `sql:"created_at"`
}

// ChapterRepo stores chapters within a subject.
type ChapterRepo struct {
	c conn
}

func (r *ChapterRepo) Create(ctx context.Context, ch *content.Chapter) error {
	if ch.ID == "" {
		ch.ID = newID()
	}
	ch.CreatedAt = now()
	q := r.c.b().Insert("chapters").
		Columns(chapterColumns...).
		Values(ch.ID, ch.SubjectID, ch.Title, ch.Description, ch.DisplayOrder, ch.CreatedAt)
	return translate(r.c.exec(ctx, q), "chapter")
}

func (r *ChapterRepo) find(ctx context.Context, p *entsql.Predicate) ([]content.Chapter, error) {
	var rows []chapterRow
	sel := r.c.b().Select(chapterColumns...).From(r.c.table("chapters")).
		Where(p).
		OrderBy("display_order", "title")
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	out := make([]content.Chapter, len(rows))
	for i, row := range rows {
		out[i] = content.Chapter{
			ID:           row.ID,
			SubjectID:    row.SubjectID,
			Title:        row.Title,
			Description:  row.Description,
			DisplayOrder: row.DisplayOrder,
			CreatedAt:    row.CreatedAt,
		}
	}
	return out, nil
}

func (r *ChapterRepo) Get(ctx context.Context, id string) (*content.Chapter, error) {
	chapters, err := r.find(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	return one(chapters, "chapter", id)
}

func (r *ChapterRepo) ListBySubject(ctx context.Context, subjectID string) ([]content.Chapter, error) {
	return r.find(ctx, entsql.EQ("subject_id", subjectID))
}

func (r *ChapterRepo) Update(ctx context.Context, ch *content.Chapter) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("chapters").
		Set("title", ch.Title).
		Set("description", ch.Description).
		Set("display_order", ch.DisplayOrder).
		Where(entsql.EQ("id", ch.ID)))
	if err != nil {
		return translate(err, "chapter")
	}
	if n == 0 {
		return notFound("chapter", ch.ID)
	}
	return nil
}

func (r *ChapterRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.c, "chapters", "chapter", id)
}
