package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/abhisek/igcseprep/internal/apperrors"
)

// querier is anything the ent SQL builders produce.
type querier interface {
	Query() (string, []any)
}

// conn binds a dialect to either the driver or an open transaction.
type conn struct {
	eq      dialect.ExecQuerier
	dialect string
	drv     *entsql.Driver
}

func (c conn) b() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c conn) table(name string) *entsql.SelectTable {
	return c.b().Table(name)
}

// query runs q and scans every row into dest, a pointer to a slice.
func (c conn) query(ctx context.Context, q querier, dest any) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := c.eq.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	return entsql.ScanSlice(rows, dest)
}

func (c conn) queryInt(ctx context.Context, q querier) (int, error) {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := c.eq.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}

func (c conn) exec(ctx context.Context, q querier) error {
	query, args := q.Query()
	return c.eq.Exec(ctx, query, args, nil)
}

// execAffected runs q and reports how many rows it touched.
func (c conn) execAffected(ctx context.Context, q querier) (int64, error) {
	query, args := q.Query()
	var res entsql.Result
	if err := c.eq.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// withTx runs fn in a transaction, reusing the current one when nested.
func (c conn) withTx(ctx context.Context, fn func(conn) error) (err error) {
	if c.drv == nil {
		return fn(c)
	}
	tx, err := c.drv.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(conn{eq: tx, dialect: c.dialect}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// repos is embedded by Store and Tx so both hand out the same repositories.
type repos struct {
	c conn
}

func (r repos) Users() *UserRepo                 { return &UserRepo{c: r.c} }
func (r repos) Subjects() *SubjectRepo           { return &SubjectRepo{c: r.c} }
func (r repos) Chapters() *ChapterRepo           { return &ChapterRepo{c: r.c} }
func (r repos) Topics() *TopicRepo               { return &TopicRepo{c: r.c} }
func (r repos) Quizzes() *QuizRepo               { return &QuizRepo{c: r.c} }
func (r repos) Flashcards() *FlashcardRepo       { return &FlashcardRepo{c: r.c} }
func (r repos) ExamQuestions() *ExamQuestionRepo { return &ExamQuestionRepo{c: r.c} }
func (r repos) ExamPapers() *ExamPaperRepo       { return &ExamPaperRepo{c: r.c} }
func (r repos) Progress() *ProgressRepo          { return &ProgressRepo{c: r.c} }
func (r repos) RawContent() *RawContentRepo      { return &RawContentRepo{c: r.c} }
func (r repos) Runs() *RunRepo                   { return &RunRepo{c: r.c} }
func (r repos) Events() *EventRepo               { return &EventRepo{c: r.c, seq: &sequenceCounter{c: r.c}} }

func newID() string {
	return uuid.NewString()
}

// now is the single clock for persisted timestamps. Stored values are UTC so
// textual comparison in SQLite orders correctly.
var now = func() time.Time {
	return time.Now().UTC()
}

// translate maps driver errors onto application sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return apperrors.New(apperrors.ErrConflict, what+" already exists")
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func notFound(what, id string) error {
	return apperrors.NotFound(fmt.Sprintf("%s %s not found", what, id))
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

// one returns the single element of rows or a not-found error.
func one[T any](rows []T, what, id string) (*T, error) {
	if len(rows) == 0 {
		return nil, notFound(what, id)
	}
	return &rows[0], nil
}

func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func fromJSON[T any](s string) T {
	var out T
	if s == "" || s == "null" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// Page describes offset pagination. Zero values mean defaults.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() (limit, offset int) {
	size := p.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
