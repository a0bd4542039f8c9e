package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// RawStatus is the lifecycle state of a scraped source.
type RawStatus string

const (
	RawPending   RawStatus = "pending"
	RawValidated RawStatus = "validated"
	RawRejected  RawStatus = "rejected"
	RawProcessed RawStatus = "processed"
	RawFailed    RawStatus = "failed"
)

// RawContent is one scraped document awaiting validation and processing.
type RawContent struct {
	ID              string         `json:"id"`
	SourceURL       string         `json:"source_url"`
	SourceType      string         `json:"source_type"`
	Subject         string         `json:"subject"`
	Content         string         `json:"-"`
	Metadata        map[string]any `json:"metadata"`
	ContentHash     string         `json:"content_hash"`
	ContentSize     int            `json:"content_size"`
	Status          RawStatus      `json:"status"`
	ValidationNotes string         `json:"validation_notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

var rawColumns = []string{
	"id", "source_url", "source_type", "subject", "raw_content", "metadata", "content_hash",
	"content_size", "status", "validation_notes", "created_at", "updated_at",
}

type rawRow struct {
	ID              string    `sql:"id"`
	SourceURL       string    `sql:"source_url"`
	SourceType      string    `sql:"source_type"`
	Subject         string    `sql:"subject"`
	RawContent      string    `sql:"raw_content"`
	Metadata        string    `sql:"metadata"`
	ContentHash     string    `sql:"content_hash"`
	ContentSize     int       `sql:"content_size"`
	Status          string    `sql:"status"`
	ValidationNotes string    `sql:"validation_notes"`
	CreatedAt       time.Time `sql:"created_at"`
	UpdatedAt       time.Time `sql:"updated_at"`
}

func (r rawRow) toRaw() RawContent {
	return RawContent{
		ID:              r.ID,
		SourceURL:       r.SourceURL,
		SourceType:      r.SourceType,
		Subject:         r.Subject,
		Content:         r.RawContent,
		Metadata:        fromJSON[map[string]any](r.Metadata),
		ContentHash:     r.ContentHash,
		ContentSize:     r.ContentSize,
		Status:          RawStatus(r.Status),
		ValidationNotes: r.ValidationNotes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RawContentRepo stores scraped sources.
type RawContentRepo struct {
	c conn
}

// Insert stores rc as pending. A duplicate content hash is an ErrConflict.
func (r *RawContentRepo) Insert(ctx context.Context, rc *RawContent) error {
	if rc.ID == "" {
		rc.ID = newID()
	}
	if rc.Status == "" {
		rc.Status = RawPending
	}
	if rc.SourceType == "" {
		rc.SourceType = "web"
	}
	rc.ContentSize = len(rc.Content)
	rc.CreatedAt = now()
	rc.UpdatedAt = rc.CreatedAt
	q := r.c.b().Insert("raw_content_sources").
		Columns(rawColumns...).
		Values(rc.ID, rc.SourceURL, rc.SourceType, rc.Subject, rc.Content, toJSON(rc.Metadata), rc.ContentHash,
			rc.ContentSize, string(rc.Status), rc.ValidationNotes, rc.CreatedAt, rc.UpdatedAt)
	return translate(r.c.exec(ctx, q), "raw content")
}

func (r *RawContentRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	n, err := r.c.queryInt(ctx, r.c.b().Select(entsql.Count("*")).
		From(r.c.table("raw_content_sources")).
		Where(entsql.EQ("content_hash", hash)))
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return n > 0, nil
}

func (r *RawContentRepo) find(ctx context.Context, p *entsql.Predicate, limit int) ([]RawContent, error) {
	var rows []rawRow
	sel := r.c.b().Select(rawColumns...).From(r.c.table("raw_content_sources")).
		Where(p).
		OrderBy("created_at")
	if limit > 0 {
		sel.Limit(limit)
	}
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("query raw content: %w", err)
	}
	out := make([]RawContent, len(rows))
	for i, row := range rows {
		out[i] = row.toRaw()
	}
	return out, nil
}

func (r *RawContentRepo) Get(ctx context.Context, id string) (*RawContent, error) {
	rows, err := r.find(ctx, entsql.EQ("id", id), 0)
	if err != nil {
		return nil, err
	}
	return one(rows, "raw content", id)
}

// ListByStatus returns the oldest rows in status, up to limit (0 = all).
func (r *RawContentRepo) ListByStatus(ctx context.Context, status RawStatus, limit int) ([]RawContent, error) {
	return r.find(ctx, entsql.EQ("status", string(status)), limit)
}

func (r *RawContentRepo) UpdateStatus(ctx context.Context, id string, status RawStatus, notes string) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("raw_content_sources").
		Set("status", string(status)).
		Set("validation_notes", notes).
		Set("updated_at", now()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("update raw content status: %w", err)
	}
	if n == 0 {
		return notFound("raw content", id)
	}
	return nil
}

type statusCountRow struct {
	Status string `sql:"status"`
	Count  int    `sql:"n"`
}

// CountByStatus tallies rows per status.
func (r *RawContentRepo) CountByStatus(ctx context.Context) (map[RawStatus]int, error) {
	sel := r.c.b().Select("status", entsql.As(entsql.Count("*"), "n")).
		From(r.c.table("raw_content_sources")).
		GroupBy("status")
	var rows []statusCountRow
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("count raw content: %w", err)
	}
	out := make(map[RawStatus]int, len(rows))
	for _, row := range rows {
		out[RawStatus(row.Status)] = row.Count
	}
	return out, nil
}
