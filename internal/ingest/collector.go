package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/archive"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

var (
	// ErrDuplicate means the scraped text is already stored.
	ErrDuplicate = errors.New("duplicate content")
	// ErrFiltered means the URL did not pass the source patterns.
	ErrFiltered = errors.New("url filtered by source patterns")
	ErrNoContent = errors.New("no content extracted")
)

type Stats struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Collector scrapes sources into raw_content_sources rows.
type Collector struct {
	scraper   Scraper
	store     *store.Store
	archive   archive.Archiver
	sessionID string
	now       func() time.Time
}

// NewCollector returns a collector. arch may be nil.
func NewCollector(scraper Scraper, st *store.Store, arch archive.Archiver) *Collector {
	return &Collector{
		scraper:   scraper,
		store:     st,
		archive:   arch,
		sessionID: time.Now().Format("20060102_150405"),
		now:       time.Now,
	}
}

// ContentHash is the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
)

// StripHTML reduces an HTML document to its text.
func StripHTML(doc string) string {
	s := scriptRe.ReplaceAllString(doc, "")
	s = strings.NewReplacer("</p>", "\n\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(s)
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// ScrapeSource fetches src and stores it as pending raw content. It returns
// ErrDuplicate when the same text was collected before.
func (c *Collector) ScrapeSource(ctx context.Context, src Source) (*store.RawContent, error) {
	ok, err := src.Allowed()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFiltered
	}

	page, err := c.scraper.Scrape(ctx, src.URL, DefaultScrapeOptions())
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(page.Markdown)
	if text == "" {
		text = StripHTML(page.HTML)
	}
	if text == "" {
		return nil, ErrNoContent
	}

	hash := ContentHash(text)
	meta := map[string]any{
		"subject":          src.Subject,
		"syllabus_code":    src.SyllabusCode,
		"difficulty_level": src.DifficultyLevel,
		"scraped_at":       c.now().UTC().Format(time.RFC3339),
		"session_id":       c.sessionID,
		"content_length":   len(text),
		"has_markdown":     page.Markdown != "",
		"has_html":         page.HTML != "",
	}
	if page.Metadata.Title != "" {
		meta["title"] = page.Metadata.Title
	}
	rc := &store.RawContent{
		SourceURL:   src.URL,
		SourceType:  src.SourceType,
		Subject:     src.Subject,
		Content:     text,
		Metadata:    meta,
		ContentHash: hash,
	}
	if err := saveRaw(ctx, c.store, c.archive, rc); err != nil {
		return nil, err
	}
	logger.Info().Str("url", src.URL).Str("id", rc.ID).Int("length", len(text)).Msg("content collected")
	return rc, nil
}

// saveRaw stores rc as pending raw content and archives its text under
// raw/<hash>.md. Text whose hash is already stored yields ErrDuplicate.
func saveRaw(ctx context.Context, st *store.Store, arch archive.Archiver, rc *store.RawContent) error {
	exists, err := st.RawContent().ExistsByHash(ctx, rc.ContentHash)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}
	if err := st.RawContent().Insert(ctx, rc); err != nil {
		// A concurrent collector may have stored the same text.
		if errors.Is(err, apperrors.ErrConflict) {
			return ErrDuplicate
		}
		return err
	}
	if arch != nil {
		if err := arch.Put(ctx, fmt.Sprintf("raw/%s.md", rc.ContentHash), "text/markdown", []byte(rc.Content)); err != nil {
			logger.Warn().Err(err).Str("hash", rc.ContentHash).Msg("archive raw content")
		}
	}
	return nil
}

// ScrapeAll collects every source in order, pausing DelaySeconds after
// each one.
func (c *Collector) ScrapeAll(ctx context.Context, sources []Source) (Stats, error) {
	var st Stats
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Total++
		_, err := c.ScrapeSource(ctx, src)
		switch {
		case err == nil:
			st.Success++
		case errors.Is(err, ErrDuplicate):
			st.Duplicates++
			logger.Info().Str("url", src.URL).Msg("duplicate content, skipping")
		case errors.Is(err, ErrFiltered):
			st.Skipped++
		default:
			st.Failed++
			logger.Warn().Err(err).Str("url", src.URL).Msg("scrape failed")
		}

		if i < len(sources)-1 && src.DelaySeconds > 0 {
			select {
			case <-ctx.Done():
				return st, ctx.Err()
			case <-time.After(time.Duration(src.DelaySeconds * float64(time.Second))):
			}
		}
	}
	return st, nil
}
