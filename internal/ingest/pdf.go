package ingest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/abhisek/igcseprep/internal/archive"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

// PDFText is the text of one PDF, page by page. Pages without text are "".
type PDFText struct {
	Pages []string
	Title string
}

// PDFExtractor pulls page text out of a PDF file.
type PDFExtractor interface {
	Extract(path string) (*PDFText, error)
}

// PlainTextExtractor reads PDFs with github.com/ledongthuc/pdf.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(path string) (out *PDFText, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()
	// The reader panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("read pdf %s: %v", path, p)
		}
	}()

	out = &PDFText{Pages: make([]string, r.NumPage())}
	if info := r.Trailer().Key("Info"); !info.IsNull() {
		out.Title = strings.TrimSpace(info.Key("Title").Text())
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Int("page", i).Msg("extract page text")
			continue
		}
		out.Pages[i-1] = text
	}
	return out, nil
}

// PaperInfo is what a file name says about a past paper. Both Cambridge
// component names (0580_s21_qp_42.pdf) and descriptive names
// (Physics Paper 2 November 2019.pdf) are understood.
type PaperInfo struct {
	Subject      string
	SyllabusCode string
	Year         int
	Session      string
	// Kind is the Cambridge component, e.g. question_paper or mark_scheme.
	Kind        string
	PaperNumber int
	Variant     int
}

var syllabusSubjects = []struct {
	subject string
	re      *regexp.Regexp
}{
	{"Mathematics", regexp.MustCompile(`(?i)math|0580`)},
	{"Physics", regexp.MustCompile(`(?i)physics|0625`)},
	{"Chemistry", regexp.MustCompile(`(?i)chemistry|0620`)},
	{"Biology", regexp.MustCompile(`(?i)biology|0610`)},
	{"Economics", regexp.MustCompile(`(?i)economics|0455`)},
	{"English", regexp.MustCompile(`(?i)english|0500`)},
}

var componentKinds = map[string]string{
	"qp": "question_paper",
	"ms": "mark_scheme",
	"sp": "specimen_paper",
	"sm": "specimen_mark_scheme",
	"er": "examiner_report",
	"in": "insert",
	"gt": "grade_thresholds",
	"ci": "confidential_instructions",
}

var seriesSessions = map[string]string{"s": "summer", "w": "winter", "m": "march"}

var (
	cambridgeNameRe = regexp.MustCompile(`(?i)(?:^|\D)(0\d{3})_([smw])(\d{2})_([a-z]{2})(?:_(\d)(\d)?)?`)
	syllabusCodeRe  = regexp.MustCompile(`(?:^|\D)(0\d{3})(?:\D|$)`)
	yearRe          = regexp.MustCompile(`(?:^|\D)(20\d{2})(?:\D|$)`)
	sessionRe       = regexp.MustCompile(`(?i)summer|winter|march|may|october|november`)
	paperNumberRe   = regexp.MustCompile(`(?i)paper[\s_-]*(\d+)`)
	variantRe       = regexp.MustCompile(`(?i)variant[\s_-]*(\d+)`)
)

// ParsePaperName reads subject, syllabus code and exam series from a file
// name. Fields the name does not carry stay zero.
func ParsePaperName(name string) PaperInfo {
	var info PaperInfo
	if m := cambridgeNameRe.FindStringSubmatch(name); m != nil {
		info.SyllabusCode = m[1]
		info.Session = seriesSessions[strings.ToLower(m[2])]
		yy, _ := strconv.Atoi(m[3])
		info.Year = 2000 + yy
		info.Kind = componentKinds[strings.ToLower(m[4])]
		if m[5] != "" {
			info.PaperNumber, _ = strconv.Atoi(m[5])
		}
		if m[6] != "" {
			info.Variant, _ = strconv.Atoi(m[6])
		}
	}

	for _, s := range syllabusSubjects {
		if s.re.MatchString(name) {
			info.Subject = s.subject
			break
		}
	}
	if info.SyllabusCode == "" {
		if m := syllabusCodeRe.FindStringSubmatch(name); m != nil {
			info.SyllabusCode = m[1]
		}
	}
	if info.Year == 0 {
		if m := yearRe.FindStringSubmatch(name); m != nil {
			info.Year, _ = strconv.Atoi(m[1])
		}
	}
	if info.Session == "" {
		info.Session = strings.ToLower(sessionRe.FindString(name))
	}
	if info.PaperNumber == 0 {
		if m := paperNumberRe.FindStringSubmatch(name); m != nil {
			info.PaperNumber, _ = strconv.Atoi(m[1])
		}
	}
	if info.Variant == 0 {
		if m := variantRe.FindStringSubmatch(name); m != nil {
			info.Variant, _ = strconv.Atoi(m[1])
		}
	}
	return info
}

// DetectSourceType classifies a PDF as past_paper, cambridge_resource or
// other.
func DetectSourceType(name string, info PaperInfo) string {
	n := strings.ToLower(name)
	switch info.Kind {
	case "question_paper", "mark_scheme", "specimen_paper", "specimen_mark_scheme":
		return "past_paper"
	case "":
	default:
		return "cambridge_resource"
	}
	switch {
	case strings.Contains(n, "past") && strings.Contains(n, "paper"):
		return "past_paper"
	case strings.Contains(n, "cambridge"):
		return "cambridge_resource"
	case strings.Contains(n, "specimen"):
		return "past_paper"
	case strings.Contains(n, "mark") && strings.Contains(n, "scheme"):
		return "past_paper"
	}
	return "other"
}

var (
	pageOfRe    = regexp.MustCompile(`(?i)page \d+ of \d+`)
	copyrightRe = regexp.MustCompile(`(?:Â)?©\s*UCLES\s*\d{4}`)
	brandRe     = regexp.MustCompile(`Cambridge IGCSE`)
)

// CleanPDFText drops page counters, the UCLES copyright line and the
// series banner, and normalizes whitespace. Line breaks are kept.
func CleanPDFText(text string) string {
	s := pageOfRe.ReplaceAllString(text, "")
	s = copyrightRe.ReplaceAllString(s, "")
	s = brandRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// PDFOptions overrides what file names say. Recursive applies to
// CollectDir only.
type PDFOptions struct {
	Subject      string
	SyllabusCode string
	SourceType   string
	Recursive    bool
}

// PDFCollector stores the text of PDF files, typically past papers, as
// raw_content_sources rows.
type PDFCollector struct {
	extractor PDFExtractor
	store     *store.Store
	archive   archive.Archiver
	sessionID string
	now       func() time.Time
}

// NewPDFCollector returns a collector. A nil extractor means
// PlainTextExtractor; arch may be nil.
func NewPDFCollector(ex PDFExtractor, st *store.Store, arch archive.Archiver) *PDFCollector {
	if ex == nil {
		ex = PlainTextExtractor{}
	}
	return &PDFCollector{
		extractor: ex,
		store:     st,
		archive:   arch,
		sessionID: time.Now().Format("20060102_150405"),
		now:       time.Now,
	}
}

// CollectFile extracts one PDF and stores it as pending raw content. It
// returns ErrDuplicate when the same text was collected before and
// ErrNoContent when no page has text.
func (c *PDFCollector) CollectFile(ctx context.Context, path string, opts PDFOptions) (*store.RawContent, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	doc, err := c.extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	var pages []string
	for i, p := range doc.Pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i+1, p))
	}
	if len(pages) == 0 {
		return nil, ErrNoContent
	}
	full := strings.Join(pages, "\n\n")
	text := CleanPDFText(full)
	if text == "" {
		return nil, ErrNoContent
	}

	name := filepath.Base(path)
	info := ParsePaperName(name)
	subject := cmp.Or(opts.Subject, info.Subject)
	syllabus := cmp.Or(opts.SyllabusCode, info.SyllabusCode)
	sourceType := cmp.Or(opts.SourceType, DetectSourceType(name, info))
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	meta := map[string]any{
		"subject":           subject,
		"syllabus_code":     syllabus,
		"original_filename": name,
		"file_path":         abs,
		"file_size_bytes":   fi.Size(),
		"page_count":        len(doc.Pages),
		"pages_processed":   len(pages),
		"extraction_method": "ledongthuc/pdf",
		"original_length":   len(full),
		"cleaned_length":    len(text),
		"processed_at":      c.now().UTC().Format(time.RFC3339),
		"session_id":        c.sessionID,
	}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	if info.Year != 0 {
		meta["year"] = info.Year
	}
	if info.Session != "" {
		meta["session"] = info.Session
	}
	if info.Kind != "" {
		meta["component"] = info.Kind
	}
	if info.PaperNumber != 0 {
		meta["paper_number"] = info.PaperNumber
	}
	if info.Variant != 0 {
		meta["variant"] = info.Variant
	}

	rc := &store.RawContent{
		SourceURL:   (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		SourceType:  sourceType,
		Subject:     subject,
		Content:     text,
		Metadata:    meta,
		ContentHash: ContentHash(text),
	}
	if err := saveRaw(ctx, c.store, c.archive, rc); err != nil {
		return nil, err
	}
	logger.Info().Str("file", name).Str("id", rc.ID).Int("pages", len(pages)).Msg("pdf collected")
	return rc, nil
}

// CollectDir collects every .pdf file in dir, descending into
// subdirectories when opts.Recursive is set.
func (c *PDFCollector) CollectDir(ctx context.Context, dir string, opts PDFOptions) (Stats, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".pdf") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	logger.Info().Str("dir", dir).Int("files", len(files)).Msg("pdf files found")

	var st Stats
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Total++
		_, err := c.CollectFile(ctx, f, opts)
		switch {
		case err == nil:
			st.Success++
		case errors.Is(err, ErrDuplicate):
			st.Duplicates++
			logger.Info().Str("file", f).Msg("duplicate content, skipping")
		default:
			st.Failed++
			logger.Warn().Err(err).Str("file", f).Msg("pdf collection failed")
		}
	}
	return st, nil
}
