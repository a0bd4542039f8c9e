// Package ingest collects educational web content, screens it and turns
// validated material into topics, flashcards and questions.
package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
)

// Source is one page to collect.
type Source struct {
	URL             string   `json:"url"`
	SourceType      string   `json:"source_type"`
	Subject         string   `json:"subject,omitempty"`
	SyllabusCode    string   `json:"syllabus_code,omitempty"`
	DifficultyLevel int      `json:"difficulty_level,omitempty"`
	MaxPages        int      `json:"max_pages,omitempty"`
	DelaySeconds    float64  `json:"delay_seconds,omitempty"`
	IncludePatterns []string `json:"include_patterns,omitempty"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
}

type sourcesFile struct {
	Sources []Source `json:"sources"`
}

// LoadSources reads a {"sources": [...]} JSON file.
func LoadSources(file string) ([]Source, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var f sourcesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", file, err)
	}
	for i, s := range f.Sources {
		if s.URL == "" {
			return nil, fmt.Errorf("source %d has no url", i)
		}
		if f.Sources[i].SourceType == "" {
			f.Sources[i].SourceType = "web"
		}
	}
	return f.Sources, nil
}

// Allowed matches the URL path against the include and exclude patterns.
// With include patterns set, at least one must match.
func (s Source) Allowed() (bool, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return false, fmt.Errorf("parse url %q: %w", s.URL, err)
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pat := range s.ExcludePatterns {
		ok, err := path.Match(pat, p)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pat, err)
		}
		if ok {
			return false, nil
		}
	}
	if len(s.IncludePatterns) == 0 {
		return true, nil
	}
	for _, pat := range s.IncludePatterns {
		ok, err := path.Match(pat, p)
		if err != nil {
			return false, fmt.Errorf("include pattern %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
