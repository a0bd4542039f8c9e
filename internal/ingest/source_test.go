package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSources(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sources.json")
	raw := `{"sources":[
		{"url":"https://example.org/physics/forces","source_type":"ck12","subject":"Physics","difficulty_level":2,"delay_seconds":0.5},
		{"url":"https://example.org/biology/cells"}
	]}`
	if err := os.WriteFile(file, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	sources, err := LoadSources(file)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources", len(sources))
	}
	if sources[0].Subject != "Physics" || sources[0].DelaySeconds != 0.5 {
		t.Errorf("source 0 = %+v", sources[0])
	}
	if sources[1].SourceType != "web" {
		t.Errorf("default source type = %q", sources[1].SourceType)
	}

	if err := os.WriteFile(file, []byte(`{"sources":[{"subject":"x"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSources(file); err == nil {
		t.Error("expected error for source without url")
	}
}

func TestSourceAllowed(t *testing.T) {
	tests := []struct {
		url     string
		include []string
		exclude []string
		want    bool
	}{
		{"https://example.org/physics/forces", nil, nil, true},
		{"https://example.org/physics/forces", []string{"/physics/*"}, nil, true},
		{"https://example.org/chemistry/acids", []string{"/physics/*"}, nil, false},
		{"https://example.org/physics/forces", nil, []string{"/physics/f*"}, false},
		{"https://example.org/physics/forces", []string{"/physics/*"}, []string{"/physics/forces"}, false},
		{"https://example.org", []string{"/"}, nil, true},
	}
	for _, tt := range tests {
		got, err := Source{URL: tt.url, IncludePatterns: tt.include, ExcludePatterns: tt.exclude}.Allowed()
		if err != nil {
			t.Fatalf("Allowed(%s): %v", tt.url, err)
		}
		if got != tt.want {
			t.Errorf("Allowed(%s, %v, %v) = %v", tt.url, tt.include, tt.exclude, got)
		}
	}
	if _, err := (Source{URL: "https://example.org/a", IncludePatterns: []string{"["}}).Allowed(); err == nil {
		t.Error("expected error for bad pattern")
	}
}
