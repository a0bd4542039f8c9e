package generation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/abhisek/igcseprep/internal/llm"
)

func TestChunkText(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 20))
	text := "Paragraph one.\n\nParagraph two.\n\n\n" + long

	chunks := chunkText(text, 10) // 40 chars
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks: %q", len(chunks), chunks)
	}
	if chunks[0] != "Paragraph one.\n\nParagraph two." {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
	for i, c := range chunks {
		if len(c) > 40 {
			t.Errorf("chunk %d is %d chars", i, len(c))
		}
	}
	if got := chunkText("  \n\n  ", 10); len(got) != 0 {
		t.Errorf("blank text gave %q", got)
	}
}

func extractJSON(topic string, cards []flashcardOutput, qs []questionOutput) string {
	for i := range cards {
		cards[i].Topic = topic
	}
	for i := range qs {
		qs[i].Topic = topic
	}
	b, _ := json.Marshal(extractOutput{
		Topics:     []ExtractedTopic{{Title: topic, Description: "From the source", LearningObjectives: []string{"Recall facts"}}},
		Flashcards: cards,
		Questions:  qs,
	})
	return string(b)
}

func TestFromContent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkTokens = 10
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: extractJSON("Covalent Bonding",
			[]flashcardOutput{card("Covalent bond", "Shared pair of electrons")},
			[]questionOutput{validQuestion(1)})},
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{}},
		llm.MockResponse{Text: extractJSON("covalent bonding",
			[]flashcardOutput{card("COVALENT BOND", "dup"), card("Ionic bond", "Electrostatic attraction")},
			[]questionOutput{validQuestion(1), validQuestion(2)})},
	)
	gen := New(mock, cfg)

	text := "Covalent bonds share electrons.\n\nIonic bonds transfer them.\n\nMetals have a sea of electrons."
	res, err := gen.FromContent(context.Background(), text, ContentMeta{Subject: "Chemistry", DifficultyLevel: 2})
	if err != nil {
		t.Fatalf("FromContent: %v", err)
	}
	if res.Chunks != 3 || res.Failed != 1 {
		t.Errorf("chunks = %d failed = %d", res.Chunks, res.Failed)
	}
	if len(res.Topics) != 1 {
		t.Errorf("topics = %+v, want one after slug dedup", res.Topics)
	}
	if len(res.Flashcards) != 2 || res.Flashcards[1].Topic != "covalent bonding" {
		t.Errorf("flashcards = %+v", res.Flashcards)
	}
	if len(res.Questions) != 2 {
		t.Errorf("questions = %d, want 2", len(res.Questions))
	}
	if res.Flashcards[0].Card.DifficultyLevel != 2 {
		t.Errorf("card difficulty = %d", res.Flashcards[0].Card.DifficultyLevel)
	}
	if !strings.Contains(mock.Calls[0].Messages[0].Content, "Subject: Chemistry") {
		t.Error("prompt should name the subject")
	}
}

func TestFromContent_AllChunksFail(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	_, err := New(mock, DefaultConfig()).FromContent(context.Background(), "Some text about cells.", ContentMeta{})
	if err == nil || !llm.IsUnavailable(err) {
		t.Fatalf("expected wrapped unavailable error, got %v", err)
	}

	if _, err := New(mock, DefaultConfig()).FromContent(context.Background(), "   ", ContentMeta{}); err == nil {
		t.Error("expected error for empty text")
	}
}
