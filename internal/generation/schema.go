package generation

import "github.com/abhisek/igcseprep/internal/llm"

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func strList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func intRange(desc string, lo, hi int) map[string]any {
	return map[string]any{"type": "integer", "minimum": lo, "maximum": hi, "description": desc}
}

var quizQuestionItem = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question_text": str("Clear, specific question text that tests understanding"),
		"question_type": map[string]any{
			"type": "string",
			"enum": []any{"multiple_choice", "true_false", "short_answer", "essay"},
		},
		"options": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"A": str("First option"),
				"B": str("Second option"),
				"C": str("Third option"),
				"D": str("Fourth option"),
			},
			"description": "Answer options keyed A-D. Omit or leave empty for non multiple choice questions.",
		},
		"correct_answer":   str("The option label (A-D), true/false, or the expected short answer"),
		"explanation":      str("Why the answer is correct and why the distractors are wrong"),
		"difficulty_level": intRange("Difficulty from 1 (easy) to 5 (hard)", 1, 5),
		"points":           intRange("Points awarded for a correct answer", 1, 10),
		"tags":             strList("Short topic tags"),
	},
	"required": []any{"question_text", "question_type", "correct_answer", "explanation"},
}

// QuizSchema is the response shape for quiz question batches.
var QuizSchema = &llm.Schema{
	Name:        "quiz-questions",
	Description: "A batch of IGCSE quiz questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{"type": "array", "items": quizQuestionItem},
		},
		"required": []any{"questions"},
	},
}

// ExamSchema is the response shape for a generated exam paper.
var ExamSchema = &llm.Schema{
	Name:        "exam-paper",
	Description: "An IGCSE exam paper with marking scheme",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":            str("Paper title"),
			"instructions":     str("Candidate instructions"),
			"duration_minutes": map[string]any{"type": "integer"},
			"total_marks":      map[string]any{"type": "integer"},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question_text":  str("Question text with clear instructions and any diagrams described"),
						"marks":          intRange("Marks for this question", 1, 20),
						"answer_text":    str("Marking scheme with acceptable answers and mark allocation"),
						"explanation":    str("Guidance for markers and common errors"),
						"question_order": map[string]any{"type": "integer"},
						"question_type": map[string]any{
							"type": "string",
							"enum": []any{"short_answer", "structured", "extended", "essay"},
						},
					},
					"required": []any{"question_text", "marks", "answer_text"},
				},
			},
		},
		"required": []any{"questions"},
	},
}

var flashcardItem = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"front":            str("Question or term"),
		"back":             str("Answer or definition"),
		"card_type":        str("basic, definition, formula or process"),
		"hint":             str("Optional hint"),
		"explanation":      str("Optional extra context"),
		"difficulty_level": intRange("Difficulty from 1 to 5", 1, 5),
		"tags":             strList("Short topic tags"),
	},
	"required": []any{"front", "back"},
}

// FlashcardSchema is the response shape for flashcard generation.
var FlashcardSchema = &llm.Schema{
	Name:        "flashcards",
	Description: "Spaced repetition flashcards for one topic",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flashcards": map[string]any{"type": "array", "items": flashcardItem},
		},
		"required": []any{"flashcards"},
	},
}

// ExtractionSchema is the response shape for turning scraped text into
// topics, flashcards and questions.
var ExtractionSchema = &llm.Schema{
	Name:        "content-extraction",
	Description: "Topics, flashcards and quiz questions extracted from study material",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":               str("Topic title"),
						"description":         str("Brief description of the topic"),
						"difficulty_level":    intRange("Difficulty from 1 to 5", 1, 5),
						"learning_objectives": strList("What a student should be able to do"),
					},
					"required": []any{"title"},
				},
			},
			"flashcards": map[string]any{
				"type":  "array",
				"items": withTopic(flashcardItem),
			},
			"questions": map[string]any{
				"type":  "array",
				"items": withTopic(quizQuestionItem),
			},
		},
		"required": []any{"topics", "flashcards", "questions"},
	},
}

// withTopic copies an item schema and adds the "topic" title it belongs to.
func withTopic(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	props := make(map[string]any)
	for k, v := range item["properties"].(map[string]any) {
		props[k] = v
	}
	props["topic"] = str("Title of the topic this item belongs to")
	out["properties"] = props
	return out
}
