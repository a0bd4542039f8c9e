package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/igcseprep/internal/content"
)

const quizSystemPrompt = `You are an expert IGCSE educator writing quiz questions for Grade 9-10 students.

Rules:
- Every question must be factually accurate and aligned with the IGCSE syllabus.
- Multiple choice questions have exactly 4 distinct options labelled A, B, C and D, and correct_answer is the label.
- True/false questions use "true" or "false" as correct_answer.
- Explanations say why the answer is correct and why the distractors are wrong.
- Use proper academic language and terminology.
- Do not repeat or paraphrase any question from the "avoid duplicating" list.
- Respond with JSON only.`

const examSystemPrompt = `You are an expert IGCSE examiner writing a formal exam paper.

Rules:
- Follow the requested mark distribution exactly; the marks of all questions must add up to the total.
- Every question has a marking scheme in answer_text that shows how each mark is earned.
- Test different cognitive levels: knowledge, understanding, application and analysis.
- Respond with JSON only.`

const flashcardSystemPrompt = `You are an expert IGCSE educator writing flashcards for spaced repetition.

Rules:
- One fact, term or process per card; keep the front short and the back precise.
- Cover key definitions, formulas and processes of the topic.
- Do not repeat a card from the "avoid duplicating" list.
- Respond with JSON only.`

const extractSystemPrompt = `You are an expert IGCSE educator turning study material into structured learning content.

Rules:
- Only use facts present in the material.
- Group the material into one or more topics and give every flashcard and question the title of its topic.
- Multiple choice questions have exactly 4 options labelled A-D and correct_answer is the label.
- Respond with JSON only.`

func writeTopic(b *strings.Builder, t content.TopicInfo) {
	fmt.Fprintf(b, "Topic: %s\n", t.Title)
	fmt.Fprintf(b, "Subject: %s\n", t.SubjectName)
	fmt.Fprintf(b, "Difficulty level: %d/5\n", content.ClampDifficulty(t.DifficultyLevel))
	if t.SyllabusCode != "" {
		fmt.Fprintf(b, "Syllabus code: %s\n", t.SyllabusCode)
	}
	if t.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", t.Description)
	}
	if len(t.LearningObjectives) > 0 {
		b.WriteString("Learning objectives:\n")
		for _, o := range t.LearningObjectives {
			fmt.Fprintf(b, "- %s\n", o)
		}
	}
}

func buildQuizPrompt(t content.TopicInfo, count int, opts QuizOptions, avoid []string, maxAvoid int) string {
	var b strings.Builder
	writeTopic(&b, t)

	types := opts.QuestionTypes
	if len(types) == 0 {
		types = []content.QuestionType{content.MultipleChoice}
	}
	names := make([]string, len(types))
	for i, qt := range types {
		names[i] = string(qt)
	}
	difficulty := opts.Difficulty
	if difficulty == 0 {
		difficulty = t.DifficultyLevel
	}

	fmt.Fprintf(&b, "\nCreate %d questions.\n", count)
	fmt.Fprintf(&b, "Question types: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Target difficulty: %d/5\n", content.ClampDifficulty(difficulty))

	b.WriteString("\nAvoid duplicating:\n")
	b.WriteString(buildAvoid(avoid, maxAvoid))
	b.WriteString("\n\nRespond as {\"questions\": [...]}.")
	return b.String()
}

// markBand is one line of the exam mark distribution.
type markBand struct {
	Marks int                  `json:"marks"`
	Count int                  `json:"count"`
	Type  content.QuestionType `json:"type"`
}

// markDistribution returns the question layout for a target total. Up to 20
// marks is a short paper; anything larger uses the full layout scaled to the
// target.
func markDistribution(target int) []markBand {
	if target <= 20 {
		return []markBand{
			{Marks: 2, Count: 5, Type: content.ShortAnswer},
			{Marks: 5, Count: 2, Type: content.Structured},
		}
	}
	bands := []markBand{
		{Marks: 2, Count: 5, Type: content.ShortAnswer},
		{Marks: 5, Count: 4, Type: content.Structured},
		{Marks: 10, Count: 2, Type: content.Extended},
	}
	// The full layout sums to 50; add or drop extended questions to get
	// closer to other targets.
	if target != 50 {
		extended := (target - 30) / 10
		if extended < 1 {
			extended = 1
		}
		bands[2].Count = extended
	}
	return bands
}

func distributionTotal(bands []markBand) int {
	total := 0
	for _, b := range bands {
		total += b.Marks * b.Count
	}
	return total
}

func defaultDuration(target int) int {
	if target <= 20 {
		return 60
	}
	return 90
}

func buildExamPrompt(t content.TopicInfo, target, duration int) string {
	var b strings.Builder
	writeTopic(&b, t)
	dist, _ := json.MarshalIndent(markDistribution(target), "", "  ")
	fmt.Fprintf(&b, "\nTotal marks: %d\n", target)
	fmt.Fprintf(&b, "Duration: %d minutes\n", duration)
	fmt.Fprintf(&b, "\nCreate exam questions with this distribution:\n%s\n", dist)
	fmt.Fprintf(&b, "\nRespond as {\"title\": \"IGCSE %s: %s\", \"instructions\": ..., \"duration_minutes\": %d, \"total_marks\": %d, \"questions\": [...]}.",
		t.SubjectName, t.Title, duration, target)
	return b.String()
}

func buildFlashcardPrompt(t content.TopicInfo, count int, avoid []string, maxAvoid int) string {
	var b strings.Builder
	writeTopic(&b, t)
	fmt.Fprintf(&b, "\nCreate %d flashcards.\n", count)
	b.WriteString("\nAvoid duplicating:\n")
	b.WriteString(buildAvoid(avoid, maxAvoid))
	b.WriteString("\n\nRespond as {\"flashcards\": [...]}.")
	return b.String()
}

func buildExtractPrompt(chunk string, meta ContentMeta) string {
	var b strings.Builder
	subject := meta.Subject
	if subject == "" {
		subject = "General"
	}
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	if meta.SyllabusCode != "" {
		fmt.Fprintf(&b, "Syllabus code: %s\n", meta.SyllabusCode)
	}
	if meta.Title != "" {
		fmt.Fprintf(&b, "Source title: %s\n", meta.Title)
	}
	b.WriteString("\nCreate 1-3 topics, 5-10 flashcards and 3-5 multiple choice questions from this material.\n")
	b.WriteString("\nMaterial:\n")
	b.WriteString(chunk)
	b.WriteString("\n\nRespond as {\"topics\": [...], \"flashcards\": [...], \"questions\": [...]}.")
	return b.String()
}

// buildAvoid formats existing items for the prompt, keeping the most recent
// max entries. Returns "None" if there are none.
func buildAvoid(items []string, max int) string {
	if len(items) == 0 {
		return "None"
	}
	if max > 0 && len(items) > max {
		items = items[len(items)-max:]
	}
	var b strings.Builder
	for i, s := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return strings.TrimRight(b.String(), "\n")
}
