package content

import "time"

// QuestionType is the answer format of a quiz or exam question.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
	Structured     QuestionType = "structured"
	Extended       QuestionType = "extended"
)

// QuizQuestionTypes are the types a generated quiz may contain.
var QuizQuestionTypes = []QuestionType{MultipleChoice, TrueFalse, ShortAnswer, Essay}

// GenerationMethod records how a piece of content was produced.
type GenerationMethod string

const (
	MethodManual      GenerationMethod = "manual"
	MethodGemini      GenerationMethod = "gemini"
	MethodOpenAI      GenerationMethod = "openai"
	MethodHuggingFace GenerationMethod = "huggingface"
	MethodAnthropic   GenerationMethod = "anthropic"
	MethodOpenRouter  GenerationMethod = "openrouter"
	MethodMock        GenerationMethod = "mock"
)

// QuizType distinguishes practice quizzes from timed mock exams.
type QuizType string

const (
	QuizPractice QuizType = "practice"
	QuizMockExam QuizType = "mock_exam"
)

// Role is a user role.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Code        string    `json:"code" validate:"max=20"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Chapter struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id" validate:"required"`
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description"`
	DisplayOrder int       `json:"display_order" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at"`
}

type Topic struct {
	ID                 string    `json:"id"`
	SubjectID          string    `json:"subject_id" validate:"required"`
	ChapterID          string    `json:"chapter_id,omitempty"`
	Title              string    `json:"title" validate:"required,max=200"`
	Slug               string    `json:"slug"`
	Description        string    `json:"description"`
	SyllabusCode       string    `json:"syllabus_code"`
	DifficultyLevel    int       `json:"difficulty_level" validate:"gte=1,lte=5"`
	LearningObjectives []string  `json:"learning_objectives"`
	DisplayOrder       int       `json:"display_order" validate:"gte=0"`
	CreatedAt          time.Time `json:"created_at"`
}

// TopicInfo is the denormalized topic view used as generation input.
type TopicInfo struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	SubjectID          string   `json:"subject_id"`
	SubjectName        string   `json:"subject_name"`
	DifficultyLevel    int      `json:"difficulty_level"`
	SyllabusCode       string   `json:"syllabus_code"`
	Description        string   `json:"description"`
	LearningObjectives []string `json:"learning_objectives"`
}

type Quiz struct {
	ID                 string           `json:"id"`
	TopicID            string           `json:"topic_id" validate:"required"`
	Title              string           `json:"title" validate:"required,max=200"`
	Description        string           `json:"description"`
	QuizType           QuizType         `json:"quiz_type" validate:"oneof=practice mock_exam"`
	DifficultyLevel    int              `json:"difficulty_level" validate:"gte=1,lte=5"`
	TimeLimitMinutes   int              `json:"time_limit_minutes" validate:"gte=0"`
	RandomizeQuestions bool             `json:"randomize_questions"`
	ShowAnswers        bool             `json:"show_answers"`
	Published          bool             `json:"published"`
	GenerationMethod   GenerationMethod `json:"generation_method"`
	GenerationModel    string           `json:"generation_model,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	Questions          []QuizQuestion   `json:"questions,omitempty"`
}

// TotalPoints sums the points of all questions.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, qq := range q.Questions {
		total += qq.Points
	}
	return total
}

type QuizQuestion struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quiz_id"`
	QuestionText     string            `json:"question_text" validate:"required,min=10"`
	QuestionType     QuestionType      `json:"question_type" validate:"required"`
	Options          map[string]string `json:"options,omitempty"`
	CorrectAnswer    string            `json:"correct_answer" validate:"required"`
	Explanation      string            `json:"explanation" validate:"min=10"`
	DifficultyLevel  int               `json:"difficulty_level" validate:"gte=1,lte=5"`
	Points           int               `json:"points" validate:"gte=1,lte=10"`
	Tags             []string          `json:"tags,omitempty"`
	DisplayOrder     int               `json:"display_order"`
	GenerationMethod GenerationMethod  `json:"generation_method"`
	GenerationModel  string            `json:"generation_model,omitempty"`
	GeneratedAt      *time.Time        `json:"generated_at,omitempty"`
	QualityScore     *float64          `json:"quality_score,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type Flashcard struct {
	ID               string           `json:"id"`
	TopicID          string           `json:"topic_id" validate:"required"`
	Front            string           `json:"front" validate:"required"`
	Back             string           `json:"back" validate:"required"`
	CardType         string           `json:"card_type"`
	Hint             string           `json:"hint,omitempty"`
	Explanation      string           `json:"explanation,omitempty"`
	DifficultyLevel  int              `json:"difficulty_level" validate:"gte=1,lte=5"`
	Tags             []string         `json:"tags,omitempty"`
	GenerationMethod GenerationMethod `json:"generation_method"`
	CreatedAt        time.Time        `json:"created_at"`
}

type ExamPaper struct {
	ID               string           `json:"id"`
	SubjectID        string           `json:"subject_id" validate:"required"`
	TopicID          string           `json:"topic_id,omitempty"`
	Title            string           `json:"title" validate:"required,max=200"`
	Description      string           `json:"description"`
	DurationMinutes  int              `json:"duration_minutes" validate:"gte=10"`
	TotalMarks       int              `json:"total_marks" validate:"gte=1"`
	GenerationMethod GenerationMethod `json:"generation_method"`
	GenerationModel  string           `json:"generation_model,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Questions        []ExamQuestion   `json:"questions,omitempty"`
}

// SumMarks returns the sum of the question marks.
func (p *ExamPaper) SumMarks() int {
	total := 0
	for _, q := range p.Questions {
		total += q.Marks
	}
	return total
}

type ExamQuestion struct {
	ID              string       `json:"id"`
	SubjectID       string       `json:"subject_id"`
	TopicID         string       `json:"topic_id,omitempty"`
	QuestionText    string       `json:"question_text" validate:"required,min=20"`
	QuestionType    QuestionType `json:"question_type"`
	Marks           int          `json:"marks" validate:"gte=1,lte=20"`
	DifficultyLevel int          `json:"difficulty_level" validate:"gte=1,lte=5"`
	ModelAnswer     string       `json:"model_answer" validate:"required,min=10"`
	MarkingScheme   string       `json:"marking_scheme,omitempty"`
	// Order is the 1-based position inside a paper; zero for bank questions.
	Order     int       `json:"order,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
