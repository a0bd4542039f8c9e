package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/igcseprep/internal/api/dto"
	"github.com/abhisek/igcseprep/internal/content"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(), Recovery())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "route not found")))
	})

	r.GET("/health", h.Health)

	api := r.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)

	secured := api.Group("")
	secured.Use(JWTAuth(h.Auth.JWT()))
	{
		secured.POST("/auth/logout", h.Logout)
		secured.GET("/auth/me", h.Me)

		secured.GET("/subjects", h.ListSubjects)
		secured.GET("/subjects/:id", h.GetSubject)
		secured.GET("/subjects/:id/chapters", h.ListChapters)
		secured.GET("/topics", h.ListTopics)
		secured.GET("/topics/:id", h.GetTopic)
		secured.GET("/topics/:id/flashcards", h.ListTopicFlashcards)
		secured.GET("/quizzes", h.ListQuizzes)
		secured.GET("/quizzes/:id", h.GetQuiz)
		secured.GET("/exam-papers", h.ListExamPapers)
		secured.GET("/exam-papers/:id", h.GetExamPaper)

		secured.POST("/quizzes/:id/attempts", h.SubmitAttempt)
		secured.GET("/progress", h.ListProgress)
		secured.GET("/progress/topics/:id", h.GetTopicProgress)
		secured.POST("/flashcards/:id/review", h.ReviewFlashcard)
		secured.GET("/flashcards/due", h.DueFlashcards)
	}

	admin := secured.Group("")
	admin.Use(RoleRequired(content.RoleAdmin))
	{
		admin.POST("/subjects", h.CreateSubject)
		admin.PUT("/subjects/:id", h.UpdateSubject)
		admin.DELETE("/subjects/:id", h.DeleteSubject)
		admin.POST("/chapters", h.CreateChapter)
		admin.PUT("/chapters/:id", h.UpdateChapter)
		admin.DELETE("/chapters/:id", h.DeleteChapter)
		admin.POST("/topics", h.CreateTopic)
		admin.PUT("/topics/:id", h.UpdateTopic)
		admin.DELETE("/topics/:id", h.DeleteTopic)
		admin.PATCH("/quizzes/:id/publish", h.PublishQuiz)
		admin.DELETE("/quizzes/:id", h.DeleteQuiz)
		admin.POST("/exam-questions", h.CreateExamQuestions)
		admin.DELETE("/exam-papers/:id", h.DeleteExamPaper)
		admin.POST("/exam-papers/select", h.SelectExamPaper)

		gen := admin.Group("/content-generation")
		gen.POST("/quiz", h.GenerateQuiz)
		gen.POST("/flashcards", h.GenerateFlashcards)
		gen.POST("/exam-paper", h.GenerateExamPaper)

		ops := admin.Group("/admin")
		ops.POST("/batch/run", h.RunBatch)
		ops.GET("/batch/needs", h.BatchNeeds)
		ops.GET("/batch/status", h.BatchStatus)
		ops.GET("/runs", h.ListRuns)
		ops.POST("/ingest/scrape", h.Scrape)
		ops.POST("/ingest/validate", h.ValidateContent)
		ops.POST("/ingest/process", h.ProcessContent)
		ops.GET("/metrics", h.MetricsSnapshot)
		ops.GET("/llm/usage", h.LLMUsage)
	}
	return r
}
