package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/assessment"
	"guideline-rag/internal/chat"
	"guideline-rag/internal/models"
	"guideline-rag/internal/patients"
	"guideline-rag/internal/retrieval"
	"guideline-rag/internal/vectorindex"
)

// Assessor runs patient risk assessments.
type Assessor interface {
	AssessPatient(ctx context.Context, patientID string) (models.AssessmentResponse, error)
	AssessBatch(ctx context.Context, patientIDs []string) ([]models.AssessmentResponse, []error)
}

// Chatter serves session-scoped guideline conversations.
type Chatter interface {
	Ask(ctx context.Context, sessionID, question string) (models.ChatResponse, error)
	History(sessionID string) ([]models.Message, error)
	EndSession(sessionID string) error
}

// Searcher exposes raw guideline retrieval.
type Searcher interface {
	SearchAndFormat(ctx context.Context, query string, topK int) (retrieval.FormattedResults, error)
	HealthCheck(ctx context.Context) retrieval.HealthStatus
}

type RouterDeps struct {
	Assessor Assessor
	Chat     Chatter
	Search   Searcher
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{deps: deps}
	router.GET("/health", h.health)
	router.POST("/assess", h.assess)
	router.POST("/assess/batch", h.assessBatch)
	router.POST("/chat", h.chat)
	router.GET("/chat/:session/history", h.chatHistory)
	router.DELETE("/chat/:session", h.endSession)
	router.GET("/search", h.search)
	return router
}

type handlers struct {
	deps RouterDeps
}

func (h *handlers) health(c *gin.Context) {
	status := h.deps.Search.HealthCheck(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

type assessRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

func (h *handlers) assess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.deps.Assessor.AssessPatient(c.Request.Context(), req.PatientID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type assessBatchRequest struct {
	PatientIDs []string `json:"patient_ids" binding:"required,min=1"`
}

func (h *handlers) assessBatch(c *gin.Context) {
	var req assessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	responses, errs := h.deps.Assessor.AssessBatch(c.Request.Context(), req.PatientIDs)
	failures := make([]string, len(errs))
	for i, e := range errs {
		failures[i] = e.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"assessments": responses,
		"failures":    failures,
		"statistics":  assessment.Summarize(responses),
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question" binding:"required"`
}

func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.deps.Chat.Ask(c.Request.Context(), req.SessionID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) chatHistory(c *gin.Context) {
	history, err := h.deps.Chat.History(c.Param("session"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("session"), "messages": history})
}

func (h *handlers) endSession(c *gin.Context) {
	if err := h.deps.Chat.EndSession(c.Param("session")); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("session"), "deleted": true})
}

func (h *handlers) search(c *gin.Context) {
	query := c.Query("q")
	topK := 0
	if n, err := strconv.Atoi(c.Query("top_k")); err == nil && n > 0 {
		topK = n
	}

	results, err := h.deps.Search.SearchAndFormat(c.Request.Context(), query, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleError maps the error taxonomy onto status codes: validation 400,
// unknown identifiers 404, upstream failures 502.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery),
		errors.Is(err, retrieval.ErrEmptySymptoms),
		errors.Is(err, vectorindex.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, patients.ErrNotFound),
		errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, vectorindex.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
