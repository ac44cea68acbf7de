package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/models"
	"guideline-rag/internal/reasoning"
	"guideline-rag/internal/retrieval"
)

// historyWindow caps how many trailing messages are replayed into the
// prompt. Older messages stay in the session but are not sent to the model.
const historyWindow = 10

// Retriever is the slice of the retrieval pipeline the chat engine needs.
type Retriever interface {
	SearchAndFormat(ctx context.Context, query string, topK int) (retrieval.FormattedResults, error)
}

// Engine answers guideline questions in session-scoped conversations. Each
// turn is grounded in freshly retrieved guideline chunks plus a bounded
// window of prior conversation.
type Engine struct {
	retriever Retriever
	reasoner  reasoning.Port
	sessions  *SessionStore
	topK      int
}

func NewEngine(retriever Retriever, reasoner reasoning.Port, sessions *SessionStore, topK int) *Engine {
	if topK <= 0 {
		topK = 5
	}
	return &Engine{retriever: retriever, reasoner: reasoner, sessions: sessions, topK: topK}
}

// Ask answers one question. An empty sessionID starts a new session; the
// returned response carries the id to continue the conversation with.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (models.ChatResponse, error) {
	if strings.TrimSpace(question) == "" {
		return models.ChatResponse{}, retrieval.ErrEmptyQuery
	}
	sessionID = e.sessions.Ensure(sessionID)

	results, err := e.retriever.SearchAndFormat(ctx, question, e.topK)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("chat: retrieve guidelines: %w", err)
	}

	history := e.sessions.Recent(sessionID, historyWindow)
	prompt := fmt.Sprintf(models.ChatPromptTemplate, question, results.ContextText, formatHistory(history))

	answer, err := e.reasoner.Generate(ctx, prompt, nil)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("chat: reasoning: %w", err)
	}

	asked := now()
	e.sessions.Append(sessionID, models.Message{Role: models.RoleUser, Content: question, Timestamp: asked})
	answered := now()
	e.sessions.Append(sessionID, models.Message{
		Role:      models.RoleAssistant,
		Content:   answer,
		Timestamp: answered,
		Citations: results.Citations,
	})

	log.Debug().
		Str("session_id", sessionID).
		Int("citations", len(results.Citations)).
		Msg("Answered chat question")

	return models.ChatResponse{
		SessionID: sessionID,
		Answer:    answer,
		Citations: results.Citations,
		Timestamp: answered,
	}, nil
}

// History exposes the full session transcript.
func (e *Engine) History(sessionID string) ([]models.Message, error) {
	return e.sessions.History(sessionID)
}

// EndSession removes the session and its history.
func (e *Engine) EndSession(sessionID string) error {
	return e.sessions.Delete(sessionID)
}

func formatHistory(history []models.Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nCONVERSATION SO FAR:\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return sb.String()
}
