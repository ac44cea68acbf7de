package chat_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/chat"
	"guideline-rag/internal/models"
	"guideline-rag/internal/reasoning"
	"guideline-rag/internal/retrieval"
)

type stubRetriever struct {
	results retrieval.FormattedResults
}

func (s *stubRetriever) SearchAndFormat(context.Context, string, int) (retrieval.FormattedResults, error) {
	return s.results, nil
}

func testResults() retrieval.FormattedResults {
	return retrieval.FormattedResults{
		ContextText: "[Source 1: NG12 PDF, Page 12, Section: Lung cancer]\nRefer urgently.",
		Citations: []models.Citation{
			{Source: models.GuidelineSource, Page: 12, ChunkID: "ng12_0012_01", Excerpt: "Refer urgently.", RelevanceScore: 0.9},
		},
	}
}

func TestAsk_NewSession(t *testing.T) {
	reasoner := reasoning.NewMockReasoner("Urgent referral is recommended (NG12 page 12).")
	engine := chat.NewEngine(&stubRetriever{results: testResults()}, reasoner, chat.NewSessionStore(), 5)

	resp, err := engine.Ask(context.Background(), "", "When should haemoptysis be referred?")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Urgent referral is recommended (NG12 page 12).", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, 12, resp.Citations[0].Page)

	// The prompt carries the question and the retrieved guideline context.
	assert.Contains(t, reasoner.LastPrompt, "When should haemoptysis be referred?")
	assert.Contains(t, reasoner.LastPrompt, "Refer urgently.")

	history, err := engine.History(resp.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Len(t, history[1].Citations, 1)
}

func TestAsk_HistoryWindowInPrompt(t *testing.T) {
	reasoner := reasoning.NewMockReasoner("Answer.")
	engine := chat.NewEngine(&stubRetriever{results: testResults()}, reasoner, chat.NewSessionStore(), 5)

	resp, err := engine.Ask(context.Background(), "", "first question")
	require.NoError(t, err)

	_, err = engine.Ask(context.Background(), resp.SessionID, "second question")
	require.NoError(t, err)

	assert.Contains(t, reasoner.LastPrompt, "CONVERSATION SO FAR:")
	assert.Contains(t, reasoner.LastPrompt, "user: first question")
	assert.Contains(t, reasoner.LastPrompt, "assistant: Answer.")
}

func TestAsk_OldMessagesFallOutOfWindow(t *testing.T) {
	reasoner := reasoning.NewMockReasoner("Answer.")
	engine := chat.NewEngine(&stubRetriever{results: testResults()}, reasoner, chat.NewSessionStore(), 5)

	resp, err := engine.Ask(context.Background(), "", "question 0")
	require.NoError(t, err)
	for i := 1; i <= 6; i++ {
		_, err = engine.Ask(context.Background(), resp.SessionID, fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	// 12 messages precede the last ask; only the trailing 10 are replayed.
	assert.NotContains(t, reasoner.LastPrompt, "user: question 0")
	assert.Contains(t, reasoner.LastPrompt, "user: question 5")

	history, err := engine.History(resp.SessionID)
	require.NoError(t, err)
	// The full transcript is still retained.
	assert.Len(t, history, 14)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	engine := chat.NewEngine(&stubRetriever{results: testResults()}, reasoning.NewMockReasoner("x"), chat.NewSessionStore(), 5)

	_, err := engine.Ask(context.Background(), "", "   ")
	assert.ErrorIs(t, err, retrieval.ErrEmptyQuery)
}

func TestEndSession(t *testing.T) {
	engine := chat.NewEngine(&stubRetriever{results: testResults()}, reasoning.NewMockReasoner("x"), chat.NewSessionStore(), 5)

	resp, err := engine.Ask(context.Background(), "", "hello")
	require.NoError(t, err)

	require.NoError(t, engine.EndSession(resp.SessionID))

	_, err = engine.History(resp.SessionID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	assert.ErrorIs(t, engine.EndSession("unknown"), chat.ErrSessionNotFound)
}

func TestSessionStore_Concurrency(t *testing.T) {
	store := chat.NewSessionStore()
	id := store.Ensure("")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				store.Append(id, models.Message{Role: models.RoleUser, Content: fmt.Sprintf("w%d-%d", n, j)})
				store.Recent(id, 10)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Len(t, history, 400)
}
