package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Stages at which Answer can fail.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// RetrievalError reports a failed collaborator call while answering.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return e.Err.Error()
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of the *RetrievalError wrapped by err, or "" if
// there is none.
func StageOf(err error) string {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}

// StuffPromptTemplate places all retrieved context in one prompt.
const StuffPromptTemplate = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"%s\n\nQuestion: %s\nHelpful Answer:"

// StuffPrompt joins the matched texts with blank lines and renders
// StuffPromptTemplate.
func StuffPrompt(question string, matches []vectordb.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return fmt.Sprintf(StuffPromptTemplate, strings.Join(texts, "\n\n"), question)
}

// Result is an answer with the records it was grounded on, in store rank
// order.
type Result struct {
	Answer  string
	Sources []vectordb.Match
	Prompt  string
}

// Chain answers questions against one collection.
type Chain struct {
	Store      vectordb.VectorStore
	LLM        llm.Provider
	Collection string
}

// Answer embeds question with qe, retrieves the k nearest records, and asks
// the model to answer from them. Any collaborator failure is returned as a
// *RetrievalError; there are no retries and no partial answers.
func (c *Chain) Answer(ctx context.Context, question string, k int, qe QueryEmbedder) (*Result, error) {
	vector, err := qe.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &RetrievalError{Stage: StageEmbed, Err: err}
	}

	matches, err := c.Store.Nearest(ctx, c.Collection, vector, k)
	if err != nil {
		return nil, &RetrievalError{Stage: StageRetrieve, Err: err}
	}

	prompt := StuffPrompt(question, matches)
	answer, err := llm.Generate(ctx, c.LLM, prompt)
	if err != nil {
		return nil, &RetrievalError{Stage: StageGenerate, Err: err}
	}

	return &Result{Answer: answer, Sources: matches, Prompt: prompt}, nil
}
