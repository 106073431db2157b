// Package chat answers questions over indexed documents, with per-session
// conversation history.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/graph"
	"github.com/docent-ai/docent/internal/llm"
	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/internal/session"
)

const systemPrompt = `You are an assistant answering questions about the user's uploaded documents.
Use the provided context to answer. If the context does not contain the answer, say you don't know rather than inventing one.
When the user asks for a chart or graph of numeric data, append a final line of the exact form GRAPH: [x1,x2,...],[y1,y2,...] where both lists are numeric and of equal length.`

const reformulatePrompt = `Given a chat history and the latest user question which might reference context in the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.`

const analyzePrompt = `You are an assistant analyzing text extracted from an uploaded image.
Summarize what the text contains and point out anything notable.
When the text contains a numeric series worth charting, append a final line of the exact form GRAPH: [x1,x2,...],[y1,y2,...] where both lists are numeric and of equal length.`

// Retriever fetches relevant chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error)
}

// Answer is the outcome of one question.
type Answer struct {
	Text       string
	Graph      *models.ChartPayload
	GraphImage string
	Grounded   bool
}

// Service runs the question answering pipeline: reformulate follow-ups into
// standalone questions, retrieve context, prompt the model, and record the
// exchange in the session history. Failed generations leave the history
// untouched.
type Service struct {
	provider  llm.Provider
	retriever Retriever
	sessions  *session.Store
	graphs    *graph.Extractor
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.graphs = graph.NewExtractor(logger)
	}
}

// NewService creates a chat service over the given components.
func NewService(provider llm.Provider, retriever Retriever, sessions *session.Store, opts ...Option) *Service {
	s := &Service{
		provider:  provider,
		retriever: retriever,
		sessions:  sessions,
		graphs:    graph.NewExtractor(nil),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer handles one question and returns the complete response. A chart
// directive in the model output is parsed, rendered, and stripped from the
// text; a directive that fails to render is dropped with a warning.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (*Answer, error) {
	messages, grounded, err := s.buildMessages(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}
	raw, err := s.provider.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	text, payload := s.graphs.Extract(raw)
	answer := &Answer{Text: text, Graph: payload, Grounded: grounded}
	if payload != nil {
		img, renderErr := graph.RenderBase64(*payload)
		if renderErr != nil {
			s.logger.Warn("failed to render chart", zap.Error(renderErr))
			answer.Graph = nil
		} else {
			answer.GraphImage = img
		}
	}

	s.sessions.Append(sessionID,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: text},
	)
	return answer, nil
}

// AnswerStream handles one question, delivering the model output incrementally
// through fn. The raw output streams as-is; chart directives are not parsed.
// The exchange is recorded only after the stream completes.
func (s *Service) AnswerStream(ctx context.Context, sessionID, question string, fn func(chunk string) error) error {
	messages, _, err := s.buildMessages(ctx, sessionID, question)
	if err != nil {
		return err
	}
	var full strings.Builder
	err = s.provider.Stream(ctx, messages, func(chunk string) error {
		full.WriteString(chunk)
		return fn(chunk)
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	s.sessions.Append(sessionID,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: full.String()},
	)
	return nil
}

// Analyze produces a one-shot reading of text extracted from an image. It
// does not touch retrieval or session history; chart directives are handled
// the same way as in Answer.
func (s *Service) Analyze(ctx context.Context, text string) (*Answer, error) {
	raw, err := s.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: analyzePrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	clean, payload := s.graphs.Extract(raw)
	answer := &Answer{Text: clean, Graph: payload}
	if payload != nil {
		img, renderErr := graph.RenderBase64(*payload)
		if renderErr != nil {
			s.logger.Warn("failed to render chart", zap.Error(renderErr))
			answer.Graph = nil
		} else {
			answer.GraphImage = img
		}
	}
	return answer, nil
}

// buildMessages prepares the model conversation: retrieval context in the
// system message, prior turns, then the user question. The returned flag
// reports whether any context was retrieved.
func (s *Service) buildMessages(ctx context.Context, sessionID, question string) ([]llm.Message, bool, error) {
	history := s.sessions.History(sessionID)

	query := question
	if len(history) > 0 {
		if standalone, err := s.reformulate(ctx, history, question); err != nil {
			s.logger.Warn("reformulation failed, using question as-is", zap.Error(err))
		} else if standalone != "" {
			query = standalone
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve context: %w", err)
	}

	var system strings.Builder
	system.WriteString(systemPrompt)
	if len(chunks) > 0 {
		system.WriteString("\n\nContext:\n")
		for _, c := range chunks {
			source := c.Chunk.Metadata["source"]
			if page := c.Chunk.Metadata["page"]; page != "" {
				source += " p." + page
			}
			fmt.Fprintf(&system, "[%s]\n%s\n\n", source, c.Chunk.Text)
		}
	} else {
		system.WriteString("\n\nNo context was found for this question.")
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system.String()})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages, len(chunks) > 0, nil
}

// reformulate turns a follow-up question into a standalone one using the
// chat history.
func (s *Service) reformulate(ctx context.Context, history []models.Turn, question string) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: reformulatePrompt})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	standalone, err := s.provider.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(standalone), nil
}
