package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/llm"
	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/internal/session"
)

type fakeRetriever struct {
	chunks  []models.ScoredChunk
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]models.ScoredChunk, error) {
	f.queries = append(f.queries, query)
	return f.chunks, f.err
}

func oneChunk(text string) []models.ScoredChunk {
	return []models.ScoredChunk{{
		Chunk: models.Chunk{Text: text, Metadata: map[string]string{"source": "doc.pdf", "page": "1"}},
		Score: 0.9,
	}}
}

func TestService_AnswerGrounded(t *testing.T) {
	provider := llm.NewScriptedProvider("Paris is the capital.")
	ret := &fakeRetriever{chunks: oneChunk("Paris is the capital of France.")}
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, ret, sessions)

	ans, err := svc.Answer(context.Background(), "s1", "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Paris is the capital." {
		t.Errorf("text = %q", ans.Text)
	}
	if !ans.Grounded {
		t.Error("answer with retrieved context should be grounded")
	}
	if ans.Graph != nil || ans.GraphImage != "" {
		t.Error("no chart was requested")
	}

	// The retrieved chunk must reach the model inside the system message.
	sys := provider.Calls[0][0]
	if sys.Role != llm.RoleSystem || !strings.Contains(sys.Content, "Paris is the capital of France.") {
		t.Errorf("system message = %+v", sys)
	}
	if !strings.Contains(sys.Content, "doc.pdf p.1") {
		t.Error("context should cite its source")
	}

	h := sessions.History("s1")
	if len(h) != 2 || h[0].Role != models.RoleUser || h[1].Role != models.RoleAssistant {
		t.Errorf("history = %+v", h)
	}
}

func TestService_AnswerUngroundedOnEmptyRetrieval(t *testing.T) {
	provider := llm.NewScriptedProvider("I don't know.")
	svc := NewService(provider, &fakeRetriever{}, session.NewStore(10, 10, 0))

	ans, err := svc.Answer(context.Background(), "s1", "Anything?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Grounded {
		t.Error("empty retrieval must not be grounded")
	}
	if !strings.Contains(provider.Calls[0][0].Content, "No context was found") {
		t.Error("system message should state that no context was found")
	}
}

func TestService_FirstTurnSkipsReformulation(t *testing.T) {
	provider := llm.NewScriptedProvider("answer")
	ret := &fakeRetriever{chunks: oneChunk("ctx")}
	svc := NewService(provider, ret, session.NewStore(10, 10, 0))

	if _, err := svc.Answer(context.Background(), "s1", "first question"); err != nil {
		t.Fatal(err)
	}
	if len(provider.Calls) != 1 {
		t.Errorf("first turn should make a single model call, got %d", len(provider.Calls))
	}
	if ret.queries[0] != "first question" {
		t.Errorf("retrieval query = %q", ret.queries[0])
	}
}

func TestService_FollowUpReformulatesForRetrieval(t *testing.T) {
	provider := llm.NewScriptedProvider(
		"The Eiffel Tower is 330 meters tall.",
		"How tall is the Eiffel Tower?",
		"330 meters.",
	)
	ret := &fakeRetriever{chunks: oneChunk("The Eiffel Tower is 330m.")}
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, ret, sessions)
	ctx := context.Background()

	if _, err := svc.Answer(ctx, "s1", "Tell me about the Eiffel Tower"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Answer(ctx, "s1", "How tall is it?"); err != nil {
		t.Fatal(err)
	}

	if len(ret.queries) != 2 || ret.queries[1] != "How tall is the Eiffel Tower?" {
		t.Errorf("queries = %v", ret.queries)
	}
	// Call 2 is the reformulation: it must carry the history and instruction.
	reformCall := provider.Calls[1]
	if !strings.Contains(reformCall[0].Content, "standalone question") {
		t.Errorf("reformulation system message = %q", reformCall[0].Content)
	}
	if len(reformCall) != 4 {
		t.Errorf("reformulation call has %d messages", len(reformCall))
	}
	// The final user turn keeps the original wording.
	answerCall := provider.Calls[2]
	if answerCall[len(answerCall)-1].Content != "How tall is it?" {
		t.Errorf("final question = %q", answerCall[len(answerCall)-1].Content)
	}
}

func TestService_ReformulationFailureFallsBack(t *testing.T) {
	// Script: first answer, then exhausted for the reformulation call, then
	// nothing left for the answer either. Use a provider that fails only once.
	provider := &flakyProvider{failOn: 2, inner: llm.NewScriptedProvider("first", "unused", "second")}
	ret := &fakeRetriever{chunks: oneChunk("ctx")}
	svc := NewService(provider, ret, session.NewStore(10, 10, 0))
	ctx := context.Background()

	if _, err := svc.Answer(ctx, "s1", "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Answer(ctx, "s1", "follow up"); err != nil {
		t.Fatal(err)
	}
	if ret.queries[1] != "follow up" {
		t.Errorf("failed reformulation should fall back to the raw question, got %q", ret.queries[1])
	}
}

func TestService_GenerationFailureLeavesHistoryUntouched(t *testing.T) {
	provider := llm.NewScriptedProvider() // exhausted immediately
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, &fakeRetriever{}, sessions)

	if _, err := svc.Answer(context.Background(), "s1", "q"); err == nil {
		t.Fatal("expected generation error")
	}
	if len(sessions.History("s1")) != 0 {
		t.Error("failed generation must not be recorded")
	}
}

func TestService_ChartDirectiveRendered(t *testing.T) {
	provider := llm.NewScriptedProvider("Here is the trend. GRAPH: [0,1,2],[0,1,4]")
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, &fakeRetriever{chunks: oneChunk("ctx")}, sessions)

	ans, err := svc.Answer(context.Background(), "s1", "chart the trend")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Here is the trend." {
		t.Errorf("text = %q", ans.Text)
	}
	if ans.Graph == nil || ans.GraphImage == "" {
		t.Error("chart should be parsed and rendered")
	}
	// History records the cleaned text.
	h := sessions.History("s1")
	if h[1].Content != "Here is the trend." {
		t.Errorf("recorded answer = %q", h[1].Content)
	}
}

func TestService_MalformedDirectiveKeptVerbatim(t *testing.T) {
	provider := llm.NewScriptedProvider("Trend. GRAPH: [0,1,2],[0,1]")
	svc := NewService(provider, &fakeRetriever{chunks: oneChunk("ctx")}, session.NewStore(10, 10, 0))

	ans, err := svc.Answer(context.Background(), "s1", "chart it")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Trend. GRAPH: [0,1,2],[0,1]" || ans.Graph != nil {
		t.Errorf("ans = %+v", ans)
	}
}

func TestService_SinglePointDirectiveKeptVerbatim(t *testing.T) {
	provider := llm.NewScriptedProvider("The peak was 42. GRAPH: [1],[42]")
	svc := NewService(provider, &fakeRetriever{chunks: oneChunk("ctx")}, session.NewStore(10, 10, 0))

	ans, err := svc.Answer(context.Background(), "s1", "chart the peak")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "The peak was 42. GRAPH: [1],[42]" || ans.Graph != nil || ans.GraphImage != "" {
		t.Errorf("ans = %+v", ans)
	}
}

func TestService_AnswerStream(t *testing.T) {
	provider := llm.NewScriptedProvider("streamed answer text")
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, &fakeRetriever{chunks: oneChunk("ctx")}, sessions)

	var got strings.Builder
	err := svc.AnswerStream(context.Background(), "s1", "q", func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "streamed answer text" {
		t.Errorf("streamed = %q", got.String())
	}
	h := sessions.History("s1")
	if len(h) != 2 || h[1].Content != "streamed answer text" {
		t.Errorf("history = %+v", h)
	}
}

func TestService_AnswerStreamFailureLeavesHistoryUntouched(t *testing.T) {
	provider := llm.NewScriptedProvider("some answer")
	sessions := session.NewStore(10, 10, 0)
	svc := NewService(provider, &fakeRetriever{chunks: oneChunk("ctx")}, sessions)

	err := svc.AnswerStream(context.Background(), "s1", "q", func(string) error {
		return fmt.Errorf("client went away")
	})
	if err == nil {
		t.Fatal("expected stream error")
	}
	if len(sessions.History("s1")) != 0 {
		t.Error("aborted stream must not be recorded")
	}
}

// flakyProvider fails the nth Complete call and delegates otherwise.
type flakyProvider struct {
	failOn int
	calls  int
	inner  *llm.ScriptedProvider
}

func (f *flakyProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	if f.calls == f.failOn {
		return "", fmt.Errorf("transient failure")
	}
	return f.inner.Complete(ctx, messages)
}

func (f *flakyProvider) Stream(ctx context.Context, messages []llm.Message, fn func(string) error) error {
	return f.inner.Stream(ctx, messages, fn)
}
