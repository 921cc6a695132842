package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stoa-edu/stoa/internal/eval"
	"github.com/stoa-edu/stoa/internal/llm"
	"github.com/stoa-edu/stoa/internal/model"
)

// fakeGateway answers Invoke by agent type and Complete with a fixed
// evaluator verdict, recording the history each call received.
type fakeGateway struct {
	mu           sync.Mutex
	replies      map[model.AgentType]string
	evalReply    string
	invokeErr    error
	lastHistory  map[model.AgentType][]model.Message
	examinerSeen int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		replies: map[model.AgentType]string{
			model.AgentTeacher:   "Good question. Photosynthesis converts light into chemical energy.",
			model.AgentPeer:      "I think it happens in the chloroplasts!",
			model.AgentLibrarian: "See chapter 4 of your textbook.",
			model.AgentMindmap:   "- photosynthesis\n  - light reactions\n  - dark reactions",
			model.AgentExaminer:  "Here is your question.\n```json\n{\"question\": \"Define photosynthesis.\", \"standard_answer\": \"Light to chemical energy.\"}\n```",
			model.AgentFeedback:  `{"score": 8, "feedback": "Strong recall of the core concept."}`,
		},
		evalReply:   `{"score": 8, "feedback": "accurate"}`,
		lastHistory: make(map[model.AgentType][]model.Message),
	}
}

func (g *fakeGateway) Invoke(_ context.Context, agent model.AgentType, _ string, _ model.BloomLevel, messages []model.Message, _ llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.invokeErr != nil {
		return "", g.invokeErr
	}
	g.lastHistory[agent] = append([]model.Message(nil), messages...)
	if agent == model.AgentExaminer {
		g.examinerSeen++
	}
	return g.replies[agent], nil
}

func (g *fakeGateway) Complete(_ context.Context, _ string, _ []model.Message, _ llm.Options) (string, error) {
	return g.evalReply, nil
}

type nullSink struct{}

func (nullSink) SaveSessionState(context.Context, *model.SessionState) error { return nil }

func testConfig() model.Config {
	return model.Config{
		Language:           "en",
		MinClassroomRounds: 2,
		EvalMaxAttempts:    5,
		VarianceThreshold:  1.0,
		SaveInterval:       time.Hour,
	}
}

func newTestMachine(t *testing.T, gw *fakeGateway) *Machine {
	t.Helper()
	cfg := testConfig()
	pipe := eval.New(gw, cfg.EvalMaxAttempts, cfg.VarianceThreshold)
	m := NewMachine(newState("alice", "en"), gw, pipe, nullSink{}, nil, cfg)
	t.Cleanup(func() { _ = m.End(context.Background()) })
	return m
}

// doRounds runs n teacher exchanges to satisfy the classroom-rounds gate.
func doRounds(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := m.Classroom(context.Background(), model.AgentTeacher, "tell me more"); err != nil {
			t.Fatalf("classroom round %d: %v", i, err)
		}
	}
}

func TestAppendLogOrdering(t *testing.T) {
	st := newState("alice", "en")
	base := time.Now()

	appendLog(st, model.LogEntry{Role: model.RoleUser, Content: "second", AgentType: model.AgentUser, Timestamp: base.Add(-time.Second)})
	appendLog(st, model.LogEntry{Role: model.RoleAssistant, Content: "first", AgentType: model.AgentTeacher, Timestamp: base.Add(-2 * time.Second)})
	appendLog(st, model.LogEntry{Role: model.RoleUser, Content: "", AgentType: model.AgentUser})
	appendLog(st, model.LogEntry{Role: model.RoleUser, Content: "third", AgentType: model.AgentUser})

	if len(st.UnifiedLog) != 3 {
		t.Fatalf("log length = %d, want 3 (empty entry dropped)", len(st.UnifiedLog))
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if st.UnifiedLog[i].Content != w {
			t.Errorf("log[%d] = %q, want %q", i, st.UnifiedLog[i].Content, w)
		}
	}
	if st.UnifiedLog[2].Timestamp.IsZero() {
		t.Error("zero timestamp was not defaulted")
	}
}

func TestContextHistoryFiltering(t *testing.T) {
	st := newState("alice", "en")
	appendLog(st, model.LogEntry{Role: model.RoleUser, Content: "q", AgentType: model.AgentUser})
	appendLog(st, model.LogEntry{Role: model.RoleAssistant, Content: "teacher says", AgentType: model.AgentTeacher})
	appendLog(st, model.LogEntry{Role: model.RoleAssistant, Content: "library reference", AgentType: model.AgentLibrarian})
	appendLog(st, model.LogEntry{Role: model.RoleAssistant, Content: "mind map", AgentType: model.AgentMindmap})
	appendLog(st, model.LogEntry{Role: model.RoleAssistant, Content: "feedback text", AgentType: model.AgentFeedback})

	msgs := contextHistory(st, contextAgents, 0)
	if len(msgs) != 3 {
		t.Fatalf("context messages = %d, want 3", len(msgs))
	}
	for _, msg := range msgs {
		if msg.Content == "library reference" || msg.Content == "mind map" {
			t.Errorf("reference material leaked into context: %q", msg.Content)
		}
	}
	if msgs[0].Role != model.RoleUser {
		t.Errorf("user entry role = %q, want user", msgs[0].Role)
	}
	if msgs[1].Role != model.RoleAssistant {
		t.Errorf("teacher entry role = %q, want assistant", msgs[1].Role)
	}
}

func TestContextHistoryWindow(t *testing.T) {
	st := newState("alice", "en")
	for i := 0; i < 30; i++ {
		appendLog(st, model.LogEntry{Role: model.RoleUser, Content: "m", AgentType: model.AgentUser, Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond)})
	}
	if got := len(contextHistory(st, contextAgents, 20)); got != 20 {
		t.Errorf("windowed context = %d messages, want 20", got)
	}
}

func TestClassroomRoundsGate(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)

	if _, err := m.Ask(context.Background()); !errors.Is(err, ErrClassroomRounds) {
		t.Fatalf("Ask before rounds: err = %v, want ErrClassroomRounds", err)
	}

	// Librarian consultations do not count toward the gate.
	if _, err := m.Classroom(context.Background(), model.AgentLibrarian, "where can I read more?"); err != nil {
		t.Fatalf("librarian chat: %v", err)
	}
	if _, err := m.Ask(context.Background()); !errors.Is(err, ErrClassroomRounds) {
		t.Fatalf("Ask after librarian only: err = %v, want ErrClassroomRounds", err)
	}

	doRounds(t, m, 2)
	reply, err := m.Ask(context.Background())
	if err != nil {
		t.Fatalf("Ask after rounds: %v", err)
	}
	if reply.Question == "" {
		t.Error("no question issued")
	}
}

// The rounds gate covers every path that reaches the examiner, not just Ask.
func TestClassroomRoundsGateAllEntryPoints(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)

	if _, err := m.AnotherQuestion(context.Background()); !errors.Is(err, ErrClassroomRounds) {
		t.Errorf("AnotherQuestion before rounds: err = %v, want ErrClassroomRounds", err)
	}
	if _, err := m.Advance(context.Background()); !errors.Is(err, ErrClassroomRounds) {
		t.Errorf("Advance before rounds: err = %v, want ErrClassroomRounds", err)
	}
	if gw.examinerSeen != 0 {
		t.Errorf("examiner invoked %d times with zero classroom rounds", gw.examinerSeen)
	}
	st := m.Snapshot()
	if st.CurrentTestLevel != model.LevelRemember {
		t.Errorf("level = %v after gated Advance, want remember", st.CurrentTestLevel)
	}
}

func TestAdvanceRejectsPendingQuestion(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)

	if _, err := m.Ask(context.Background()); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := m.Advance(context.Background()); !errors.Is(err, ErrQuestionPending) {
		t.Fatalf("Advance with question out: err = %v, want ErrQuestionPending", err)
	}
	// The unanswered question survives; answering it still works.
	reply, err := m.Answer(context.Background(), "Plants turn light into chemical energy.")
	if err != nil {
		t.Fatalf("Answer after rejected Advance: %v", err)
	}
	if reply.Feedback == nil {
		t.Error("no feedback entry")
	}
}

func TestQuestionHidesStandardAnswer(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)

	reply, err := m.Ask(context.Background())
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if strings.Contains(reply.Question, "standard_answer") || strings.Contains(reply.Question, "Light to chemical") {
		t.Errorf("reference answer leaked to learner: %q", reply.Question)
	}

	st := m.Snapshot()
	for _, e := range st.UnifiedLog {
		if strings.Contains(e.Content, "Light to chemical") {
			t.Errorf("reference answer leaked into the log: %q", e.Content)
		}
	}
}

func TestExaminerContextIsClassroomOnly(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)
	if _, err := m.Classroom(context.Background(), model.AgentLibrarian, "references please"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Ask(context.Background()); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, msg := range gw.lastHistory[model.AgentExaminer] {
		if strings.Contains(msg.Content, "chapter 4") {
			t.Errorf("librarian content reached the examiner: %q", msg.Content)
		}
	}
	// The closing instruction is the last message.
	hist := gw.lastHistory[model.AgentExaminer]
	if len(hist) == 0 || !strings.Contains(hist[len(hist)-1].Content, "ONE new test question") {
		t.Error("examiner instruction missing from the final message")
	}
}

func TestAnswerFlow(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)

	if _, err := m.Answer(context.Background(), "too early"); !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("Answer without question: err = %v, want ErrNoQuestion", err)
	}

	if _, err := m.Ask(context.Background()); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	reply, err := m.Answer(context.Background(), "Plants turn light into chemical energy.")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Feedback == nil {
		t.Fatal("no feedback entry")
	}
	if reply.Feedback.Score != 8 {
		t.Errorf("score = %v, want 8", reply.Feedback.Score)
	}
	if reply.LevelCompleted {
		t.Error("level marked complete at 8 points, ceiling is 10")
	}
	if len(reply.Feedback.Evaluators) != 3 {
		t.Errorf("evaluator details = %d, want 3", len(reply.Feedback.Evaluators))
	}

	// Until the learner chooses, both answering and asking are blocked.
	if _, err := m.Answer(context.Background(), "more"); !errors.Is(err, ErrAwaitingChoice) {
		t.Errorf("Answer while awaiting: err = %v, want ErrAwaitingChoice", err)
	}
	if _, err := m.Ask(context.Background()); !errors.Is(err, ErrAwaitingChoice) {
		t.Errorf("Ask while awaiting: err = %v, want ErrAwaitingChoice", err)
	}

	if _, err := m.AnotherQuestion(context.Background()); err != nil {
		t.Fatalf("AnotherQuestion: %v", err)
	}
	st := m.Snapshot()
	if st.CurrentTestLevel != model.LevelRemember {
		t.Errorf("level = %v after AnotherQuestion, want remember", st.CurrentTestLevel)
	}
}

func TestLevelCompletionAtCeiling(t *testing.T) {
	gw := newFakeGateway()
	gw.replies[model.AgentFeedback] = `{"score": 10, "feedback": "Flawless."}`
	gw.evalReply = `{"score": 10, "feedback": "perfect"}`
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)

	if _, err := m.Ask(context.Background()); err != nil {
		t.Fatal(err)
	}
	reply, err := m.Answer(context.Background(), "a complete answer")
	if err != nil {
		t.Fatal(err)
	}
	if !reply.LevelCompleted {
		t.Error("level not completed at 10 points")
	}
	if reply.AllCompleted {
		t.Error("all levels reported complete after one level")
	}
}

func TestAdvanceWalksLevelsInOrder(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	doRounds(t, m, 2)

	want := []model.BloomLevel{
		model.LevelUnderstand,
		model.LevelApply,
		model.LevelAnalyze,
		model.LevelEvaluate,
		model.LevelCreate,
	}
	for _, w := range want {
		reply, err := m.Advance(context.Background())
		if err != nil {
			t.Fatalf("Advance to %v: %v", w, err)
		}
		if reply.Level != w {
			t.Fatalf("level = %v, want %v", reply.Level, w)
		}
		if reply.Question == "" {
			t.Errorf("no question issued at level %v", w)
		}
		// Answer the issued question so the next Advance is legal.
		if _, err := m.Answer(context.Background(), "an answer"); err != nil {
			t.Fatalf("Answer at %v: %v", w, err)
		}
	}

	// Past the last level Advance is a no-op.
	reply, err := m.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance at create: %v", err)
	}
	if reply.Level != model.LevelCreate {
		t.Errorf("level = %v after no-op advance, want create", reply.Level)
	}
	if reply.Question != "" {
		t.Error("no-op advance issued a question")
	}
}

type recordingExporter struct {
	mu      sync.Mutex
	exports []model.SessionExport
	err     error
}

func (r *recordingExporter) SaveSessionExport(_ context.Context, _, _ string, exp model.SessionExport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, exp)
	return r.err
}

func TestEndExportsBestEffort(t *testing.T) {
	gw := newFakeGateway()
	cfg := testConfig()
	pipe := eval.New(gw, cfg.EvalMaxAttempts, cfg.VarianceThreshold)
	exp := &recordingExporter{}
	m := NewMachine(newState("alice", "en"), gw, pipe, nullSink{}, exp, cfg)

	if _, err := m.Classroom(context.Background(), model.AgentTeacher, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := m.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		exp.mu.Lock()
		n := len(exp.exports)
		exp.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	exp.mu.Lock()
	defer exp.mu.Unlock()
	if len(exp.exports) != 1 {
		t.Fatalf("exports = %d, want 1", len(exp.exports))
	}
	if exp.exports[0].TotalTurns != 1 {
		t.Errorf("TotalTurns = %d, want 1", exp.exports[0].TotalTurns)
	}
	if len(exp.exports[0].ConversationHistory) == 0 {
		t.Error("export has no conversation history")
	}

	if _, err := m.Classroom(context.Background(), model.AgentTeacher, "hi"); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Classroom after End: err = %v, want ErrSessionEnded", err)
	}
}

func TestEndSurvivesExporterFailure(t *testing.T) {
	gw := newFakeGateway()
	cfg := testConfig()
	pipe := eval.New(gw, cfg.EvalMaxAttempts, cfg.VarianceThreshold)
	m := NewMachine(newState("alice", "en"), gw, pipe, nullSink{}, &recordingExporter{err: errors.New("db down")}, cfg)

	if _, err := m.Classroom(context.Background(), model.AgentTeacher, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := m.End(context.Background()); err != nil {
		t.Errorf("End with failing exporter: %v, want nil", err)
	}
}

func TestManager(t *testing.T) {
	gw := newFakeGateway()
	cfg := testConfig()
	pipe := eval.New(gw, cfg.EvalMaxAttempts, cfg.VarianceThreshold)
	mgr := NewManager(gw, pipe, nullSink{}, nil, cfg)
	defer mgr.Close(context.Background())

	m := mgr.Create("alice", "", "photosynthesis", "reach the apply level")
	st := m.Snapshot()
	if st.Language != "en" {
		t.Errorf("language = %q, want config default en", st.Language)
	}
	if st.ID == "" {
		t.Error("no session ID assigned")
	}
	if st.SelectedTopic != "photosynthesis" || st.TestGoal != "reach the apply level" {
		t.Errorf("topic = %q, goal = %q, want creation values carried", st.SelectedTopic, st.TestGoal)
	}

	got, ok := mgr.Get(st.ID)
	if !ok || got != m {
		t.Error("Get did not return the created machine")
	}
	mgr.Remove(st.ID)
	if _, ok := mgr.Get(st.ID); ok {
		t.Error("machine still present after Remove")
	}
}

func TestUnknownAgentRejected(t *testing.T) {
	gw := newFakeGateway()
	m := newTestMachine(t, gw)
	if _, err := m.Classroom(context.Background(), model.AgentType("oracle"), "hi"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("err = %v, want ErrUnknownAgent", err)
	}
	// The examiner is not reachable through classroom chat either.
	if _, err := m.Classroom(context.Background(), model.AgentExaminer, "hi"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("examiner via classroom: err = %v, want ErrUnknownAgent", err)
	}
}
