// Package session holds the server-side conversation state for one learner:
// the unified log, the Bloom-level test progression, and the pending-question
// flow that ties the examiner and the evaluator panel together.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stoa-edu/stoa/internal/eval"
	"github.com/stoa-edu/stoa/internal/extract"
	"github.com/stoa-edu/stoa/internal/llm"
	"github.com/stoa-edu/stoa/internal/llm/prompts"
	"github.com/stoa-edu/stoa/internal/model"
	"github.com/stoa-edu/stoa/internal/persist"
)

// contextWindow caps how many log entries feed an LLM call.
const contextWindow = 20

var (
	// ErrAwaitingChoice is returned when an answer was just scored and the
	// learner must pick "another question" or "next level" before sending
	// more test messages.
	ErrAwaitingChoice = errors.New("awaiting next-action choice")
	// ErrClassroomRounds is returned when the test is requested before the
	// required number of classroom exchanges.
	ErrClassroomRounds = errors.New("not enough classroom rounds before testing")
	// ErrQuestionPending is returned when a new question is requested while
	// one is already waiting for an answer.
	ErrQuestionPending = errors.New("a question is already pending")
	// ErrNoQuestion is returned when an answer arrives with no question out.
	ErrNoQuestion = errors.New("no question is pending")
	// ErrSessionEnded is returned for any operation on a finished session.
	ErrSessionEnded = errors.New("session has ended")
	// ErrUnknownAgent is returned for a chat request naming no known agent.
	ErrUnknownAgent = errors.New("unknown agent")
)

// classroomRoles are the agents reachable through the classroom chat.
var classroomRoles = map[model.AgentType]bool{
	model.AgentTeacher:   true,
	model.AgentPeer:      true,
	model.AgentLibrarian: true,
	model.AgentMindmap:   true,
}

// Exporter receives the final session export when a session ends. The write
// is best-effort: failures are logged, never surfaced to the learner.
type Exporter interface {
	SaveSessionExport(ctx context.Context, username, sessionID string, exp model.SessionExport) error
}

// TestReply is the outcome of one test-flow operation.
type TestReply struct {
	// Question is the examiner's display text when a new question was issued.
	Question string `json:"question,omitempty"`
	// Feedback is set when an answer was just scored.
	Feedback *model.FeedbackEntry `json:"feedback,omitempty"`
	// Level is the test level after the operation.
	Level model.BloomLevel `json:"level"`
	// LevelCompleted reports whether the current level reached full points.
	LevelCompleted bool `json:"levelCompleted"`
	// AllCompleted reports whether every level is done.
	AllCompleted bool `json:"allCompleted"`
}

// Machine drives one learner session. All methods are safe for concurrent
// use; operations on the same session serialize on an internal lock, so a
// second message cannot observe the state mid-evaluation.
type Machine struct {
	mu    sync.Mutex
	state *model.SessionState

	gw       eval.Gateway
	pipe     *eval.Pipeline
	saver    *persist.Saver
	exporter Exporter
	cfg      model.Config

	// pendingQuestion shadows the last issued examiner question so the
	// answer is always scored against the question it was given for.
	pendingQuestion string
	pendingStandard string
	awaitingNext    bool
	ended           bool
}

// NewMachine wires a machine around existing state. sink receives debounced
// snapshots; exporter may be nil to disable the end-of-session export.
func NewMachine(st *model.SessionState, gw eval.Gateway, pipe *eval.Pipeline, sink persist.Sink, exporter Exporter, cfg model.Config) *Machine {
	m := &Machine{
		state:    st,
		gw:       gw,
		pipe:     pipe,
		exporter: exporter,
		cfg:      cfg,
	}
	m.saver = persist.NewSaver(sink, m.Snapshot, cfg.SaveInterval)
	return m
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ID
}

// Snapshot returns a copy of the session state safe to read concurrently.
func (m *Machine) Snapshot() *model.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotState(m.state)
}

// Classroom sends one learner message to a classroom agent and returns the
// agent's reply. Teacher and peer exchanges count toward the rounds required
// before testing; librarian and mindmap consultations do not.
func (m *Machine) Classroom(ctx context.Context, agent model.AgentType, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return "", ErrSessionEnded
	}
	if !classroomRoles[agent] {
		return "", ErrUnknownAgent
	}

	appendLog(m.state, model.LogEntry{
		Role:      model.RoleUser,
		Content:   text,
		Speaker:   m.state.Username,
		AgentType: model.AgentUser,
	})
	m.saver.Mark()

	history := contextHistory(m.state, contextAgents, contextWindow)
	reply, err := m.gw.Invoke(ctx, agent, m.state.Language, m.state.CurrentTestLevel, history, llm.Options{Temperature: 0.7})
	if err != nil {
		return "", err
	}

	appendLog(m.state, model.LogEntry{
		Role:      model.RoleAssistant,
		Content:   reply,
		Speaker:   string(agent),
		AgentType: agent,
	})
	if agent == model.AgentTeacher || agent == model.AgentPeer {
		m.state.TurnCount++
	}
	m.saver.Mark()
	return reply, nil
}

// Ask issues a new examiner question at the current level. It fails until
// the learner has done the minimum classroom rounds, while a question is
// still unanswered, or while a next-action choice is pending.
func (m *Machine) Ask(ctx context.Context) (*TestReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.ended:
		return nil, ErrSessionEnded
	case m.awaitingNext:
		return nil, ErrAwaitingChoice
	case m.pendingQuestion != "":
		return nil, ErrQuestionPending
	case m.state.TurnCount < m.cfg.MinClassroomRounds:
		return nil, ErrClassroomRounds
	}
	return m.askLocked(ctx)
}

// Answer scores the learner's answer to the pending question: three
// evaluator passes, variance-gated retries, then synthesized feedback. The
// session then waits for a next-action choice.
func (m *Machine) Answer(ctx context.Context, text string) (*TestReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.ended:
		return nil, ErrSessionEnded
	case m.awaitingNext:
		return nil, ErrAwaitingChoice
	case m.pendingQuestion == "":
		return nil, ErrNoQuestion
	}

	level := m.state.CurrentTestLevel
	lang := m.state.Language
	question := m.pendingQuestion
	standard := m.pendingStandard

	appendLog(m.state, model.LogEntry{
		Role:      model.RoleUser,
		Content:   text,
		Speaker:   m.state.Username,
		AgentType: model.AgentUser,
	})
	m.saver.Mark()

	ev := m.pipe.Evaluate(ctx, eval.Input{
		Question:       question,
		Answer:         text,
		Level:          level,
		StandardAnswer: standard,
		Lang:           lang,
	})
	score, summary := m.pipe.Synthesize(ctx, lang, level, ev)
	score = extract.ClampScore(score)

	entry := model.FeedbackEntry{
		TaskLevel:       level,
		TaskName:        prompts.LevelLabel(level, lang),
		Score:           score,
		Evaluators:      ev.Details,
		AverageRawScore: ev.AverageRawScore,
		Variance:        ev.Variance,
		Credibility:     ev.Credibility,
		Summary:         summary,
		Timestamp:       time.Now(),
	}
	m.state.FeedbackHistory = append(m.state.FeedbackHistory, entry)
	appendLog(m.state, model.LogEntry{
		Role:      model.RoleAssistant,
		Content:   summary,
		Speaker:   string(model.AgentFeedback),
		AgentType: model.AgentFeedback,
	})
	updateTaskScore(m.state, level, score)

	m.pendingQuestion = ""
	m.pendingStandard = ""
	m.awaitingNext = true
	m.saver.Mark()

	return &TestReply{
		Feedback:       &entry,
		Level:          level,
		LevelCompleted: m.state.TaskScores[level].Completed,
		AllCompleted:   allCompleted(m.state),
	}, nil
}

// AnotherQuestion resolves the next-action choice by staying at the current
// level and asking a fresh question. The classroom-rounds gate applies here
// the same as in Ask.
func (m *Machine) AnotherQuestion(ctx context.Context) (*TestReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.ended:
		return nil, ErrSessionEnded
	case m.pendingQuestion != "":
		return nil, ErrQuestionPending
	case m.state.TurnCount < m.cfg.MinClassroomRounds:
		return nil, ErrClassroomRounds
	}
	m.awaitingNext = false
	return m.askLocked(ctx)
}

// Advance moves to the next Bloom level and asks the first question there.
// It is subject to the same gates as Ask: an unanswered question must be
// answered first, and the classroom rounds must be done. At the last level
// it is a no-op that reports the current standing.
func (m *Machine) Advance(ctx context.Context) (*TestReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.ended:
		return nil, ErrSessionEnded
	case m.pendingQuestion != "":
		return nil, ErrQuestionPending
	case m.state.TurnCount < m.cfg.MinClassroomRounds:
		return nil, ErrClassroomRounds
	}
	next, ok := model.NextLevel(m.state.CurrentTestLevel)
	if !ok {
		return &TestReply{
			Level:          m.state.CurrentTestLevel,
			LevelCompleted: m.state.TaskScores[m.state.CurrentTestLevel].Completed,
			AllCompleted:   allCompleted(m.state),
		}, nil
	}
	m.state.CurrentTestLevel = next
	m.awaitingNext = false
	m.saver.Mark()
	return m.askLocked(ctx)
}

func (m *Machine) askLocked(ctx context.Context) (*TestReply, error) {
	lang := m.state.Language
	level := m.state.CurrentTestLevel

	history := contextHistory(m.state, classroomAgents, contextWindow)
	history = append(history, model.Message{
		Role:    model.RoleUser,
		Content: prompts.ExaminerInstruction(lang),
	})
	raw, err := m.gw.Invoke(ctx, model.AgentExaminer, lang, level, history, llm.Options{Temperature: 0.7})
	if err != nil {
		return nil, err
	}

	out := extract.ParseExaminer(raw)
	question := out.QuestionText
	if question == "" {
		question = out.DisplayText
	}

	appendLog(m.state, model.LogEntry{
		Role:      model.RoleAssistant,
		Content:   out.DisplayText,
		Speaker:   string(model.AgentExaminer),
		AgentType: model.AgentExaminer,
	})
	m.pendingQuestion = question
	m.pendingStandard = out.StandardAnswer
	m.state.TestCount++
	m.saver.Mark()

	return &TestReply{
		Question: out.DisplayText,
		Level:    level,
	}, nil
}

// End finishes the session: the final export is handed to the exporter in
// the background, pending state is flushed, and the debounce loop stops.
// Export failures never block or fail the shutdown.
func (m *Machine) End(ctx context.Context) error {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return ErrSessionEnded
	}
	m.ended = true
	exp := buildExport(m.state)
	username := m.state.Username
	sessionID := m.state.ID
	m.mu.Unlock()

	if m.exporter != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.exporter.SaveSessionExport(ctx, username, sessionID, exp); err != nil {
				slog.Error("session export failed", "session", sessionID, "error", err)
			}
		}()
	}
	return m.saver.Close()
}

func buildExport(st *model.SessionState) model.SessionExport {
	scores := make(map[model.BloomLevel]model.TaskScore, len(st.TaskScores))
	for k, v := range st.TaskScores {
		scores[k] = v
	}
	return model.SessionExport{
		GeneratedAt:         time.Now(),
		Segment:             "final",
		TotalTurns:          st.TurnCount,
		ConversationHistory: append([]model.LogEntry(nil), st.UnifiedLog...),
		FeedbackHistory:     append([]model.FeedbackEntry(nil), st.FeedbackHistory...),
		TaskScores:          scores,
	}
}
