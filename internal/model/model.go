package model

import (
	"context"
	"time"
)

// UserRole represents an account's access level (distinct from AgentType,
// which tags chat messages).
type UserRole string

const (
	// UserRoleParticipant is a study participant account.
	UserRoleParticipant UserRole = "participant"
	// UserRoleAdmin is a researcher/admin account.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system account.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Role is a wire-level chat message role as accepted by the upstream API.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AgentType identifies which agent (or the learner) produced a log entry.
type AgentType string

const (
	AgentUser      AgentType = "user"
	AgentTeacher   AgentType = "teacher"
	AgentPeer      AgentType = "peer"
	AgentExaminer  AgentType = "examiner"
	AgentFeedback  AgentType = "feedback"
	AgentLibrarian AgentType = "librarian"
	AgentMindmap   AgentType = "mindmap"
	AgentEvaluator AgentType = "evaluator"
)

// Message is a single chat message sent to the LLM gateway.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LogEntry is one immutable record in the unified log. Content is always
// non-empty; entries are never mutated after being appended.
type LogEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker,omitempty"`
	AgentType AgentType `json:"agentType,omitempty"`
}

// TaskScore is the learner's standing on one Bloom level.
type TaskScore struct {
	Points    float64 `json:"points"`
	Completed bool    `json:"completed"`
}

// EvaluationResult is the outcome of a single evaluator pass.
type EvaluationResult struct {
	EvaluatorID string  `json:"evaluatorId"`
	Label       string  `json:"label"`
	RawScore    float64 `json:"rawScore"`
	Feedback    string  `json:"feedback"`
}

// Evaluation aggregates the three evaluator passes over one answer.
type Evaluation struct {
	Details         []EvaluationResult `json:"details"`
	AverageRawScore float64            `json:"averageRawScore"`
	Variance        float64            `json:"variance"`
	Credibility     int                `json:"credibility"`
	Attempts        int                `json:"attempts"`
}

// FeedbackEntry is one synthesized feedback record shown to the learner and
// kept for research export.
type FeedbackEntry struct {
	TaskLevel       BloomLevel         `json:"taskLevel"`
	TaskName        string             `json:"taskName"`
	Score           float64            `json:"score"`
	Evaluators      []EvaluationResult `json:"evaluators"`
	AverageRawScore float64            `json:"averageRawScore"`
	Variance        float64            `json:"variance"`
	Credibility     int                `json:"credibility"`
	Summary         string             `json:"summary"`
	Timestamp       time.Time          `json:"timestamp"`
}

// SessionState is the single mutable record for one learner session. It is
// read-modify-written as a whole; concurrent writers are last-write-wins.
type SessionState struct {
	ID               string                   `json:"id"`
	Username         string                   `json:"username"`
	Language         string                   `json:"language"`
	Conversations    map[AgentType][]LogEntry `json:"conversations"`
	UnifiedLog       []LogEntry               `json:"unifiedLog"`
	TaskScores       map[BloomLevel]TaskScore `json:"taskScores"`
	FeedbackHistory  []FeedbackEntry          `json:"feedbackHistory"`
	TurnCount        int                      `json:"turnCount"`
	TestCount        int                      `json:"testCount"`
	CurrentTestLevel BloomLevel               `json:"currentTestLevel"`
	SelectedTopic    string                   `json:"selectedTopic,omitempty"`
	TestGoal         string                   `json:"testGoal,omitempty"`
	Meta             map[string]string        `json:"meta,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	Language           string        // default UI language (en, zh)
	MinClassroomRounds int           // classroom rounds required before testing
	EvalMaxAttempts    int           // total evaluation attempts before accepting disagreement
	VarianceThreshold  float64       // evaluator disagreement threshold
	SaveInterval       time.Duration // debounced persistence interval
	BasePath           string        // URL prefix for sub-path deployments
	SecureCookies      bool          // Set Secure flag on cookies (disable for local dev)
}
