package model

import (
	"encoding/json"
	"time"
)

// SessionExport is the payload posted to the log-persistence endpoint when a
// session ends (or on teardown flush).
type SessionExport struct {
	GeneratedAt         time.Time                `json:"generatedAt"`
	Segment             string                   `json:"segment"`
	TotalTurns          int                      `json:"totalTurns"`
	ConversationHistory []LogEntry               `json:"conversationHistory"`
	FeedbackHistory     []FeedbackEntry          `json:"feedbackHistory"`
	TaskScores          map[BloomLevel]TaskScore `json:"taskScores"`
}

// LogRecord is one stored conversation-log row.
type LogRecord struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Filename  string          `json:"filename"`
	Payload   json.RawMessage `json:"payload"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SurveyPhase distinguishes the pre-test and post-test instruments.
type SurveyPhase string

const (
	SurveyPre  SurveyPhase = "pretest"
	SurveyPost SurveyPhase = "posttest"
)

// SurveyResponse is one stored survey submission.
type SurveyResponse struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Language  string          `json:"language"`
	Phase     SurveyPhase     `json:"phase"`
	Responses json.RawMessage `json:"responses"`
	CreatedAt time.Time       `json:"created_at"`
}

// StudyExport is the top-level JSON structure produced by the export command.
type StudyExport struct {
	StudyID     string           `json:"study_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Logs        []LogRecord      `json:"conversation_logs"`
	Pretests    []SurveyResponse `json:"pretest_responses"`
	Posttests   []SurveyResponse `json:"posttest_responses"`
}
