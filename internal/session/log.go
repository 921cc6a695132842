package session

import (
	"sort"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// contextAgents are the sources whose entries feed LLM context. Librarian and
// mindmap output is reference material, not conversation, and is excluded.
var contextAgents = map[model.AgentType]bool{
	model.AgentUser:     true,
	model.AgentTeacher:  true,
	model.AgentPeer:     true,
	model.AgentExaminer: true,
	model.AgentFeedback: true,
}

// classroomAgents restrict examiner question generation to the learning
// conversation, keeping prior test questions and feedback out of the prompt.
var classroomAgents = map[model.AgentType]bool{
	model.AgentUser:    true,
	model.AgentTeacher: true,
	model.AgentPeer:    true,
}

// appendLog adds one entry to the unified log and the per-agent conversation.
// Empty entries are dropped; a zero timestamp gets the current time. The log
// stays sorted by timestamp, with insertion order preserved among equal
// timestamps.
func appendLog(st *model.SessionState, e model.LogEntry) {
	if e.Content == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	st.UnifiedLog = append(st.UnifiedLog, e)
	sort.SliceStable(st.UnifiedLog, func(i, j int) bool {
		return st.UnifiedLog[i].Timestamp.Before(st.UnifiedLog[j].Timestamp)
	})
	if e.AgentType != "" {
		if st.Conversations == nil {
			st.Conversations = make(map[model.AgentType][]model.LogEntry)
		}
		st.Conversations[e.AgentType] = append(st.Conversations[e.AgentType], e)
	}
}

// contextHistory flattens the unified log into chat messages, keeping only
// entries from the allowed agents. max > 0 keeps only the most recent max
// entries after filtering.
func contextHistory(st *model.SessionState, allowed map[model.AgentType]bool, max int) []model.Message {
	msgs := make([]model.Message, 0, len(st.UnifiedLog))
	for _, e := range st.UnifiedLog {
		if !allowed[e.AgentType] {
			continue
		}
		role := model.RoleAssistant
		if e.AgentType == model.AgentUser {
			role = model.RoleUser
		}
		msgs = append(msgs, model.Message{Role: role, Content: e.Content})
	}
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	return msgs
}
