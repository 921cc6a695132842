package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/stoa-edu/stoa/internal/model"
)

// newState builds a fresh session for one learner: empty log, all levels at
// zero points, test positioned at the first Bloom level.
func newState(username, lang string) *model.SessionState {
	scores := make(map[model.BloomLevel]model.TaskScore, len(model.LevelOrder))
	for _, l := range model.LevelOrder {
		scores[l] = model.TaskScore{}
	}
	return &model.SessionState{
		ID:               uuid.NewString(),
		Username:         username,
		Language:         lang,
		Conversations:    make(map[model.AgentType][]model.LogEntry),
		TaskScores:       scores,
		CurrentTestLevel: model.LevelRemember,
		CreatedAt:        time.Now(),
	}
}

// updateTaskScore records points for a level. Completion is derived, never
// set directly: a level is done once its points reach the ceiling.
func updateTaskScore(st *model.SessionState, level model.BloomLevel, points float64) {
	if st.TaskScores == nil {
		st.TaskScores = make(map[model.BloomLevel]model.TaskScore)
	}
	st.TaskScores[level] = model.TaskScore{
		Points:    points,
		Completed: points >= model.MaxPoints,
	}
}

// allCompleted reports whether every level has been completed.
func allCompleted(st *model.SessionState) bool {
	for _, l := range model.LevelOrder {
		if !st.TaskScores[l].Completed {
			return false
		}
	}
	return true
}

// snapshotState deep-copies the parts of the state that later mutations
// touch. Log entries themselves are immutable, so copying the slice headers
// and maps is enough.
func snapshotState(st *model.SessionState) *model.SessionState {
	cp := *st
	cp.UnifiedLog = append([]model.LogEntry(nil), st.UnifiedLog...)
	cp.FeedbackHistory = append([]model.FeedbackEntry(nil), st.FeedbackHistory...)
	cp.Conversations = make(map[model.AgentType][]model.LogEntry, len(st.Conversations))
	for k, v := range st.Conversations {
		cp.Conversations[k] = append([]model.LogEntry(nil), v...)
	}
	cp.TaskScores = make(map[model.BloomLevel]model.TaskScore, len(st.TaskScores))
	for k, v := range st.TaskScores {
		cp.TaskScores[k] = v
	}
	if st.Meta != nil {
		cp.Meta = make(map[string]string, len(st.Meta))
		for k, v := range st.Meta {
			cp.Meta[k] = v
		}
	}
	return &cp
}
