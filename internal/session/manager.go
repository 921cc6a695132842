package session

import (
	"context"
	"sync"

	"github.com/stoa-edu/stoa/internal/eval"
	"github.com/stoa-edu/stoa/internal/model"
	"github.com/stoa-edu/stoa/internal/persist"
)

// Manager owns the live session machines, keyed by session ID.
type Manager struct {
	gw       eval.Gateway
	pipe     *eval.Pipeline
	sink     persist.Sink
	exporter Exporter
	cfg      model.Config

	mu       sync.RWMutex
	machines map[string]*Machine
}

// NewManager creates an empty manager sharing one gateway, pipeline, and
// sink across all sessions.
func NewManager(gw eval.Gateway, pipe *eval.Pipeline, sink persist.Sink, exporter Exporter, cfg model.Config) *Manager {
	return &Manager{
		gw:       gw,
		pipe:     pipe,
		sink:     sink,
		exporter: exporter,
		cfg:      cfg,
		machines: make(map[string]*Machine),
	}
}

// Create starts a new session for username. An empty lang falls back to the
// configured default language. topic and goal are the learner's stated study
// topic and test goal; both may be empty.
func (mgr *Manager) Create(username, lang, topic, goal string) *Machine {
	if lang == "" {
		lang = mgr.cfg.Language
	}
	st := newState(username, lang)
	st.SelectedTopic = topic
	st.TestGoal = goal
	m := NewMachine(st, mgr.gw, mgr.pipe, mgr.sink, mgr.exporter, mgr.cfg)

	mgr.mu.Lock()
	mgr.machines[st.ID] = m
	mgr.mu.Unlock()
	return m
}

// Get returns the machine for a session ID.
func (mgr *Manager) Get(id string) (*Machine, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.machines[id]
	return m, ok
}

// Remove drops a session from the registry. The machine itself is not ended;
// callers end it first.
func (mgr *Manager) Remove(id string) {
	mgr.mu.Lock()
	delete(mgr.machines, id)
	mgr.mu.Unlock()
}

// Close ends every live session, flushing pending state. Used on shutdown.
func (mgr *Manager) Close(ctx context.Context) {
	mgr.mu.Lock()
	machines := make([]*Machine, 0, len(mgr.machines))
	for _, m := range mgr.machines {
		machines = append(machines, m)
	}
	mgr.machines = make(map[string]*Machine)
	mgr.mu.Unlock()

	for _, m := range machines {
		_ = m.End(ctx)
	}
}
