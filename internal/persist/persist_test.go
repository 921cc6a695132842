package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

type recordingSink struct {
	mu    sync.Mutex
	saves []*model.SessionState
}

func (r *recordingSink) SaveSessionState(_ context.Context, s *model.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, s)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func testSnapshot(id string) Snapshot {
	return func() *model.SessionState {
		return &model.SessionState{ID: id}
	}
}

func TestMarksCoalesce(t *testing.T) {
	sink := &recordingSink{}
	s := NewSaver(sink, testSnapshot("s1"), 50*time.Millisecond)
	defer s.Close()

	for i := 0; i < 100; i++ {
		s.Mark()
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// All 100 marks landed inside one window: exactly one write.
	if got := sink.count(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestFlushImmediate(t *testing.T) {
	sink := &recordingSink{}
	s := NewSaver(sink, testSnapshot("s1"), time.Hour)
	defer s.Close()

	s.Mark()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestFlushCleanIsNoop(t *testing.T) {
	sink := &recordingSink{}
	s := NewSaver(sink, testSnapshot("s1"), time.Hour)
	defer s.Close()

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sink.count(); got != 0 {
		t.Errorf("writes = %d, want 0 for clean state", got)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	sink := &recordingSink{}
	s := NewSaver(sink, testSnapshot("s1"), time.Hour)

	s.Mark()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("writes = %d, want 1 after Close", got)
	}
	// Second Close is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("writes = %d after double Close, want 1", got)
	}
}
