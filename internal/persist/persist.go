// Package persist decouples session mutation from durable writes. A Saver
// coalesces dirty-marks into one snapshot write per interval; Flush bypasses
// the debounce for page-unload style moments where waiting would lose data.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// DefaultInterval is the debounce window between coalesced writes.
const DefaultInterval = 3 * time.Second

// Sink is the storage destination for session snapshots. The sqlite store
// implements it; tests use an in-memory recorder.
type Sink interface {
	SaveSessionState(ctx context.Context, state *model.SessionState) error
}

// Snapshot produces a copy of the current session state that is safe to write
// outside the session lock.
type Snapshot func() *model.SessionState

// Saver debounces snapshot writes. Mark is cheap and safe to call on every
// mutation; at most one write per interval reaches the sink.
type Saver struct {
	sink     Sink
	snapshot Snapshot
	interval time.Duration

	mu    sync.Mutex
	dirty bool

	stop sync.Once
	done chan struct{}
}

// NewSaver starts the background writer. Close must be called to stop it.
func NewSaver(sink Sink, snapshot Snapshot, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Saver{
		sink:     sink,
		snapshot: snapshot,
		interval: interval,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Mark records that the session state changed. The write happens on the next
// tick; repeated marks within one interval coalesce into one write.
func (s *Saver) Mark() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Flush writes the current state immediately if anything changed since the
// last write. Used on session end and process shutdown.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	s.mu.Unlock()
	return s.sink.SaveSessionState(ctx, s.snapshot())
}

// Close stops the background writer and flushes any pending state.
func (s *Saver) Close() error {
	var err error
	s.stop.Do(func() {
		close(s.done)
		err = s.Flush(context.Background())
	})
	return err
}

func (s *Saver) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.Flush(context.Background()); err != nil {
				// A failed tick is retried implicitly: the state stays in
				// memory and the next Mark schedules another write.
				slog.Error("debounced session save failed", "error", err)
				s.Mark()
			}
		}
	}
}
