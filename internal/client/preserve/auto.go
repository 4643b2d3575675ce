package preserve

import (
	"context"
	"maps"
)

// AutoPreserve records data after the debounce period has passed without a
// newer call. Empty data is ignored and cancels nothing.
func (s *Store) AutoPreserve(data map[string]any) {
	if len(data) == 0 {
		return
	}
	snapshot := maps.Clone(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.autoCancel != nil {
		s.autoCancel()
	}
	s.autoGen++
	gen := s.autoGen

	s.autoCancel = s.sched.Schedule(func() {
		s.mu.Lock()
		// A timer that already fired cannot be stopped; only the latest
		// generation may write.
		if gen != s.autoGen {
			s.mu.Unlock()
			return
		}
		s.autoGen++
		s.autoCancel = nil
		s.mu.Unlock()

		ctx := context.Background()
		if err := s.Preserve(ctx, snapshot, ""); err != nil {
			s.log.Error(ctx, "auto-preserve failed", "error", err)
		}
	}, s.debounce)
}

// StopAutoPreserve drops a pending debounced write.
func (s *Store) StopAutoPreserve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoCancel != nil {
		s.autoCancel()
		s.autoCancel = nil
	}
	s.autoGen++
}
