package market

import "context"

// Session is one activation-to-teardown lifetime of a polling loop. Each Begin
// starts a new generation; messages stamped with any other generation are stale
// and must not touch state.
type Session struct {
	gen    uint64
	alive  bool
	ctx    context.Context
	cancel context.CancelFunc
}

// Begin ends the current generation (if any) and starts the next one.
func (s *Session) Begin() uint64 {
	s.End()
	s.gen++
	s.alive = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.gen
}

// End invalidates the current generation and cancels its in-flight requests.
// It is safe to call repeatedly.
func (s *Session) End() {
	s.alive = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Owns reports whether gen is the live generation.
func (s *Session) Owns(gen uint64) bool {
	return s.alive && gen == s.gen
}

func (s *Session) Alive() bool {
	return s.alive
}

func (s *Session) Generation() uint64 {
	return s.gen
}

// Context is canceled when the session ends.
func (s *Session) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
