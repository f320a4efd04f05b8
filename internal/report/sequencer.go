package report

import "sync"

// Token identifies one report request issued by a Sequencer.
type Token uint64

// Sequencer guards against out-of-order completion of overlapping report
// requests. Only the most recently issued request may publish its result;
// anything completing after a newer Begin is dropped.
//
// Build itself carries no such guard: callers that skip the Sequencer get
// whichever result they store last.
type Sequencer struct {
	mu     sync.Mutex
	issued Token
	done   Token
	latest Report
	ok     bool
}

// Begin issues a token for a new request. It supersedes every earlier token.
func (s *Sequencer) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Complete publishes r if t is still the newest token. It reports whether r
// was accepted.
func (s *Sequencer) Complete(t Token, r Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.issued || t == s.done {
		return false
	}
	s.done = t
	s.latest = r
	s.ok = true
	return true
}

// Current reports whether t is still the newest token.
func (s *Sequencer) Current(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t == s.issued
}

// Latest returns the last accepted report and its token.
func (s *Sequencer) Latest() (Report, Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.done, s.ok
}
