package finder

import (
	"strings"
	"sync"
)

// Decision is the terminal outcome of one interception decision.
type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionAborted  Decision = "aborted"
	DecisionCaptured Decision = "captured"
)

// ObserveFunc receives every interception decision as it is made.
type ObserveFunc func(rawURL string, decision Decision)

// captureState holds the per-search capture flags. At most one link is ever
// recorded; once found flips true it never reverts.
type captureState struct {
	mu    sync.Mutex
	found bool
	link  string
	done  chan struct{}
}

func newCaptureState() *captureState {
	return &captureState{
		done: make(chan struct{}),
	}
}

// decide classifies one observed request URL. First qualifying URL wins:
// it is recorded, completion is signalled, and the request itself is
// aborted since its payload is not needed. Everything after a capture is
// aborted; everything before it passes through.
func (s *captureState) decide(rawURL string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.found {
		return DecisionAborted
	}

	if strings.HasSuffix(rawURL, manifestSuffix) {
		s.found = true
		s.link = rawURL
		close(s.done)
		return DecisionCaptured
	}

	return DecisionAllowed
}

// result returns the captured link, if any.
func (s *captureState) result() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link, s.found
}
