package testutil

import (
	"sync"
	"time"

	"zipup/internal/zipup"
)

// RecordingSink collects progress events. Safe for concurrent use.
type RecordingSink struct {
	mu     sync.Mutex
	events []zipup.Event
	calls  int
	delay  time.Duration
}

// NewRecordingSink returns a sink that records every event.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// NewSlowSink returns a recording sink that sleeps for delay before
// recording each event.
func NewSlowSink(delay time.Duration) *RecordingSink {
	return &RecordingSink{delay: delay}
}

func (s *RecordingSink) Report(e zipup.Event) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []zipup.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]zipup.Event(nil), s.events...)
}

// Calls returns how many times Report has been entered, including calls
// still sleeping.
func (s *RecordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Messages returns the recorded event messages in order.
func (s *RecordingSink) Messages() []string {
	events := s.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Message
	}
	return out
}

// Terminal returns the events whose phase is success or error.
func (s *RecordingSink) Terminal() []zipup.Event {
	var out []zipup.Event
	for _, e := range s.Events() {
		if e.Phase != zipup.PhaseProcessing {
			out = append(out, e)
		}
	}
	return out
}
