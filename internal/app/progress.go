package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"zipup/internal/zipup"
)

// ConsoleSink prints progress events as single lines.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	step    func(a ...interface{}) string
	counter func(a ...interface{}) string
	ok      func(a ...interface{}) string
	fail    func(a ...interface{}) string
}

var _ zipup.ProgressSink = (*ConsoleSink)(nil)

// NewConsoleSink creates a colored sink writing to out. Color is disabled
// automatically when out is not a terminal (see color.NoColor).
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:     out,
		step:    color.New(color.FgCyan).SprintFunc(),
		counter: color.New(color.FgHiBlack).SprintFunc(),
		ok:      color.New(color.FgGreen, color.Bold).SprintFunc(),
		fail:    color.New(color.FgRed).SprintFunc(),
	}
}

// NewPlainConsoleSink creates a sink without color, for tests and piped output.
func NewPlainConsoleSink(out io.Writer) *ConsoleSink {
	plain := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &ConsoleSink{out: out, step: plain, counter: plain, ok: plain, fail: plain}
}

func (s *ConsoleSink) Report(e zipup.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Phase {
	case zipup.PhaseSuccess:
		fmt.Fprintf(s.out, "%s %s\n", s.ok("✓"), e.Message)
	case zipup.PhaseError:
		fmt.Fprintf(s.out, "%s %s\n", s.fail("✗"), s.fail(e.Message))
	default:
		if e.Total > 0 {
			fmt.Fprintf(s.out, "%s %s %s\n", s.step("•"), e.Message, s.counter(fmt.Sprintf("(%d%%)", e.Current*100/e.Total)))
			return
		}
		fmt.Fprintf(s.out, "%s %s\n", s.step("•"), e.Message)
	}
}
