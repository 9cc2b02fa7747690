package zipup

import (
	"sync"
	"time"
)

// Phase is the coarse status carried by every progress event.
type Phase string

const (
	PhaseProcessing Phase = "processing"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// Stage is the pipeline state an event was emitted from.
type Stage string

const (
	StageReading        Stage = "reading"
	StageRepoCreating   Stage = "repo_creating"
	StageRefFetching    Stage = "ref_fetching"
	StageCommitFetching Stage = "commit_fetching"
	StageBlobUploading  Stage = "blob_uploading"
	StageTreeBuilding   Stage = "tree_building"
	StageCommitCreating Stage = "commit_creating"
	StageRefUpdating    Stage = "ref_updating"
	StageSuccess        Stage = "success"
	StageError          Stage = "error"
)

// describe returns the step name used in RemoteCallError messages.
func (s Stage) describe() string {
	switch s {
	case StageRefFetching:
		return "fetching branch reference"
	case StageCommitFetching:
		return "fetching initial commit"
	case StageBlobUploading:
		return "creating blob"
	case StageTreeBuilding:
		return "creating tree"
	case StageCommitCreating:
		return "creating commit"
	case StageRefUpdating:
		return "updating branch reference"
	default:
		return string(s)
	}
}

// Event is a single human-readable progress notification.
// Current and Total are set for blob uploads only (1-based index).
type Event struct {
	Phase   Phase
	Stage   Stage
	Message string
	Current int
	Total   int
}

// ProgressSink receives pipeline events in emission order.
type ProgressSink interface {
	Report(e Event)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(e Event)

func (f ProgressFunc) Report(e Event) { f(e) }

// dispatcher moves sink delivery off the pipeline goroutine. Events are
// queued without blocking and delivered by a single goroutine, so ordering
// is preserved no matter how slow the sink is.
type dispatcher struct {
	sink   ProgressSink
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
}

func newDispatcher(sink ProgressSink) *dispatcher {
	d := &dispatcher{sink: sink, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	if sink == nil {
		close(d.done)
		return d
	}
	go d.run()
	return d
}

func (d *dispatcher) emit(e Event) {
	if d.sink == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.queue = append(d.queue, e)
		d.cond.Signal()
	}
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		e := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.sink.Report(e)
	}
}

// close stops accepting events and waits up to timeout for queued events to
// be delivered. It reports whether the queue drained in time. On timeout the
// undelivered events are discarded: only a Report already in progress may
// still return after close does.
func (d *dispatcher) close(timeout time.Duration) bool {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	if timeout <= 0 {
		<-d.done
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.done:
		return true
	case <-timer.C:
		d.mu.Lock()
		d.queue = nil
		d.mu.Unlock()
		return false
	}
}
