package run

import "fmt"

// Phase identifies one stage of the pipeline.
type Phase string

const (
	PhaseDiscover Phase = "discover"
	PhaseFetch    Phase = "fetch"
	PhaseAssemble Phase = "assemble"
	PhaseMerge    Phase = "merge"
	PhaseValidate Phase = "validate"
	PhaseExport   Phase = "export"
)

// EventStatus is the state of a unit of work within a phase.
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventWorking  EventStatus = "working"
	EventComplete EventStatus = "complete"
	EventFailed   EventStatus = "failed"
)

// Event is emitted to the consumer during pipeline execution.
type Event struct {
	Phase   Phase
	Detail  string // unit within the phase, e.g. a partition range
	Status  EventStatus
	Message string
}

// ProgressReporter decouples pipeline goroutines from whoever renders
// progress. Emitters never block: a slow or absent consumer costs events,
// not throughput.
type ProgressReporter struct {
	ch chan Event
}

// NewProgressReporter allocates a reporter buffering up to 64 events.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan Event, 64),
	}
}

// Emit queues an event if buffer space remains and discards it otherwise.
func (pr *ProgressReporter) Emit(event Event) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns the stream of emitted events.
func (pr *ProgressReporter) Subscribe() <-chan Event {
	return pr.ch
}

// Close ends the event stream. Emit must not be called afterwards.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

var statusMarks = map[EventStatus]string{
	EventPending:  "○",
	EventWorking:  "●",
	EventComplete: "✓",
	EventFailed:   "✗",
}

// FormatEvent renders one event as a status line for the CLI.
func FormatEvent(event Event) string {
	mark, known := statusMarks[event.Status]
	if !known {
		return fmt.Sprintf("  ? %s/%s (unknown status)", event.Phase, event.Detail)
	}
	line := fmt.Sprintf("  %s %s/%s", mark, event.Phase, event.Detail)
	switch event.Status {
	case EventPending:
		return line + " (pending)"
	case EventWorking:
		return line + "..."
	case EventFailed:
		return fmt.Sprintf("%s failed: %s", line, event.Message)
	default:
		return line + " complete"
	}
}
