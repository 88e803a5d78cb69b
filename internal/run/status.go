package run

// Status is the terminal state of one pipeline run.
type Status string

const (
	// StatusSuccess means every partition fetched, every component merged
	// and nothing was skipped or rejected by accident of the source.
	StatusSuccess Status = "success"

	// StatusPartial means the run produced output but with defects: failed
	// partitions, skipped features, unresolved or degraded components.
	StatusPartial Status = "partial"

	// StatusFailure means the run produced no usable output.
	StatusFailure Status = "failure"
)

func (s Status) String() string { return string(s) }

// ExitCode maps the terminal status to a process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 2
	default:
		return 1
	}
}
