package metrics

import "time"

// TriggerResult enumerates outcomes of a build trigger call.
type TriggerResult string

const (
	TriggerDispatched TriggerResult = "dispatched"
	TriggerSkipped    TriggerResult = "skipped"
	TriggerFailed     TriggerResult = "failed"
)

// BuildOutcome enumerates final build outcomes recorded by the worker.
type BuildOutcome string

const (
	OutcomeSuccess   BuildOutcome = "success"
	OutcomeFailed    BuildOutcome = "failed"
	OutcomeUnchanged BuildOutcome = "unchanged"
)

// Recorder defines observability hooks for triggering, commands, VCS operations and builds.
type Recorder interface {
	IncBuildTriggered(result TriggerResult)
	ObserveCommand(program string, d time.Duration, success bool)
	IncVCSOperation(kind, op string, success bool)
	IncBuildOutcome(outcome BuildOutcome)
	ObserveBuildDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncBuildTriggered(TriggerResult)                {}
func (NoopRecorder) ObserveCommand(string, time.Duration, bool)     {}
func (NoopRecorder) IncVCSOperation(string, string, bool)           {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)                   {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)             {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
