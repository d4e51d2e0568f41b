package events

import (
	"time"
)

// Event is the base interface for all events.
// Sample events carry the absolute input index; run events return -1.
type Event interface {
	EventType() string
	SampleIndex() int
}

// Topic constants
const (
	TopicSample = "sample"
	TopicRun    = "run"
)

// Event type constants
const (
	EventTypeSampleStarted   = "sample.started"
	EventTypeSampleWritten   = "sample.written"
	EventTypeSampleAbandoned = "sample.abandoned"
	EventTypeRunStarted      = "run.started"
	EventTypeRunProgress     = "run.progress"
	EventTypeRunFinished     = "run.finished"
)

// SampleStartedEvent is published when a unit begins replaying a sample.
type SampleStartedEvent struct {
	Index     int       `json:"index"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}

func (e SampleStartedEvent) EventType() string { return EventTypeSampleStarted }
func (e SampleStartedEvent) SampleIndex() int  { return e.Index }

// SampleWrittenEvent is published once a sample's record is durably in the output.
type SampleWrittenEvent struct {
	Index     int           `json:"index"`
	Backend   string        `json:"backend"`
	Outcome   string        `json:"outcome"`
	Stop      string        `json:"stop"`
	Pairs     int           `json:"pairs"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e SampleWrittenEvent) EventType() string { return EventTypeSampleWritten }
func (e SampleWrittenEvent) SampleIndex() int  { return e.Index }

// SampleAbandonedEvent is published when a sample ends without an output record.
type SampleAbandonedEvent struct {
	Index     int           `json:"index"`
	Backend   string        `json:"backend"`
	Outcome   string        `json:"outcome"`
	Stop      string        `json:"stop"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e SampleAbandonedEvent) EventType() string { return EventTypeSampleAbandoned }
func (e SampleAbandonedEvent) SampleIndex() int  { return e.Index }

// RunStartedEvent is published before the first unit is dispatched.
type RunStartedEvent struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	Pending   int       `json:"pending"`
	Offset    int       `json:"offset"`
	Backends  []string  `json:"backends"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) SampleIndex() int  { return -1 }

// RunProgressEvent is a snapshot of the run counters, published after every finished unit.
type RunProgressEvent struct {
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Written   int       `json:"written"`
	Abandoned int       `json:"abandoned"`
	Running   int       `json:"running"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) SampleIndex() int  { return -1 }

// RunFinishedEvent is published after every dispatched unit has returned.
type RunFinishedEvent struct {
	RunID       string        `json:"run_id"`
	Dispatched  int           `json:"dispatched"`
	Written     int           `json:"written"`
	Abandoned   int           `json:"abandoned"`
	Interrupted bool          `json:"interrupted"`
	Duration    time.Duration `json:"duration_ns"`
	Timestamp   time.Time     `json:"timestamp"`
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) SampleIndex() int  { return -1 }
