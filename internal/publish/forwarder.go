package publish

import (
	"log/slog"

	"github.com/aristath/datagen/internal/events"
)

// Publisher is the subset of Client the forwarder needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Forwarder copies every bus event to "<prefix>.<event type>".
type Forwarder struct {
	pub    Publisher
	prefix string
	ch     <-chan events.Event
	done   chan struct{}
	logger *slog.Logger

	published int
	failed    int
}

// NewForwarder subscribes to every topic on bus. bufSize bounds how far the
// publisher may lag before events are dropped by the bus.
func NewForwarder(pub Publisher, prefix string, bus *events.EventBus, bufSize int, logger *slog.Logger) *Forwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		pub:    pub,
		prefix: prefix,
		ch:     bus.SubscribeAll(bufSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (f *Forwarder) Subject(ev events.Event) string {
	return f.prefix + "." + ev.EventType()
}

// Start publishes events until the bus closes.
func (f *Forwarder) Start() {
	go func() {
		defer close(f.done)
		for ev := range f.ch {
			if err := f.pub.Publish(f.Subject(ev), ev); err != nil {
				f.failed++
				// First failure is enough to diagnose a broken connection
				if f.failed == 1 {
					f.logger.Warn("failed to publish event", "subject", f.Subject(ev), "error", err)
				}
				continue
			}
			f.published++
		}
		if f.failed > 0 {
			f.logger.Warn("event publishing incomplete", "published", f.published, "failed", f.failed)
		}
	}()
}

// Wait blocks until the bus has closed and returns the publish counts.
func (f *Forwarder) Wait() (published, failed int) {
	<-f.done
	return f.published, f.failed
}
