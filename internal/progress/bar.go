// Package progress renders a terminal progress bar driven by sample events.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/aristath/datagen/internal/events"
)

// Bar counts finished units. It subscribes with a buffer large enough for every
// sample event of the run, so it never misses a unit.
type Bar struct {
	bar       *progressbar.ProgressBar
	ch        <-chan events.Event
	done      chan struct{}
	written   int
	abandoned int
}

// New subscribes to bus and prepares a bar for total units.
func New(w io.Writer, total int, bus *events.EventBus) *Bar {
	bar := progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	return &Bar{
		bar: bar,
		// Started plus finished event per unit
		ch:   bus.Subscribe(events.TopicSample, 2*total+1),
		done: make(chan struct{}),
	}
}

// Start consumes events until the bus closes.
func (b *Bar) Start() {
	go func() {
		defer close(b.done)
		for ev := range b.ch {
			switch ev.(type) {
			case events.SampleWrittenEvent:
				b.written++
			case events.SampleAbandonedEvent:
				b.abandoned++
			default:
				continue
			}
			b.bar.Describe(fmt.Sprintf("Generating (%d written, %d skipped)", b.written, b.abandoned))
			_ = b.bar.Add(1)
		}
		_ = b.bar.Finish()
	}()
}

// Wait blocks until the bus has closed and the bar has drawn its final state.
// It returns the written and abandoned counts it observed.
func (b *Bar) Wait() (written, abandoned int) {
	<-b.done
	return b.written, b.abandoned
}
