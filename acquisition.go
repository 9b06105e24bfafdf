package bcibridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/usnistgov/bcibridge/openbci"
)

// FrameSource produces decoded sample frames. ReadFrame must return promptly with
// ctx.Err() once ctx is cancelled.
type FrameSource interface {
	ReadFrame(ctx context.Context) (*openbci.Frame, error)
}

// Acquisition is a running goroutine that forwards frames from a FrameSource to a
// Publication. It never writes to the board.
type Acquisition struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // set before done is closed
	frames atomic.Int64
}

// StartAcquisition launches the forwarding goroutine and returns at once. Callers must
// ensure that no other Acquisition is reading from the same link.
func StartAcquisition(src FrameSource, pub Publication) *Acquisition {
	ctx, cancel := context.WithCancel(context.Background())
	acq := &Acquisition{cancel: cancel, done: make(chan struct{})}
	go acq.run(ctx, src, pub)
	return acq
}

// run forwards frames until cancelled. A read or push failure is logged once and ends
// the run: there is no retry.
func (acq *Acquisition) run(ctx context.Context, src FrameSource, pub Publication) {
	defer close(acq.done)
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			acq.err = fmt.Errorf("reading frame: %w", err)
			ProblemLogger.Printf("Acquisition stopped: %v\n", acq.err)
			return
		}
		if err := pub.Push(frame.Channels); err != nil {
			acq.err = fmt.Errorf("pushing frame %d: %w", frame.SampleNumber, err)
			ProblemLogger.Printf("Acquisition stopped: %v\n", acq.err)
			return
		}
		acq.frames.Add(1)
	}
}

// Stop asks the goroutine to finish and waits until it has. It returns the error that
// ended the run early, if any. Calling Stop more than once is harmless.
func (acq *Acquisition) Stop() error {
	acq.cancel()
	<-acq.done
	return acq.err
}

// Done is closed when the goroutine has returned.
func (acq *Acquisition) Done() <-chan struct{} {
	return acq.done
}

// Running is true until the goroutine has returned.
func (acq *Acquisition) Running() bool {
	select {
	case <-acq.done:
		return false
	default:
		return true
	}
}

// Err is the failure that ended the run, or nil while running or after a requested stop.
func (acq *Acquisition) Err() error {
	if acq.Running() {
		return nil
	}
	return acq.err
}

// Frames is the number of frames pushed so far.
func (acq *Acquisition) Frames() int64 {
	return acq.frames.Load()
}
