package bcibridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/usnistgov/bcibridge/openbci"
)

const helpText = `Commands:
    Type "/start" to stream data.
    Type "/stop" to stop stream.
    Type "/test<N>" to stream internal test signal N (0 to 5).
    Type "/loc <label>,<label>,..." to rename the channels.
    Type "/exit" to disconnect the board.
Any other text is sent to the board one character at a time.
Advanced command map available at http://docs.openbci.com`

// Prompt is printed whenever the Controller waits for operator input.
const Prompt = "--> "

// PublicationRecorder is told about every stream publication.
type PublicationRecorder interface {
	RecordPublication(md StreamMetadata)
}

// Controller owns the device link and the acquisition state. It interprets operator
// lines, writes every byte that goes to the board, and starts and stops the Acquisition.
// Apart from Close, its methods must be called from a single goroutine.
type Controller struct {
	link    DeviceLink
	sink    StreamSink
	timing  TimingConfig
	out     io.Writer
	drainer *Drainer

	state    AcquisitionState
	desc     StreamDescriptor
	montage  *Montage
	pub      Publication
	acq      *Acquisition
	settings *BoardSettings // wanted
	applied  *BoardSettings // last written to the board

	newFrameSource func() FrameSource
	updates        chan<- ClientUpdate
	recorder       PublicationRecorder

	closeOnce sync.Once
	closeErr  error
}

// NewController prepares a Controller for link and publishes the stream on sink. The
// montage uses cfg.Stream.Labels when given, else the canonical labels.
func NewController(link DeviceLink, sink StreamSink, cfg Config, out io.Writer) (*Controller, error) {
	nchan := link.ChannelCount()
	var labels []string
	if len(cfg.Stream.Labels) > 0 {
		labels = cfg.Stream.Labels
	}
	montage, err := NewMontage(nchan, labels, cfg.Stream.Type)
	if err != nil {
		return nil, fmt.Errorf("building the montage for a %d-channel board: %w", nchan, err)
	}
	settings := DefaultBoardSettings()
	for name, value := range cfg.BoardSettings {
		if err := settings.Set(name, []byte(value)); err != nil {
			return nil, err
		}
	}

	c := &Controller{
		link:     link,
		sink:     sink,
		timing:   cfg.Timing,
		out:      out,
		drainer:  NewDrainer(link, out, cfg.Timing.SettleDelay, cfg.Timing.ByteDelay),
		state:    AcquisitionState{Kind: Idle},
		desc:     NewStreamDescriptor(cfg.Stream, nchan, link.SampleRate()),
		montage:  montage,
		settings: settings,
		applied:  DefaultBoardSettings(),
	}
	c.newFrameSource = func() FrameSource {
		return openbci.NewFrameReader(link, nchan)
	}
	fmt.Fprint(c.out, c.desc.Summary())
	if err := c.ensurePublication(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetUpdates makes the Controller report state and montage changes on ch. Sends must
// not block for long, so ch should be the input of an unbounded queue.
func (c *Controller) SetUpdates(ch chan<- ClientUpdate) {
	c.updates = ch
	c.sendUpdate(TagStatus, c.status())
	c.sendUpdate(TagMontage, MontageMessage{SourceID: c.desc.SourceID, Labels: c.montage.Labels()})
}

// SetRecorder makes the Controller report every publication to r.
func (c *Controller) SetRecorder(r PublicationRecorder) {
	c.recorder = r
	if c.pub != nil {
		r.RecordPublication(c.pub.Metadata())
	}
}

// State is the current acquisition state.
func (c *Controller) State() AcquisitionState {
	return c.state
}

// Montage is the current montage.
func (c *Controller) Montage() *Montage {
	return c.montage
}

// Descriptor describes the published stream.
func (c *Controller) Descriptor() StreamDescriptor {
	return c.desc
}

// Frames is the number of frames pushed by the running acquisition, or 0.
func (c *Controller) Frames() int64 {
	if c.acq == nil {
		return 0
	}
	return c.acq.Frames()
}

// Begin prints the banner, resets the board, applies the configured board settings and
// shows the board's reply. With autostart it then starts streaming.
func (c *Controller) Begin(autostart bool) error {
	fmt.Fprintln(c.out, "\n-------------INFO----------------")
	fmt.Fprintln(c.out, helpText)
	fmt.Fprintln(c.out, "\n-------------BEGIN---------------")
	if err := c.writePaced(initString(c.link.ChannelCount()), c.timing.CharDelay); err != nil {
		return fmt.Errorf("resetting the board: %w", err)
	}
	if err := c.ApplySettings(c.settings); err != nil {
		return err
	}
	c.drain(false)
	if autostart {
		return c.Start()
	}
	return nil
}

// initString stops the board, resets it, sets the daisy mode and restores the default
// channel settings.
func initString(nchan int) []byte {
	daisy := openbci.CmdDisableDaisy
	if nchan > openbci.CytonChannels {
		daisy = openbci.CmdEnableDaisy
	}
	return []byte{openbci.CmdStopStreaming, openbci.CmdSoftReset, daisy, openbci.CmdDefaultSettings}
}

// ApplySettings writes the settings of cur that differ from those last applied, paced by
// the settings delay. Afterwards cur is the applied state.
func (c *Controller) ApplySettings(cur *BoardSettings) error {
	if !c.state.IsIdle() {
		return ErrStreamingConflict
	}
	diff := Diff(c.applied, cur)
	if len(diff) > 0 {
		Log.Debug("applying board settings", "bytes", string(diff))
	}
	if err := c.writePaced(diff, c.timing.SettingsDelay); err != nil {
		return fmt.Errorf("applying board settings: %w", err)
	}
	c.applied = cur.Clone()
	return nil
}

// HandleLine carries out one line of operator input. It returns true when the operator
// asked to exit, after the link has been closed. Errors are printed, never returned.
func (c *Controller) HandleLine(line string) (exit bool) {
	cmd := ParseCommand(line)
	var err error
	switch {
	case cmd.Kind == EmptyCommand:
		return false
	case cmd.Kind == RawCommand:
		err = c.Relay(cmd.Raw)
	case !cmd.Recognized():
		err = c.unrecognized(cmd)
	case cmd.Verb == VerbExit:
		c.Exit()
		return true
	case cmd.Verb == VerbStart:
		err = c.Start()
	case cmd.Verb == VerbTest:
		err = c.startAcquisition(cmd)
	case cmd.Verb == VerbStop:
		err = c.Stop()
	case cmd.Verb == VerbLoc:
		err = c.ChangeMontage(cmd.Arg)
	case cmd.Verb == VerbHelp:
		err = c.Help()
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v.\n", err)
		UpdateLogger.Printf("Command %q refused in state %v: %v\n", cmd.Raw, c.state, err)
	}
	return false
}

// Start makes the board stream measured data.
func (c *Controller) Start() error {
	return c.startAcquisition(Command{Kind: StructuredCommand, Verb: VerbStart})
}

// StartTestSignal makes the board stream one of its internal test signals.
func (c *Controller) StartTestSignal(pattern int) error {
	return c.startAcquisition(Command{Kind: StructuredCommand, Verb: VerbTest, Arg: strconv.Itoa(pattern)})
}

func (c *Controller) startAcquisition(cmd Command) error {
	next, err := nextState(c.state, cmd)
	if err != nil {
		return err
	}
	if c.acq != nil && c.acq.Running() {
		return ErrAlreadyRunning
	}
	if err := c.ensurePublication(); err != nil {
		return err
	}
	if next.Kind == TestSignal {
		signal := openbci.TestSignals[next.Pattern]
		fmt.Fprintln(c.out, signal.Description)
		if err := c.writePaced([]byte{signal.Command}, c.timing.CharDelay); err != nil {
			return fmt.Errorf("selecting test signal %d: %w", next.Pattern, err)
		}
		c.drain(false)
	}
	if err := c.link.WriteByte(openbci.CmdStartStreaming); err != nil {
		return fmt.Errorf("starting the board: %w", err)
	}
	c.acq = StartAcquisition(c.newFrameSource(), c.pub)
	c.setState(next)
	fmt.Fprintln(c.out, "Streaming data...")
	fmt.Fprintf(c.out, "Current streaming: %d %s channels at %g Hz\n\n", c.desc.ChannelCount,
		c.desc.Type, c.desc.SampleRate)
	return nil
}

// Stop ends streaming: the board is told to stop, the acquisition is cancelled and
// whatever the board still sends is discarded.
func (c *Controller) Stop() error {
	next, err := nextState(c.state, Command{Kind: StructuredCommand, Verb: VerbStop})
	if err != nil {
		return err
	}
	c.setState(AcquisitionState{Kind: Stopping})
	werr := c.link.WriteByte(openbci.CmdStopStreaming)
	c.stopAcquisition()
	c.drain(true)
	c.setState(next)
	fmt.Fprintln(c.out, "Streaming paused.")
	fmt.Fprintln(c.out)
	if werr != nil {
		return fmt.Errorf("stopping the board: %w", werr)
	}
	return nil
}

func (c *Controller) stopAcquisition() {
	if c.acq == nil {
		return
	}
	if err := c.acq.Stop(); err != nil {
		Log.Warn("acquisition had already failed", "err", err)
	}
	Log.Debug("acquisition stopped", "frames", c.acq.Frames())
	c.acq = nil
}

// acquisitionEnded handles an acquisition that returned without being asked to.
func (c *Controller) acquisitionEnded() {
	err := c.acq.Err()
	c.acq = nil
	c.setState(AcquisitionState{Kind: Stopping})
	if werr := c.link.WriteByte(openbci.CmdStopStreaming); werr != nil {
		ProblemLogger.Printf("Could not stop the board: %v\n", werr)
	}
	c.drain(true)
	c.setState(AcquisitionState{Kind: Idle})
	if err != nil {
		fmt.Fprintf(c.out, "Error: streaming stopped: %v.\n", err)
	} else {
		fmt.Fprintln(c.out, "Streaming stopped.")
	}
}

// Relay sends raw operator text to the board one byte at a time, then prints its reply.
func (c *Controller) Relay(raw string) error {
	if _, err := nextState(c.state, Command{Kind: RawCommand, Raw: raw}); err != nil {
		return err
	}
	if err := c.writePaced([]byte(raw), c.timing.CharDelay); err != nil {
		return fmt.Errorf("relaying %q: %w", raw, err)
	}
	c.drain(false)
	return nil
}

// Help prints the command summary.
func (c *Controller) Help() error {
	if _, err := nextState(c.state, Command{Kind: StructuredCommand, Verb: VerbHelp}); err != nil {
		return err
	}
	fmt.Fprintln(c.out, helpText)
	return nil
}

func (c *Controller) unrecognized(cmd Command) error {
	if _, err := nextState(c.state, cmd); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Command not recognized...")
	c.drain(false)
	return nil
}

// ChangeMontage relabels the channels from a comma-separated list and republishes the
// stream under the new montage. A list of the wrong length changes nothing.
func (c *Controller) ChangeMontage(labels string) error {
	if _, err := nextState(c.state, Command{Kind: StructuredCommand, Verb: VerbLoc, Arg: labels}); err != nil {
		return err
	}
	m, err := c.montage.ApplyNewLabels(labels)
	if err != nil {
		return err
	}
	c.montage = m
	if c.pub != nil {
		if err := c.pub.Close(); err != nil {
			ProblemLogger.Printf("Closing publication %s: %v\n", c.desc.SourceID, err)
		}
		c.pub = nil
	}
	perr := c.ensurePublication()
	fmt.Fprintln(c.out, "New Channel Montage:")
	fmt.Fprintln(c.out, strings.Join(m.Labels(), ", "))
	c.sendUpdate(TagMontage, MontageMessage{SourceID: c.desc.SourceID, Labels: m.Labels()})
	c.drain(true)
	return perr
}

// ensurePublication publishes the stream if no publication is open.
func (c *Controller) ensurePublication() error {
	if c.pub != nil {
		return nil
	}
	pub, err := c.sink.Publish(c.desc, c.montage)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", c.desc.Name, err)
	}
	c.pub = pub
	if c.recorder != nil {
		c.recorder.RecordPublication(pub.Metadata())
	}
	return nil
}

// Exit stops streaming if needed, withdraws the publication and closes the link.
func (c *Controller) Exit() {
	if c.state.IsActive() {
		if err := c.Stop(); err != nil {
			fmt.Fprintf(c.out, "Error: %v.\n", err)
		}
	}
	if c.pub != nil {
		c.pub.Close()
		c.pub = nil
	}
	if err := c.Close(); err != nil {
		ProblemLogger.Printf("Closing the device link: %v\n", err)
	}
}

// Close closes the device link. Only the first call has any effect; it is safe to call
// from any goroutine.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		fmt.Fprintln(c.out, "Disconnecting...")
		c.closeErr = c.link.Close()
	})
	return c.closeErr
}

// Run reads operator lines from in until exit, end of input or cancellation of ctx,
// handling each with HandleLine. It also notices an acquisition that ends by itself.
// Every path out of Run closes the link.
func (c *Controller) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)
	go readLines(in, lines, readErr, quit)

	for {
		fmt.Fprint(c.out, Prompt)
		var acqDone <-chan struct{}
		if c.acq != nil {
			acqDone = c.acq.Done()
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			c.Exit()
			return nil
		case <-acqDone:
			fmt.Fprintln(c.out)
			c.acquisitionEnded()
		case line, ok := <-lines:
			if !ok {
				c.Exit()
				return <-readErr
			}
			if c.HandleLine(line) {
				return nil
			}
		}
	}
}

func readLines(in io.Reader, lines chan<- string, readErr chan<- error, quit <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-quit:
			readErr <- nil
			return
		}
	}
	readErr <- scanner.Err()
}

func (c *Controller) writePaced(data []byte, delay time.Duration) error {
	for _, b := range data {
		if err := c.link.WriteByte(b); err != nil {
			return err
		}
		time.Sleep(delay)
	}
	return nil
}

func (c *Controller) drain(suppress bool) {
	n, err := c.drainer.Drain(suppress)
	if err != nil {
		ProblemLogger.Printf("After %d bytes: %v\n", n, err)
	}
}

func (c *Controller) setState(s AcquisitionState) {
	if s == c.state {
		return
	}
	UpdateLogger.Printf("State %v -> %v\n", c.state, s)
	c.state = s
	c.sendUpdate(TagStatus, c.status())
}

func (c *Controller) status() StatusMessage {
	return StatusMessage{
		State:        c.state.String(),
		Active:       c.state.IsActive(),
		Pattern:      c.state.Pattern,
		ChannelCount: c.desc.ChannelCount,
		SampleRate:   c.desc.SampleRate,
		SourceID:     c.desc.SourceID,
		Frames:       c.Frames(),
	}
}

func (c *Controller) sendUpdate(tag string, state any) {
	if c.updates == nil {
		return
	}
	c.updates <- ClientUpdate{tag: tag, state: state}
}
