package camera

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/v4l2camerahal/camerahal/halerr"
	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/metrics"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

// fenceTimeout bounds how long process_capture_request waits on an output
// buffer's acquire fence before the request is failed.
const fenceTimeout = 5000 * time.Millisecond

// dequeuePoll bounds a single WaitForDeviceRead call in the dequeue loop so
// it periodically rechecks the stop channel instead of blocking forever.
const dequeuePoll = 500 * time.Millisecond

const waitingQueueDepth = 4

// State is one node of the per-camera capture pipeline state machine
// (spec.md §4.5).
type State int

const (
	StateClosed State = iota
	StateOpened
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// NotifyCode distinguishes a shutter notification from an error notification.
type NotifyCode int

const (
	NotifyShutter NotifyCode = iota
	NotifyError
)

// ErrorCode is the per-request error classification carried by an error
// notify. This core only ever raises ERROR_REQUEST: every post-acceptance
// failure — fence timeout, dequeue failure, missing result tag — fails the
// whole request rather than a single buffer.
//
// TODO: once a failure mode needs to surface a partial-buffer error instead
// of failing the entire request, add ErrorBuffer alongside ErrorRequest and
// have failRequest choose between them.
type ErrorCode int

const (
	ErrorRequest ErrorCode = iota + 1
)

// ErrNotImplemented is returned by Flush, which this core does not support.
var ErrNotImplemented = errors.New("flush: not implemented")

// Callbacks is the framework's callback table, supplied once via Initialize.
type Callbacks struct {
	// Notify reports a shutter or error event for frameNumber. timestampNanos
	// is only meaningful for NotifyShutter.
	Notify func(frameNumber uint64, code NotifyCode, errCode ErrorCode, timestampNanos int64)
	// ProcessCaptureResult delivers exactly one result per accepted request.
	ProcessCaptureResult func(result CaptureResult)
}

// CaptureResult is what process_capture_result hands back to the framework.
type CaptureResult struct {
	FrameNumber uint64
	Settings    metadata.Block
	Outputs     []StreamBuffer
}

// DeviceOps is the framework-facing device-operations surface (spec.md §6),
// renamed to Go method conventions but otherwise preserving the table's
// contract one-for-one.
type DeviceOps interface {
	Open() error
	Initialize(cb Callbacks) error
	ConfigureStreams(streams []Stream) error
	ConstructDefaultRequestSettings(tid metadata.TemplateID) (metadata.Block, error)
	ProcessCaptureRequest(req CaptureRequest) error
	Dump(w io.Writer)
	Flush() error
	Close() error
}

type queuedRequest struct {
	req CaptureRequest
}

// Pipeline drives one camera's V4L2 device through the capture state
// machine, running an enqueue worker and a dequeue worker per spec.md §4.5's
// asynchronous variant: process_capture_request validates synchronously and
// returns immediately, while fence-waiting, device I/O, and result delivery
// happen on background goroutines.
type Pipeline struct {
	mu    sync.Mutex
	name  string
	state State

	dev       *v4l2.Device
	registry  *metadata.Registry
	templates *TemplateCache
	static    *StaticInfo

	streams      []Stream
	settingsSet  bool
	lastSettings metadata.Block

	cb        Callbacks
	cbSet     bool
	busy      bool

	waiting chan queuedRequest
	stop    chan struct{}
	wg      sync.WaitGroup

	inFlightMu sync.Mutex
	inFlight   *queuedRequest

	metrics *metrics.Camera
	log     *zap.Logger
}

// NewPipeline constructs a Pipeline for one camera, closed until Open is called.
func NewPipeline(name string, dev *v4l2.Device, registry *metadata.Registry, static *StaticInfo, templates *TemplateCache, m *metrics.Camera, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		name:      name,
		state:     StateClosed,
		dev:       dev,
		registry:  registry,
		templates: templates,
		static:    static,
		metrics:   m,
		log:       log,
	}
}

// State returns the pipeline's current state machine node.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Open transitions CLOSED→OPENED by connecting the V4L2 wrapper.
func (p *Pipeline) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateClosed {
		return halerr.Busy(nil, "camera already open")
	}
	if err := p.dev.Connect(); err != nil {
		return err
	}
	p.state = StateOpened
	p.log.Info("camera opened", zap.String("camera", p.name))
	return nil
}

// Initialize stores the framework callback table and starts the async
// workers. Idempotent per open session: a second call while already
// initialized is a no-op.
func (p *Pipeline) Initialize(cb Callbacks) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return halerr.NoDevice(nil, "initialize requires an open camera")
	}
	if p.cbSet {
		return nil
	}
	p.cb = cb
	p.cbSet = true
	p.waiting = make(chan queuedRequest, waitingQueueDepth)
	p.stop = make(chan struct{})

	p.wg.Add(2)
	go p.enqueueLoop()
	go p.dequeueLoop()
	return nil
}

// ConfigureStreams validates and applies a new stream set. On failure the
// previously active stream set is left untouched (spec.md §7).
func (p *Pipeline) ConfigureStreams(streams []Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateOpened && p.state != StateConfigured {
		return halerr.Busy(nil, "configure_streams requires opened or configured state")
	}
	if err := ValidateStreamSet(streams); err != nil {
		return halerr.InvalidArgument(err, "invalid stream set")
	}

	reconciled := reconcileStreams(p.streams, streams)
	format := v4l2.StreamFormat{
		Type:        v4l2.BufTypeVideoCapture,
		PixelFormat: reconciled[0].PixelFormat,
		Width:       reconciled[0].Width,
		Height:      reconciled[0].Height,
	}
	if err := p.dev.SetFormat(format); err != nil {
		return err
	}
	if _, err := p.dev.SetupBuffers(1); err != nil {
		return err
	}

	p.streams = reconciled
	p.settingsSet = false
	p.state = StateConfigured
	return nil
}

// ConstructDefaultRequestSettings returns a cached template block, or nil
// for template ids this core does not support.
func (p *Pipeline) ConstructDefaultRequestSettings(tid metadata.TemplateID) (metadata.Block, error) {
	block, err := p.templates.Get(tid)
	if err != nil {
		if errors.Is(err, halerr.ErrNotSupported) {
			return nil, nil
		}
		return nil, err
	}
	return block, nil
}

// ProcessCaptureRequest validates req synchronously and, once accepted,
// queues the fence-wait/enqueue work asynchronously so the call returns
// immediately, per the async pipeline variant.
func (p *Pipeline) ProcessCaptureRequest(req CaptureRequest) error {
	p.mu.Lock()
	if p.state != StateConfigured && p.state != StateStreaming {
		p.mu.Unlock()
		return halerr.Busy(nil, "process_capture_request requires configured or streaming state")
	}
	if len(req.Outputs) == 0 {
		p.mu.Unlock()
		return halerr.InvalidArgument(nil, "request has no output buffers")
	}

	cloned := req.clone()
	if len(cloned.Settings) == 0 {
		if !p.settingsSet {
			p.mu.Unlock()
			return halerr.InvalidArgument(nil, "empty settings on a request before any settings have been set")
		}
		cloned.Settings = p.lastSettings.Clone()
	} else {
		if !p.registry.IsValidRequest(cloned.Settings) {
			p.mu.Unlock()
			return halerr.InvalidArgument(nil, "request settings rejected by metadata registry")
		}
		p.lastSettings = cloned.Settings.Clone()
		p.settingsSet = true
	}
	if p.state == StateConfigured {
		p.state = StateStreaming
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RequestsInFlight.Inc()
	}
	p.wg.Add(1)
	go p.acceptRequest(cloned)
	return nil
}

// Dump writes the pipeline's id, busy flag, and configured streams to w.
func (p *Pipeline) Dump(w io.Writer) {
	p.mu.Lock()
	state, streams := p.state, append([]Stream(nil), p.streams...)
	p.mu.Unlock()
	p.inFlightMu.Lock()
	busy := p.inFlight != nil
	p.inFlightMu.Unlock()

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "camera %s\n", p.name)
	fmt.Fprintf(w, "  state: %s  busy: %v\n", state, busy)
	for i, s := range streams {
		fmt.Fprintf(w, "  stream[%d]: %dx%d fmt=0x%08x reuse=%v\n", i, s.Width, s.Height, s.PixelFormat, s.Reuse)
	}
}

// Flush is stubbed as unimplemented at this layer (spec.md §5, §6).
func (p *Pipeline) Flush() error {
	return ErrNotImplemented
}

// Close stops the pipeline's workers, disconnects the V4L2 device, and
// transitions to CLOSED from any state.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return halerr.InvalidArgument(nil, "close on a camera that is not open")
	}
	stop := p.stop
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	p.wg.Wait()

	if err := p.dev.Disconnect(); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = StateClosed
	p.cbSet = false
	p.streams = nil
	p.settingsSet = false
	p.mu.Unlock()
	p.log.Info("camera closed", zap.String("camera", p.name))
	return nil
}

// acceptRequest fence-waits each output buffer, then hands the request to
// the enqueue worker. On any fence failure the request fails outright.
func (p *Pipeline) acceptRequest(req CaptureRequest) {
	defer p.wg.Done()

	for i := range req.Outputs {
		err := waitFence(req.Outputs[i].AcquireFence, fenceTimeout)
		req.Outputs[i].ReleaseFence = -1
		if err != nil {
			p.failRequest(req, err)
			return
		}
	}

	select {
	case p.waiting <- queuedRequest{req: req}:
	case <-p.stop:
	}
}

// waitFence blocks until fence is readable or timeout elapses. fence < 0
// means "already signaled" (no fence was supplied).
func waitFence(fence int, timeout time.Duration) error {
	if fence < 0 {
		return nil
	}
	pfds := []unix.PollFd{{Fd: int32(fence), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		remaining := int(time.Until(deadline).Milliseconds())
		if remaining < 0 {
			remaining = 0
		}
		n, err := unix.Poll(pfds, remaining)
		if err == unix.EINTR {
			if time.Now().After(deadline) {
				return halerr.Timeout(nil, "acquire fence wait timed out")
			}
			continue
		}
		if err != nil {
			return halerr.IoError(err, "poll acquire fence")
		}
		if n == 0 {
			return halerr.Timeout(nil, "acquire fence wait timed out")
		}
		return nil
	}
}

// enqueueLoop pops accepted requests off the waiting queue, drives the
// request's settings to the device, locks their buffer through the V4L2
// wrapper, and ensures streaming is on.
func (p *Pipeline) enqueueLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case qr, ok := <-p.waiting:
			if !ok {
				return
			}
			p.enqueueOne(qr)
		}
	}
}

// enqueueOne applies the request's settings to the device (spec.md §2's
// metadata-validate-then-drive-device sequence) before queuing its buffer.
func (p *Pipeline) enqueueOne(qr queuedRequest) {
	if err := p.registry.ApplyRequest(qr.req.Settings); err != nil {
		p.failRequest(qr.req, err)
		return
	}

	out := qr.req.Outputs[0]
	if err := p.dev.EnqueueBuffer(0, out.Handle); err != nil {
		p.failRequest(qr.req, err)
		return
	}
	if err := p.dev.StreamOn(); err != nil {
		p.failRequest(qr.req, err)
		return
	}

	p.inFlightMu.Lock()
	p.inFlight = &queuedRequest{req: qr.req}
	p.inFlightMu.Unlock()
}

// dequeueLoop waits for a filled buffer and resolves it against the
// in-flight request, issuing the shutter notify and result callback.
func (p *Pipeline) dequeueLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if err := v4l2.WaitForDeviceRead(p.dev.Fd(), dequeuePoll); err != nil {
			if errors.Is(err, v4l2.ErrorTimeout) {
				continue
			}
			continue
		}

		buf, _, err := p.dev.DequeueBuffer()
		if err != nil {
			if p.metrics != nil {
				p.metrics.DequeueErrors.Inc()
			}
			p.inFlightMu.Lock()
			failed := p.inFlight
			p.inFlight = nil
			p.inFlightMu.Unlock()
			if failed != nil {
				p.failRequest(failed.req, err)
			}
			continue
		}

		p.inFlightMu.Lock()
		qr := p.inFlight
		p.inFlight = nil
		p.inFlightMu.Unlock()
		if qr == nil {
			p.log.Warn("dequeued buffer with no in-flight request", zap.Uint32("index", buf.Index))
			continue
		}
		p.completeRequest(qr.req)
	}
}

// completeRequest fills result metadata, issues the shutter notify, and
// delivers the result callback. A missing SENSOR_TIMESTAMP tag after
// fill_result is a request-level error (spec.md §4.5).
func (p *Pipeline) completeRequest(req CaptureRequest) {
	settings := req.Settings.Clone()
	if err := p.registry.FillResult(settings); err != nil {
		p.failRequest(req, err)
		return
	}
	ts, ok := settings.Int64(metadata.TagSensorTimestamp)
	if !ok {
		p.failRequest(req, halerr.InvalidArgument(nil, "result metadata missing SENSOR_TIMESTAMP"))
		return
	}

	if p.cb.Notify != nil {
		p.cb.Notify(req.FrameNumber, NotifyShutter, 0, ts)
	}

	for i := range req.Outputs {
		req.Outputs[i].Status = BufferStatusOK
	}
	if p.metrics != nil {
		p.metrics.FramesCaptured.Inc()
		p.metrics.RequestsInFlight.Dec()
	}
	if p.cb.ProcessCaptureResult != nil {
		p.cb.ProcessCaptureResult(CaptureResult{FrameNumber: req.FrameNumber, Settings: settings, Outputs: req.Outputs})
	}
}

// failRequest issues an error notify and a result callback carrying the
// request's buffers marked with error status (spec.md §4.5, §7).
func (p *Pipeline) failRequest(req CaptureRequest, cause error) {
	p.log.Warn("request failed", zap.Uint64("frame", req.FrameNumber), zap.Error(cause))

	for i := range req.Outputs {
		req.Outputs[i].Status = BufferStatusError
		req.Outputs[i].ReleaseFence = -1
	}
	if p.metrics != nil {
		p.metrics.RequestsInFlight.Dec()
	}
	if p.cb.Notify != nil {
		p.cb.Notify(req.FrameNumber, NotifyError, ErrorRequest, 0)
	}
	if p.cb.ProcessCaptureResult != nil {
		p.cb.ProcessCaptureResult(CaptureResult{FrameNumber: req.FrameNumber, Settings: req.Settings, Outputs: req.Outputs})
	}
}
