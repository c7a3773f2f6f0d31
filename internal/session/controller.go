// Package session implements the top-level per-client state machine
// (spec.md §4.13): it creates a session strategy, spawns the
// capture->damage->encode->EGFX pipeline, pumps input, and shuts down
// cleanly. Grounded on the teacher's Server.Run (api/pkg/desktop/
// desktop.go: ordered setup, atomic.Bool running flag, sync.WaitGroup,
// LIFO teardown via deferred closes) and session_registry.go's
// per-session bookkeeping, generalized into the explicit state machine
// the teacher's single long-lived server never needed (it has exactly
// one session for the lifetime of the sandbox container).
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wrd-project/wrd-server/internal/capability"
	"github.com/wrd-project/wrd-server/internal/capture"
	"github.com/wrd-project/wrd-server/internal/credential"
	"github.com/wrd-project/wrd-server/internal/cursor"
	"github.com/wrd-project/wrd-server/internal/damage"
	"github.com/wrd-project/wrd-server/internal/egfx"
	"github.com/wrd-project/wrd-server/internal/encoder"
	"github.com/wrd-project/wrd-server/internal/input"
	"github.com/wrd-project/wrd-server/internal/rate"
	"github.com/wrd-project/wrd-server/internal/rdpio"
	"github.com/wrd-project/wrd-server/internal/strategy"
	"github.com/wrd-project/wrd-server/internal/wrderr"
)

// Config holds the per-session parameters the caller (the CLI /
// listener accepting the RDP connection) supplies; everything else is
// discovered from the capability registry at Start time.
type Config struct {
	SessionID string
	StreamID  string
	SurfaceID uint16

	MonitorLayout             input.MonitorLayout
	ScreenWidth, ScreenHeight int
	MutterMonitor             string

	LatencyMode rate.LatencyMode
	Color       encoder.ColorSpec

	TokenDir     string
	RestoreToken []byte
}

// Controller is one RDP client's session: Initializing -> Ready ->
// Active -> Draining -> Terminated.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	registry  *capability.Registry
	credStore *credential.Store
	display   rdpio.DisplaySink

	mu    sync.Mutex
	state State

	handle     strategy.Handle
	captureSrc *capture.Source
	detector   *damage.Detector
	encBackend encoder.Backend
	encBaseCfg encoder.Config
	autoColor  bool // true when no explicit Config.Color override was given
	sender     *egfx.Sender
	governor   *rate.Governor
	predictor  *cursor.Predictor
	injector   input.Injector

	seq           atomic.Uint64
	lastDropCount uint64
	lastEncodeAt  time.Time

	attempts []strategy.Attempt

	cancel context.CancelFunc
	wg     sync.WaitGroup

	terminated chan struct{}
}

// NewController builds a controller in state Initializing. Call Start
// to run the arbiter and bring up the pipeline.
func NewController(cfg Config, registry *capability.Registry, credStore *credential.Store, display rdpio.DisplaySink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StreamID == "" {
		cfg.StreamID = cfg.SessionID
	}
	return &Controller{
		cfg:        cfg,
		logger:     logger.With("session_id", cfg.SessionID),
		registry:   registry,
		credStore:  credStore,
		display:    display,
		state:      StateInitializing,
		predictor:  cursor.NewPredictor(cursor.ModeAuto, cursor.DefaultOptions()),
		terminated: make(chan struct{}),
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return &errInvalidTransition{from: c.state, to: to}
	}
	c.logger.Info("session state transition", "from", c.state, "to", to)
	c.state = to
	return nil
}

// Start runs the Initializing phase: strategy arbitration, capture
// source bring-up through the first frame, and encoder construction.
// On success the controller is in state Ready.
func (c *Controller) Start(ctx context.Context) error {
	arbiter := strategy.NewArbiter(c.registry, c.logger, c.cfg.MonitorLayout, c.cfg.ScreenWidth, c.cfg.ScreenHeight, c.cfg.MutterMonitor)

	restoreToken := c.cfg.RestoreToken
	if restoreToken == nil && c.credStore != nil {
		if tok, err := c.credStore.Load(c.cfg.SessionID); err == nil && tok != nil {
			restoreToken = tok.Opaque
		}
	}

	handle, attempts, err := arbiter.Select(ctx, restoreToken)
	c.attempts = attempts
	if err != nil {
		c.fail(err)
		return fmt.Errorf("session: strategy selection: %w", err)
	}
	c.handle = handle
	c.injector = handle.Injector()

	capture.InitGStreamer()
	src, err := capture.NewSource(c.cfg.StreamID, handle.PipeWireAccess(), c.logger)
	if err != nil {
		c.fail(wrderr.Wrap(wrderr.StrategyFailed, "capture source construction failed", err))
		return err
	}
	c.captureSrc = src

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := src.Start(runCtx); err != nil {
		c.fail(wrderr.Wrap(wrderr.StrategyFailed, "capture source start failed", err))
		return err
	}

	descriptor, err := waitForFirstFrame(runCtx, src)
	if err != nil {
		c.fail(err)
		return err
	}

	color := c.cfg.Color
	c.autoColor = color == (encoder.ColorSpec{})
	if c.autoColor {
		// No explicit override was configured: apply spec.md §3's Auto
		// rule against the dimensions actually negotiated by the
		// capture source, rather than guessing before the first frame.
		color = encoder.ColorSpecAuto(descriptor.Width, descriptor.Height)
	}

	encCfg := encoder.Config{
		Width:            descriptor.Width,
		Height:           descriptor.Height,
		Format:           descriptor.Format,
		Color:            color,
		Mode:             encoder.RateControlVariableBitrate,
		KeyframeInterval: rate.DefaultOptions().BaseKeyframeInterval,
	}
	backend, err := buildEncoder(c.registry, encCfg, c.logger)
	if err != nil {
		c.fail(wrderr.Wrap(wrderr.BackendInitFailed, "no usable encoder backend", err))
		return err
	}
	c.encBackend = backend
	c.encBaseCfg = encCfg

	c.detector = damage.NewDetector(damage.DefaultOptions())
	c.sender = egfx.NewSender(c.display, c.cfg.SurfaceID)
	c.governor = rate.NewGovernor(rate.DefaultOptions(), c.cfg.LatencyMode, bitrateForFPS(descriptor.Width, descriptor.Height))

	if err := c.transition(StateReady); err != nil {
		c.fail(wrderr.Wrap(wrderr.FatalEncode, "state machine", err))
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pumpFrames(runCtx)
	}()

	return nil
}

// Activate transitions Ready -> Active once the RDP library reports
// the connection is activated and EGFX is negotiated, per spec.md
// §4.13. The frame pump only sends once Active. It returns an error and
// leaves the state unchanged while the display sink reports either
// handshake as incomplete.
func (c *Controller) Activate() error {
	if c.display != nil && (!c.display.Activated() || !c.display.EGFXNegotiated()) {
		return wrderr.New(wrderr.Protocol, "session: RDP connection not activated or EGFX not negotiated")
	}
	return c.transition(StateActive)
}

// waitForFirstFrame blocks until the capture source has produced its
// first frame (confirming the pipeline actually negotiated a format),
// releasing it immediately since only the StreamDescriptor is needed.
func waitForFirstFrame(ctx context.Context, src *capture.Source) (capture.StreamDescriptor, error) {
	select {
	case frame, ok := <-src.Frames():
		if !ok {
			return capture.StreamDescriptor{}, wrderr.New(wrderr.StrategyFailed, "capture source closed before first frame")
		}
		frame.Release()
		return src.Descriptor(), nil
	case <-ctx.Done():
		return capture.StreamDescriptor{}, wrderr.Wrap(wrderr.Cancelled, "cancelled waiting for first frame", ctx.Err())
	case <-time.After(10 * time.Second):
		return capture.StreamDescriptor{}, wrderr.New(wrderr.StrategyFailed, "timed out waiting for first capture frame")
	}
}

// bitrateForFPS returns a simple resolution/fps-proportional bitrate
// target; spec.md §4.9 leaves the exact curve to the implementation
// ("scales with FPS and quality preset").
func bitrateForFPS(width, height int) func(fps float64) int {
	pixelsPerFrame := float64(width * height)
	return func(fps float64) int {
		bps := pixelsPerFrame * fps * 0.07
		if bps < 500_000 {
			bps = 500_000
		}
		return int(bps)
	}
}

// pumpFrames is the controller's single frame-processing goroutine:
// damage detect -> rate-governed pacing -> encode -> EGFX send. It
// keeps consuming frames (to release their buffers) even before the
// session reaches Active, but only sends once Active.
func (c *Controller) pumpFrames(ctx context.Context) {
	for {
		select {
		case frame, ok := <-c.captureSrc.Frames():
			if !ok {
				return
			}
			c.processFrame(ctx, frame)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) processFrame(ctx context.Context, frame *capture.VideoFrame) {
	defer frame.Release()

	if c.State() != StateActive {
		return
	}

	c.applyResolutionChange(frame)

	regions := c.detector.DetectRegions(frame)

	dropped := c.captureSrc.DropCount()
	delta := dropped - c.lastDropCount
	c.lastDropCount = dropped
	dropRate := 0.0
	if delta > 0 {
		dropRate = 1.0
	}

	dirtyFraction := dirtyFractionOf(regions, frame.Width, frame.Height)
	decision := c.governor.Tick(dirtyFraction, dropRate)
	c.applyRateDecision(decision)

	if !c.lastEncodeAt.IsZero() {
		minInterval := time.Duration(float64(time.Second) / decision.FPS)
		if time.Since(c.lastEncodeAt) < minInterval {
			return
		}
	}
	c.lastEncodeAt = time.Now()

	if len(regions) == 0 && !frame.HasDamage {
		return
	}

	units, err := c.encBackend.Encode(ctx, frame, false)
	if err != nil {
		c.handlePipelineError(err)
		return
	}
	if len(units) == 0 {
		return
	}

	seq := c.seq.Add(1)
	if err := c.sender.SendAVC420(c.cfg.StreamID, seq, units, regions); err != nil {
		c.handlePipelineError(err)
	}
}

// applyResolutionChange detects a capture source caps renegotiation
// (scenario: the compositor resizes the monitor mid-session) and
// reconfigures the encoder to match, per spec.md §4.5/§4.8. Width/
// Height/Format feed straight into encoder.Config, whose Reconfigure
// contract already forces an IDR whenever those fields (or Color)
// differ from the previous call, so no separate IDR flag is needed
// here.
func (c *Controller) applyResolutionChange(frame *capture.VideoFrame) {
	if frame.Width == 0 || frame.Height == 0 {
		return
	}
	if frame.Width == c.encBaseCfg.Width && frame.Height == c.encBaseCfg.Height && frame.Format == c.encBaseCfg.Format {
		return
	}

	c.logger.Info("capture resolution changed, reconfiguring encoder",
		"old_width", c.encBaseCfg.Width, "old_height", c.encBaseCfg.Height,
		"new_width", frame.Width, "new_height", frame.Height)

	c.encBaseCfg.Width = frame.Width
	c.encBaseCfg.Height = frame.Height
	c.encBaseCfg.Format = frame.Format
	if c.autoColor {
		c.encBaseCfg.Color = encoder.ColorSpecAuto(frame.Width, frame.Height)
	}

	cfg := c.encBaseCfg
	if err := c.encBackend.Reconfigure(cfg); err != nil {
		c.logger.Warn("encoder resolution reconfigure failed", "error", err)
	}
}

// applyRateDecision feeds the governor's latest FPS/bitrate/QP/keyframe
// decision into the encoder. The base Width/Height/Format/Color never
// change here, so this never forces a spurious IDR — only an actual
// resolution/format/colour change (handled by applyResolutionChange)
// does that, per encoder.Config's documented contract.
func (c *Controller) applyRateDecision(d rate.Decision) {
	cfg := c.encBaseCfg
	cfg.Mode = encoder.RateControlVariableBitrate
	cfg.TargetBitrateBps = d.BitrateBps
	cfg.MaxBitrateBps = d.BitrateBps * 2
	cfg.KeyframeInterval = d.KeyframeInterval
	if err := c.encBackend.Reconfigure(cfg); err != nil {
		c.logger.Warn("encoder reconfigure failed", "error", err)
	}
}

func dirtyFractionOf(regions []capture.DamageRegion, width, height int) float64 {
	if width == 0 || height == 0 {
		return 0
	}
	total := width * height
	dirty := 0
	for _, r := range regions {
		dirty += r.W * r.H
	}
	if dirty > total {
		dirty = total
	}
	return float64(dirty) / float64(total)
}

// handlePipelineError applies spec.md §7's propagation policy: a
// fatal-kind error terminates the session, anything else is logged
// and the pipeline keeps running.
func (c *Controller) handlePipelineError(err error) {
	kind := wrderr.KindOf(err)
	if wrderr.Fatal(kind) {
		c.logger.Error("fatal pipeline error, draining session", "error", err, "kind", kind)
		c.fail(err)
		return
	}
	c.logger.Warn("transient pipeline error", "error", err, "kind", kind)
}

// HandleInput returns an rdpio.InputHandler translating decoded PDUs
// into the active strategy's injector and feeding pointer samples to
// the cursor predictor, mirroring the teacher's UpdateCursorPosition
// call from its input-handling path.
func (c *Controller) HandleInput() InputAdapter {
	return InputAdapter{c: c}
}

func (c *Controller) cursorObserve(x, y int32) {
	c.predictor.Observe(float64(x), float64(y), time.Now())
}

// CursorEstimate returns the predictor's current best cursor position
// for delivery at t; the caller (the transport adapter carrying
// whatever cursor-update channel the RDP engine exposes) decides how
// to encode it, since that channel is outside egfx's WIRETOSURFACE
// framing.
func (c *Controller) CursorEstimate(t time.Time) cursor.Position {
	return c.predictor.Estimate(t)
}

// SetMeasuredRTT feeds the transport's measured round-trip time to the
// cursor predictor's Auto-mode threshold.
func (c *Controller) SetMeasuredRTT(rtt time.Duration) {
	c.predictor.SetMeasuredRTT(rtt)
}

// Attempts returns the strategy arbiter's attempt log from Start, for
// diagnostics when the caller wants to know which variants were tried.
func (c *Controller) Attempts() []strategy.Attempt {
	return c.attempts
}

// fail drains and terminates the session from an internal failure,
// whether during Start (arbiter/capture/encoder construction) or from
// the running pipeline. Teardown runs on its own goroutine since fail
// may be called from inside pumpFrames, which teardown's
// WaitGroup.Wait would otherwise deadlock on; every resource teardown
// touches is nil-checked since construction may not have finished.
func (c *Controller) fail(cause error) {
	if err := c.transition(StateDraining); err != nil {
		return // already draining/terminated
	}
	go c.teardown(cause)
}

// Shutdown requests a normal drain (client disconnect or explicit
// stop) and blocks until the controller reaches Terminated.
func (c *Controller) Shutdown() {
	if err := c.transition(StateDraining); err != nil {
		<-c.terminated
		return
	}
	c.teardown(wrderr.New(wrderr.Cancelled, "normal shutdown"))
}

// teardown releases every resource in LIFO order relative to Start's
// construction order, persists a restore token if the strategy
// produced one, and transitions to Terminated. Safe to call at most
// once; guarded by the Draining transition's single-winner semantics.
func (c *Controller) teardown(cause error) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if c.injector != nil {
		if err := c.injector.Close(); err != nil {
			c.logger.Warn("injector close failed", "error", err)
		}
	}
	if c.encBackend != nil {
		if err := c.encBackend.Close(); err != nil {
			c.logger.Warn("encoder close failed", "error", err)
		}
	}
	if c.captureSrc != nil {
		c.captureSrc.Stop()
	}

	if provider, ok := c.handle.(strategy.RestoreTokenProvider); ok && c.credStore != nil {
		if tok := provider.RestoreToken(); tok != nil {
			if err := c.credStore.Save(c.cfg.SessionID, tok); err != nil {
				c.logger.Warn("restore token persistence failed", "error", err)
			}
		}
	}
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			c.logger.Warn("strategy handle close failed", "error", err)
		}
	}

	c.logger.Info("session terminated", "cause", cause)
	_ = c.transition(StateTerminated)
	close(c.terminated)
}

// Wait blocks until the controller reaches Terminated.
func (c *Controller) Wait() {
	<-c.terminated
}
