package animation

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcam/camera"
	"go.viam.com/depthcam/logging"
)

const (
	// DefaultSpeed is the progress added per tick, in keyframes. Every keyframe segment takes
	// 1/DefaultSpeed ticks whatever the keyframe count.
	DefaultSpeed = 0.02
	// DefaultTickPeriod is the playback tick period (about 60Hz).
	DefaultTickPeriod = 16 * time.Millisecond
)

var (
	// ErrPlaybackPrecondition is returned by Play when there are fewer than two keyframes.
	ErrPlaybackPrecondition = errors.New("need at least 2 keyframes to play")
	// ErrPersistence wraps every keyframe save and load failure.
	ErrPersistence = errors.New("keyframe persistence failed")
	errClosed      = errors.New("animation controller is closed")
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock drives playback from clk instead of the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithSpeed sets the progress added per tick.
func WithSpeed(speed float64) Option {
	return func(c *Controller) {
		c.speed = speed
	}
}

// WithTickPeriod sets the playback tick period.
func WithTickPeriod(period time.Duration) Option {
	return func(c *Controller) {
		c.period = period
	}
}

// WithKeyframes plays from ks instead of a private store.
func WithKeyframes(ks *KeyframeStore) Option {
	return func(c *Controller) {
		c.keyframes = ks
	}
}

// WithContainerStore also writes every animated state into store.
func WithContainerStore(store *camera.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// Controller records keyframes from a renderer and plays them back into it. While playing, a
// ticker advances progress by speed every period and the interpolated state is written to the
// renderer and, when bound, the container's camera store. A failed tick, including a renderer
// panic, pauses playback.
//
// The renderer is called from the tick goroutine, so its SetCameraState (and any listener it
// notifies) must not call Pause, Toggle, Clear, Load or Close on the same controller.
type Controller struct {
	renderer  camera.Renderer
	store     *camera.Store
	keyframes *KeyframeStore
	clock     clock.Clock
	speed     float64
	period    time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	progress float64
	playing  bool
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewController returns an idle controller for renderer.
func NewController(renderer camera.Renderer, logger logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		renderer: renderer,
		clock:    clock.New(),
		speed:    DefaultSpeed,
		period:   DefaultTickPeriod,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keyframes == nil {
		c.keyframes = NewKeyframeStore()
	}
	return c
}

// Keyframes returns the store the controller plays from.
func (c *Controller) Keyframes() *KeyframeStore {
	return c.keyframes
}

// Progress returns the current position along the loop, in keyframes.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Playing reports whether the ticker is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// AddKeyframe appends the renderer's current camera state to the keyframes and returns the new
// keyframe count.
func (c *Controller) AddKeyframe() int {
	state := c.renderer.CameraState()
	c.mu.Lock()
	n := c.keyframes.Add(state)
	c.mu.Unlock()
	c.logger.Infow("Added keyframe", "index", n, "position", state.Position)
	return n
}

// Clear stops playback, removes every keyframe and rewinds to the start.
func (c *Controller) Clear() {
	c.Pause()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyframes.Clear()
	c.progress = 0
}

// Play starts ticking. It fails with ErrPlaybackPrecondition, and stays idle, when there are
// fewer than two keyframes. Playing an already playing controller does nothing.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked()
}

func (c *Controller) playLocked() error {
	if c.closed {
		return errClosed
	}
	if c.playing {
		return nil
	}
	n := c.keyframes.Len()
	if n < 2 {
		c.logger.Warnw("Cannot play", "reason", ErrPlaybackPrecondition.Error(), "keyframes", n)
		return errors.Wrapf(ErrPlaybackPrecondition, "have %d", n)
	}

	ticker := c.clock.Ticker(c.period)
	stop := make(chan struct{})
	done := make(chan struct{})
	c.playing = true
	c.stop, c.done = stop, done
	utils.PanicCapturingGo(func() {
		defer close(done)
		defer ticker.Stop()
		c.run(ticker.C, stop)
	})
	c.logger.Infow("Playing animation", "keyframes", n)
	return nil
}

// Pause stops ticking without touching keyframes or progress. Every caller, including ones
// racing each other, returns only once the ticker goroutine has exited. It is a no-op when not
// playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop = nil
	c.playing = false
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	// done stays set until the next Play so concurrent callers all wait on the same goroutine
	if done != nil {
		<-done
	}
}

// Toggle pauses a playing controller and plays an idle one.
func (c *Controller) Toggle() error {
	if c.Playing() {
		c.Pause()
		return nil
	}
	return c.Play()
}

// Step performs one playback tick immediately, as the ticker would. It does nothing when not
// playing. A failed tick pauses playback and is returned.
func (c *Controller) Step() error {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return nil
	}
	state, ok, err := c.advanceLocked()
	c.mu.Unlock()
	if err == nil && ok {
		err = c.publish(state)
	}
	if err != nil {
		c.logger.Errorw("Animation tick error", "error", err)
		c.Pause()
		return err
	}
	return nil
}

// HandleKey maps a key press to a controller action: K adds a keyframe and P toggles playback.
// It reports whether the key was handled.
func (c *Controller) HandleKey(key rune) bool {
	switch key {
	case 'k', 'K':
		c.AddKeyframe()
	case 'p', 'P':
		//nolint:errcheck
		c.Toggle()
	default:
		return false
	}
	return true
}

// Close stops playback for good.
func (c *Controller) Close() error {
	c.Pause()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Controller) run(ticks <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticks:
		}

		c.mu.Lock()
		select {
		case <-stop:
			c.mu.Unlock()
			return
		default:
		}
		state, ok, err := c.advanceLocked()
		c.mu.Unlock()
		if err == nil && ok {
			err = c.publish(state)
		}
		if err != nil {
			c.halt(stop, err)
			return
		}
	}
}

// halt marks playback stopped from inside the tick goroutine; joining it here would wait on
// ourselves.
func (c *Controller) halt(stop <-chan struct{}, err error) {
	c.mu.Lock()
	if (<-chan struct{})(c.stop) == stop {
		c.playing = false
		c.stop = nil
	}
	c.mu.Unlock()
	c.logger.Errorw("Animation tick error", "error", err)
}

// advanceLocked moves progress forward one tick and interpolates the new state. It reports
// false when there are too few keyframes to animate.
func (c *Controller) advanceLocked() (camera.State, bool, error) {
	frames := c.keyframes.Snapshot()
	n := float64(len(frames))
	if len(frames) < 2 {
		return camera.State{}, false, nil
	}
	c.progress += c.speed
	if c.progress >= n {
		c.progress = math.Mod(c.progress, n)
	}
	state, err := Interpolate(frames, c.progress)
	if err != nil {
		return camera.State{}, false, err
	}
	return state, true, nil
}

// publish writes state to the store and the renderer. A renderer panic is returned as an error.
func (c *Controller) publish(state camera.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("renderer failed to apply %v: %v", state, r)
		}
	}()
	if c.store != nil {
		c.store.Set(state)
	}
	c.renderer.SetCameraState(state)
	return nil
}
