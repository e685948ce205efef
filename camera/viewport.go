package camera

import "sync"

// Renderer is the live view a camera state is drawn into. Implementations must be safe for
// concurrent use.
type Renderer interface {
	CameraState() State
	SetCameraState(State)
}

// Viewport is a headless Renderer. It records the states it is given and notifies an optional
// listener after each change.
type Viewport struct {
	mu       sync.Mutex
	state    State
	frames   int
	onChange func(State)
}

// NewViewport returns a viewport showing initial.
func NewViewport(initial State) *Viewport {
	return &Viewport{state: initial}
}

// OnChange registers fn to be called with every new state. Passing nil removes the listener.
func (v *Viewport) OnChange(fn func(State)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

// CameraState returns the state currently shown.
func (v *Viewport) CameraState() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetCameraState shows state.
func (v *Viewport) SetCameraState(state State) {
	v.mu.Lock()
	v.state = state
	v.frames++
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// Frames returns how many states have been set since creation.
func (v *Viewport) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}
