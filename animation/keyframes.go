// Package animation plays a camera along a loop of keyframes, interpolating orientation with
// quaternion SLERP and distance and focal point linearly.
package animation

import (
	"sync"

	"go.viam.com/depthcam/camera"
)

// KeyframeStore is a list of camera keyframes that one or more controllers play from. It is safe
// for concurrent use.
type KeyframeStore struct {
	mu     sync.RWMutex
	frames []camera.State
}

var sharedKeyframes = NewKeyframeStore()

// SharedKeyframes returns the process-wide store. Controllers built on it see each other's
// keyframes.
func SharedKeyframes() *KeyframeStore {
	return sharedKeyframes
}

// NewKeyframeStore returns an empty store.
func NewKeyframeStore() *KeyframeStore {
	return &KeyframeStore{}
}

// Add appends a keyframe and returns the new count.
func (ks *KeyframeStore) Add(s camera.State) int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.frames = append(ks.frames, s)
	return len(ks.frames)
}

// Clear removes every keyframe.
func (ks *KeyframeStore) Clear() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.frames = nil
}

// Replace swaps the whole list for a copy of frames.
func (ks *KeyframeStore) Replace(frames []camera.State) {
	cp := append([]camera.State(nil), frames...)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.frames = cp
}

// Snapshot returns a copy of the keyframes.
func (ks *KeyframeStore) Snapshot() []camera.State {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return append([]camera.State(nil), ks.frames...)
}

// Len returns the number of keyframes.
func (ks *KeyframeStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.frames)
}
