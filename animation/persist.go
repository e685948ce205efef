package animation

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/depthcam/camera"
)

// keyframeFile is the on-disk animation document.
type keyframeFile struct {
	Keyframes []camera.State `json:"keyframes"`
}

// WriteKeyframes writes frames to path as {"keyframes": [{"position", "focal_point", "up"}, ...]}.
func WriteKeyframes(path string, frames []camera.State) error {
	if frames == nil {
		frames = []camera.State{}
	}
	data, err := json.MarshalIndent(keyframeFile{Keyframes: frames}, "", "  ")
	if err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return errors.Wrapf(ErrPersistence, "writing %q: %v", path, err)
	}
	return nil
}

// ReadKeyframes reads an animation document written by WriteKeyframes.
func ReadKeyframes(path string) ([]camera.State, error) {
	//nolint:gosec
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "reading %q: %v", path, err)
	}
	var doc struct {
		Keyframes *[]camera.State `json:"keyframes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrPersistence, "parsing %q: %v", path, err)
	}
	if doc.Keyframes == nil {
		return nil, errors.Wrapf(ErrPersistence, "%q has no keyframes list", path)
	}
	return *doc.Keyframes, nil
}

// Save writes the current keyframes to path.
func (c *Controller) Save(path string) error {
	frames := c.keyframes.Snapshot()
	c.logger.Infow("Saving keyframes", "count", len(frames), "path", path)
	return WriteKeyframes(path, frames)
}

// Load replaces the keyframes with the ones stored at path, rewinds to the start and starts
// playback. On failure the keyframes and progress are left untouched.
func (c *Controller) Load(path string) error {
	frames, err := ReadKeyframes(path)
	if err != nil {
		c.logger.Errorw("Failed to load animation", "path", path, "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyframes.Replace(frames)
	c.progress = 0
	c.logger.Infow("Loaded keyframes", "count", len(frames), "path", path)
	//nolint:errcheck
	c.playLocked()
	return nil
}
