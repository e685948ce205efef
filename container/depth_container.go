package container

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/rimage/transform"
)

// DepthLoader reads the depth channels of an image file.
type DepthLoader[T rimage.DepthSample] func(path string) ([]*rimage.DepthMap[T], error)

// DepthContainer holds the depth channels of an image. Every channel has the same size.
type DepthContainer[T rimage.DepthSample] struct {
	path   string
	loader DepthLoader[T]
	logger logging.Logger

	mu       sync.RWMutex
	channels []*rimage.DepthMap[T]
	names    []string
}

// ChannelCloud is the projection of one depth channel.
type ChannelCloud[T rimage.DepthSample] struct {
	Name  string
	Cloud pointcloud.PointCloud
	Mask  *rimage.Mask
	// Min and Max are the extreme valid depth samples of the channel.
	Min, Max T
}

func readDepthImageChannels(path string) ([]*rimage.DepthMap[uint16], error) {
	dm, err := rimage.ReadDepthImage(path)
	if err != nil {
		return nil, err
	}
	return []*rimage.DepthMap[uint16]{dm}, nil
}

// NewDepthContainer loads a single channel depth PNG or TIFF (millimetres).
func NewDepthContainer(path string, logger logging.Logger) (*DepthContainer[uint16], error) {
	return NewDepthContainerWithLoader(path, readDepthImageChannels, logger)
}

// NewDepthContainerWithLoader loads path with loader.
func NewDepthContainerWithLoader[T rimage.DepthSample](
	path string, loader DepthLoader[T], logger logging.Logger,
) (*DepthContainer[T], error) {
	c := &DepthContainer[T]{path: path, loader: loader, logger: logger}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewDepthContainerFromChannels wraps channels that are already in memory. Reload is not
// supported on the result.
func NewDepthContainerFromChannels[T rimage.DepthSample](
	path string, channels []*rimage.DepthMap[T], logger logging.Logger,
) (*DepthContainer[T], error) {
	loader := func(string) ([]*rimage.DepthMap[T], error) {
		return nil, errors.New("in-memory depth container cannot be reloaded")
	}
	c := &DepthContainer[T]{path: path, loader: loader, logger: logger}
	if err := c.setChannels(channels); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DepthContainer[T]) isContainer() {}

func (c *DepthContainer[T]) load() error {
	channels, err := c.loader(c.path)
	if err != nil {
		return errors.Wrapf(err, "cannot load depth image %q", c.path)
	}
	return c.setChannels(channels)
}

func (c *DepthContainer[T]) setChannels(channels []*rimage.DepthMap[T]) error {
	if len(channels) == 0 {
		return errors.Errorf("depth image %q has no channels", c.path)
	}
	for i, ch := range channels {
		if ch == nil {
			return errors.Errorf("depth image %q channel %d is missing", c.path, i)
		}
		if ch.Bounds() != channels[0].Bounds() {
			return errors.Errorf("depth image %q channel %d is %v, expected %v", c.path, i, ch.Bounds(), channels[0].Bounds())
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = channels
	c.names = ChannelNames(len(channels))
	return nil
}

// FilePath is the file the container was loaded from.
func (c *DepthContainer[T]) FilePath() string {
	return c.path
}

// Reload re-reads the file. On failure the previous channels are kept.
func (c *DepthContainer[T]) Reload() error {
	if err := c.load(); err != nil {
		return err
	}
	c.logger.Debugw("reloaded depth image", "path", c.path, "channels", c.Channels())
	return nil
}

// Channels names the depth channels.
func (c *DepthContainer[T]) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

// Channel returns the depth map of channel index.
func (c *DepthContainer[T]) Channel(index int) (*rimage.DepthMap[T], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.channels) {
		return nil, errors.Errorf("channel index %d out of range [0, %d)", index, len(c.channels))
	}
	return c.channels[index], nil
}

// Properties summarizes the container.
func (c *DepthContainer[T]) Properties() Properties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	first := c.channels[0]
	return Properties{
		FilePath: c.path,
		FileSize: fileSize(c.path),
		Kind:     "depth",
		Channels: append([]string(nil), c.names...),
		Width:    first.Width(),
		Height:   first.Height(),
	}
}

// ProjectChannels projects every channel through intr concurrently. A channel without any valid
// pixel fails the whole call with transform.ErrInvalidInput.
func (c *DepthContainer[T]) ProjectChannels(ctx context.Context, intr transform.Intrinsics) ([]ChannelCloud[T], error) {
	c.mu.RLock()
	channels, names := c.channels, c.names
	c.mu.RUnlock()

	results := make([]ChannelCloud[T], len(channels))
	g, ctx := errgroup.WithContext(ctx)
	for i := range channels {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cloud, mask, err := transform.Project(channels[i], intr)
			if err != nil {
				return errors.Wrapf(err, "channel %s", names[i])
			}
			if cloud.Size() == 0 {
				return errors.Wrapf(transform.ErrInvalidInput, "no valid points generated for channel %s", names[i])
			}
			lo, hi, _ := channels[i].MinMax()
			results[i] = ChannelCloud[T]{Name: names[i], Cloud: cloud, Mask: mask, Min: lo, Max: hi}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Debugw("projected depth channels", "path", c.path, "channels", len(results))
	return results, nil
}
