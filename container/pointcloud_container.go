package container

import (
	"image/color"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/camera"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/pointcloud"
)

// CloudLoader reads a point cloud from a file.
type CloudLoader func(path string, logger logging.Logger) (pointcloud.PointCloud, error)

// PointCloudContainer holds a point cloud, its cached bounds and the camera state used to view
// it. The camera starts framed on the bounds and survives reloads.
type PointCloudContainer struct {
	path   string
	loader CloudLoader
	logger logging.Logger
	camera *camera.Store

	mu       sync.RWMutex
	cloud    pointcloud.PointCloud
	minPt    r3.Vector
	maxPt    r3.Vector
	channels []string
}

// NewPointCloudContainer loads a .pcd or .las file.
func NewPointCloudContainer(path string, logger logging.Logger) (*PointCloudContainer, error) {
	return NewPointCloudContainerWithLoader(path, pointcloud.NewFromFile, logger)
}

// NewPointCloudContainerWithLoader loads path with loader.
func NewPointCloudContainerWithLoader(path string, loader CloudLoader, logger logging.Logger) (*PointCloudContainer, error) {
	cloud, err := loader(path, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load point cloud %q", path)
	}
	c := &PointCloudContainer{path: path, loader: loader, logger: logger}
	c.setCloud(cloud)
	c.camera = camera.NewStore(camera.DefaultState(c.minPt, c.maxPt))
	return c, nil
}

func (c *PointCloudContainer) isContainer() {}

func (c *PointCloudContainer) setCloud(cloud pointcloud.PointCloud) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cloud = cloud
	c.minPt, c.maxPt = cloud.MetaData().Bounds()
	if cloud.MetaData().HasColor {
		c.channels = ChannelNames(3)
	} else {
		c.channels = ChannelNames(0)
	}
}

// FilePath is the file the container was loaded from.
func (c *PointCloudContainer) FilePath() string {
	return c.path
}

// Reload re-reads the file and recomputes bounds and channels. The camera state is kept.
func (c *PointCloudContainer) Reload() error {
	cloud, err := c.loader(c.path, c.logger)
	if err != nil {
		return errors.Wrapf(err, "cannot reload point cloud %q", c.path)
	}
	c.setCloud(cloud)
	c.logger.Debugw("reloaded point cloud", "path", c.path, "points", cloud.Size())
	return nil
}

// Cloud returns the loaded point cloud.
func (c *PointCloudContainer) Cloud() pointcloud.PointCloud {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cloud
}

// Bounds returns the per-axis minimum and maximum of the points; an empty cloud bounds to the
// origin.
func (c *PointCloudContainer) Bounds() (r3.Vector, r3.Vector) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minPt, c.maxPt
}

// Channels names the color channels, empty when the cloud has no color.
func (c *PointCloudContainer) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.channels...)
}

// ColorChannel returns one color channel per point, indexed like Channels (B, G, R). It is nil
// when the cloud has no color.
func (c *PointCloudContainer) ColorChannel(index int) ([]uint8, error) {
	c.mu.RLock()
	cloud, channels := c.cloud, c.channels
	c.mu.RUnlock()
	if len(channels) == 0 {
		return nil, nil
	}
	if index < 0 || index >= len(channels) {
		return nil, errors.Errorf("channel index %d out of range [0, %d)", index, len(channels))
	}
	pick := []func(color.NRGBA) uint8{
		func(c color.NRGBA) uint8 { return c.B },
		func(c color.NRGBA) uint8 { return c.G },
		func(c color.NRGBA) uint8 { return c.R },
	}[index]
	colors := pointcloud.Colors(cloud)
	out := make([]uint8, len(colors))
	for i, col := range colors {
		out[i] = pick(col)
	}
	return out, nil
}

// Camera returns the container's camera state store.
func (c *PointCloudContainer) Camera() *camera.Store {
	return c.camera
}

// CameraState returns a copy of the stored camera state.
func (c *PointCloudContainer) CameraState() camera.State {
	return c.camera.Get()
}

// SetCameraState stores a copy of state.
func (c *PointCloudContainer) SetCameraState(state camera.State) {
	c.camera.Set(state)
}

// Properties summarizes the container.
func (c *PointCloudContainer) Properties() Properties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Properties{
		FilePath:  c.path,
		FileSize:  fileSize(c.path),
		Kind:      "pointcloud",
		Channels:  append([]string(nil), c.channels...),
		Points:    c.cloud.Size(),
		HasColor:  c.cloud.MetaData().HasColor,
		MinBounds: c.minPt,
		MaxBounds: c.maxPt,
	}
}
