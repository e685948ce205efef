package cli

import (
	"encoding/json"
	"image"
	// image decoders for --color.
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	// more image decoders for --color.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.viam.com/depthcam/animation"
	"go.viam.com/depthcam/camera"
	"go.viam.com/depthcam/container"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/rimage/transform"
)

// ProjectAction turns a depth image into a PCD file.
func ProjectAction(c *cli.Context) (err error) {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	if c.IsSet(flagFocalLength) && c.IsSet(flagIntrinsics) {
		return errors.Errorf("only one of --%s and --%s may be given", flagFocalLength, flagIntrinsics)
	}
	if c.IsSet(flagFocalLength) && c.Float64(flagFocalLength) <= 0 {
		return errors.Errorf("--%s must be positive, got %v", flagFocalLength, c.Float64(flagFocalLength))
	}
	intr, err := rt.cfg.Projection.Intrinsics(c.Float64(flagFocalLength), c.String(flagIntrinsics))
	if err != nil {
		return err
	}

	dm, err := rimage.ReadDepthImage(c.String(flagDepth))
	if err != nil {
		return err
	}
	var img image.Image
	if colorPath := c.String(flagColor); colorPath != "" {
		if img, err = readImage(colorPath); err != nil {
			return err
		}
	}
	rt.logger.Debugw("projecting", "depth", c.String(flagDepth), "intrinsics", intr.String(),
		"width", dm.Width(), "height", dm.Height())
	cloud, _, err := transform.ProjectWithColor(dm, img, intr)
	if err != nil {
		return err
	}

	pcdType := pointcloud.PCDAscii
	if c.Bool(flagBinary) {
		pcdType = pointcloud.PCDBinary
	}
	out := c.String(flagOut)
	//nolint:gosec
	f, err := os.Create(filepath.Clean(out))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := pointcloud.ToPCD(cloud, f, pcdType); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %d points to %s", cloud.Size(), out)
	return nil
}

func readImage(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", path)
	}
	return img, nil
}

type frameOutput struct {
	Camera camera.State `json:"camera"`
	Min    []float64    `json:"min"`
	Max    []float64    `json:"max"`
	Points int          `json:"points"`
}

// FrameAction prints the camera state a newly opened view of a point cloud starts from.
func FrameAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	dc, err := container.Open(c.String(flagCloud), rt.logger)
	if err != nil {
		return err
	}
	props := dc.Properties()
	state := camera.DefaultState(props.MinBounds, props.MaxBounds)
	if pcc, ok := dc.(*container.PointCloudContainer); ok {
		state = pcc.CameraState()
	}
	return writeJSON(c, "", frameOutput{
		Camera: state,
		Min:    vecSlice(props.MinBounds),
		Max:    vecSlice(props.MaxBounds),
		Points: props.Points,
	})
}

// AnimateAction plays an animation file for a fixed number of ticks and outputs every camera
// state it produced.
func AnimateAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	ticks := c.Int(flagTicks)
	if ticks <= 0 {
		return errors.Errorf("--%s must be positive, got %d", flagTicks, ticks)
	}

	var (
		mu   sync.Mutex
		path = []camera.State{}
	)
	viewport := camera.NewViewport(camera.State{Up: camera.DefaultUp})
	viewport.OnChange(func(s camera.State) {
		mu.Lock()
		defer mu.Unlock()
		path = append(path, s)
	})

	// the mock clock never advances, so only Step drives playback
	opts := append(rt.cfg.Animation.ControllerOptions(), animation.WithClock(clock.NewMock()))
	ctrl := animation.NewController(viewport, rt.logger, opts...)
	defer func() {
		//nolint:errcheck
		ctrl.Close()
	}()
	if err := ctrl.Load(c.String(flagKeyframes)); err != nil {
		return err
	}
	if !ctrl.Playing() {
		return errors.Wrapf(animation.ErrPlaybackPrecondition, "%q has %d", c.String(flagKeyframes), ctrl.Keyframes().Len())
	}
	for i := 0; i < ticks; i++ {
		if err := ctrl.Step(); err != nil {
			return errors.Wrapf(err, "tick %d", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return writeJSON(c, c.String(flagOut), map[string][]camera.State{"path": path})
}

// KeyframesAddAction appends one keyframe to an animation file.
func KeyframesAddAction(c *cli.Context) error {
	var state camera.State
	var err error
	if state.Position, err = parseVector(c.String(flagPosition)); err != nil {
		return errors.Wrapf(err, "--%s", flagPosition)
	}
	if state.FocalPoint, err = parseVector(c.String(flagFocal)); err != nil {
		return errors.Wrapf(err, "--%s", flagFocal)
	}
	if state.Up, err = parseVector(c.String(flagUp)); err != nil {
		return errors.Wrapf(err, "--%s", flagUp)
	}

	file := c.String(flagFile)
	var frames []camera.State
	if _, statErr := os.Stat(file); !errors.Is(statErr, fs.ErrNotExist) {
		if frames, err = animation.ReadKeyframes(file); err != nil {
			return err
		}
	}
	frames = append(frames, state)
	if err := animation.WriteKeyframes(file, frames); err != nil {
		return err
	}
	printf(c.App.Writer, "Added keyframe %d to %s", len(frames), file)
	return nil
}

// KeyframesListAction prints the keyframes of an animation file, one per line.
func KeyframesListAction(c *cli.Context) error {
	frames, err := animation.ReadKeyframes(c.String(flagFile))
	if err != nil {
		return err
	}
	for i, f := range frames {
		printf(c.App.Writer, "%d: %s", i+1, f)
	}
	return nil
}

// WatchAction reloads a container whenever its file changes until interrupted.
func WatchAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	dc, err := container.Open(c.String(flagCloud), rt.logger)
	if err != nil {
		return err
	}
	logBounds := func(dc container.DataContainer) {
		props := dc.Properties()
		rt.logger.Infow("bounds", "path", props.FilePath, "points", props.Points,
			"min", props.MinBounds, "max", props.MaxBounds)
	}
	logBounds(dc)

	w, err := container.NewWatcher(dc, rt.logger, func(dc container.DataContainer, err error) {
		if err == nil {
			logBounds(dc)
		}
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return w.Close()
}

func parseVector(s string) (r3.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vector{}, errors.Errorf("expected x,y,z but got %q", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "component %d of %q", i, s)
		}
		vals[i] = v
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func vecSlice(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// writeJSON writes v indented to path, or to the app writer when path is empty.
func writeJSON(c *cli.Context, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		printf(c.App.Writer, "%s", data)
		return nil
	}
	return os.WriteFile(filepath.Clean(path), data, 0o600)
}
