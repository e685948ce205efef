package container

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/camera"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/rimage/transform"
)

func TestChannelNames(t *testing.T) {
	test.That(t, ChannelNames(0), test.ShouldResemble, []string{})
	test.That(t, ChannelNames(1), test.ShouldResemble, []string{"Gray"})
	test.That(t, ChannelNames(2), test.ShouldResemble, []string{"Ch0", "Ch1"})
	test.That(t, ChannelNames(3), test.ShouldResemble, []string{"B", "G", "R"})
	test.That(t, ChannelNames(4), test.ShouldResemble, []string{"B", "G", "R", "A"})
	test.That(t, ChannelNames(5)[4], test.ShouldEqual, "Ch4")
}

type fakeLoader struct {
	clouds []pointcloud.PointCloud
	err    error
	calls  int
}

func (f *fakeLoader) load(string, logging.Logger) (pointcloud.PointCloud, error) {
	if f.err != nil {
		return nil, f.err
	}
	pc := f.clouds[f.calls]
	f.calls++
	return pc, nil
}

func TestPointCloudContainer(t *testing.T) {
	logger := logging.NewTestLogger(t)
	colored, err := pointcloud.NewWithColors(
		[]r3.Vector{{X: -1, Y: 0, Z: 0}, {X: 1, Y: 2, Z: 4}},
		[]color.NRGBA{{R: 10, G: 20, B: 30, A: 255}, {R: 40, G: 50, B: 60, A: 255}},
	)
	test.That(t, err, test.ShouldBeNil)
	plain := pointcloud.NewFromVectors([]r3.Vector{{X: 5, Y: 5, Z: 5}})
	loader := &fakeLoader{clouds: []pointcloud.PointCloud{colored, plain}}

	c, err := NewPointCloudContainerWithLoader("cloud.pcd", loader.load, logger)
	test.That(t, err, test.ShouldBeNil)
	minPt, maxPt := c.Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{X: -1})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 4})
	test.That(t, c.Channels(), test.ShouldResemble, []string{"B", "G", "R"})
	test.That(t, c.CameraState(), test.ShouldResemble, camera.DefaultState(minPt, maxPt))
	test.That(t, c.CameraState().Position, test.ShouldResemble, r3.Vector{X: 4, Y: 5, Z: 6})

	blue, err := c.ColorChannel(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blue, test.ShouldResemble, []uint8{30, 60})
	red, err := c.ColorChannel(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, red, test.ShouldResemble, []uint8{10, 40})
	_, err = c.ColorChannel(3)
	test.That(t, err, test.ShouldNotBeNil)

	props := c.Properties()
	test.That(t, props.Kind, test.ShouldEqual, "pointcloud")
	test.That(t, props.Points, test.ShouldEqual, 2)
	test.That(t, props.HasColor, test.ShouldBeTrue)

	// get/set copy values, and reload keeps the camera while recomputing bounds
	moved := camera.State{Position: r3.Vector{X: 9}, Up: camera.DefaultUp}
	c.SetCameraState(moved)
	test.That(t, c.Reload(), test.ShouldBeNil)
	test.That(t, c.CameraState(), test.ShouldResemble, moved)
	minPt, maxPt = c.Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 5})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 5})
	test.That(t, c.Channels(), test.ShouldResemble, []string{})
	gray, err := c.ColorChannel(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gray, test.ShouldBeNil)

	loader.err = errors.New("disk gone")
	test.That(t, c.Reload(), test.ShouldNotBeNil)
	test.That(t, c.Cloud(), test.ShouldEqual, plain)
}

func TestEmptyPointCloudContainer(t *testing.T) {
	loader := &fakeLoader{clouds: []pointcloud.PointCloud{pointcloud.New()}}
	c, err := NewPointCloudContainerWithLoader("empty.pcd", loader.load, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	minPt, maxPt := c.Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{})
	test.That(t, c.CameraState(), test.ShouldResemble, camera.State{Up: camera.DefaultUp})

	loader.err = errors.New("nope")
	_, err = NewPointCloudContainerWithLoader("bad.pcd", loader.load, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func writePCD(t *testing.T, path string, points []r3.Vector) {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, pointcloud.ToPCD(pointcloud.NewFromVectors(points), &buf, pointcloud.PCDAscii), test.ShouldBeNil)
	tmp := path + ".tmp"
	test.That(t, os.WriteFile(tmp, buf.Bytes(), 0o600), test.ShouldBeNil)
	test.That(t, os.Rename(tmp, path), test.ShouldBeNil)
}

func TestOpen(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()

	pcdPath := filepath.Join(dir, "scan.pcd")
	writePCD(t, pcdPath, []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}})
	dc, err := Open(pcdPath, logger)
	test.That(t, err, test.ShouldBeNil)
	pcc, ok := dc.(*PointCloudContainer)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pcc.Cloud().Size(), test.ShouldEqual, 3)
	test.That(t, dc.Properties().FileSize, test.ShouldBeGreaterThan, 0)

	pngPath := filepath.Join(dir, "depth.png")
	dm, err := rimage.NewDepthMapFromRows([][]uint16{{0, 1000}, {2000, 3000}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rimage.WriteDepthPNG(dm, pngPath), test.ShouldBeNil)
	dc, err = Open(pngPath, logger)
	test.That(t, err, test.ShouldBeNil)
	depth, ok := dc.(*DepthContainer[uint16])
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, depth.Channels(), test.ShouldResemble, []string{"Gray"})
	test.That(t, dc.Properties().Width, test.ShouldEqual, 2)

	test.That(t, SupportedExtensions(), test.ShouldResemble, []string{".las", ".pcd", ".png", ".tif", ".tiff"})

	_, err = Open(filepath.Join(dir, "notes.txt"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ".pcd")
}

func TestDepthContainerProjectChannels(t *testing.T) {
	logger := logging.NewTestLogger(t)
	near, err := rimage.NewDepthMapFromRows([][]float32{{0, 0.5}, {1, 0}})
	test.That(t, err, test.ShouldBeNil)
	far, err := rimage.NewDepthMapFromRows([][]float32{{4, 3}, {2, 1}})
	test.That(t, err, test.ShouldBeNil)

	c, err := NewDepthContainerFromChannels("stack.tiff", []*rimage.DepthMap[float32]{near, far}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Channels(), test.ShouldResemble, []string{"Ch0", "Ch1"})

	clouds, err := c.ProjectChannels(context.Background(), transform.FocalLength(35))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(clouds), test.ShouldEqual, 2)
	test.That(t, clouds[0].Name, test.ShouldEqual, "Ch0")
	test.That(t, clouds[0].Cloud.Size(), test.ShouldEqual, 2)
	test.That(t, clouds[0].Min, test.ShouldEqual, float32(0.5))
	test.That(t, clouds[0].Max, test.ShouldEqual, float32(1))
	test.That(t, clouds[1].Cloud.Size(), test.ShouldEqual, 4)
	test.That(t, clouds[1].Mask.Count(), test.ShouldEqual, 4)

	want, _, err := transform.Project(far, transform.FocalLength(35))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pointcloud.Vectors(clouds[1].Cloud), test.ShouldResemble, pointcloud.Vectors(want))

	test.That(t, c.Reload(), test.ShouldNotBeNil)
	test.That(t, c.Channels(), test.ShouldResemble, []string{"Ch0", "Ch1"})

	ch, err := c.Channel(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ch, test.ShouldEqual, far)
	_, err = c.Channel(2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthContainerEmptyChannel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	empty := rimage.NewEmptyDepthMap[uint16](3, 2)
	full, err := rimage.NewDepthMap(3, 2, []uint16{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldBeNil)
	ints, err := rimage.NewDepthMap(3, 2, []int16{1, 2, 3, 4, 5, -6})
	test.That(t, err, test.ShouldBeNil)

	c, err := NewDepthContainerFromChannels("rgb.png", []*rimage.DepthMap[uint16]{full, empty, full}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = c.ProjectChannels(context.Background(), nil)
	test.That(t, errors.Is(err, transform.ErrInvalidInput), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "channel G")

	neg, err := NewDepthContainerFromChannels("neg.png", []*rimage.DepthMap[int16]{ints}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = neg.ProjectChannels(context.Background(), nil)
	test.That(t, errors.Is(err, transform.ErrInvalidInput), test.ShouldBeTrue)

	_, err = NewDepthContainerFromChannels("mixed.png", []*rimage.DepthMap[uint16]{full, rimage.NewEmptyDepthMap[uint16](2, 2)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDepthContainerFromChannels[uint16]("none.png", nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ProjectChannels(ctx, nil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestWatcherReloads(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "live.pcd")
	writePCD(t, path, []r3.Vector{{X: 1}})

	c, err := NewPointCloudContainer(path, logger)
	test.That(t, err, test.ShouldBeNil)
	framed := c.CameraState()

	reloads := make(chan error, 10)
	w, err := NewWatcher(c, logger, func(dc DataContainer, err error) {
		test.That(t, dc, test.ShouldEqual, c)
		reloads <- err
	})
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	writePCD(t, path, []r3.Vector{{X: -2}, {X: 3, Y: 1}})
	deadline := time.After(10 * time.Second)
	for c.Cloud().Size() != 2 {
		select {
		case <-reloads:
		case <-deadline:
			t.Fatal("container was not reloaded")
		}
	}
	minPt, maxPt := c.Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{X: -2})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{X: 3, Y: 1})
	test.That(t, c.CameraState(), test.ShouldResemble, framed)
}

func TestRegisterOpener(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	pcdPath := filepath.Join(dir, "scan.pcd")
	writePCD(t, pcdPath, []r3.Vector{{X: 1}, {Y: 2}})

	RegisterOpener(".XYZ", func(path string, logger logging.Logger) (DataContainer, error) {
		return NewPointCloudContainer(pcdPath, logger)
	})
	t.Cleanup(func() { delete(openers, ".xyz") })
	test.That(t, SupportedExtensions(), test.ShouldContain, ".xyz")

	dc, err := Open(filepath.Join(dir, "scan.xyz"), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dc.Properties().Points, test.ShouldEqual, 2)
}
