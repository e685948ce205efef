// Package container holds loaded data files (point clouds and depth images) together with the
// derived state a viewer needs: bounds, channel names and the camera state.
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/depthcam/logging"
)

// DataContainer is a loaded data file. The set of implementations is closed: *PointCloudContainer
// and *DepthContainer.
type DataContainer interface {
	// FilePath is the file the container was loaded from.
	FilePath() string
	// Reload re-reads the file. On failure the previous contents are kept.
	Reload() error
	// Properties summarizes the container.
	Properties() Properties
	// Channels names the per-point or per-pixel channels.
	Channels() []string

	isContainer()
}

// Properties is a lookup of the basic features of a container.
type Properties struct {
	FilePath  string
	FileSize  int64
	Kind      string
	Channels  []string
	Points    int
	Width     int
	Height    int
	HasColor  bool
	MinBounds r3.Vector
	MaxBounds r3.Vector
}

// ChannelNames names n interleaved channels: Gray for one, B G R for three, B G R A for four
// and Ch0..ChN-1 otherwise.
func ChannelNames(n int) []string {
	switch n {
	case 0:
		return []string{}
	case 1:
		return []string{"Gray"}
	case 3:
		return []string{"B", "G", "R"}
	case 4:
		return []string{"B", "G", "R", "A"}
	default:
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("Ch%d", i)
		}
		return names
	}
}

// Opener builds a container from a file.
type Opener func(path string, logger logging.Logger) (DataContainer, error)

func openPointCloud(path string, logger logging.Logger) (DataContainer, error) {
	return NewPointCloudContainer(path, logger)
}

func openDepth(path string, logger logging.Logger) (DataContainer, error) {
	return NewDepthContainer(path, logger)
}

var openers = map[string]Opener{
	".pcd":  openPointCloud,
	".las":  openPointCloud,
	".png":  openDepth,
	".tif":  openDepth,
	".tiff": openDepth,
}

// RegisterOpener registers how files with extension ext (including the dot) are opened.
func RegisterOpener(ext string, opener Opener) {
	openers[strings.ToLower(ext)] = opener
}

// SupportedExtensions lists the extensions Open understands.
func SupportedExtensions() []string {
	exts := lo.Keys(openers)
	sort.Strings(exts)
	return exts
}

// Open loads path into the container registered for its extension.
func Open(path string, logger logging.Logger) (DataContainer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	opener, ok := openers[ext]
	if !ok {
		return nil, errors.Errorf("no container for %q files (supported: %s)", ext, strings.Join(SupportedExtensions(), ", "))
	}
	return opener(path, logger)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
