// Package cli contains the depthcam command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/depthcam/config"
	"go.viam.com/depthcam/logging"
)

const (
	// Global flags.
	flagConfig = "config"
	flagDebug  = "debug"

	// Projection flags.
	flagDepth       = "depth"
	flagFocalLength = "focal-length"
	flagIntrinsics  = "intrinsics"
	flagColor       = "color"
	flagOut         = "out"
	flagBinary      = "binary"

	// Cloud and animation flags.
	flagCloud     = "cloud"
	flagKeyframes = "keyframes"
	flagTicks     = "ticks"
	flagFile      = "file"
	flagPosition  = "position"
	flagFocal     = "focal"
	flagUp        = "up"

	runtimeKey = "depthcam-runtime"
)

// runtime is what Before prepares for every action.
type runtime struct {
	cfg       *config.Config
	logger    logging.Logger
	logCloser io.Closer
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "depthcam",
		Usage:           "project depth images into point clouds and animate cameras around them",
		HideHelpCommand: true,
		Metadata:        map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: setupRuntime,
		After:  teardownRuntime,
		Commands: []*cli.Command{
			{
				Name:      "project",
				Usage:     "project a depth image into a PCD point cloud",
				UsageText: "depthcam project --depth in.png [--focal-length mm | --intrinsics f.json] [--color img.png] --out out.pcd [--binary]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagDepth,
						Required: true,
						Usage:    "16-bit depth PNG or TIFF in millimetres",
					},
					&cli.Float64Flag{
						Name:  flagFocalLength,
						Usage: "35mm-equivalent focal length of the depth camera",
					},
					&cli.StringFlag{
						Name:  flagIntrinsics,
						Usage: "intrinsics JSON `FILE` with a matrix or pinhole parameters",
					},
					&cli.StringFlag{
						Name:  flagColor,
						Usage: "image aligned with the depth map to color the points",
					},
					&cli.StringFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "output PCD `FILE`",
					},
					&cli.BoolFlag{
						Name:  flagBinary,
						Usage: "write binary PCD data instead of ascii",
					},
				},
				Action: ProjectAction,
			},
			{
				Name:  "frame",
				Usage: "print the default camera framing of a point cloud",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagCloud,
						Required: true,
						Usage:    "point cloud or depth `FILE`",
					},
				},
				Action: FrameAction,
			},
			{
				Name:  "animate",
				Usage: "play an animation file headlessly and output the camera path",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagKeyframes,
						Required: true,
						Usage:    "animation `FILE` to play",
					},
					&cli.IntFlag{
						Name:     flagTicks,
						Required: true,
						Usage:    "number of playback ticks to run",
					},
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "write the camera path to `FILE` instead of stdout",
					},
				},
				Action: AnimateAction,
			},
			{
				Name:            "keyframes",
				Usage:           "edit animation files",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "append a keyframe to an animation file, creating it if needed",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     flagFile,
								Required: true,
								Usage:    "animation `FILE`",
							},
							&cli.StringFlag{
								Name:     flagPosition,
								Required: true,
								Usage:    "camera position as x,y,z",
							},
							&cli.StringFlag{
								Name:     flagFocal,
								Required: true,
								Usage:    "focal point as x,y,z",
							},
							&cli.StringFlag{
								Name:  flagUp,
								Value: "0,0,1",
								Usage: "view up vector as x,y,z",
							},
						},
						Action: KeyframesAddAction,
					},
					{
						Name:  "list",
						Usage: "print the keyframes of an animation file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     flagFile,
								Required: true,
								Usage:    "animation `FILE`",
							},
						},
						Action: KeyframesListAction,
					},
				},
			},
			{
				Name:  "watch",
				Usage: "reload a point cloud or depth file whenever it changes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagCloud,
						Required: true,
						Usage:    "point cloud or depth `FILE` to watch",
					},
				},
				Action: WatchAction,
			},
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func setupRuntime(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	logger, closer, err := cfg.Log.NewLogger("depthcam")
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)
	c.App.Metadata[runtimeKey] = &runtime{cfg: cfg, logger: logger, logCloser: closer}
	return nil
}

func teardownRuntime(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	//nolint:errcheck
	rt.logger.Sync()
	return rt.logCloser.Close()
}

func getRuntime(c *cli.Context) (*runtime, error) {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil, errors.New("depthcam runtime not initialized")
	}
	return rt, nil
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
