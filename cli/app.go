// Package cli contains the freenect2 command line application.
package cli

import (
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"go.viam.com/freenect2/device"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/logging"
)

const (
	flagDriver   = "driver"
	flagDebug    = "debug"
	flagLogFile  = "log-file"
	flagSerial   = "serial"
	flagPipeline = "pipeline"
	flagCount    = "count"
	flagOut      = "out"
	flagConfig   = "config"
	flagNoFilter = "no-filter"
	flagMirror   = "mirror"
	flagTimeout  = "timeout"
	flagPCD      = "pcd"

	nativeDriver = "libfreenect2"
	fakeDriver   = "fake"
)

// defaultDriver prefers the native driver when the binary was built with it.
func defaultDriver() string {
	for _, name := range driver.Registered() {
		if name == nativeDriver {
			return nativeDriver
		}
	}
	return fakeDriver
}

// runner holds what the commands of one app invocation share.
type runner struct {
	logger  logging.Logger
	logFile *logging.FileAppender
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut. Logs
// go to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	r := &runner{}
	serialFlag := &cli.StringFlag{
		Name:  flagSerial,
		Usage: "serial number of the device to open; the default device when empty",
	}
	return &cli.App{
		Name:            "freenect2",
		Usage:           "work with Kinect v2 depth cameras",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagDriver,
				Value: defaultDriver(),
				Usage: "camera driver, one of " + strings.Join(driver.Registered(), ", "),
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: func(c *cli.Context) error {
			r.logger = logging.NewBlankLogger("freenect2")
			r.logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
			if path := c.Path(flagLogFile); path != "" {
				r.logFile = logging.NewFileAppender(path)
				r.logger.AddAppender(r.logFile)
			}
			if c.Bool(flagDebug) {
				c.Context = logging.EnableDebugMode(c.Context, "")
			} else {
				r.logger.SetLevel(logging.INFO)
			}
			logging.ReplaceGlobal(r.logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if r.logFile == nil {
				return nil
			}
			return r.logFile.Close()
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list attached devices",
				Action: r.listAction,
			},
			{
				Name:   "info",
				Usage:  "print firmware and camera parameters of a device",
				Flags:  []cli.Flag{serialFlag},
				Action: r.infoAction,
			},
			{
				Name:  "capture",
				Usage: "capture synchronized color, IR and depth frames and register them",
				Flags: []cli.Flag{
					serialFlag,
					&cli.StringFlag{
						Name:  flagPipeline,
						Value: driver.CPUPipeline.String(),
						Usage: "packet pipeline, one of " + strings.Join(pipelineNames(), ", "),
					},
					&cli.IntFlag{
						Name:  flagCount,
						Value: 1,
						Usage: "number of frame sets to capture",
					},
					&cli.PathFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "write images to `DIR`",
					},
					&cli.PathFlag{
						Name:  flagConfig,
						Usage: "load depth processing settings from JSON `FILE`",
					},
					&cli.BoolFlag{
						Name:  flagNoFilter,
						Usage: "keep depth pixels occluded from the color camera when registering",
					},
					&cli.BoolFlag{
						Name:  flagMirror,
						Usage: "flip images horizontally; the camera delivers them mirrored",
					},
					&cli.BoolFlag{
						Name:  flagPCD,
						Usage: "also write each registered set as a colored binary PCD point cloud",
					},
					&cli.DurationFlag{
						Name:  flagTimeout,
						Value: defaultFrameTimeout,
						Usage: "how long to wait for each frame set",
					},
				},
				Action: r.captureAction,
			},
		},
	}
}

func pipelineNames() []string {
	names := make([]string, 0, len(driver.PacketPipelines))
	for _, p := range driver.PacketPipelines {
		names = append(names, p.String())
	}
	return names
}

// openRegistry constructs the selected driver. The caller must close the returned driver.
func (r *runner) openRegistry(c *cli.Context) (*device.Registry, driver.Driver, error) {
	drv, err := driver.New(c.String(flagDriver), r.logger)
	if err != nil {
		return nil, nil, err
	}
	return device.NewRegistry(drv, r.logger), drv, nil
}

func (r *runner) openSession(c *cli.Context, reg *device.Registry, opts ...device.OpenOption) (*device.Session, error) {
	if serial := c.String(flagSerial); serial != "" {
		return reg.OpenBySerial(serial, opts...)
	}
	return reg.OpenDefault(opts...)
}
