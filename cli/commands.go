package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/device"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/listener"
	"go.viam.com/freenect2/pointcloud"
	"go.viam.com/freenect2/registration"
	"go.viam.com/freenect2/utils"
)

const defaultFrameTimeout = 10 * time.Second

func (r *runner) listAction(c *cli.Context) (err error) {
	reg, drv, err := r.openRegistry(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, drv.Close())
	}()

	n, err := reg.EnumerateDevices()
	if err != nil {
		return err
	}
	if n == 0 {
		printf(c.App.Writer, "no devices found")
		return nil
	}
	defaultSerial, err := reg.DefaultSerialNumber()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		serial, err := reg.SerialNumberAt(i)
		if err != nil {
			return err
		}
		marker := " "
		if serial == defaultSerial {
			marker = "*"
		}
		printf(c.App.Writer, "%s %d\t%s", marker, i, serial)
	}
	return nil
}

func (r *runner) infoAction(c *cli.Context) (err error) {
	reg, drv, err := r.openRegistry(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, drv.Close())
	}()

	s, err := r.openSession(c, reg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close())
	}()

	serial, err := s.SerialNumber()
	if err != nil {
		return err
	}
	firmware, err := s.FirmwareVersion()
	if err != nil {
		return err
	}
	regn, err := s.Registration()
	if err != nil {
		return err
	}
	ir, color := regn.IrParams(), regn.ColorParams()

	w := c.App.Writer
	printf(w, "serial:   %s", serial)
	printf(w, "firmware: %s", firmware)
	printf(w, "depth camera: fx=%.3f fy=%.3f cx=%.3f cy=%.3f k1=%.5f k2=%.5f k3=%.5f p1=%.5f p2=%.5f",
		ir.Fx, ir.Fy, ir.Cx, ir.Cy, ir.K1, ir.K2, ir.K3, ir.P1, ir.P2)
	printf(w, "color camera: fx=%.3f fy=%.3f cx=%.3f cy=%.3f shift_d=%.3f shift_m=%.3f",
		color.Fx, color.Fy, color.Cx, color.Cy, color.ShiftD, color.ShiftM)
	return nil
}

type captureOptions struct {
	count   int
	out     string
	filter  bool
	mirror  bool
	pcd     bool
	timeout time.Duration
}

func (r *runner) captureAction(c *cli.Context) (err error) {
	pipeline, err := driver.ParsePacketPipeline(c.String(flagPipeline))
	if err != nil {
		return err
	}
	cfg := config.New()
	if path := c.Path(flagConfig); path != "" {
		if cfg, err = config.FromJSONFile(path); err != nil {
			return err
		}
	}
	opts := captureOptions{
		count:   c.Int(flagCount),
		out:     c.Path(flagOut),
		filter:  !c.Bool(flagNoFilter),
		mirror:  c.Bool(flagMirror),
		pcd:     c.Bool(flagPCD),
		timeout: c.Duration(flagTimeout),
	}
	if opts.count < 1 {
		return errors.Errorf("--%s must be at least 1", flagCount)
	}
	if err := os.MkdirAll(opts.out, 0o750); err != nil {
		return errors.Wrapf(err, "could not create directory: %s", opts.out)
	}

	reg, drv, err := r.openRegistry(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, drv.Close())
	}()

	sl, err := listener.NewSyncListener(1, frame.Color, frame.Ir, frame.Depth)
	if err != nil {
		return err
	}
	// Runs after the session closes and detaches it.
	defer func() {
		err = multierr.Combine(err, sl.Close())
	}()

	s, err := r.openSession(c, reg, device.WithPipeline(pipeline))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close())
	}()

	if err := s.SetConfig(cfg); err != nil {
		return err
	}
	if err := s.SetColorFrameListener(sl); err != nil {
		return err
	}
	if err := s.SetIrAndDepthFrameListener(sl); err != nil {
		return err
	}
	regn, err := s.Registration()
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	counts := map[frame.Type]int{}
	for i := 0; i < opts.count; i++ {
		ctx, cancel := context.WithTimeout(c.Context, opts.timeout)
		set, err := sl.Frames(ctx)
		cancel()
		if err != nil {
			return multierr.Combine(errors.Wrap(err, "waiting for frames"), s.Err())
		}
		for _, t := range set.Types() {
			counts[t]++
		}
		start := time.Now()
		err = r.writeSet(c.Context, regn, set, opts)
		set.Release()
		if err != nil {
			return err
		}
		r.logger.CDebugf(c.Context, "wrote frame set %d in %s", i, time.Since(start))
	}
	if err := s.Stop(); err != nil {
		return err
	}

	for _, t := range frame.Types {
		printf(c.App.Writer, "%-6s %d frame(s)", t, counts[t])
	}
	printf(c.App.Writer, "images written to %s", opts.out)
	if err := s.Err(); err != nil {
		warningf(c.App.ErrWriter, "listener faults: %v", err)
	}
	return nil
}

// writeSet registers a frame set and writes every frame involved as a PNG, plus the point cloud
// when asked.
func (r *runner) writeSet(ctx context.Context, regn *registration.Registration, set *listener.FrameSet, opts captureOptions) error {
	color, ir, depth := set.Get(frame.Color), set.Get(frame.Ir), set.Get(frame.Depth)
	undistorted, registered, bigDepth := frame.NewDepth(), frame.NewColorForDepth(), frame.NewDepthFullColor()
	if err := regn.MapDepthToFullColor(depth, color, undistorted, registered, opts.filter, bigDepth); err != nil {
		return err
	}

	seq := depth.Sequence()
	images := []struct {
		name string
		f    *frame.Frame
	}{
		{"color", color},
		{"ir", ir},
		{"depth", depth},
		{"undistorted", undistorted},
		{"registered", registered},
		{"bigdepth", bigDepth},
	}
	var (
		mu      sync.Mutex
		written []string
	)
	fs := make([]utils.SimpleFunc, 0, len(images))
	for _, img := range images {
		img := img
		fs = append(fs, func(ctx context.Context) error {
			path := filepath.Join(opts.out, fmt.Sprintf("%s_%06d.png", img.name, seq))
			if err := saveFrame(img.f, path, opts.mirror); err != nil {
				return errors.Wrapf(err, "writing %s", img.name)
			}
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}
	if opts.pcd {
		fs = append(fs, func(ctx context.Context) error {
			cloud, err := regn.PointCloud(undistorted, registered)
			if err != nil {
				return err
			}
			path := filepath.Join(opts.out, fmt.Sprintf("cloud_%06d.pcd", seq))
			if err := pointcloud.WriteToPCDFile(cloud, path, pointcloud.PCDBinary); err != nil {
				return errors.Wrap(err, "writing point cloud")
			}
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}
	if _, err := utils.RunInParallel(ctx, fs); err != nil {
		return err
	}
	r.logger.Debugw("frame set written", "sequence", seq, "files", written)
	return nil
}

func saveFrame(f *frame.Frame, path string, mirror bool) error {
	var (
		img image.Image
		err error
	)
	if img, err = f.ToImage(); err != nil {
		return err
	}
	if mirror {
		img = imaging.FlipH(img)
	}
	return imaging.Save(img, path)
}
