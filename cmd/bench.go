package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/LiangYue1981816/embree/asset"
	"github.com/LiangYue1981816/embree/asset/reader"
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/renderer"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/tracer"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Bench traces primary rays through a scene using one or more dispatch
// modes and reports per tracer statistics.
func Bench(ctx *cli.Context) error {
	setupLogging(ctx)

	opts := renderer.Options{
		FrameW:    uint32(ctx.Int("width")),
		FrameH:    uint32(ctx.Int("height")),
		Occlusion: ctx.Bool("occlusion"),
	}

	// Load scene
	var (
		as  *asset.Scene
		err error
	)
	switch ctx.NArg() {
	case 0:
		as = randomScene(uint64(ctx.Int64("seed")), ctx.Int("meshes"), ctx.Int("triangles"))
	case 1:
		if as, err = reader.ReadScene(ctx.Args().First()); err != nil {
			return err
		}
	default:
		return errors.New("expected at most one scene file argument")
	}

	dev, err := device.New(ctx.String("config"))
	if err != nil {
		return err
	}
	defer dev.Close()

	builder := &sceneBuilder{
		dev:        dev,
		flags:      scene.Static,
		commitMode: ctx.String("commit"),
		threads:    ctx.Int("threads"),
	}
	if ctx.Bool("dynamic") {
		builder.flags = scene.Dynamic
	}
	defer builder.Close()

	start := time.Now()
	sc, err := builder.Build(as)
	if err != nil {
		return err
	}
	logger.Noticef("built scene with %d mesh(es) and %d instance(s) in %s", len(as.Meshes), len(as.Instances), time.Since(start))
	if ctx.Bool("stats") {
		table, err := sc.Stats()
		if err != nil {
			return err
		}
		logger.Noticef("accelerator statistics\n%s", table)
	}

	tracers, err := createTracers(ctx.StringSlice("mode"), ctx.Int("packet-width"))
	if err != nil {
		return err
	}

	scheduler := tracer.NaiveScheduler()
	if ctx.String("scheduler") == "perfect" {
		scheduler = tracer.PerfectScheduler()
	}

	camera := tracer.NewCamera(float32(ctx.Float64("fov")))
	camera.Frame(as.Bounds())

	r, err := renderer.NewDefault(sc, camera, scheduler, tracers, opts)
	if err != nil {
		for _, tr := range tracers {
			tr.Close()
		}
		return err
	}
	defer r.Close()

	frames := ctx.Int("frames")
	for frame := 0; frame < frames; frame++ {
		if err = r.Render(); err != nil {
			return err
		}
		displayFrameStats(frame, r.Stats())
	}
	return nil
}

func createTracers(modes []string, packetWidth int) ([]tracer.Tracer, error) {
	if len(modes) == 0 {
		modes = []string{tracer.Single.String()}
	}

	tracers := make([]tracer.Tracer, 0, len(modes))
	for _, name := range modes {
		mode, ok := tracer.ParseMode(name)
		if !ok {
			for _, tr := range tracers {
				tr.Close()
			}
			return nil, errors.Errorf("unknown dispatch mode %q", name)
		}
		tr, err := tracer.NewDispatchTracer(mode, packetWidth)
		if err != nil {
			for _, tr := range tracers {
				tr.Close()
			}
			return nil, err
		}
		logger.Infof("attaching tracer %s", tr.Id())
		tracers = append(tracers, tr)
	}
	return tracers, nil
}

func displayFrameStats(frame int, stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Primary", "Block height", "% of frame", "Rays", "Hits", "Render time"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%t", stat.IsPrimary),
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%d", stat.Rays),
			fmt.Sprintf("%d", stat.Hits),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", fmt.Sprintf("%.2f Mrays/s", stats.RaysPerSecond/1e6), stats.RenderTime.String()})

	table.Render()
	logger.Noticef("frame %d statistics\n%s", frame, buf.String())
}
