package main

import (
	"os"

	"github.com/LiangYue1981816/embree/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "embree"
	app.Usage = "build ray tracing acceleration structures and benchmark ray queries"
	app.Version = "2.17.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "only log warnings and errors",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "append log output to this file",
		},
	}
	configFlag := cli.StringFlag{
		Name:  "config, c",
		Value: "",
		Usage: `device configuration string, e.g. "threads=4,isa=sse2"`,
	}
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "display device capabilities",
			Flags:  []cli.Flag{configFlag},
			Action: cmd.Info,
		},
		{
			Name:  "bench",
			Usage: "trace primary rays through a scene",
			Description: `
Load a scene from a wavefront obj file (or generate a random triangle soup when
no file is specified), commit it and trace one primary ray per pixel using the
selected query modes. Each mode is attached as a separate tracer and the frame
is split between them.`,
			ArgsUsage: "[scene_file.obj]",
			Flags: []cli.Flag{
				configFlag,
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 1,
					Usage: "number of frames to trace",
				},
				cli.Float64Flag{
					Name:  "fov",
					Value: 45,
					Usage: "vertical camera field of view in degrees",
				},
				cli.StringSliceFlag{
					Name:  "mode, m",
					Value: &cli.StringSlice{},
					Usage: "query mode (single, packet, stream-1M, stream-1Mp, stream-NM, stream-Np); may be repeated",
				},
				cli.IntFlag{
					Name:  "packet-width",
					Value: 4,
					Usage: "packet width for packet and stream-NM modes",
				},
				cli.BoolFlag{
					Name:  "occlusion",
					Usage: "trace occlusion rays instead of closest hit rays",
				},
				cli.StringFlag{
					Name:  "commit",
					Value: "commit",
					Usage: "commit strategy (commit, join, thread)",
				},
				cli.IntFlag{
					Name:  "threads",
					Value: 4,
					Usage: "number of goroutines participating in join and thread commits",
				},
				cli.BoolFlag{
					Name:  "dynamic",
					Usage: "create dynamic instead of static scenes",
				},
				cli.StringFlag{
					Name:  "scheduler",
					Value: "naive",
					Usage: "block scheduler (naive, perfect)",
				},
				cli.BoolFlag{
					Name:  "stats",
					Usage: "display accelerator statistics",
				},
				cli.IntFlag{
					Name:  "triangles",
					Value: 10000,
					Usage: "number of triangles for generated scenes",
				},
				cli.IntFlag{
					Name:  "meshes",
					Value: 4,
					Usage: "number of meshes for generated scenes",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random seed for generated scenes",
				},
			},
			Action: cmd.Bench,
		},
	}

	app.Run(os.Args)
}
