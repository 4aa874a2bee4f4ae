package cmd

import (
	"os"

	"github.com/LiangYue1981816/embree/log"
	"github.com/urfave/cli"
)

var logger = log.New("embree")

// setupLogging maps the global verbosity flags to a log level. The
// --log-file flag redirects all output to a file instead of stderr.
func setupLogging(ctx *cli.Context) {
	verbosity := 0
	switch {
	case ctx.GlobalBool("vv"):
		verbosity = 2
	case ctx.GlobalBool("v"):
		verbosity = 1
	}
	if verbosity > 0 {
		log.SetLevel(log.LevelFromVerbosity(verbosity))
	}

	if ctx.GlobalBool("quiet") {
		log.SetLevel(log.Warning)
	}

	if path := ctx.GlobalString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.Warningf("could not open log file %q: %v", path, err)
			return
		}
		log.SetSink(f)
	}
}
