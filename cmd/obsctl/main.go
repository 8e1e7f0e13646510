package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

var root = &cli.Command{
	Name:  "obsctl",
	Usage: "Control observatory daemons",
	Commands: []*cli.Command{
		tracking,
		stats,
		clearStats,
		export,
		status,
		tail,
		probe,
	},
}

var debugEnabled bool

var defaultFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:        "debug",
		Destination: &debugEnabled,
	},
	&cli.StringFlag{
		Name:  "daemon",
		Usage: "The observatory daemon base url",
		Value: "http://127.0.0.1:8420",
	},
}

var domainFlag = &cli.StringFlag{
	Name:     "domain",
	Usage:    "The domain (hostname) to target",
	Required: true,
}

func withDefaultFlags(flags ...cli.Flag) []cli.Flag {
	return slices.Concat(defaultFlags, flags)
}

func debugf(format string, args ...any) {
	if debugEnabled {
		fmt.Fprintln(os.Stderr, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}
