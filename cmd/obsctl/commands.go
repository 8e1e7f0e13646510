package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

var tracking = &cli.Command{
	Name:  "tracking",
	Usage: "Show or change whether a domain is tracked",
	Commands: []*cli.Command{
		{
			Name:  "enable",
			Usage: "Start persisting and delivering a domain's events",
			Flags: withDefaultFlags(domainFlag),
			Action: func(ctx context.Context, c *cli.Command) error {
				return setTracking(ctx, c, true)
			},
		},
		{
			Name:  "disable",
			Usage: "Stop persisting and delivering a domain's events",
			Flags: withDefaultFlags(domainFlag),
			Action: func(ctx context.Context, c *cli.Command) error {
				return setTracking(ctx, c, false)
			},
		},
		{
			Name:  "status",
			Usage: "Show whether a domain is tracked",
			Flags: withDefaultFlags(domainFlag),
			Action: func(ctx context.Context, c *cli.Command) error {
				state, err := newDaemonClient(c.String("daemon")).Tracking(ctx, c.String("domain"))
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, state)
			},
		},
	},
}

func setTracking(ctx context.Context, c *cli.Command, enabled bool) error {
	state, err := newDaemonClient(c.String("daemon")).SetTracking(ctx, c.String("domain"), enabled)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, state)
}

var stats = &cli.Command{
	Name:  "stats",
	Usage: "Show the request statistics of a domain",
	Flags: withDefaultFlags(domainFlag),
	Action: func(ctx context.Context, c *cli.Command) error {
		output, err := newDaemonClient(c.String("daemon")).Stats(ctx, c.String("domain"))
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, output)
	},
}

var clearStats = &cli.Command{
	Name:  "clear",
	Usage: "Remove the statistics and request log of a domain",
	Flags: withDefaultFlags(domainFlag),
	Action: func(ctx context.Context, c *cli.Command) error {
		if err := newDaemonClient(c.String("daemon")).ClearStats(ctx, c.String("domain")); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "cleared stats for %s\n", c.String("domain"))
		return nil
	},
}

var export = &cli.Command{
	Name:  "export",
	Usage: "Download a domain's stats and log as json, or its per-endpoint summary as csv",
	Flags: withDefaultFlags(
		domainFlag,
		&cli.StringFlag{
			Name:  "format",
			Usage: "The export format (json|csv)",
			Value: "json",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "The file to write to; stdout if unset",
		},
	),
	Action: func(ctx context.Context, c *cli.Command) error {
		var path string
		switch format := c.String("format"); format {
		case "json":
			path = domainPath(c.String("domain"), "export")
		case "csv":
			path = domainPath(c.String("domain"), "grouped") + "?format=csv"
		default:
			return fmt.Errorf("invalid format %q; expected json or csv", format)
		}
		var w io.Writer = os.Stdout
		if outputPath := c.String("output"); outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return newDaemonClient(c.String("daemon")).Download(ctx, path, w)
	},
}

var status = &cli.Command{
	Name:  "status",
	Usage: "Show the daemon delivery status",
	Flags: withDefaultFlags(),
	Action: func(ctx context.Context, c *cli.Command) error {
		output, err := newDaemonClient(c.String("daemon")).Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, output)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
