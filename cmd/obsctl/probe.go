package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wcharczuk/observatory/internal/bridge"
	"github.com/wcharczuk/observatory/internal/interceptor"
	"github.com/wcharczuk/observatory/internal/observatory"
)

var probe = &cli.Command{
	Name:  "probe",
	Usage: "Issue requests through an instrumented client whose events are relayed to the daemon",
	Flags: withDefaultFlags(
		&cli.StringFlag{
			Name:     "target",
			Usage:    "The origin of the application under observation, e.g. http://localhost:3000",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "path",
			Usage: "A path to request; repeat to cycle through several",
			Value: []string{"/api/health"},
		},
		&cli.StringFlag{
			Name:  "method",
			Usage: "The request method",
			Value: http.MethodGet,
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "The total number of requests",
			Value: 10,
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "The request rate per second",
			Value: 5,
		},
		&cli.IntFlag{
			Name:  "parallelism",
			Usage: "The number of concurrent requesters",
			Value: 2,
		},
		&cli.IntFlag{
			Name:  "tab-id",
			Usage: "The tab id events are attributed to",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "The event kind to report (fetch|xhr)",
			Value: string(observatory.KindFetch),
		},
	),
	Action: func(ctx context.Context, c *cli.Command) error {
		results, err := runProbe(ctx, probeOptions{
			DaemonURL:   c.String("daemon"),
			Target:      c.String("target"),
			Paths:       c.StringSlice("path"),
			Method:      c.String("method"),
			Count:       c.Int("count"),
			Rate:        c.Float("rate"),
			Parallelism: c.Int("parallelism"),
			TabID:       c.Int("tab-id"),
			Kind:        observatory.Kind(c.String("kind")),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "requests=%d failures=%d events_relayed=%d events_dropped=%d\n",
			results.Requests, results.Failures, results.Acknowledged, results.Dropped)
		return nil
	},
}

type probeOptions struct {
	DaemonURL   string
	Target      string
	Paths       []string
	Method      string
	Count       int
	Rate        float64
	Parallelism int
	TabID       int
	Kind        observatory.Kind
}

type probeResults struct {
	Requests     int64
	Failures     int64
	Acknowledged int64
	Dropped      uint64
}

// runProbe drives requests through an instrumented client. Events flow
// page, mediator, http relay, daemon; the daemon is not required to be up.
func runProbe(ctx context.Context, opts probeOptions) (results probeResults, err error) {
	if opts.Count <= 0 || len(opts.Paths) == 0 {
		return results, fmt.Errorf("count must be positive and at least one path is required")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	var acknowledged atomic.Int64
	relay := bridge.NewHTTPRelay(opts.DaemonURL).WithOnAck(func(ack observatory.Ack) {
		if ack.OK {
			acknowledged.Add(1)
		}
	})
	page := bridge.NewPage(opts.Count)
	mediator := bridge.NewMediator(opts.TabID, relay)

	client := &http.Client{Timeout: 30 * time.Second}
	interceptor.Install(client,
		interceptor.OptBaseURL(opts.Target),
		interceptor.OptKind(opts.Kind),
		interceptor.OptEmitter(page),
	)

	mediatorDone := make(chan error, 1)
	go func() {
		mediatorDone <- mediator.Run(context.WithoutCancel(ctx), page.Messages())
	}()

	var requests, failures atomic.Int64
	var next atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	for range opts.Parallelism {
		group.Go(func() error {
			for {
				index := next.Add(1) - 1
				if index >= int64(opts.Count) {
					return nil
				}
				if err := limiter.Wait(groupCtx); err != nil {
					return err
				}
				path := opts.Paths[int(index)%len(opts.Paths)]
				if err := probeOnce(groupCtx, client, opts.Method, strings.TrimRight(opts.Target, "/")+path); err != nil {
					failures.Add(1)
					debugf("probe %s failed: %v", path, err)
				}
				requests.Add(1)
			}
		})
	}
	err = group.Wait()
	page.Close()
	<-mediatorDone

	results.Requests = requests.Load()
	results.Failures = failures.Load()
	results.Acknowledged = acknowledged.Load()
	results.Dropped = page.Dropped()
	return
}

func probeOnce(ctx context.Context, client *http.Client, method, target string) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
