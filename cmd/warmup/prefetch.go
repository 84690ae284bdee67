package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"
	"github.com/jaennil/guide_helper/backend/geodata/internal/app"
	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/elevation"
	"github.com/jaennil/guide_helper/backend/geodata/internal/warmup"
	"github.com/schollz/progressbar/v3"
)

type prefetchCmd struct {
	tileRange
	workers      int
	skipManifest bool
}

func (c *prefetchCmd) Name() string     { return "prefetch" }
func (c *prefetchCmd) Synopsis() string { return "download every tile in a range into the disk cache" }
func (c *prefetchCmd) Usage() string {
	return "warmup prefetch -source <name> -min-x <x> -min-z <z> -max-x <x> -max-z <z> [-workers <n>]\n"
}
func (c *prefetchCmd) SetFlags(f *flag.FlagSet) {
	c.tileRange.setFlags(f)
	f.IntVar(&c.workers, "workers", 4, "Number of concurrent tile loads")
	f.BoolVar(&c.skipManifest, "skip-manifest", false, "Do not load the elevation tile manifest first")
}

func (c *prefetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	e, err := newEnv()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer e.logger.Sync()

	plan, err := warmup.Plan(c.bounds())
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	entry, err := e.entry(c.source)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	load, err := warmup.Loader(e.registry, c.source)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	// Without the manifest every ocean tile costs a failed request.
	if c.source == elevation.Name && !c.skipManifest {
		if err := app.LoadManifest(ctx, e.cfg, e.heights, e.logger); err != nil {
			e.logger.Warn("prefetching without tile manifest", "error", err)
		}
	}

	bar := progressbar.NewOptions(len(plan),
		progressbar.OptionSetDescription(c.source),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)

	p := &warmup.Prefetcher{
		Load:     load,
		Cache:    entry.Cache,
		Workers:  c.workers,
		Progress: func(geo.TilePosition, bool) { bar.Add(1) },
		Logger:   e.logger,
	}
	report, err := p.Run(ctx, plan)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	printReport(c.source, report)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printReport(name string, r warmup.Report) {
	fmt.Printf("%s: %d tiles, %d cached, %d missing\n", name, r.Total, r.Cached, r.Missing)
}
