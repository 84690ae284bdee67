package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
	"github.com/jaennil/guide_helper/backend/geodata/internal/warmup"
)

type statusCmd struct {
	tileRange
	listMissing bool
}

func (c *statusCmd) Name() string     { return "status" }
func (c *statusCmd) Synopsis() string { return "report which tiles in a range are cached on disk" }
func (c *statusCmd) Usage() string {
	return "warmup status -source <name> -min-x <x> -min-z <z> -max-x <x> -max-z <z> [-missing]\n"
}
func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	c.tileRange.setFlags(f)
	f.BoolVar(&c.listMissing, "missing", false, "Print the cache file name of every missing tile")
}

func (c *statusCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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

	report, err := warmup.Status(entry.Cache, plan)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if c.listMissing {
		for _, pos := range plan {
			if !entry.Cache.Cached(pos) {
				fmt.Println(entry.Cache.CachedName(pos))
			}
		}
	}
	printReport(c.source, report)
	return subcommands.ExitSuccess
}
