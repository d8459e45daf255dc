//
//  Copyright © Manetu Inc. All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/manetu/archiveauth/cmd/aauth/common"
	"github.com/manetu/archiveauth/cmd/aauth/subcommands/identify"
	"github.com/manetu/archiveauth/cmd/aauth/subcommands/override"
	"github.com/manetu/archiveauth/cmd/aauth/subcommands/resync"
	"github.com/manetu/archiveauth/cmd/aauth/version"
	"github.com/manetu/archiveauth/internal/logging"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("aauth")

func main() {
	overrideFiles := func(usage string) cli.Flag {
		return &cli.StringSliceFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    usage,
			Required: true,
		}
	}

	cmd := &cli.Command{
		Name:    "aauth",
		Usage:   "A CLI application for working with the Lick archive authorization engine",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "trace",
				Aliases: []string{"t"},
				Usage:   "Write decision records to stderr for commands that decide access",
				Value:   logger.IsTraceEnabled(),
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before reading configuration.  Can be specified multiple times.",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, common.LoadEnv(cmd.StringSlice("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:  "override",
				Usage: "Work with override access files",
				Commands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "Parse override access files and report any syntax errors",
						Flags:  []cli.Flag{overrideFiles("Override access `FILE` to check.  Can be specified multiple times.")},
						Action: override.ExecuteCheck,
					},
					{
						Name:      "match",
						Usage:     "Show the rule governing a file name, given the override access files of its directory",
						ArgsUsage: "<filename>",
						Flags:     []cli.Flag{overrideFiles("Override access `FILE` of the directory.  Can be specified multiple times.")},
						Action:    override.ExecuteMatch,
					},
					{
						Name:   "show",
						Usage:  "Print the parsed form of override access files as YAML",
						Flags:  []cli.Flag{overrideFiles("Override access `FILE` to show.  Can be specified multiple times.")},
						Action: override.ExecuteShow,
					},
				},
			},
			{
				Name:  "identify",
				Usage: "Decide access for file metadata records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Load YAML file records from `FILE`, or use '-' for stdin",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print the rule trail of each decision instead of the updated records",
					},
					&cli.StringFlag{
						Name:  "archive",
						Usage: "Read override access files from the archive rooted at `DIR`",
					},
					&cli.BoolFlag{
						Name:  "schedule-db",
						Usage: "Consult the schedule database and gshow instead of the mock schedule",
					},
					&cli.StringFlag{
						Name:  "now",
						Usage: "Decide as if today were `DATE` (YYYY-MM-DD)",
					},
				},
				Action: identify.Execute,
			},
			{
				Name:  "resync",
				Usage: "Copy the override access files of an archive tree into the overrides database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "root",
						Usage: "Archive root `DIR`.  Defaults to archive.root from the configuration.",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Parse the override access files without writing to the database",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on `ADDR` while resyncing",
					},
				},
				Action: resync.Execute,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, _ = fmt.Fprintln(common.Stdout(cmd), version.GetVersion())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
