//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/manetu/archiveauth/pkg/core"
	"github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/backend/keyword"
	"github.com/manetu/archiveauth/pkg/core/backend/local"
	"github.com/manetu/archiveauth/pkg/core/backend/sqldb"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/options"
	"github.com/urfave/cli/v3"
)

// Stdout returns the writer commands print to: the root command's Writer when
// one is set, otherwise os.Stdout.
func Stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// Stderr returns the root command's ErrWriter, falling back to os.Stderr.
func Stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

// NewCliAuthEngine creates an AuthEngine configured from CLI command flags.
//
// Decision records go to stderr when the global --trace flag is set and are
// discarded otherwise. --archive reads override access files from a local
// archive tree, and --schedule-db consults the schedule database and gshow
// instead of the mock schedule. --now pins "today" to a YYYY-MM-DD date.
func NewCliAuthEngine(cmd *cli.Command) (core.AuthEngine, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	var logw io.Writer = io.Discard
	if cmd.Root().Bool("trace") {
		logw = Stderr(cmd)
	}

	opts := []options.EngineOptionsFunc{
		options.WithAccessLog(accesslog.NewIoWriterFactory(logw)),
	}

	switch {
	case cmd.String("archive") != "":
		opts = append(opts, options.WithOverrideStore(local.NewFactory(cmd.String("archive"))))
	case config.VConfig.GetBool(config.OverridesDBEnabled):
		opts = append(opts, options.WithOverrideStore(sqldb.NewStoreFactory()))
	}

	if cmd.Bool("schedule-db") {
		opts = append(opts, options.WithSchedule(sqldb.NewScheduleFactory(keyword.NewGshowFromConfig())))
	}

	if now := cmd.String("now"); now != "" {
		t, err := time.Parse(time.DateOnly, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now %q: %w", now, err)
		}
		opts = append(opts, options.WithClock(func() time.Time { return t }))
	}

	return core.NewAuthEngine(opts...)
}
