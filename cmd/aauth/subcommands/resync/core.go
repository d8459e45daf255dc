//
//  Copyright © Manetu Inc. All rights reserved.
//

package resync

import (
	"context"
	"fmt"
	"io"

	"github.com/manetu/archiveauth/cmd/aauth/common"
	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/backend/local"
	"github.com/manetu/archiveauth/pkg/core/backend/sqldb"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/metrics"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("aauth.resync")

const actor = "resync"

type saver interface {
	SaveOverrideFiles(ctx context.Context, key backend.DirectoryKey, files []*override.File) error
}

// Summary counts the directories handled by one resync pass.
type Summary struct {
	Directories int
	Synced      int
	Failed      int
}

// Execute copies every override access file under the archive root into the
// overrides database. A directory whose files fail to parse keeps its
// previously stored rules. With --dry-run the files are only parsed.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	root := cmd.String("root")
	if root == "" {
		root = config.VConfig.GetString(config.ArchiveRoot)
	}

	src, err := local.NewStore(root)
	if err != nil {
		return err
	}

	m := metrics.New()
	if addr := cmd.String("metrics-addr"); addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := m.Serve(mctx, addr); err != nil {
				logger.Errorf(actor, "Execute", "metrics server: %+v", err)
			}
		}()
	}

	var dst saver
	if !cmd.Bool("dry-run") {
		cfg, err := config.GetOverridesDB()
		if err != nil {
			return err
		}
		db, err := sqldb.Open(ctx, cfg)
		if err != nil {
			return err
		}
		store := sqldb.NewOverrideStore(db)
		defer func() { _ = store.Close() }()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		dst = store
	}

	summary, err := resync(ctx, src, dst, m, common.Stdout(cmd))
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// resync parses the override files of each archive directory and hands them
// to dst. A nil dst only parses.
func resync(ctx context.Context, src *local.Store, dst saver, m *metrics.Metrics, w io.Writer) (*Summary, error) {
	dirs, err := src.FindOverrideFiles(ctx)
	if err != nil {
		return nil, err
	}

	logger.Infof(actor, "resync", "found %d override directories under %s", len(dirs), src.Root())

	summary := &Summary{Directories: len(dirs)}
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rules, err := syncDirectory(ctx, d, dst)
		m.ObserveResync(err == nil)
		if err != nil {
			summary.Failed++
			logger.Warnf(actor, "resync", "skipping %s: %v", d.Key, err)
			_, _ = fmt.Fprintf(w, "%s: ERROR (%v)\n", d.Key, err)
			continue
		}

		summary.Synced++
		_, _ = fmt.Fprintf(w, "%s: %d files, %d rules\n", d.Key, len(d.Paths), rules)
	}

	_, _ = fmt.Fprintf(w, "%d/%d directories synchronized\n", summary.Synced, summary.Directories)
	return summary, nil
}

func syncDirectory(ctx context.Context, d local.Directory, dst saver) (int, error) {
	files := make([]*override.File, 0, len(d.Paths))
	rules := 0
	for _, p := range d.Paths {
		f, err := override.ParseFile(p)
		if err != nil {
			return 0, err
		}
		rules += len(f.Rules)
		files = append(files, f)
	}

	if dst == nil {
		return rules, nil
	}
	if err := dst.SaveOverrideFiles(ctx, d.Key, files); err != nil {
		return 0, err
	}
	return rules, nil
}
