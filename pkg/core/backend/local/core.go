//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package local provides an override rule store that reads override access
// files straight from the archive file system.
//
// Override access files live beside the data they govern:
//
//	<root>/2012-01/18/shane/override.access
//	<root>/2012-01/18/shane/override.1.access
//
// # Usage
//
//	engine, err := core.NewAuthEngine(
//	    options.WithOverrideStore(local.NewFactory("/data/archive")),
//	)
//
// Every lookup re-reads the directory. Wrap the store with the cache package
// when many files of the same directory are decided in a row.
package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("archiveauth.backend.local")
var actor = "backend.local"

// Factory creates [Store] instances rooted at an archive directory.
type Factory struct {
	root string
}

// Store implements [backend.OverrideRuleStore] on the archive file system.
type Store struct {
	root string
}

// NewFactory creates a [backend.StoreFactory] for the archive under root.
func NewFactory(root string) backend.StoreFactory {
	return &Factory{root: root}
}

// NewStore checks that the archive root is a directory and returns a [Store].
func (f *Factory) NewStore() (backend.OverrideRuleStore, error) {
	return NewStore(f.root)
}

// NewStore returns a [Store] for the archive under root.
func NewStore(root string) (*Store, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, common.NewErrorf(common.Misconfiguration, "archive root %s: %v", root, err)
	}
	if !st.IsDir() {
		return nil, common.NewErrorf(common.Misconfiguration, "archive root %s is not a directory", root)
	}
	return &Store{root: root}, nil
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// GetRelatedOverrideFiles parses every override access file in the directory
// for key. A missing directory yields no files. Any unparseable file fails the
// whole lookup.
func (s *Store) GetRelatedOverrideFiles(ctx context.Context, key backend.DirectoryKey) ([]*override.File, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(key.String()))
	logger.Tracef(actor, "Get", "GetRelatedOverrideFiles: %s", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, common.NewErrorf(common.ExternalServiceError, "reading %s: %v", dir, err)
	}

	var files []*override.File
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !override.CheckFilename(e.Name()) {
			continue
		}
		f, err := override.ParseFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, nil
}

// Directory groups the override access files found in one archive directory.
type Directory struct {
	Key   backend.DirectoryKey
	Paths []string
}

// FindOverrideFiles walks the archive and returns every directory holding
// override access files, ordered by night and instrument directory. Paths
// within a directory are ordered by sequence id.
func (s *Store) FindOverrideFiles(ctx context.Context) ([]Directory, error) {
	found := make(map[string]*Directory)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !override.CheckFilename(d.Name()) {
			return nil
		}

		night, instr, err := types.NightFromPath(p)
		if err != nil {
			logger.Warnf(actor, "Walk", "skipping %s: %v", p, err)
			return nil
		}
		key := backend.DirectoryKey{Night: night, InstrumentDir: instr}
		dir, ok := found[key.String()]
		if !ok {
			dir = &Directory{Key: key}
			found[key.String()] = dir
		}
		dir.Paths = append(dir.Paths, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", s.root)
	}

	result := make([]Directory, 0, len(found))
	for _, d := range found {
		sort.SliceStable(d.Paths, func(i, j int) bool {
			a, _ := override.SequenceID(d.Paths[i])
			b, _ := override.SequenceID(d.Paths[j])
			return a < b
		})
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.Compare(result[i].Key.String(), result[j].Key.String()) < 0
	})

	return result, nil
}
