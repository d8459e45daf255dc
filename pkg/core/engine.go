//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package core provides the primary interface of the archive authorization
// engine, which decides who may see a file in the Lick archive and when it
// becomes public.
//
// For every ingested file the engine walks an ordered list of rules: operator
// override access files, per-instrument public suffixes and fixed owners,
// calibration frame sharing, the OWNRHINT keyword history, and finally the
// whole night's observer list. Proprietary files are then given the earliest
// public date of their owners. Every decision is written to the access log.
//
// # Quick Start
//
// Create an engine with default options (stdout access log, mock backends):
//
//	engine, err := core.NewAuthEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
// Decide a file:
//
//	f := &types.FileMetadata{
//	    Filename:   "2012-01/18/shane/r1234.fits",
//	    Instrument: "Kast Red",
//	    Telescope:  "Shane",
//	    FrameType:  types.FrameScience,
//	}
//	engine.SetAuthMetadata(ctx, f)
//
// # Configuration
//
// Production collaborators are passed as functional options:
//
//	engine, err := core.NewAuthEngine(
//	    options.WithOverrideStore(local.NewFactory("/data/archive")),
//	    options.WithSchedule(sqldb.NewScheduleFactory(keyword.NewGshowFromConfig())),
//	    options.WithAccessLog(accesslog.NewStdoutFactory()),
//	)
//
// Unless [options.WithCache] says otherwise, both collaborators are wrapped
// with the cache configured under cache.*. See the [options] package for all
// available configuration options.
package core

import (
	"context"

	"github.com/manetu/archiveauth/internal/core"
	"github.com/manetu/archiveauth/internal/core/backend/mock"
	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/backend/cache"
	"github.com/manetu/archiveauth/pkg/core/backend/local"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/options"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("archiveauth")
var agent = "archiveauth"

// Access is the outcome of running the rules over a file: the visibility, the
// owning observers and cover sheets, the public date of a proprietary file, and
// the ordered reason trail. Reasons read "Rule <tag>: <text>".
type Access = core.Access

// AuthEngine is the primary interface for deciding file access.
//
// Implementations are safe for concurrent use by multiple goroutines as long
// as the configured collaborators are.
type AuthEngine interface {
	// IdentifyAccess runs the access rules over a file without touching the
	// file's public date or owner access rows. The returned access may still
	// be DEFAULT, and a proprietary access has no public date yet.
	IdentifyAccess(ctx context.Context, f *types.FileMetadata) *Access

	// SetAuthMetadata decides the file and writes the decision onto it:
	// public date, owner access rows and cover sheet. It never returns an
	// error; anything that goes wrong leaves the file Unknown with a
	// public date of 9999-12-31. The decision is written to the access log.
	// A nil file is logged and returned as nil.
	SetAuthMetadata(ctx context.Context, f *types.FileMetadata) *types.FileMetadata

	// SetAccessMetadata writes an already decided access onto a file.
	SetAccessMetadata(f *types.FileMetadata, a *Access) *types.FileMetadata

	// Store returns the override rule store the engine consults.
	Store() backend.OverrideRuleStore

	// Schedule returns the schedule service the engine consults.
	Schedule() backend.ScheduleService

	// Close releases the access log and collaborator connections.
	Close()
}

// NewAuthEngine creates and initializes a new [AuthEngine].
//
// By default the engine uses a stdout access log and the mock backends. Use
// functional options to configure production collaborators.
//
// NewAuthEngine loads configuration from environment variables and config
// files before initializing the engine. See the [config] package for details.
//
// Returns an error if configuration loading fails or a collaborator cannot
// be initialized.
func NewAuthEngine(engineOptions ...options.EngineOptionsFunc) (AuthEngine, error) {
	err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	opts := &options.EngineOptions{
		AccessLogFactory: accesslog.NewStdoutFactory(),
		StoreFactory:     mock.NewFactory(),
		ScheduleFactory:  mock.NewFactory(),
	}
	for _, o := range engineOptions {
		o(opts)
	}

	if opts.Cache == nil {
		c, err := cache.New(config.GetCache())
		if err != nil {
			return nil, err
		}
		opts.Cache = c
	}
	if opts.Cache != nil {
		logger.Debugf(agent, "NewAuthEngine", "caching collaborators with %T", opts.Cache)
	}
	opts.StoreFactory = cache.NewStoreFactory(opts.StoreFactory, opts.Cache, opts.Metrics)
	opts.ScheduleFactory = cache.NewScheduleFactory(opts.ScheduleFactory, opts.Cache, opts.Metrics)

	return core.NewAuthEngine(opts)
}

// NewLocalAuthEngine creates an [AuthEngine] that reads override access files
// from the archive under archiveRoot. Other defaults are inherited from
// [NewAuthEngine].
func NewLocalAuthEngine(archiveRoot string, engineOptions ...options.EngineOptionsFunc) (AuthEngine, error) {
	err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	engineOptions = append(engineOptions, options.WithOverrideStore(local.NewFactory(archiveRoot)))
	return NewAuthEngine(engineOptions...)
}
