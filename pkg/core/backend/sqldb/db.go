//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package sqldb implements the engine's collaborators on PostgreSQL.
//
// [Schedule] reads the Lick observing schedule database (observers, runs,
// teledate and telescopes tables). [OverrideStore] keeps parsed override
// access rules in the archive database so that authorization does not depend
// on the archive file system being mounted.
package sqldb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/config"
)

var logger = logging.GetLogger("archiveauth.backend.sqldb")

const actor = "backend.sqldb"

// Open connects to PostgreSQL with lib/pq and verifies the connection.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, common.NewErrorf(common.Misconfiguration, "opening %s@%s: %v", cfg.Name, cfg.Host, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.NewErrorf(common.ExternalServiceError, "connecting to %s@%s: %v", cfg.Name, cfg.Host, err)
	}

	logger.SysInfof("connected to database %s on %s", cfg.Name, cfg.Host)
	return db, nil
}

// queryError converts a database failure into an EXTERNAL_SERVICE_ERROR.
func queryError(what string, err error) error {
	return common.NewErrorf(common.ExternalServiceError, "%s: %v", what, err)
}
