//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/metrics"
	"github.com/manetu/archiveauth/pkg/core/options"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("archiveauth.core")

const agent = "archiveauth"

// AuthEngine decides who may see an archive file and when it becomes public.
type AuthEngine struct {
	audit    accesslog.Stream
	store    backend.OverrideRuleStore
	schedule backend.ScheduleService
	auth     *config.Authorization
	metrics  *metrics.Metrics
	clock    func() time.Time
	auditEnv map[string]string
}

// NewAuthEngine builds the engine from fully populated options. Factories are
// invoked here, after configuration has been loaded.
func NewAuthEngine(opts *options.EngineOptions) (*AuthEngine, error) {
	config.Init()

	auth := opts.Authorization
	if auth == nil {
		var err error
		if auth, err = config.GetAuthorization(); err != nil {
			return nil, err
		}
	}

	al, err := opts.AccessLogFactory.NewStream()
	if err != nil {
		return nil, errors.Wrap(err, "creating access log")
	}

	store, err := opts.StoreFactory.NewStore()
	if err != nil {
		return nil, errors.Wrap(err, "creating override rule store")
	}

	schedule, err := opts.ScheduleFactory.NewSchedule()
	if err != nil {
		return nil, errors.Wrap(err, "creating schedule service")
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &AuthEngine{
		audit:    al,
		store:    store,
		schedule: schedule,
		auth:     auth,
		metrics:  opts.Metrics,
		clock:    clock,
		auditEnv: config.GetAuditEnv(),
	}, nil
}

// Store returns the override rule store the engine consults.
func (e *AuthEngine) Store() backend.OverrideRuleStore {
	return e.store
}

// Schedule returns the schedule service the engine consults.
func (e *AuthEngine) Schedule() backend.ScheduleService {
	return e.schedule
}

type closer interface {
	Close() error
}

// Close releases the access log and any collaborator holding a connection.
func (e *AuthEngine) Close() {
	for _, c := range []interface{}{e.store, e.schedule} {
		if cl, ok := c.(closer); ok {
			if err := cl.Close(); err != nil {
				logger.Warnf(agent, "Close", "error closing %T: %+v", c, err)
			}
		}
	}
	if e.audit != nil {
		e.audit.Close()
	}
}
