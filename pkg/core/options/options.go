//
//  Copyright © Manetu Inc. All rights reserved.
//
// shared between pkg/core and internal/core, and thus must be in a separate package to avoid circular dependencies

package options

import (
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/backend/cache"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/metrics"
)

var logger = logging.GetLogger("archiveauth")
var agent = "archiveauth"

// EngineOptions defines the collaborators and policy used to build an authorization engine.
type EngineOptions struct {
	AccessLogFactory accesslog.Factory
	StoreFactory     backend.StoreFactory
	ScheduleFactory  backend.ScheduleFactory
	// Cache is shared by the store and schedule decorators. Nil means the
	// cache is built from the cache.* configuration.
	Cache   cache.Cache
	Metrics *metrics.Metrics
	// Clock supplies "today". Defaults to time.Now.
	Clock func() time.Time
	// Authorization overrides the authorization.* configuration.
	Authorization *config.Authorization
}

// EngineOptionsFunc is a function that modifies EngineOptions.
type EngineOptionsFunc func(*EngineOptions)

// WithAccessLog configures the access log stream for the engine.
func WithAccessLog(factory accesslog.Factory) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.AccessLogFactory = factory
	}
}

// WithOverrideStore configures where override access files are read from.
func WithOverrideStore(factory backend.StoreFactory) EngineOptionsFunc {
	return func(o *EngineOptions) {
		if config.VConfig.GetBool(config.MockEnabled) {
			logger.Warn(agent, "WithOverrideStore", "Ignoring override store factory as mock mode is enabled")
		} else {
			o.StoreFactory = factory
		}
	}
}

// WithSchedule configures the observing schedule service.
func WithSchedule(factory backend.ScheduleFactory) EngineOptionsFunc {
	return func(o *EngineOptions) {
		if config.VConfig.GetBool(config.MockEnabled) {
			logger.Warn(agent, "WithSchedule", "Ignoring schedule factory as mock mode is enabled")
		} else {
			o.ScheduleFactory = factory
		}
	}
}

// WithCache configures the collaborator cache instead of building one from configuration.
func WithCache(c cache.Cache) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Cache = c
	}
}

// WithMetrics configures the Prometheus instrumentation of the engine.
func WithMetrics(m *metrics.Metrics) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Metrics = m
	}
}

// WithClock replaces the wall clock used to decide whether a proprietary
// period has ended. Intended for tests and for re-deciding files as of a date.
func WithClock(clock func() time.Time) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Clock = clock
	}
}

// WithAuthorization replaces the authorization policy read from configuration.
func WithAuthorization(auth *config.Authorization) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Authorization = auth
	}
}
