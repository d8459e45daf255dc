//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package backend defines the collaborators the authorization engine consults.
//
// The engine needs two things from the outside world: the override access
// files an operator has written for a night and instrument directory, and the
// observing schedule, which maps ownerhints to observers and knows when each
// observer's proprietary period ends.
//
// # Built-in Backends
//
// The following implementations are available:
//   - [local]: reads override access files from the archive file system
//   - [sqldb]: stores override rules in SQL and queries the Lick schedule database
//   - [keyword]: reads OWNRHINT keyword history with the gshow tool
//   - [cache]: wraps any of the above with a time-bounded cache
//   - Mock backend (internal): serves fixtures from the configuration file
//
// # Implementing a Custom Backend
//
//  1. Implement [StoreFactory] and/or [ScheduleFactory]
//  2. Implement [OverrideRuleStore] and/or [ScheduleService]
//  3. Pass the factories with [options.WithOverrideStore] and [options.WithSchedule]
//
// Example:
//
//	type MyFactory struct { /* ... */ }
//
//	func (f *MyFactory) NewSchedule() (backend.ScheduleService, error) {
//	    return &MySchedule{}, nil
//	}
//
//	engine, _ := core.NewAuthEngine(options.WithSchedule(&MyFactory{}))
//
// # Sentinels
//
// Schedule lookups report two reserved observer ids: [types.UnknownUser] when
// an ownerhint could not be resolved, and [types.PublicUser] when the data
// belongs to the public.
package backend

import (
	"context"
	"time"

	"github.com/manetu/archiveauth/pkg/core/override"
)

// DirectoryKey identifies a night and instrument directory of the archive.
type DirectoryKey = override.DirectoryKey

// StoreFactory creates [OverrideRuleStore] instances.
//
// As with [ScheduleFactory], factory construction happens before the
// configuration is loaded, so it may register Viper defaults; connections are
// made in NewStore.
type StoreFactory interface {
	NewStore() (OverrideRuleStore, error)
}

// OverrideRuleStore provides the parsed override access files of a directory.
type OverrideRuleStore interface {
	// GetRelatedOverrideFiles returns every override access file for the
	// directory, in any order. No files is not an error.
	GetRelatedOverrideFiles(ctx context.Context, key DirectoryKey) ([]*override.File, error)
}

// KeywordOwnerhint is one OWNRHINT keyword value recorded at the telescope.
type KeywordOwnerhint struct {
	Timestamp time.Time `json:"timestamp"`
	Ownerhint string    `json:"ownerhint"`
}

// KeywordSource provides the OWNRHINT keyword history of a telescope.
type KeywordSource interface {
	// GetKeywordOwnerhints returns the ownerhints recorded during an observing
	// night, sorted by time.
	GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]KeywordOwnerhint, error)
}

// PublicDate is an observer's configured public date for a night. Date is nil
// when the schedule has no date for the observer.
type PublicDate struct {
	ObserverID int        `json:"obid"`
	Date       *time.Time `json:"date,omitempty"`
}

// ScheduleService answers questions about who observed when.
//
// All methods are safe for concurrent use by multiple goroutines.
type ScheduleService interface {
	KeywordSource

	// ComputeOwnerhint resolves an ownerhint to observer and cover sheet ids.
	// The ownerhint "all-observers" means every observer scheduled that night.
	// An ownerhint that matches nobody yields [types.UnknownUser].
	ComputeOwnerhint(ctx context.Context, night time.Time, telescope, ownerhint string) (observerIDs []int, coverIDs []string, err error)

	// GetPublicDates returns the public date each observer configured for the night.
	GetPublicDates(ctx context.Context, telescope string, night time.Time, observerIDs []int) ([]PublicDate, error)
}

// ScheduleFactory creates [ScheduleService] instances.
type ScheduleFactory interface {
	NewSchedule() (ScheduleService, error)
}

// AllObservers is the ownerhint meaning every observer of the night.
const AllObservers = "all-observers"

// PublicOwnerhint is the ownerhint meaning the public.
const PublicOwnerhint = "public"
