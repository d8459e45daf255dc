//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package mock serves schedule answers and override access files from the
// mock section of the configuration file. It stands in for the schedule
// database and the archive file system in tests and demos.
//
//	mock:
//	  enabled: true
//	  schedule:
//	    - telescope: Shane
//	      night: 2012-01-18
//	      all_observers: [35, 88]
//	      all_covers: [c35, c88]
//	      ownerhints:
//	        - hint: PI_SMITH
//	          observers: [35]
//	          covers: [c35]
//	      keywords:
//	        - timestamp: 2012-01-19T04:00:00Z
//	          ownerhint: PI_SMITH
//	      public_dates:
//	        - obid: 35
//	          date: 2013-01-18
//	  overrides:
//	    - file: archive/2012-01/18/shane/override.access
//
// Ownerhints and telescopes containing "networkerror" fail with an
// EXTERNAL_SERVICE_ERROR.
package mock

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
)

const (
	// aauth-config.yaml config names
	cfgTelescope    = "telescope"
	cfgNight        = "night"
	cfgAllObservers = "all_observers"
	cfgAllCovers    = "all_covers"
	cfgOwnerhints   = "ownerhints"
	cfgHint         = "hint"
	cfgObservers    = "observers"
	cfgCovers       = "covers"
	cfgKeywords     = "keywords"
	cfgTimestamp    = "timestamp"
	cfgOwnerhint    = "ownerhint"
	cfgPublicDates  = "public_dates"
	cfgObid         = "obid"
	cfgDate         = "date"
	cfgFile         = "file"

	mockScheduleCfg  = "mock.schedule"
	mockOverridesCfg = "mock.overrides"

	networkError = "networkerror"
)

var logger = logging.GetLogger("archiveauth.backend.mock")
var mockAgent = "mock"

// Factory creates the mock schedule service and override store.
type Factory struct {
}

// NewFactory creates a new Factory for the mock backends.
func NewFactory() *Factory {
	return &Factory{}
}

// NewSchedule implements [backend.ScheduleFactory].
func (f *Factory) NewSchedule() (backend.ScheduleService, error) {
	logger.Warn(mockAgent, "Init", "RUNNING WITH MOCK SCHEDULE. SHOULD NOT BE USED IN PRODUCTION")
	return &Schedule{}, nil
}

// NewStore implements [backend.StoreFactory]. Override files listed in the
// configuration are parsed here, so a bad fixture fails engine construction.
func (f *Factory) NewStore() (backend.OverrideRuleStore, error) {
	logger.Warn(mockAgent, "Init", "RUNNING WITH MOCK OVERRIDE STORE. SHOULD NOT BE USED IN PRODUCTION")

	store := &Store{files: make(map[backend.DirectoryKey][]*override.File)}

	overrides, _ := config.VConfig.Get(mockOverridesCfg).([]interface{})
	dir := filepath.Dir(config.VConfig.ConfigFileUsed())
	for _, o := range overrides {
		om, _ := o.(map[string]interface{})
		name, _ := om[cfgFile].(string)
		if name == "" {
			continue
		}

		of, err := override.ParseFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return nil, err
		}
		store.files[of.Key()] = append(store.files[of.Key()], of)
	}

	return store, nil
}

// Store serves override access files parsed from the configured fixtures.
type Store struct {
	files map[backend.DirectoryKey][]*override.File
}

// GetRelatedOverrideFiles implements [backend.OverrideRuleStore].
func (s *Store) GetRelatedOverrideFiles(ctx context.Context, key backend.DirectoryKey) ([]*override.File, error) {
	if strings.Contains(key.InstrumentDir, networkError) {
		return nil, common.NewError(common.ExternalServiceError, "network error")
	}

	// rules are immutable, only the slice is copied
	files := append([]*override.File(nil), s.files[key]...)
	logger.Debugf(mockAgent, "GetRelatedOverrideFiles", "%d files for %s", len(files), key)
	return files, nil
}

// Schedule answers schedule questions from mock.schedule.
type Schedule struct {
}

// night finds the fixture for a telescope and night.
func (s *Schedule) night(telescope string, night time.Time) map[string]interface{} {
	nights, _ := config.VConfig.Get(mockScheduleCfg).([]interface{})
	for _, n := range nights {
		nm, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		tel, _ := nm[cfgTelescope].(string)
		if !strings.EqualFold(tel, telescope) || !sameNight(nm[cfgNight], night) {
			continue
		}
		return nm
	}
	return nil
}

// GetKeywordOwnerhints implements [backend.KeywordSource].
func (s *Schedule) GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]backend.KeywordOwnerhint, error) {
	if strings.Contains(strings.ToLower(telescope), networkError) {
		return nil, common.NewError(common.ExternalServiceError, "network error")
	}

	nm := s.night(telescope, night)
	if nm == nil {
		return nil, nil
	}

	var result []backend.KeywordOwnerhint
	keywords, _ := nm[cfgKeywords].([]interface{})
	for _, k := range keywords {
		km, _ := k.(map[string]interface{})
		ts, ok := toTime(km[cfgTimestamp])
		if !ok {
			logger.Warnf(mockAgent, "GetKeywordOwnerhints", "bad timestamp in mock keywords: %v", km[cfgTimestamp])
			continue
		}
		hint, _ := km[cfgOwnerhint].(string)
		result = append(result, backend.KeywordOwnerhint{Timestamp: ts, Ownerhint: hint})
	}
	return result, nil
}

// ComputeOwnerhint implements [backend.ScheduleService].
func (s *Schedule) ComputeOwnerhint(ctx context.Context, night time.Time, telescope, ownerhint string) ([]int, []string, error) {
	if strings.Contains(strings.ToLower(ownerhint), networkError) || strings.Contains(strings.ToLower(telescope), networkError) {
		return nil, nil, common.NewError(common.ExternalServiceError, "network error")
	}
	if strings.EqualFold(ownerhint, backend.PublicOwnerhint) {
		return []int{types.PublicUser}, nil, nil
	}

	nm := s.night(telescope, night)
	if nm == nil {
		return []int{types.UnknownUser}, nil, nil
	}

	if strings.EqualFold(ownerhint, backend.AllObservers) {
		ids := toIntArray(nm[cfgAllObservers])
		if len(ids) == 0 {
			return []int{types.UnknownUser}, nil, nil
		}
		return ids, toStringArray(nm[cfgAllCovers]), nil
	}

	hints, _ := nm[cfgOwnerhints].([]interface{})
	for _, h := range hints {
		hm, _ := h.(map[string]interface{})
		name, _ := hm[cfgHint].(string)
		if !strings.EqualFold(name, ownerhint) {
			continue
		}
		return toIntArray(hm[cfgObservers]), toStringArray(hm[cfgCovers]), nil
	}

	logger.Debugf(mockAgent, "ComputeOwnerhint", "no observers for %s on %s", ownerhint, types.FormatDate(night))
	return []int{types.UnknownUser}, nil, nil
}

// GetPublicDates implements [backend.ScheduleService].
func (s *Schedule) GetPublicDates(ctx context.Context, telescope string, night time.Time, observerIDs []int) ([]backend.PublicDate, error) {
	if strings.Contains(strings.ToLower(telescope), networkError) {
		return nil, common.NewError(common.ExternalServiceError, "network error")
	}

	configured := make(map[int]time.Time)
	if nm := s.night(telescope, night); nm != nil {
		dates, _ := nm[cfgPublicDates].([]interface{})
		for _, d := range dates {
			dm, _ := d.(map[string]interface{})
			obid, ok := toInt(dm[cfgObid])
			if !ok {
				continue
			}
			if t, ok := toTime(dm[cfgDate]); ok {
				configured[obid] = types.Truncate(t)
			}
		}
	}

	result := make([]backend.PublicDate, 0, len(observerIDs))
	for _, obid := range observerIDs {
		pd := backend.PublicDate{ObserverID: obid}
		if t, ok := configured[obid]; ok {
			pd.Date = &t
		}
		result = append(result, pd)
	}
	return result, nil
}
