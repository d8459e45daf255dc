//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/pubdate"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/mohae/deepcopy"
)

// SetAuthMetadata decides the file's access and writes the decision onto it.
// It never fails: anything unexpected leaves the file Unknown with rule 0z.
func (e *AuthEngine) SetAuthMetadata(ctx context.Context, f *types.FileMetadata) (result *types.FileMetadata) {
	if f == nil {
		logger.SysError("SetAuthMetadata called without a file record")
		return nil
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(f.Filename, "SetAuthMetadata", "unexpected failure: %v", r)
			result = e.setUnknown(f, r, time.Since(start))
		}
	}()

	input, _ := deepcopy.Copy(f).(*types.FileMetadata)

	a := e.resolve(ctx, f)
	e.SetAccessMetadata(f, a)

	e.auditDecision(a, input, time.Since(start))
	return f
}

// setUnknown writes the rule 0z outcome directly onto f. The audit is best
// effort; a second failure there is only logged.
func (e *AuthEngine) setUnknown(f *types.FileMetadata, cause interface{}, elapsed time.Duration) *types.FileMetadata {
	a := newAccess(f)
	if night, _, err := types.NightFromPath(f.Filename); err == nil {
		a.ObservingNight = night
	}
	a.decide("0z", types.VisibilityUnknown)
	a.AddReason("0z", "Unexpected failure while identifying access: %v", cause)
	a.OwnerIDs = []int{types.UnknownUser}

	f.PublicDate = types.MaxPublicDate
	f.OwnerAccess = []types.OwnerAccess{{ObserverID: types.UnknownUser, Reason: strings.Join(a.Reason, "\n")}}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf(f.Filename, "SetAuthMetadata", "unable to audit failure: %v", r)
			}
		}()
		e.auditDecision(a, nil, elapsed)
	}()
	return f
}

// resolve runs IdentifyAccess and settles the proprietary and undecided outcomes.
func (e *AuthEngine) resolve(ctx context.Context, f *types.FileMetadata) (a *Access) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(f.Filename, "SetAuthMetadata", "unexpected failure: %v", r)
			a = newAccess(f)
			if night, _, err := types.NightFromPath(f.Filename); err == nil {
				a.ObservingNight = night
			}
			a.decide("0z", types.VisibilityUnknown)
			a.AddReason("0z", "Unexpected failure while identifying access: %v", r)
		}
	}()

	a = e.IdentifyAccess(ctx, f)

	switch a.Visibility {
	case types.VisibilityProprietary:
		e.setPublicDate(ctx, a)
	case types.VisibilityDefault:
		a.decide("6", types.VisibilityPublic)
		a.AddReason("6", "No observers found for file")
	}
	return a
}

type ownerPublicDate struct {
	obid      int
	date      time.Time
	isDefault bool
}

// setPublicDate finds the earliest public date among the owners. Owners
// without a configured date get the default proprietary period. A file whose
// earliest date has arrived becomes public.
func (e *AuthEngine) setPublicDate(ctx context.Context, a *Access) {
	dates, err := e.schedule.GetPublicDates(ctx, a.File.Telescope, a.ObservingNight, a.OwnerIDs)
	if err != nil {
		logger.Errorf(a.File.Filename, "setPublicDate", "Failed to query public dates: %+v", err)
		e.metrics.CollaboratorError("get_public_dates")
		a.decide("0", types.VisibilityUnknown)
		a.AddReason("0", "Failed to query public dates for observers: %v", err)
		return
	}

	configured := make(map[int]time.Time, len(dates))
	for _, d := range dates {
		if d.Date != nil {
			configured[d.ObserverID] = types.Truncate(*d.Date)
		}
	}

	defaultDate := pubdate.Calculate(a.ObservingNight, e.auth.DefaultPeriod)
	candidates := make([]ownerPublicDate, 0, len(a.OwnerIDs))
	for _, obid := range a.OwnerIDs {
		if d, ok := configured[obid]; ok {
			candidates = append(candidates, ownerPublicDate{obid: obid, date: d})
		} else {
			candidates = append(candidates, ownerPublicDate{obid: obid, date: defaultDate, isDefault: true})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].date.Before(candidates[j].date)
	})

	earliest := candidates[0]
	a.PublicDate = &earliest.date

	today := types.ObservingNight(e.clock())
	if today.Before(earliest.date) {
		a.AddReason("0", "File is not public, earliest public date is %s from observer %d.", types.FormatDate(earliest.date), earliest.obid)
		return
	}

	a.decide("0", types.VisibilityPublic)
	if earliest.isDefault {
		a.AddReason("0", "File has passed default proprietary end date of %s", types.FormatDate(earliest.date))
	} else {
		a.AddReason("0", "File has passed observer %d's proprietary end date of %s", earliest.obid, types.FormatDate(earliest.date))
	}
}

// SetAccessMetadata writes an access decision onto the file record, replacing
// its public date and owner access rows.
func (e *AuthEngine) SetAccessMetadata(f *types.FileMetadata, a *Access) *types.FileMetadata {
	if len(a.CoverIDs) > 0 {
		f.Coversheet = strings.Join(a.CoverIDs, ";")
	}

	switch {
	case a.Visibility == types.VisibilityPublic:
		today := types.ObservingNight(e.clock())
		if a.PublicDate != nil && !a.PublicDate.After(today) {
			f.PublicDate = *a.PublicDate
		} else {
			f.PublicDate = a.ObservingNight
		}
		if !containsID(a.OwnerIDs, types.PublicUser) {
			a.OwnerIDs = append(a.OwnerIDs, types.PublicUser)
		}
	case a.Visibility == types.VisibilityUnknown:
		f.PublicDate = types.MaxPublicDate
	case a.Visibility == types.VisibilityProprietary && a.PublicDate != nil:
		f.PublicDate = *a.PublicDate
	default:
		logger.Warnf(f.Filename, "SetAccessMetadata", "visibility %s without a public date, treating as Unknown", a.Visibility)
		f.PublicDate = types.MaxPublicDate
		a.Visibility = types.VisibilityUnknown
	}

	if a.Visibility == types.VisibilityUnknown && !containsID(a.OwnerIDs, types.UnknownUser) {
		a.OwnerIDs = append(a.OwnerIDs, types.UnknownUser)
	}

	reason := strings.Join(a.Reason, "\n")
	f.OwnerAccess = make([]types.OwnerAccess, 0, len(a.OwnerIDs))
	for _, obid := range a.OwnerIDs {
		f.OwnerAccess = append(f.OwnerAccess, types.OwnerAccess{ObserverID: obid, Reason: reason})
	}

	logger.Infof(f.Filename, "SetAccessMetadata", "Setting access metadata for %s. Public date: %s\nReason:\n%s", f.Filename, types.FormatDate(f.PublicDate), reason)
	return f
}

func (e *AuthEngine) auditDecision(a *Access, input *types.FileMetadata, elapsed time.Duration) {
	rule := a.Rule
	if rule == "" {
		rule = "none"
	}
	e.metrics.ObserveDecision(a.Visibility.String(), rule, elapsed)

	record := &accesslog.DecisionRecord{
		ID:         uuid.New().String(),
		Timestamp:  e.clock().UTC(),
		Filename:   a.File.Filename,
		Instrument: a.File.Instrument,
		Telescope:  a.File.Telescope,
		Visibility: a.Visibility,
		Rule:       rule,
		PublicDate: a.File.PublicDate,
		OwnerIDs:   append([]int(nil), a.OwnerIDs...),
		CoverIDs:   append([]string(nil), a.CoverIDs...),
		Reasons:    append([]string(nil), a.Reason...),
		Duration:   elapsed,
		Env:        e.auditEnv,
		Input:      input,
	}
	if !a.ObservingNight.IsZero() {
		record.ObservingNight = types.FormatDate(a.ObservingNight)
	}

	if logger.IsDebugEnabled() {
		logger.Debugf(a.File.Filename, "auditDecision", "decision record: %+v", record)
	}

	if e.audit != nil {
		if err := e.audit.Send(record); err != nil {
			logger.Errorf(a.File.Filename, "auditDecision", "unable to send decision record: %+v", err)
		}
	}
}
