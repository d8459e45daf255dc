//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"strings"

	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/types"
)

// applyOwnerhints resolves ownerhints through the schedule and records the
// owners they name. A hint naming several observers is dropped unless the
// hints include all-observers. With allowUnscheduled, hints the schedule does
// not know are looked up in the unscheduled observer map.
//
// A query failure makes the file Unknown. Resolving nobody leaves the
// visibility untouched, so an earlier Public or Proprietary verdict stands.
func (e *AuthEngine) applyOwnerhints(ctx context.Context, a *Access, tag string, ownerhints []string, allowUnscheduled bool) {
	allowMultiple := containsHint(ownerhints, backend.AllObservers)

	hints := make([]string, len(ownerhints))
	for i, h := range ownerhints {
		if e.auth.IsPublicOwnerhint(h) {
			h = backend.PublicOwnerhint
		}
		hints[i] = h
	}

	var (
		obids    []int
		coverids []string
	)
	for _, hint := range hints {
		ids, covers, err := e.schedule.ComputeOwnerhint(ctx, a.ObservingNight, a.File.Telescope, hint)
		if err != nil {
			logger.Errorf(a.File.Filename, "applyOwnerhints", "Failed to query schedule db for date %s, telescope: %s: %+v",
				types.FormatDate(a.ObservingNight), a.File.Telescope, err)
			e.metrics.CollaboratorError("compute_ownerhint")
			a.AddReason(tag, "Observing calendar ownerhint query failed: %v", err)
			a.decide(tag, types.VisibilityUnknown)
			return
		}

		var hintIDs []int
		for _, id := range ids {
			hintIDs = addOwner(hintIDs, id)
		}
		var hintCovers []string
		for _, c := range covers {
			hintCovers = addCover(hintCovers, c)
		}

		if containsID(hintIDs, types.UnknownUser) {
			if obid, ok := e.auth.UnscheduledObserver(hint); ok && allowUnscheduled {
				a.AddReason(tag, "Unscheduled observer %s found. obsid %d", hint, obid)
				hintIDs = addOwner(removeID(hintIDs, types.UnknownUser), obid)
			} else if allowUnscheduled {
				a.AddReason(tag, "Could not find observer for %s", hint)
			} else {
				a.AddReason(tag, "Observing calendar ownerhint query returned unknown user.")
			}
		}

		if len(hintIDs) > 1 && !allowMultiple {
			a.AddReason(tag, "Observing calendar ownerhint query returned multiple users for ownerhint %s, ignoring it.", hint)
			continue
		}

		for _, id := range hintIDs {
			obids = addOwner(obids, id)
		}
		for _, c := range hintCovers {
			coverids = addCover(coverids, c)
		}
	}

	if containsID(obids, types.PublicUser) {
		a.decide(tag, types.VisibilityPublic)
		a.AddReason(tag, "Observing calendar ownerhint query returned public user.")
	} else if obids = removeID(obids, types.UnknownUser); len(obids) > 0 {
		a.OwnerIDs = obids
		a.decide(tag, types.VisibilityProprietary)
	}

	if len(coverids) > 0 {
		a.CoverIDs = coverids
	}

	a.AddReason(tag, "Found %d observers and %d coverids from override access ownerhints: %s", len(obids), len(coverids), strings.Join(hints, ","))
}
