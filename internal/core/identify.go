//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
)

// stage is one rule of the resolver. It returns true when resolution is finished.
type stage func(ctx context.Context, a *Access) bool

// IdentifyAccess runs the ordered rules over a file and returns the resulting
// access. The first rule to settle the visibility ends the run. Collaborator
// failures leave the file at Unknown.
func (e *AuthEngine) IdentifyAccess(ctx context.Context, f *types.FileMetadata) *Access {
	a := newAccess(f)

	night, instrDir, err := types.NightFromPath(f.Filename)
	if err != nil {
		logger.Errorf(f.Filename, "IdentifyAccess", "cannot derive observing night: %+v", err)
		a.AddReason("0", "Could not determine observing night from path %s: %v", f.Filename, err)
		a.decide("0", types.VisibilityUnknown)
		return a
	}
	a.ObservingNight = night

	stages := []stage{
		func(ctx context.Context, a *Access) bool { return e.ruleOverride(ctx, a, instrDir) },
		e.rulePublicSuffix,
		e.ruleFixedOwner,
		e.ruleCalibration,
		e.ruleKeywordOwnerhints,
		e.ruleAllObservers,
	}
	for _, s := range stages {
		if s(ctx, a) {
			break
		}
	}

	logger.Debugf(f.Filename, "IdentifyAccess", "visibility %s from rule %s", a.Visibility, a.Rule)
	return a
}

// ruleOverride applies the matching override access rule, if any. An obstype
// override only settles the file when it hands it to the night's observers; an
// access override settles it when its ownerhints resolve.
func (e *AuthEngine) ruleOverride(ctx context.Context, a *Access, instrDir string) bool {
	key := backend.DirectoryKey{Night: a.ObservingNight, InstrumentDir: instrDir}
	files, err := e.store.GetRelatedOverrideFiles(ctx, key)
	if err != nil {
		logger.Errorf(a.File.Filename, "ruleOverride", "Failed to read override access files for %s: %+v", key, err)
		e.metrics.CollaboratorError("get_related_override_files")
		a.AddReason("1z", "Failed when querying for override access.")
		a.decide("1z", types.VisibilityUnknown)
		return true
	}

	rule := override.FindMatchingRule(files, a.File.Filename)
	if rule == nil {
		return false
	}
	logger.Debugf(a.File.Filename, "ruleOverride", "matched override rule %q", rule)

	if rule.FrameType != nil {
		ft := *rule.FrameType
		a.File.FrameType = ft

		if ft.IsCalibration() {
			a.AddReason("1a", "All observers from the night included because override access set file type to %s.", ft)
			e.applyOwnerhints(ctx, a, "1a", []string{backend.AllObservers}, false)
		} else {
			a.AddReason("1a", "No special rule for obstype: %s", ft)
		}
	}

	if len(rule.Ownerhints) > 0 {
		if containsHint(rule.Ownerhints, backend.PublicOwnerhint) {
			a.decide("1b", types.VisibilityPublic)
			a.AddReason("1b", "Override access file gave public visibility.")
		} else {
			e.applyOwnerhints(ctx, a, "1b/c/d", rule.Ownerhints, true)
		}
	}

	return a.decided()
}

// rulePublicSuffix makes files with an instrument's public suffixes public.
func (e *AuthEngine) rulePublicSuffix(ctx context.Context, a *Access) bool {
	name := path.Base(filepath.ToSlash(a.File.Filename))
	for _, suffix := range e.auth.SuffixesFor(a.File.Instrument) {
		if strings.HasSuffix(name, suffix) {
			a.decide("2a", types.VisibilityPublic)
			a.AddReason("2a", "Suffix %s is public for instrument: %s", suffix, a.File.Instrument)
			return true
		}
	}
	return false
}

// ruleFixedOwner hands every file of a fixed-owner instrument to that owner.
// Such instruments never fall through to later rules.
func (e *AuthEngine) ruleFixedOwner(ctx context.Context, a *Access) bool {
	owner, ok := e.auth.FixedOwnerFor(a.File.Instrument)
	if !ok {
		return false
	}

	if e.auth.IsPublicObserver(owner) {
		a.decide("2b", types.VisibilityPublic)
		a.AddReason("2b", "Fixed public owner %s for instrument %s.", owner, a.File.Instrument)
		return true
	}

	e.applyOwnerhints(ctx, a, "2b", []string{owner}, false)
	if !a.decided() {
		logger.Warnf(a.File.Filename, "ruleFixedOwner", "fixed owner %s for %s did not resolve", owner, a.File.Instrument)
		a.decide("2z", types.VisibilityUnknown)
		a.AddReason("2z", "Unknown fixed owner %s, this is likely an archive mis-configuration.", owner)
	}
	return true
}

// ruleCalibration shares calibration frames with every observer of the night.
func (e *AuthEngine) ruleCalibration(ctx context.Context, a *Access) bool {
	ft := a.File.FrameType
	if !ft.IsCalibration() {
		return false
	}

	a.AddReason("3", "All observers from the night can access frame type: %s", ft)
	e.applyOwnerhints(ctx, a, "3", []string{backend.AllObservers}, false)
	return true
}

// ruleKeywordOwnerhints uses the OWNRHINT keyword recorded at the telescope.
// Hints inside the exposure window win; otherwise the latest hint before the
// file was written is used. Finding none falls through to rule 5.
func (e *AuthEngine) ruleKeywordOwnerhints(ctx context.Context, a *Access) bool {
	f := a.File
	history, err := e.schedule.GetKeywordOwnerhints(ctx, f.Telescope, a.ObservingNight)
	if err != nil {
		logger.Errorf(f.Filename, "ruleKeywordOwnerhints", "Failed to query for OWNRHINT for %s on %s: %+v", f.Instrument, types.FormatDate(a.ObservingNight), err)
		e.metrics.CollaboratorError("get_keyword_ownerhints")
		a.decide("4z", types.VisibilityUnknown)
		a.AddReason("4z", "Failed to query for OWNRHINT for %s on %s: %v", f.Instrument, types.FormatDate(a.ObservingNight), err)
		return true
	}

	var hints []string
	tag := "4a"
	if beg, end := f.BeginEndTimes(); beg != nil && end != nil {
		for _, h := range history {
			if !h.Timestamp.Before(*beg) && !h.Timestamp.After(*end) {
				hints = append(hints, h.Ownerhint)
			}
		}
	}

	if len(hints) == 0 {
		tag = "4b"
		if f.MTime == nil {
			a.decide("4v", types.VisibilityUnknown)
			a.AddReason("4v", "No mtime information in db.")
			return true
		}

		for _, h := range history {
			if h.Timestamp.Before(*f.MTime) {
				hints = append(hints, h.Ownerhint)
			}
		}
		if len(hints) > 1 {
			hints = hints[len(hints)-1:]
		}
	}

	switch {
	case len(hints) == 1:
		e.applyOwnerhints(ctx, a, tag, hints, false)
		if !a.decided() {
			a.decide("4y", types.VisibilityUnknown)
			a.AddReason("4y", "No owner found for ownerhint: %s", hints[0])
		}
		return true
	case len(hints) > 1:
		a.decide("4w", types.VisibilityUnknown)
		a.AddReason("4w", "Multiple ownerhints for file: %s", strings.Join(hints, ","))
		return true
	default:
		a.AddReason(tag, "No ownerhints found.")
		return false
	}
}

// ruleAllObservers gives the file to everyone observing that night. It may
// leave the visibility at DEFAULT, which SetAuthMetadata treats as public.
func (e *AuthEngine) ruleAllObservers(ctx context.Context, a *Access) bool {
	e.applyOwnerhints(ctx, a, "5", []string{backend.AllObservers}, false)
	return true
}

func containsHint(hints []string, hint string) bool {
	for _, h := range hints {
		if strings.EqualFold(h, hint) {
			return true
		}
	}
	return false
}
