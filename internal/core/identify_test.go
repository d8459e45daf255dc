//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReason(t *testing.T) {
	a := newAccess(shaneFile("r1.fits"))
	a.AddReason("4b", "No ownerhints found.")
	a.AddReason("2a", "Suffix %s is public for instrument: %s", ".pub.fits", "AO")

	assert.Equal(t, []string{
		"Rule 4b: No ownerhints found.",
		"Rule 2a: Suffix .pub.fits is public for instrument: AO",
	}, a.Reason)
}

func TestIdentifyAccess(t *testing.T) {
	tests := []struct {
		name       string
		file       *types.FileMetadata
		schedule   func(s *fakeSchedule)
		visibility types.Visibility
		rule       string
		owners     []int
		covers     []string
		frameType  types.FrameType
		reasons    []string
	}{
		{
			name:       "override obstype calibration shares with the night",
			file:       shaneFile("r1234.fits"),
			visibility: types.VisibilityProprietary,
			rule:       "1a",
			owners:     []int{35, 88},
			covers:     []string{"c35", "c88"},
			frameType:  types.FrameFlat,
			reasons: []string{
				"Rule 1a: All observers from the night included because override access set file type to flat.",
				"Rule 1a: Found 2 observers and 2 coverids from override access ownerhints: all-observers",
			},
		},
		{
			name: "override obstype science falls through to keywords",
			file: func() *types.FileMetadata {
				f := shaneFile("x50.fits")
				f.FrameType = types.FrameFlat
				f.MTime = utc("2012-01-19T05:00:00Z")
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "4b",
			owners:     []int{35},
			covers:     []string{"c35"},
			frameType:  types.FrameScience,
			reasons: []string{
				"Rule 1a: No special rule for obstype: science",
				"Rule 4b: Found 1 observers and 1 coverids from override access ownerhints: PI_SMITH",
			},
		},
		{
			name:       "override access to a scheduled observer",
			file:       shaneFile("s20.fits"),
			visibility: types.VisibilityProprietary,
			rule:       "1b/c/d",
			owners:     []int{35},
			covers:     []string{"c35"},
		},
		{
			name:       "override access to an unscheduled observer",
			file:       shaneFile("u30.fits"),
			visibility: types.VisibilityProprietary,
			rule:       "1b/c/d",
			owners:     []int{4},
			reasons: []string{
				"Rule 1b/c/d: Unscheduled observer bob found. obsid 4",
				"Rule 1b/c/d: Found 1 observers and 0 coverids from override access ownerhints: bob",
			},
		},
		{
			name:       "override access to nobody falls through",
			file:       shaneFile("n70.fits"),
			visibility: types.VisibilityUnknown,
			rule:       "4v",
			reasons: []string{
				"Rule 1b/c/d: Could not find observer for nobody",
				"Rule 1b/c/d: Found 0 observers and 0 coverids from override access ownerhints: nobody",
				"Rule 4v: No mtime information in db.",
			},
		},
		{
			name:       "override access to several observers",
			file:       shaneFile("m40.fits"),
			visibility: types.VisibilityProprietary,
			rule:       "1b/c/d",
			owners:     []int{35, 88},
			covers:     []string{"c35"},
		},
		{
			name:       "override access public",
			file:       shaneFile("p60.fits"),
			visibility: types.VisibilityPublic,
			rule:       "1b",
			reasons:    []string{"Rule 1b: Override access file gave public visibility."},
		},
		{
			name: "override ownerhint naming several observers is ignored",
			file: func() *types.FileMetadata {
				f := shaneFile("c80.fits")
				f.DateBeg = utc("2012-01-19T03:00:00Z")
				f.DateEnd = utc("2012-01-19T05:00:00Z")
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "4a",
			owners:     []int{35},
			covers:     []string{"c35"},
			reasons: []string{
				"Rule 1b/c/d: Observing calendar ownerhint query returned multiple users for ownerhint SHARED, ignoring it.",
				"Rule 1b/c/d: Found 0 observers and 0 coverids from override access ownerhints: SHARED",
				"Rule 4a: Found 1 observers and 1 coverids from override access ownerhints: PI_SMITH",
			},
		},
		{
			name:       "recurring ownerhint is public",
			file:       shaneFile("q90.fits"),
			visibility: types.VisibilityPublic,
			rule:       "1b/c/d",
			reasons: []string{
				"Rule 1b/c/d: Observing calendar ownerhint query returned public user.",
				"Rule 1b/c/d: Found 1 observers and 0 coverids from override access ownerhints: public",
			},
		},
		{
			name: "public suffix",
			file: &types.FileMetadata{
				Filename:   "2012-01/18/AO/s1.pub.fits",
				Instrument: "AO",
				Telescope:  "Shane",
				FrameType:  types.FrameScience,
			},
			visibility: types.VisibilityPublic,
			rule:       "2a",
			reasons:    []string{"Rule 2a: Suffix .pub.fits is public for instrument: AO"},
		},
		{
			name: "fixed public owner",
			file: &types.FileMetadata{
				Filename:   "2012-01/18/nickel/d1.fits",
				Instrument: "Nickel",
				Telescope:  "Nickel",
				FrameType:  types.FrameScience,
			},
			visibility: types.VisibilityPublic,
			rule:       "2b",
			reasons:    []string{"Rule 2b: Fixed public owner NICKEL_PUBLIC for instrument Nickel."},
		},
		{
			name: "fixed owner",
			file: &types.FileMetadata{
				Filename:   "2012-01/18/hamspec/h1.fits",
				Instrument: "Hamspec",
				Telescope:  "Shane",
				FrameType:  types.FrameArc,
			},
			visibility: types.VisibilityProprietary,
			rule:       "2b",
			owners:     []int{35},
			covers:     []string{"c35"},
		},
		{
			name: "fixed owner unknown to the schedule",
			file: &types.FileMetadata{
				Filename:   "2012-01/18/apf/a1.fits",
				Instrument: "Apf",
				Telescope:  "APF",
				FrameType:  types.FrameScience,
			},
			visibility: types.VisibilityUnknown,
			rule:       "2z",
			reasons: []string{
				"Rule 2b: Observing calendar ownerhint query returned unknown user.",
				"Rule 2b: Found 0 observers and 0 coverids from override access ownerhints: APF_TEAM",
				"Rule 2z: Unknown fixed owner APF_TEAM, this is likely an archive mis-configuration.",
			},
		},
		{
			name: "calibration frame",
			file: func() *types.FileMetadata {
				f := shaneFile("a1.fits")
				f.FrameType = types.FrameArc
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "3",
			owners:     []int{35, 88},
			covers:     []string{"c35", "c88"},
			reasons: []string{
				"Rule 3: All observers from the night can access frame type: arc",
				"Rule 3: Found 2 observers and 2 coverids from override access ownerhints: all-observers",
			},
		},
		{
			name: "keyword inside exposure window",
			file: func() *types.FileMetadata {
				f := shaneFile("k1.fits")
				f.Header = map[string]string{
					types.HeaderDateBeg: "2012-01-19T08:30:00.00",
					types.HeaderDateEnd: "2012-01-19T09:30:00.00",
				}
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "4a",
			owners:     []int{88},
		},
		{
			name: "several keywords inside exposure window",
			file: func() *types.FileMetadata {
				f := shaneFile("k2.fits")
				f.DateBeg = utc("2012-01-19T03:00:00Z")
				f.DateEnd = utc("2012-01-19T10:00:00Z")
				return f
			}(),
			visibility: types.VisibilityUnknown,
			rule:       "4w",
			reasons:    []string{"Rule 4w: Multiple ownerhints for file: PI_SMITH,PI_JONES"},
		},
		{
			name: "latest keyword before mtime",
			file: func() *types.FileMetadata {
				f := shaneFile("k3.fits")
				f.MTime = utc("2012-01-19T12:00:00Z")
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "4b",
			owners:     []int{88},
		},
		{
			name: "keyword resolving to nobody",
			file: func() *types.FileMetadata {
				f := shaneFile("k4.fits")
				f.MTime = utc("2012-01-19T12:00:00Z")
				return f
			}(),
			schedule: func(s *fakeSchedule) {
				s.keywords = []backend.KeywordOwnerhint{{Timestamp: *utc("2012-01-19T04:00:00Z"), Ownerhint: "GHOST"}}
			},
			visibility: types.VisibilityUnknown,
			rule:       "4y",
			reasons: []string{
				"Rule 4b: Observing calendar ownerhint query returned unknown user.",
				"Rule 4b: Found 0 observers and 0 coverids from override access ownerhints: GHOST",
				"Rule 4y: No owner found for ownerhint: GHOST",
			},
		},
		{
			name: "no keyword falls through to all observers",
			file: func() *types.FileMetadata {
				f := shaneFile("k5.fits")
				f.MTime = utc("2012-01-19T01:00:00Z")
				return f
			}(),
			visibility: types.VisibilityProprietary,
			rule:       "5",
			owners:     []int{35, 88},
			covers:     []string{"c35", "c88"},
			reasons: []string{
				"Rule 4b: No ownerhints found.",
				"Rule 5: Found 2 observers and 2 coverids from override access ownerhints: all-observers",
			},
		},
		{
			name: "nobody observing leaves DEFAULT",
			file: func() *types.FileMetadata {
				f := shaneFile("k6.fits")
				f.MTime = utc("2012-01-19T01:00:00Z")
				return f
			}(),
			schedule: func(s *fakeSchedule) {
				s.owners[backend.AllObservers] = []int{}
				s.covers[backend.AllObservers] = nil
			},
			visibility: types.VisibilityDefault,
			rule:       "",
		},
		{
			name: "path without a night",
			file: &types.FileMetadata{
				Filename:   "incoming/r1.fits",
				Instrument: "Kast",
				Telescope:  "Shane",
			},
			visibility: types.VisibilityUnknown,
			rule:       "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := newFakeSchedule()
			if tt.schedule != nil {
				tt.schedule(schedule)
			}
			e := newTestEngine(t, newFakeStore(t), schedule, "2012-03-01T12:00:00Z")

			a := e.IdentifyAccess(context.Background(), tt.file)
			require.NotNil(t, a)

			assert.Equal(t, tt.visibility, a.Visibility, "reasons: %v", a.Reason)
			assert.Equal(t, tt.rule, a.Rule)
			if tt.owners != nil {
				assert.Equal(t, tt.owners, a.OwnerIDs)
			}
			if tt.covers != nil {
				assert.Equal(t, tt.covers, a.CoverIDs)
			}
			if tt.frameType != "" {
				assert.Equal(t, tt.frameType, tt.file.FrameType)
			}
			if tt.reasons != nil {
				assert.Equal(t, tt.reasons, a.Reason)
			}
			assert.Nil(t, a.PublicDate)
		})
	}
}

func TestIdentifyAccessNight(t *testing.T) {
	e := newTestEngine(t, newFakeStore(t), newFakeSchedule(), "2012-03-01T12:00:00Z")

	a := e.IdentifyAccess(context.Background(), shaneFile("s20.fits"))
	assert.Equal(t, types.Date(2012, time.January, 18), a.ObservingNight)
	require.Len(t, e.store.keys, 1)
	assert.Equal(t, backend.DirectoryKey{Night: types.Date(2012, time.January, 18), InstrumentDir: "shane"}, e.store.keys[0])
}

func TestIdentifyAccessPublicOwnerhintPrefix(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		file    string
		public  bool
	}{
		{"anchored, prefix", "^RECUR_", "q90.fits", true},
		{"unanchored, prefix", "RECUR_", "q90.fits", true},
		{"unanchored, embedded", "RECUR_", "w10.fits", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, newFakeStore(t), newFakeSchedule(), "2012-03-01T12:00:00Z")
			e.auth.PublicOwnerhint = regexp.MustCompile(tt.pattern)

			a := e.IdentifyAccess(context.Background(), shaneFile(tt.file))
			assert.Equal(t, tt.public, a.Visibility == types.VisibilityPublic, "reasons: %v", a.Reason)
		})
	}
}

func TestIdentifyAccessFailures(t *testing.T) {
	tests := []struct {
		name     string
		file     *types.FileMetadata
		setup    func(st *fakeStore, s *fakeSchedule)
		rule     string
		reason   string
		callName string
	}{
		{
			name:     "override store",
			file:     shaneFile("s20.fits"),
			setup:    func(st *fakeStore, s *fakeSchedule) { st.err = networkError() },
			rule:     "1z",
			reason:   "Rule 1z: Failed when querying for override access.",
			callName: "get_related_override_files",
		},
		{
			name:     "keyword history",
			file:     shaneFile("k1.fits"),
			setup:    func(st *fakeStore, s *fakeSchedule) { s.keywordErr = networkError() },
			rule:     "4z",
			reason:   "Rule 4z: Failed to query for OWNRHINT for Kast on 2012-01-18: connection refused(code-EXTERNAL_SERVICE_ERROR)",
			callName: "get_keyword_ownerhints",
		},
		{
			name: "ownerhint resolution",
			file: func() *types.FileMetadata {
				f := shaneFile("a1.fits")
				f.FrameType = types.FrameBias
				return f
			}(),
			setup:    func(st *fakeStore, s *fakeSchedule) { s.computeErr = networkError() },
			rule:     "3",
			reason:   "Rule 3: Observing calendar ownerhint query failed: connection refused(code-EXTERNAL_SERVICE_ERROR)",
			callName: "compute_ownerhint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, schedule := newFakeStore(t), newFakeSchedule()
			tt.setup(store, schedule)
			e := newTestEngine(t, store, schedule, "2012-03-01T12:00:00Z")

			a := e.IdentifyAccess(context.Background(), tt.file)
			assert.Equal(t, types.VisibilityUnknown, a.Visibility)
			assert.Equal(t, tt.rule, a.Rule)
			assert.Contains(t, a.Reason, tt.reason)
		})
	}
}
