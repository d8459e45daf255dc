//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/manetu/archiveauth/internal/core/accesslog"
	"github.com/manetu/archiveauth/pkg/common"
	pkgaccesslog "github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/metrics"
	"github.com/manetu/archiveauth/pkg/core/options"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/pubdate"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/stretchr/testify/require"
)

const testOverrides = `
r1234.fits obstype flat
x50*.fits obstype science
s20*.fits access PI_SMITH
u30*.fits access bob
n70*.fits access nobody
m40*.fits access PI_SMITH PI_JONES
p60*.fits access public
c80*.fits access SHARED
q90*.fits access RECUR_X100
w10*.fits access PI_RECUR_X
`

type fakeStore struct {
	files []*override.File
	err   error
	keys  []backend.DirectoryKey
}

func (s *fakeStore) GetRelatedOverrideFiles(ctx context.Context, key backend.DirectoryKey) ([]*override.File, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return nil, s.err
	}
	return s.files, nil
}

func (s *fakeStore) NewStore() (backend.OverrideRuleStore, error) {
	return s, nil
}

type fakeSchedule struct {
	owners      map[string][]int
	covers      map[string][]string
	keywords    []backend.KeywordOwnerhint
	dates       map[int]time.Time
	keywordErr  error
	computeErr  error
	datesErr    error
	panicOnCall bool
	closed      bool
}

func (s *fakeSchedule) GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]backend.KeywordOwnerhint, error) {
	if s.panicOnCall {
		panic("keyword history corrupted")
	}
	return s.keywords, s.keywordErr
}

func (s *fakeSchedule) ComputeOwnerhint(ctx context.Context, night time.Time, telescope, ownerhint string) ([]int, []string, error) {
	if s.computeErr != nil {
		return nil, nil, s.computeErr
	}
	if ownerhint == backend.PublicOwnerhint {
		return []int{types.PublicUser}, nil, nil
	}
	ids, ok := s.owners[ownerhint]
	if !ok {
		return []int{types.UnknownUser}, nil, nil
	}
	return ids, s.covers[ownerhint], nil
}

func (s *fakeSchedule) GetPublicDates(ctx context.Context, telescope string, night time.Time, observerIDs []int) ([]backend.PublicDate, error) {
	if s.datesErr != nil {
		return nil, s.datesErr
	}
	var result []backend.PublicDate
	for _, id := range observerIDs {
		pd := backend.PublicDate{ObserverID: id}
		if d, ok := s.dates[id]; ok {
			pd.Date = &d
		}
		result = append(result, pd)
	}
	return result, nil
}

func (s *fakeSchedule) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSchedule) NewSchedule() (backend.ScheduleService, error) {
	return s, nil
}

func utc(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newFakeSchedule() *fakeSchedule {
	return &fakeSchedule{
		owners: map[string][]int{
			backend.AllObservers: {35, 88},
			"PI_SMITH":           {35},
			"PI_JONES":           {88},
			"SHARED":             {35, 88},
		},
		covers: map[string][]string{
			backend.AllObservers: {"c35", "c88"},
			"PI_SMITH":           {"c35"},
		},
		keywords: []backend.KeywordOwnerhint{
			{Timestamp: *utc("2012-01-19T04:00:00Z"), Ownerhint: "PI_SMITH"},
			{Timestamp: *utc("2012-01-19T09:00:00Z"), Ownerhint: "PI_JONES"},
		},
		dates: map[int]time.Time{},
	}
}

func newFakeStore(t *testing.T) *fakeStore {
	f, err := override.Parse(strings.NewReader(testOverrides), "2012-01/18/shane/override.access")
	require.NoError(t, err)
	return &fakeStore{files: []*override.File{f}}
}

func testAuthorization() *config.Authorization {
	return &config.Authorization{
		DefaultPeriod:  pubdate.Period{Value: 1, Unit: pubdate.Years},
		PublicSuffixes: map[string][]string{"ao": {".pub.fits"}},
		FixedOwners: map[string]string{
			"nickel":  "NICKEL_PUBLIC",
			"hamspec": "PI_SMITH",
			"apf":     "APF_TEAM",
		},
		PublicObservers:      []string{"NICKEL_PUBLIC"},
		PublicOwnerhint:      regexp.MustCompile("^RECUR_"),
		UnscheduledObservers: map[string]int{"bob": 4},
	}
}

func fixedClock(s string) func() time.Time {
	t := *utc(s)
	return func() time.Time { return t }
}

type testEngine struct {
	*AuthEngine
	store    *fakeStore
	schedule *fakeSchedule
	records  chan *pkgaccesslog.DecisionRecord
	metrics  *metrics.Metrics
}

// newTestEngine builds an engine over the fakes with "today" at now.
func newTestEngine(t *testing.T, store *fakeStore, schedule *fakeSchedule, now string) *testEngine {
	ch := make(chan *pkgaccesslog.DecisionRecord, 16)
	m := metrics.New()

	e, err := NewAuthEngine(&options.EngineOptions{
		AccessLogFactory: accesslog.NewChannelLogger(ch),
		StoreFactory:     store,
		ScheduleFactory:  schedule,
		Metrics:          m,
		Clock:            fixedClock(now),
		Authorization:    testAuthorization(),
	})
	require.NoError(t, err)

	return &testEngine{AuthEngine: e, store: store, schedule: schedule, records: ch, metrics: m}
}

func networkError() error {
	return common.NewError(common.ExternalServiceError, "connection refused")
}

func shaneFile(name string) *types.FileMetadata {
	return &types.FileMetadata{
		Filename:   "2012-01/18/shane/" + name,
		Instrument: "Kast",
		Telescope:  "Shane",
		FrameType:  types.FrameScience,
	}
}

// panicStream is an access log whose sink blows up on every send.
type panicStream struct {
	sends int
}

func (s *panicStream) Send(record *pkgaccesslog.DecisionRecord) error {
	s.sends++
	panic("audit sink closed")
}

func (s *panicStream) Close() {}

func (s *panicStream) NewStream() (pkgaccesslog.Stream, error) {
	return s, nil
}

func panicClock() time.Time {
	panic("clock unavailable")
}

// newEngineWith builds an engine over the default fakes with the given
// access log and clock.
func newEngineWith(t *testing.T, al pkgaccesslog.Factory, clock func() time.Time) *AuthEngine {
	e, err := NewAuthEngine(&options.EngineOptions{
		AccessLogFactory: al,
		StoreFactory:     newFakeStore(t),
		ScheduleFactory:  newFakeSchedule(),
		Metrics:          metrics.New(),
		Clock:            clock,
		Authorization:    testAuthorization(),
	})
	require.NoError(t, err)
	return e
}
