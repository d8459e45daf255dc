//
//  Copyright © Manetu Inc. All rights reserved.
//

package cache

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/metrics"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

// Cache names used for metrics labels and key prefixes.
const (
	keywordsCache   = "schedule.keywords"
	ownerhintCache  = "schedule.ownerhint"
	publicDateCache = "schedule.public_dates"
	overridesCache  = "overrides"
)

// Schedule caches the answers of a [backend.ScheduleService].
type Schedule struct {
	next    backend.ScheduleService
	cache   Cache
	metrics *metrics.Metrics
}

var _ backend.ScheduleService = (*Schedule)(nil)

// NewSchedule wraps next. m may be nil.
func NewSchedule(next backend.ScheduleService, c Cache, m *metrics.Metrics) *Schedule {
	return &Schedule{next: next, cache: c, metrics: m}
}

type ownerhintEntry struct {
	ObserverIDs []int    `json:"obids"`
	CoverIDs    []string `json:"coverids"`
}

// GetKeywordOwnerhints implements [backend.KeywordSource].
func (s *Schedule) GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]backend.KeywordOwnerhint, error) {
	key := strings.Join([]string{keywordsCache, telescope, types.FormatDate(night)}, ":")
	return fetch(ctx, s.cache, keywordsCache, key, s.metrics.ObserveCache, func() ([]backend.KeywordOwnerhint, error) {
		return s.next.GetKeywordOwnerhints(ctx, telescope, night)
	})
}

// ComputeOwnerhint implements [backend.ScheduleService].
func (s *Schedule) ComputeOwnerhint(ctx context.Context, night time.Time, telescope, ownerhint string) ([]int, []string, error) {
	key := strings.Join([]string{ownerhintCache, telescope, types.FormatDate(night), ownerhint}, ":")
	entry, err := fetch(ctx, s.cache, ownerhintCache, key, s.metrics.ObserveCache, func() (ownerhintEntry, error) {
		ids, covers, err := s.next.ComputeOwnerhint(ctx, night, telescope, ownerhint)
		return ownerhintEntry{ObserverIDs: ids, CoverIDs: covers}, err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry.ObserverIDs, entry.CoverIDs, nil
}

// GetPublicDates implements [backend.ScheduleService]. The key uses the
// sorted observer ids, so argument order does not split the cache.
func (s *Schedule) GetPublicDates(ctx context.Context, telescope string, night time.Time, observerIDs []int) ([]backend.PublicDate, error) {
	ids := append([]int(nil), observerIDs...)
	sort.Ints(ids)
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.Itoa(id)
	}

	key := strings.Join([]string{publicDateCache, telescope, types.FormatDate(night), strings.Join(idStrs, ",")}, ":")
	return fetch(ctx, s.cache, publicDateCache, key, s.metrics.ObserveCache, func() ([]backend.PublicDate, error) {
		return s.next.GetPublicDates(ctx, telescope, night, observerIDs)
	})
}

// Clear drops every cached answer.
func (s *Schedule) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Close closes the wrapped schedule service if it holds a connection.
func (s *Schedule) Close() error {
	return closeNext(s.next)
}

func closeNext(next interface{}) error {
	if c, ok := next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Store caches the answers of a [backend.OverrideRuleStore]. Files are cached
// in override access file syntax and parsed again on a hit.
type Store struct {
	next    backend.OverrideRuleStore
	cache   Cache
	metrics *metrics.Metrics
}

var _ backend.OverrideRuleStore = (*Store)(nil)

// NewStore wraps next. m may be nil.
func NewStore(next backend.OverrideRuleStore, c Cache, m *metrics.Metrics) *Store {
	return &Store{next: next, cache: c, metrics: m}
}

type fileEntry struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// GetRelatedOverrideFiles implements [backend.OverrideRuleStore].
func (s *Store) GetRelatedOverrideFiles(ctx context.Context, key backend.DirectoryKey) ([]*override.File, error) {
	entries, err := fetch(ctx, s.cache, overridesCache, overridesCache+":"+key.String(), s.metrics.ObserveCache, func() ([]fileEntry, error) {
		files, err := s.next.GetRelatedOverrideFiles(ctx, key)
		if err != nil {
			return nil, err
		}
		return encodeFiles(files)
	})
	if err != nil {
		return nil, err
	}
	return decodeFiles(entries)
}

// Clear drops every cached answer.
func (s *Store) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Close closes the wrapped store if it holds a connection.
func (s *Store) Close() error {
	return closeNext(s.next)
}

func encodeFiles(files []*override.File) ([]fileEntry, error) {
	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		var buf bytes.Buffer
		if err := override.Format(&buf, f); err != nil {
			return nil, err
		}
		entries = append(entries, fileEntry{Path: f.RelPath(), Text: buf.String()})
	}
	return entries, nil
}

func decodeFiles(entries []fileEntry) ([]*override.File, error) {
	files := make([]*override.File, 0, len(entries))
	for _, e := range entries {
		f, err := override.Parse(strings.NewReader(e.Text), e.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "cached override file %s", e.Path)
		}
		files = append(files, f)
	}
	return files, nil
}

// ScheduleFactory wraps the services of another factory with a shared cache.
type ScheduleFactory struct {
	next    backend.ScheduleFactory
	cache   Cache
	metrics *metrics.Metrics
}

// NewScheduleFactory returns next unchanged when c is nil.
func NewScheduleFactory(next backend.ScheduleFactory, c Cache, m *metrics.Metrics) backend.ScheduleFactory {
	if c == nil {
		return next
	}
	return &ScheduleFactory{next: next, cache: c, metrics: m}
}

// NewSchedule implements [backend.ScheduleFactory].
func (f *ScheduleFactory) NewSchedule() (backend.ScheduleService, error) {
	svc, err := f.next.NewSchedule()
	if err != nil {
		return nil, err
	}
	return NewSchedule(svc, f.cache, f.metrics), nil
}

// StoreFactory wraps the stores of another factory with a shared cache.
type StoreFactory struct {
	next    backend.StoreFactory
	cache   Cache
	metrics *metrics.Metrics
}

// NewStoreFactory returns next unchanged when c is nil.
func NewStoreFactory(next backend.StoreFactory, c Cache, m *metrics.Metrics) backend.StoreFactory {
	if c == nil {
		return next
	}
	return &StoreFactory{next: next, cache: c, metrics: m}
}

// NewStore implements [backend.StoreFactory].
func (f *StoreFactory) NewStore() (backend.OverrideRuleStore, error) {
	store, err := f.next.NewStore()
	if err != nil {
		return nil, err
	}
	return NewStore(store, f.cache, f.metrics), nil
}
