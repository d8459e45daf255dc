//
//  Copyright © Manetu Inc. All rights reserved.
//

package sqldb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

// TelescopeInfo is a row of the schedule's telescopes table.
type TelescopeInfo struct {
	TeleID   int    `db:"teleid"`
	Nickname string `db:"nickname"`
	CSID0    int    `db:"csid0"`
}

type runRow struct {
	ObserverID int            `db:"obid"`
	CoverID    sql.NullString `db:"coverid"`
}

type publicDateRow struct {
	ObserverID int          `db:"obid"`
	PublicDate sql.NullTime `db:"publicdate"`
}

// ScheduleFactory creates [Schedule] instances from the schedule.db configuration.
type ScheduleFactory struct {
	keywords backend.KeywordSource
}

// NewScheduleFactory creates a [backend.ScheduleFactory]. Keyword ownerhint
// history is not kept in the schedule database, so lookups are delegated to keywords.
func NewScheduleFactory(keywords backend.KeywordSource) backend.ScheduleFactory {
	return &ScheduleFactory{keywords: keywords}
}

// NewSchedule connects to the schedule database.
func (f *ScheduleFactory) NewSchedule() (backend.ScheduleService, error) {
	cfg, err := config.GetScheduleDB()
	if err != nil {
		return nil, err
	}
	db, err := Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return NewSchedule(db, f.keywords), nil
}

// Schedule implements [backend.ScheduleService] on the Lick schedule database.
type Schedule struct {
	db       *sqlx.DB
	keywords backend.KeywordSource
}

// NewSchedule wraps an open schedule database connection.
func NewSchedule(db *sqlx.DB, keywords backend.KeywordSource) *Schedule {
	return &Schedule{db: db, keywords: keywords}
}

// Close releases the database connection.
func (s *Schedule) Close() error {
	return s.db.Close()
}

// GetTelescopeInfo returns the telescopes row for a nickname.
func (s *Schedule) GetTelescopeInfo(ctx context.Context, telescope string) (*TelescopeInfo, error) {
	const query = `SELECT teleid, nickname, csid0 FROM telescopes WHERE nickname = $1`

	var info TelescopeInfo
	if err := s.db.GetContext(ctx, &info, query, telescope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewErrorf(common.NotFoundError, "telescope %q is not in the schedule database", telescope)
		}
		return nil, queryError("query telescope info", err)
	}
	return &info, nil
}

// GetPublicDates returns the public date of each observer's run on the night.
func (s *Schedule) GetPublicDates(ctx context.Context, telescope string, night time.Time, observerIDs []int) ([]backend.PublicDate, error) {
	if len(observerIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT o.obid, r.publicdate
	FROM observers o, runs r, teledate td, telescopes t
	WHERE o.obid IN (?)
	  AND t.nickname = ?
	  AND td.date = ?
	  AND r.obid = o.obid
	  AND td.runid = r.runid
	  AND t.teleid = td.teleid`, observerIDs, telescope, types.FormatDate(night))
	if err != nil {
		return nil, queryError("build public date query", err)
	}

	var rows []publicDateRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, queryError("query public dates", err)
	}

	result := make([]backend.PublicDate, 0, len(rows))
	for _, r := range rows {
		pd := backend.PublicDate{ObserverID: r.ObserverID}
		if r.PublicDate.Valid {
			d := types.Truncate(r.PublicDate.Time)
			pd.Date = &d
		}
		result = append(result, pd)
	}
	return result, nil
}

// ComputeOwnerhint resolves an ownerhint against the runs scheduled on the
// telescope that night. "all-observers" selects every run, "public" is the
// public user, and any other hint selects runs whose ownerhint matches it
// case-insensitively. A hint matching no run is the unknown user.
func (s *Schedule) ComputeOwnerhint(ctx context.Context, night time.Time, telescope, ownerhint string) ([]int, []string, error) {
	if strings.EqualFold(ownerhint, backend.PublicOwnerhint) {
		return []int{types.PublicUser}, nil, nil
	}

	info, err := s.GetTelescopeInfo(ctx, telescope)
	if err != nil {
		return nil, nil, err
	}

	query := `SELECT r.obid, r.coverid
	FROM teledate td JOIN runs r ON td.runid = r.runid
	WHERE td.teleid = $1 AND td.date = $2`
	args := []interface{}{info.TeleID, types.FormatDate(night)}
	if ownerhint != backend.AllObservers && ownerhint != "" {
		query += ` AND lower(r.ownerhint) = lower($3)`
		args = append(args, ownerhint)
	}
	query += ` ORDER BY r.runid`

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, queryError("query ownerhint runs", err)
	}

	logger.Debugf(actor, "ComputeOwnerhint", "%s %s %q: %d runs", telescope, types.FormatDate(night), ownerhint, len(rows))

	if len(rows) == 0 {
		return []int{types.UnknownUser}, nil, nil
	}

	var observers []int
	var covers []string
	seenObs := make(map[int]bool)
	seenCover := make(map[string]bool)
	for _, r := range rows {
		if !seenObs[r.ObserverID] {
			seenObs[r.ObserverID] = true
			observers = append(observers, r.ObserverID)
		}
		if !r.CoverID.Valid {
			continue
		}
		// a run may list several cover sheets separated by whitespace
		for _, c := range strings.Fields(r.CoverID.String) {
			if !seenCover[c] {
				seenCover[c] = true
				covers = append(covers, c)
			}
		}
	}

	return observers, covers, nil
}

// GetKeywordOwnerhints delegates to the configured keyword source.
func (s *Schedule) GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]backend.KeywordOwnerhint, error) {
	if s.keywords == nil {
		return nil, common.NewError(common.Misconfiguration, "no keyword ownerhint source configured")
	}
	return s.keywords.GetKeywordOwnerhints(ctx, telescope, night)
}
