//
//  Copyright © Manetu Inc. All rights reserved.
//

package sqldb

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

// Schema creates the table backing [OverrideStore].
const Schema = `CREATE TABLE IF NOT EXISTS override_access_rules (
	night          DATE    NOT NULL,
	instrument_dir TEXT    NOT NULL,
	sequence_id    INTEGER NOT NULL,
	line_no        INTEGER NOT NULL,
	pattern        TEXT    NOT NULL,
	obstype        TEXT,
	ownerhints     TEXT,
	PRIMARY KEY (night, instrument_dir, sequence_id, line_no)
)`

type ruleRow struct {
	Night         time.Time      `db:"night"`
	InstrumentDir string         `db:"instrument_dir"`
	SequenceID    int            `db:"sequence_id"`
	LineNo        int            `db:"line_no"`
	Pattern       string         `db:"pattern"`
	Obstype       sql.NullString `db:"obstype"`
	Ownerhints    sql.NullString `db:"ownerhints"`
}

// StoreFactory creates [OverrideStore] instances from the overrides.db configuration.
type StoreFactory struct{}

// NewStoreFactory creates a [backend.StoreFactory] for the SQL override store.
func NewStoreFactory() backend.StoreFactory {
	return &StoreFactory{}
}

// NewStore connects to the overrides database.
func (f *StoreFactory) NewStore() (backend.OverrideRuleStore, error) {
	cfg, err := config.GetOverridesDB()
	if err != nil {
		return nil, err
	}
	db, err := Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return NewOverrideStore(db), nil
}

// OverrideStore implements [backend.OverrideRuleStore] on an
// override_access_rules table. Each rule is a row whose line_no keeps the
// rule order within its file; line_no 0 records the file itself so that a
// file without rules still supersedes older ones.
type OverrideStore struct {
	db *sqlx.DB
}

// NewOverrideStore wraps an open database connection.
func NewOverrideStore(db *sqlx.DB) *OverrideStore {
	return &OverrideStore{db: db}
}

// Close releases the database connection.
func (s *OverrideStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the override_access_rules table when missing.
func (s *OverrideStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return queryError("create override_access_rules", err)
	}
	return nil
}

// GetRelatedOverrideFiles rebuilds the override files stored for a directory.
func (s *OverrideStore) GetRelatedOverrideFiles(ctx context.Context, key backend.DirectoryKey) ([]*override.File, error) {
	const query = `SELECT night, instrument_dir, sequence_id, line_no, pattern, obstype, ownerhints
	FROM override_access_rules
	WHERE night = $1 AND instrument_dir = $2
	ORDER BY sequence_id, line_no`

	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, query, types.FormatDate(key.Night), key.InstrumentDir); err != nil {
		return nil, queryError("query override rules", err)
	}

	var files []*override.File
	var current *override.File
	for _, r := range rows {
		if current == nil || current.SequenceID != r.SequenceID {
			current = &override.File{
				ObservingNight: types.Truncate(key.Night),
				InstrumentDir:  key.InstrumentDir,
				SequenceID:     r.SequenceID,
			}
			files = append(files, current)
		}
		if r.LineNo == 0 {
			continue
		}

		rule, err := r.rule()
		if err != nil {
			return nil, errors.Wrapf(err, "stored rule %d of %s", r.LineNo, current)
		}
		current.Rules = append(current.Rules, rule)
	}

	return files, nil
}

func (r ruleRow) rule() (*override.Rule, error) {
	if r.Obstype.Valid && r.Obstype.String != "" {
		ft, err := types.ParseFrameType(r.Obstype.String)
		if err != nil {
			return nil, common.NewErrorf(common.ParseError, "%v", err)
		}
		return override.NewRule(r.Pattern, &ft, nil)
	}
	return override.NewRule(r.Pattern, nil, strings.Fields(r.Ownerhints.String))
}

// SaveOverrideFiles replaces every rule stored for key with the rules of
// files, inside one transaction. Files are written in sequence order.
func (s *OverrideStore) SaveOverrideFiles(ctx context.Context, key backend.DirectoryKey, files []*override.File) (err error) {
	sorted := append([]*override.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SequenceID < sorted[j].SequenceID })

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return queryError("begin override rule update", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	night := types.FormatDate(key.Night)
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM override_access_rules WHERE night = $1 AND instrument_dir = $2`,
		night, key.InstrumentDir); err != nil {
		return queryError("delete override rules", err)
	}

	const insert = `INSERT INTO override_access_rules
	(night, instrument_dir, sequence_id, line_no, pattern, obstype, ownerhints)
	VALUES (:night, :instrument_dir, :sequence_id, :line_no, :pattern, :obstype, :ownerhints)`

	for _, f := range sorted {
		marker := ruleRow{
			Night:         types.Truncate(key.Night),
			InstrumentDir: key.InstrumentDir,
			SequenceID:    f.SequenceID,
		}
		if _, err = tx.NamedExecContext(ctx, insert, marker); err != nil {
			return queryError("insert override file", err)
		}

		for i, rule := range f.Rules {
			row := ruleRow{
				Night:         types.Truncate(key.Night),
				InstrumentDir: key.InstrumentDir,
				SequenceID:    f.SequenceID,
				LineNo:        i + 1,
				Pattern:       rule.Pattern,
			}
			if rule.FrameType != nil {
				row.Obstype = sql.NullString{String: string(*rule.FrameType), Valid: true}
			} else {
				row.Ownerhints = sql.NullString{String: strings.Join(rule.Ownerhints, " "), Valid: true}
			}
			if _, err = tx.NamedExecContext(ctx, insert, row); err != nil {
				return queryError("insert override rule", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return queryError("commit override rule update", err)
	}

	logger.Infof(actor, "SaveOverrideFiles", "stored %d override files for %s", len(sorted), key)
	return nil
}
