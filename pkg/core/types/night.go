//
//  Copyright © Manetu Inc. All rights reserved.
//

package types

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Header cards carrying the exposure start and end in UTC.
const (
	HeaderDateBeg = "DATE-BEG"
	HeaderDateEnd = "DATE-END"

	headerTimeLayout = "2006-01-02T15:04:05.999999"
)

// nightZone is "Lick standard time": UTC-8 shifted back another 12 hours so
// that an observing night runs noon to noon.
var nightZone = time.FixedZone("LST", -(8+12)*60*60)

// ObservingNight returns the observing night an instant belongs to.
func ObservingNight(t time.Time) time.Time {
	return Truncate(t.In(nightZone))
}

// NightFromPath extracts the observing night and instrument directory from an
// archive path of the form .../YYYY-MM/DD/<instrument_dir>/<name>.
func NightFromPath(p string) (night time.Time, instrumentDir string, err error) {
	parts := strings.Split(path.Clean(filepath.ToSlash(p)), "/")
	if len(parts) < 4 {
		return time.Time{}, "", errors.Errorf("path %q is not of the form YYYY-MM/DD/instrument/file", p)
	}

	n := len(parts)
	month, day, instr := parts[n-4], parts[n-3], parts[n-2]

	night, err = time.Parse("2006-01/02", month+"/"+day)
	if err != nil || len(month) != 7 || len(day) != 2 {
		return time.Time{}, "", errors.Errorf("path %q does not contain a YYYY-MM/DD date", p)
	}
	if instr == "" || instr == "." || instr == ".." {
		return time.Time{}, "", errors.Errorf("path %q has no instrument directory", p)
	}

	return night, instr, nil
}

// BeginEndTimes returns the exposure start and end for a file. Explicit
// DateBeg/DateEnd fields win; otherwise DATE-BEG/DATE-END header cards are
// parsed. Either value is nil when unavailable or unparseable.
func (f *FileMetadata) BeginEndTimes() (beg, end *time.Time) {
	beg, end = f.DateBeg, f.DateEnd
	if beg == nil {
		beg = parseHeaderTime(f.Header[HeaderDateBeg])
	}
	if end == nil {
		end = parseHeaderTime(f.Header[HeaderDateEnd])
	}
	return beg, end
}

func parseHeaderTime(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.ParseInLocation(headerTimeLayout, v, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
