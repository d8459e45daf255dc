//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package types defines the records exchanged with the authorization engine:
// the file metadata record it decides on, and the enums describing frame type
// and visibility.
package types

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Sentinel observer ids returned by the schedule service. They are outside the
// range of real observer ids.
const (
	// UnknownUser means the schedule could not identify an observer.
	UnknownUser = -101
	// PublicUser means the data belongs to the public.
	PublicUser = -100
)

// Public date bounds. A file with MaxPublicDate is never public until an
// operator intervenes.
var (
	MaxPublicDate = Date(9999, time.December, 31)
	MinPublicDate = Date(1970, time.January, 1)
)

// FrameType is the observation type of a frame.
type FrameType string

// Known frame types.
const (
	FrameDark        FrameType = "dark"
	FrameFlat        FrameType = "flat"
	FrameBias        FrameType = "bias"
	FrameScience     FrameType = "science"
	FrameArc         FrameType = "arc"
	FrameCalibration FrameType = "calibration"
	FrameFocus       FrameType = "focus"
	FrameUnknown     FrameType = "unknown"
)

var frameTypes = map[string]FrameType{
	"dark":        FrameDark,
	"flat":        FrameFlat,
	"bias":        FrameBias,
	"science":     FrameScience,
	"arc":         FrameArc,
	"calibration": FrameCalibration,
	"cal":         FrameCalibration,
	"focus":       FrameFocus,
	"unknown":     FrameUnknown,
}

// ParseFrameType converts a case-insensitive name into a FrameType. The
// abbreviation "cal" is accepted for calibration.
func ParseFrameType(s string) (FrameType, error) {
	if ft, ok := frameTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ft, nil
	}
	return "", errors.Errorf("unknown frame type %q", s)
}

// IsCalibration is true for every frame type other than science and unknown.
// Such frames are shared with all observers of the night.
func (f FrameType) IsCalibration() bool {
	return f != FrameScience && f != FrameUnknown && f != ""
}

// Visibility is the access verdict for a file.
type Visibility int

// Visibility values. DEFAULT means no rule has decided yet.
const (
	VisibilityDefault Visibility = iota
	VisibilityPublic
	VisibilityProprietary
	VisibilityUnknown
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "Public"
	case VisibilityProprietary:
		return "Proprietary"
	case VisibilityUnknown:
		return "Unknown"
	default:
		return "DEFAULT"
	}
}

// MarshalText encodes the visibility by name.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a visibility name, ignoring case.
func (v *Visibility) UnmarshalText(text []byte) error {
	for _, c := range []Visibility{VisibilityDefault, VisibilityPublic, VisibilityProprietary, VisibilityUnknown} {
		if strings.EqualFold(c.String(), string(text)) {
			*v = c
			return nil
		}
	}
	return errors.Errorf("unknown visibility %q", text)
}

// OwnerAccess grants one observer access to a file, with the reason trail that
// led to the grant.
type OwnerAccess struct {
	ObserverID int    `json:"obid" yaml:"obid"`
	Reason     string `json:"reason" yaml:"reason"`
}

// FileMetadata is the archive's record for one file. The engine reads the
// descriptive fields and rewrites FrameType, Coversheet, PublicDate and
// OwnerAccess.
type FileMetadata struct {
	// Filename is the archive relative path, YYYY-MM/DD/<instrument_dir>/<name>.
	Filename   string     `json:"filename" yaml:"filename"`
	Instrument string     `json:"instrument" yaml:"instrument"`
	Telescope  string     `json:"telescope" yaml:"telescope"`
	FrameType  FrameType  `json:"frame_type" yaml:"frame_type"`
	MTime      *time.Time `json:"mtime,omitempty" yaml:"mtime,omitempty"`
	DateBeg    *time.Time `json:"date_beg,omitempty" yaml:"date_beg,omitempty"`
	DateEnd    *time.Time `json:"date_end,omitempty" yaml:"date_end,omitempty"`
	// Header holds raw header cards. DATE-BEG and DATE-END are read from it
	// when DateBeg and DateEnd are not set.
	Header map[string]string `json:"header,omitempty" yaml:"header,omitempty"`

	Coversheet  string        `json:"coversheet,omitempty" yaml:"coversheet,omitempty"`
	PublicDate  time.Time     `json:"public_date" yaml:"public_date"`
	OwnerAccess []OwnerAccess `json:"owner_access" yaml:"owner_access"`
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time of day, keeping the calendar day t has in its own location.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
