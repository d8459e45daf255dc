//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package pubdate computes the date a file leaves its proprietary period.
//
// Periods are written as "<n> <unit>", for example "18 months" or "2 Years".
// Day periods use plain calendar addition. Month and year periods move the
// calendar month; when the original day does not exist in the target month the
// result is the first day of the following month, so 2024-01-31 plus one month
// is 2024-03-01 and 2024-02-29 plus one year is 2025-03-01.
package pubdate

import (
	"strconv"
	"strings"
	"time"

	"github.com/manetu/archiveauth/pkg/common"
)

// Unit is the unit of a proprietary period.
type Unit int

// Period units.
const (
	Days Unit = iota
	Months
	Years
)

func (u Unit) String() string {
	switch u {
	case Days:
		return "days"
	case Months:
		return "months"
	default:
		return "years"
	}
}

// Period is a parsed proprietary period.
type Period struct {
	Value int
	Unit  Unit
}

func (p Period) String() string {
	return strconv.Itoa(p.Value) + " " + p.Unit.String()
}

var units = map[string]Unit{
	"day":    Days,
	"days":   Days,
	"month":  Months,
	"months": Months,
	"year":   Years,
	"years":  Years,
}

// ParsePeriod parses "<positive integer> <unit>". Units are case-insensitive
// and may be singular or plural.
func ParsePeriod(s string) (Period, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Period{}, common.NewErrorf(common.ParseError, "Invalid proprietary period %q", s)
	}

	value, err := strconv.Atoi(fields[0])
	if err != nil {
		return Period{}, common.NewErrorf(common.ParseError, "Proprietary period does not contain a valid integer: %q", s)
	}
	if value < 1 {
		return Period{}, common.NewErrorf(common.ParseError, "Proprietary period must be positive: %q", s)
	}

	unit, ok := units[strings.ToLower(fields[1])]
	if !ok {
		return Period{}, common.NewErrorf(common.ParseError, "Incorrect proprietary period units given: %q", s)
	}

	return Period{Value: value, Unit: unit}, nil
}

// Calculate returns the public date for a file observed on fileDate. Only the
// calendar day of fileDate is used; the result is midnight UTC.
func Calculate(fileDate time.Time, p Period) time.Time {
	year, month, day := fileDate.Date()

	if p.Unit == Days {
		return time.Date(year, month, day+p.Value, 0, 0, 0, 0, time.UTC)
	}

	total := p.Value
	if p.Unit == Years {
		total *= 12
	}

	// months since year 0, so carrying into the year is plain division
	m := int(month) - 1 + total
	year += m / 12
	month = time.Month(m%12 + 1)

	if day > daysIn(year, month) {
		// roll to the 1st of the next month rather than clamping to the last day
		day = 1
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CalculateString parses spec and calculates the public date.
func CalculateString(fileDate time.Time, spec string) (time.Time, error) {
	p, err := ParsePeriod(spec)
	if err != nil {
		return time.Time{}, err
	}
	return Calculate(fileDate, p), nil
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
