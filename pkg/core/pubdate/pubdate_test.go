//
//  Copyright © Manetu Inc. All rights reserved.
//

package pubdate

import (
	"testing"
	"time"

	"github.com/manetu/archiveauth/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParsePeriodInvalid(t *testing.T) {
	tests := []struct {
		in       string
		contains string
	}{
		{"year", "Invalid proprietary period"},
		{"", "Invalid proprietary period"},
		{"3 to 4 years", "Invalid proprietary period"},
		{"a year", "does not contain a valid integer"},
		{"1.1 years", "does not contain a valid integer"},
		{"-1 years", "must be positive"},
		{"0 days", "must be positive"},
		{"1 centon", "Incorrect proprietary period units"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParsePeriod(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.True(t, common.IsCode(err, common.ParseError))
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{"1 year", Period{1, Years}},
		{"3 Years", Period{3, Years}},
		{"18 MONTHS", Period{18, Months}},
		{"  30   days ", Period{30, Days}},
		{"1 Day", Period{1, Days}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "18 months", Period{18, Months}.String())
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		file   time.Time
		period string
		want   time.Time
	}{
		{"one year", date(2023, 1, 10), "1 year", date(2024, 1, 10)},
		{"three years", date(2023, 1, 10), "3 Years", date(2026, 1, 10)},
		{"one month", date(2023, 1, 10), "1 month", date(2023, 2, 10)},
		{"six months", date(2023, 1, 10), "6 Months", date(2023, 7, 10)},
		{"28 months", date(2023, 1, 10), "28 months", date(2025, 5, 10)},
		{"one day", date(2023, 1, 10), "1 Day", date(2023, 1, 11)},
		{"30 days", date(2023, 1, 10), "30 days", date(2023, 2, 9)},

		{"day into march", date(2023, 2, 28), "1 day", date(2023, 3, 1)},
		{"leap day", date(2024, 2, 28), "1 day", date(2024, 2, 29)},
		{"over leap day", date(2024, 2, 28), "2 Days", date(2024, 3, 1)},
		{"leap day plus a year", date(2024, 2, 29), "1 Year", date(2025, 3, 1)},
		{"leap day plus four years", date(2024, 2, 29), "4 years", date(2028, 2, 29)},
		{"jan 31 plus a month", date(2024, 1, 31), "1 Month", date(2024, 3, 1)},
		{"jan 31 plus two months", date(2024, 1, 31), "2 months", date(2024, 3, 31)},
		{"dec 31 plus a month", date(2024, 12, 31), "1 month", date(2025, 1, 31)},
		{"dec 31 plus 13 months", date(2024, 12, 31), "13 months", date(2026, 1, 31)},
		{"dec 31 plus a day", date(2024, 12, 31), "1 day", date(2025, 1, 1)},
		{"nov 30 plus 3 months rolls the year", date(2024, 11, 30), "3 months", date(2025, 3, 1)},
		{"time of day ignored", time.Date(2023, 1, 10, 23, 59, 0, 0, time.UTC), "1 year", date(2024, 1, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateString(tt.file, tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateOverflowIntoNextYear(t *testing.T) {
	// Oct 31 + 1 month: Nov has 30 days so the result is Dec 1
	assert.Equal(t, date(2024, 12, 1), Calculate(date(2024, 10, 31), Period{1, Months}))
	// Dec 31 + 11 months lands on Nov 31, which rolls into Dec 1
	assert.Equal(t, date(2025, 12, 1), Calculate(date(2024, 12, 31), Period{11, Months}))
}

func TestCalculateStringError(t *testing.T) {
	_, err := CalculateString(date(2024, 1, 1), "forever")
	assert.Error(t, err)
}
