//
//  Copyright © Manetu Inc. All rights reserved.
//

package mock

import (
	"strconv"
	"time"

	"github.com/manetu/archiveauth/pkg/core/types"
)

// YAML gives us dates as strings or time.Time depending on the quoting, and
// numbers as int or float64 depending on how viper got them.

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case string:
		for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
			if t, err := time.ParseInLocation(layout, x, time.UTC); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func sameNight(v interface{}, night time.Time) bool {
	t, ok := toTime(v)
	return ok && types.Truncate(t).Equal(types.Truncate(night))
}

func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		i, err := strconv.Atoi(x)
		return i, err == nil
	}
	return 0, false
}

func toIntArray(v interface{}) []int {
	coll, _ := v.([]interface{})
	var result []int
	for _, item := range coll {
		if i, ok := toInt(item); ok {
			result = append(result, i)
		}
	}
	return result
}

func toStringArray(v interface{}) []string {
	coll, _ := v.([]interface{})
	var result []string
	for _, item := range coll {
		switch x := item.(type) {
		case string:
			result = append(result, x)
		case int:
			result = append(result, strconv.Itoa(x))
		}
	}
	return result
}
