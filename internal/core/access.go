//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"fmt"
	"time"

	"github.com/manetu/archiveauth/pkg/core/types"
)

// Access is the decision being built for one file. Rules mutate it in order;
// Reason only ever grows.
type Access struct {
	ObservingNight time.Time
	File           *types.FileMetadata
	Visibility     types.Visibility
	// OwnerIDs and CoverIDs keep first-seen order without duplicates.
	OwnerIDs   []int
	CoverIDs   []string
	Reason     []string
	PublicDate *time.Time
	// Rule is the tag of the rule that last changed Visibility.
	Rule string
}

func newAccess(f *types.FileMetadata) *Access {
	return &Access{
		File:       f,
		Visibility: types.VisibilityDefault,
	}
}

// AddReason appends "Rule <tag>: <text>" to the reason trail.
func (a *Access) AddReason(tag, format string, args ...interface{}) {
	a.Reason = append(a.Reason, fmt.Sprintf("Rule %s: ", tag)+fmt.Sprintf(format, args...))
}

// decide sets the visibility and remembers which rule did it.
func (a *Access) decide(tag string, v types.Visibility) {
	a.Visibility = v
	a.Rule = tag
}

// decided reports whether a rule has left DEFAULT.
func (a *Access) decided() bool {
	return a.Visibility != types.VisibilityDefault
}

func addOwner(ids []int, id int) []int {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

func addCover(ids []string, id string) []string {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

func containsID(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []int, id int) []int {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
