//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package override models operator-authored override access files.
//
// An override access file sits next to the data it governs, in
// YYYY-MM/DD/<instrument_dir>/override[.N].access, and holds one rule per line:
//
//	<pattern> obstype <frame type>
//	<pattern> access <ownerhint> [<ownerhint> ...]
//
// Blank lines and lines starting with '#' are ignored. Patterns use shell glob
// syntax and are matched against a file's base name.
package override

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/types"
)

// Rule keywords, scanned for in this order.
const (
	KeywordObstype = "obstype"
	KeywordAccess  = "access"
)

// Rule maps a filename pattern to either a frame type or a list of ownerhints.
// Exactly one of FrameType and Ownerhints is set. Rules are immutable once built.
type Rule struct {
	Pattern    string
	FrameType  *types.FrameType
	Ownerhints []string

	// MatchPatterns holds Pattern plus, for a pattern "A.B" whose A does not end
	// in '*', the expansion "A.*.B".
	MatchPatterns []string

	globs []glob.Glob
}

// NewRule builds a rule from its parts. Exactly one of frameType and
// ownerhints must be given.
func NewRule(pattern string, frameType *types.FrameType, ownerhints []string) (*Rule, error) {
	if pattern == "" {
		return nil, common.NewError(common.ParseError, "override rule has no pattern")
	}
	if frameType == nil && len(ownerhints) == 0 {
		return nil, common.NewErrorf(common.ParseError, "override rule %q needs an obstype value or a non-empty access list", pattern)
	}
	if frameType != nil && len(ownerhints) > 0 {
		return nil, common.NewErrorf(common.ParseError, "override rule %q has both an obstype and an access list", pattern)
	}

	r := &Rule{
		Pattern:       pattern,
		FrameType:     frameType,
		Ownerhints:    append([]string(nil), ownerhints...),
		MatchPatterns: expand(pattern),
	}

	for _, p := range r.MatchPatterns {
		g, err := glob.Compile(fnmatchToGlob(p))
		if err != nil {
			return nil, common.NewErrorf(common.ParseError, "override rule pattern %q: %v", pattern, err)
		}
		r.globs = append(r.globs, g)
	}

	return r, nil
}

// ParseRule parses one line of an override access file.
func ParseRule(line string) (*Rule, error) {
	keyword, pattern, value := "", "", ""
	for _, kw := range []string{KeywordObstype, KeywordAccess} {
		if i := strings.Index(line, kw); i >= 0 {
			keyword = kw
			pattern = strings.TrimSpace(line[:i])
			value = strings.TrimSpace(line[i+len(kw):])
			break
		}
	}

	switch keyword {
	case KeywordObstype:
		if value == "" {
			return nil, common.NewErrorf(common.ParseError, "unparseable line in override access file: %q: missing obstype value", line)
		}
		ft, err := types.ParseFrameType(value)
		if err != nil {
			return nil, common.NewErrorf(common.ParseError, "unparseable line in override access file: %q: %v", line, err)
		}
		r, err := NewRule(pattern, &ft, nil)
		if err != nil {
			return nil, common.NewErrorf(common.ParseError, "unparseable line in override access file: %q: %v", line, err)
		}
		return r, nil

	case KeywordAccess:
		r, err := NewRule(pattern, nil, strings.Fields(value))
		if err != nil {
			return nil, common.NewErrorf(common.ParseError, "unparseable line in override access file: %q: %v", line, err)
		}
		return r, nil
	}

	return nil, common.NewErrorf(common.ParseError, "unparseable line in override access file: %q", line)
}

// Match reports whether the base name of filename matches any of the rule's patterns.
func (r *Rule) Match(filename string) bool {
	name := path.Base(filepath.ToSlash(filename))
	for _, g := range r.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// String renders the rule as an override access file line.
func (r *Rule) String() string {
	if r.FrameType != nil {
		return r.Pattern + " " + KeywordObstype + " " + string(*r.FrameType)
	}
	return r.Pattern + " " + KeywordAccess + " " + strings.Join(r.Ownerhints, " ")
}

func expand(pattern string) []string {
	if strings.Count(pattern, ".") != 1 {
		return []string{pattern}
	}
	a, b, _ := strings.Cut(pattern, ".")
	if strings.HasSuffix(a, "*") {
		return []string{pattern}
	}
	return []string{pattern, a + ".*." + b}
}

// fnmatchToGlob escapes the characters gobwas/glob treats specially but shell
// globs do not, so that '{', '}' and '\' match literally.
func fnmatchToGlob(p string) string {
	var sb strings.Builder
	for _, c := range p {
		switch c {
		case '{', '}', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
