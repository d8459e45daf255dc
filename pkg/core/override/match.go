//
//  Copyright © Manetu Inc. All rights reserved.
//

package override

// FindMatchingRule returns the rule governing filename, or nil.
//
// Only the file with the highest sequence id is consulted; lower sequence
// files are superseded even when the newest file has no rules. Among files
// sharing the highest id the first in files wins. Within that file rules are
// tried in order and the first match wins.
func FindMatchingRule(files []*File, filename string) *Rule {
	var newest *File
	for _, f := range files {
		if f == nil {
			continue
		}
		if newest == nil || f.SequenceID > newest.SequenceID {
			newest = f
		}
	}
	if newest == nil {
		return nil
	}

	var match *Rule
	for _, r := range newest.Rules {
		if !r.Match(filename) {
			continue
		}
		if match == nil {
			match = r
			logger.Debugf(filename, "match", "matches access rule %q from %s", r, newest)
			continue
		}
		logger.Debugf(filename, "match", "matched multiple access rules; rule %q from %s ignored", r, newest)
	}

	return match
}
