//
//  Copyright © Manetu Inc. All rights reserved.
//

package override

import (
	"context"
	"fmt"
	"io"

	"github.com/manetu/archiveauth/cmd/aauth/common"
	pkgcommon "github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/override"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/urfave/cli/v3"
)

// CheckResult represents the result of parsing a single override access file
type CheckResult struct {
	File  string
	Rules int
	Err   error
}

// ExecuteCheck parses each override access file given with --file and reports
// whether it is valid. It exits with status 1 if any file fails.
func ExecuteCheck(ctx context.Context, cmd *cli.Command) error {
	w := common.Stdout(cmd)
	results := checkFiles(cmd.StringSlice("file"))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "%s: ERROR (%v)\n", r.File, r.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s: OK (%d rules)\n", r.File, r.Rules)
	}

	if failed > 0 {
		_, _ = fmt.Fprintf(w, "\n%d of %d files failed\n", failed, len(results))
		return cli.Exit("", 1)
	}
	return nil
}

func checkFiles(files []string) []CheckResult {
	results := make([]CheckResult, 0, len(files))
	for _, p := range files {
		f, err := override.ParseFile(p)
		r := CheckResult{File: p, Err: err}
		if f != nil {
			r.Rules = len(f.Rules)
		}
		results = append(results, r)
	}
	return results
}

// ExecuteMatch prints the rule that governs a file name given the override
// access files of its directory.
func ExecuteMatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one file name, got %d", cmd.Args().Len())
	}

	files, err := parseFiles(cmd.StringSlice("file"))
	if err != nil {
		return err
	}

	w := common.Stdout(cmd)
	rule := override.FindMatchingRule(files, cmd.Args().First())
	if rule == nil {
		_, _ = fmt.Fprintln(w, "no matching rule")
		return nil
	}
	_, _ = fmt.Fprintln(w, rule.String())
	return nil
}

type ruleView struct {
	Pattern    string   `yaml:"pattern"`
	Expanded   []string `yaml:"expanded,omitempty"`
	Obstype    string   `yaml:"obstype,omitempty"`
	Ownerhints []string `yaml:"ownerhints,omitempty"`
}

type fileView struct {
	Path       string     `yaml:"path"`
	Night      string     `yaml:"night"`
	Instrument string     `yaml:"instrument_dir"`
	Sequence   int        `yaml:"sequence_id"`
	Rules      []ruleView `yaml:"rules"`
}

// ExecuteShow prints the parsed form of each override access file as YAML.
func ExecuteShow(ctx context.Context, cmd *cli.Command) error {
	files, err := parseFiles(cmd.StringSlice("file"))
	if err != nil {
		return err
	}
	return show(common.Stdout(cmd), files)
}

func show(w io.Writer, files []*override.File) error {
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		v := fileView{
			Path:       f.RelPath(),
			Night:      types.FormatDate(f.ObservingNight),
			Instrument: f.InstrumentDir,
			Sequence:   f.SequenceID,
			Rules:      make([]ruleView, 0, len(f.Rules)),
		}
		for _, r := range f.Rules {
			rv := ruleView{Pattern: r.Pattern, Ownerhints: r.Ownerhints}
			if len(r.MatchPatterns) > 1 {
				rv.Expanded = r.MatchPatterns
			}
			if r.FrameType != nil {
				rv.Obstype = string(*r.FrameType)
			}
			v.Rules = append(v.Rules, rv)
		}
		views = append(views, v)
	}
	return pkgcommon.WriteYAML(w, views)
}

func parseFiles(paths []string) ([]*override.File, error) {
	files := make([]*override.File, 0, len(paths))
	for _, p := range paths {
		f, err := override.ParseFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
