//
//  Copyright © Manetu Inc. All rights reserved.
//

package identify

import (
	"context"
	"fmt"
	"time"

	"github.com/manetu/archiveauth/cmd/aauth/common"
	pkgcommon "github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/urfave/cli/v3"
)

// Explanation is the --explain view of one decision.
type Explanation struct {
	Filename   string           `yaml:"filename"`
	Night      string           `yaml:"night,omitempty"`
	Visibility types.Visibility `yaml:"visibility"`
	Rule       string           `yaml:"rule"`
	FrameType  types.FrameType  `yaml:"frame_type,omitempty"`
	Owners     []int            `yaml:"owners,omitempty"`
	Covers     []string         `yaml:"covers,omitempty"`
	PublicDate string           `yaml:"public_date,omitempty"`
	Reasons    []string         `yaml:"reasons"`
}

func explain(a *core.Access) Explanation {
	x := Explanation{
		Filename:   a.File.Filename,
		Visibility: a.Visibility,
		Rule:       a.Rule,
		FrameType:  a.File.FrameType,
		Owners:     a.OwnerIDs,
		Covers:     a.CoverIDs,
		Reasons:    a.Reason,
	}
	if !a.ObservingNight.IsZero() {
		x.Night = types.FormatDate(a.ObservingNight)
	}
	if a.PublicDate != nil {
		x.PublicDate = types.FormatDate(*a.PublicDate)
	}
	return x
}

// Execute decides access for every file record read from --input and prints
// the updated records as YAML. With --explain it prints the rule trail of
// each decision instead, leaving the records untouched.
func Execute(ctx context.Context, cmd *cli.Command) error {
	data, err := readInput(cmd, cmd.String("input"))
	if err != nil {
		return err
	}

	files, err := parseFiles(data)
	if err != nil {
		return err
	}

	engine, err := common.NewCliAuthEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	w := common.Stdout(cmd)

	if cmd.Bool("explain") {
		result := make([]Explanation, 0, len(files))
		for _, f := range files {
			result = append(result, explain(engine.IdentifyAccess(ctx, f)))
		}
		return pkgcommon.WriteYAML(w, result)
	}

	start := time.Now()
	for _, f := range files {
		engine.SetAuthMetadata(ctx, f)
	}
	if err := pkgcommon.WriteYAML(w, files); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	_, _ = fmt.Fprintf(common.Stderr(cmd), "decided %d files in %v\n", len(files), time.Since(start).Round(time.Millisecond))
	return nil
}
