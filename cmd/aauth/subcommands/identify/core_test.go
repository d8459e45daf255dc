//
//  Copyright © Manetu Inc. All rights reserved.
//

package identify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/manetu/archiveauth/internal/core/test"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const input = `
- filename: 2012-01/18/shane/b1001.fits
  instrument: Kast Blue
  telescope: Shane
  frame_type: science
  date_beg: 2012-01-19T03:30:00Z
  date_end: 2012-01-19T04:30:00Z
- filename: 2012-01/20/shane/m4001.fits
  instrument: Kast Red
  telescope: Shane
  frame_type: science
`

// buildIdentifyTestCommand creates a CLI command structure for testing the identify command
func buildIdentifyTestCommand(out, errOut *bytes.Buffer, stdin string) *cli.Command {
	return &cli.Command{
		Name:      "aauth",
		Writer:    out,
		ErrWriter: errOut,
		Reader:    strings.NewReader(stdin),
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "trace"},
		},
		Commands: []*cli.Command{
			{
				Name: "identify",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}},
					&cli.BoolFlag{Name: "explain"},
					&cli.StringFlag{Name: "archive"},
					&cli.BoolFlag{Name: "schedule-db"},
					&cli.StringFlag{Name: "now"},
				},
				Action: Execute,
			},
		},
	}
}

func writeInput(t *testing.T) string {
	p := filepath.Join(t.TempDir(), "files.yaml")
	require.NoError(t, os.WriteFile(p, []byte(input), 0600))
	return p
}

func TestParseFiles(t *testing.T) {
	files, err := parseFiles([]byte(input))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, types.FrameScience, files[0].FrameType)
	require.NotNil(t, files[0].DateBeg)
	assert.Equal(t, time.Date(2012, time.January, 19, 3, 30, 0, 0, time.UTC), files[0].DateBeg.UTC())

	files, err = parseFiles([]byte("filename: 2012-01/18/nickel/n1.fits\ninstrument: Nickel\n"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Nickel", files[0].Instrument)

	_, err = parseFiles([]byte("filename: [unterminated"))
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	require.NoError(t, test.SetupTestConfig())

	var out, errOut bytes.Buffer
	cmd := buildIdentifyTestCommand(&out, &errOut, "")
	err := cmd.Run(context.Background(), []string{"aauth", "identify", "-i", writeInput(t), "--now", "2012-03-01"})
	require.NoError(t, err)

	var files []types.FileMetadata
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &files))
	require.Len(t, files, 2)

	assert.Equal(t, types.Date(2012, time.July, 18), files[0].PublicDate.UTC())
	require.Len(t, files[0].OwnerAccess, 1)
	assert.Equal(t, 35, files[0].OwnerAccess[0].ObserverID)
	assert.Equal(t, "c35", files[0].Coversheet)

	assert.Equal(t, types.Date(2013, time.January, 20), files[1].PublicDate.UTC())
	require.Len(t, files[1].OwnerAccess, 1)
	assert.Equal(t, 35, files[1].OwnerAccess[0].ObserverID)

	assert.Contains(t, errOut.String(), "decided 2 files")
}

func TestExecuteExplain(t *testing.T) {
	require.NoError(t, test.SetupTestConfig())

	var out, errOut bytes.Buffer
	cmd := buildIdentifyTestCommand(&out, &errOut, input)
	err := cmd.Run(context.Background(), []string{"aauth", "identify", "--explain", "-i", "-"})
	require.NoError(t, err)

	var result []Explanation
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &result))
	require.Len(t, result, 2)

	assert.Equal(t, "4a", result[0].Rule)
	assert.Equal(t, "2012-01-18", result[0].Night)
	assert.Equal(t, []int{35}, result[0].Owners)
	assert.Equal(t, []string{"c35"}, result[0].Covers)
	assert.Empty(t, result[0].PublicDate)

	assert.Equal(t, "1b/c/d", result[1].Rule)
	assert.Equal(t, []int{35}, result[1].Owners)
	assert.Contains(t, result[1].Reasons, "Rule 1b/c/d: Could not find observer for PI_JONES")
	assert.Contains(t, out.String(), "visibility: Proprietary")
}

func TestExecuteBadNow(t *testing.T) {
	require.NoError(t, test.SetupTestConfig())

	var out, errOut bytes.Buffer
	cmd := buildIdentifyTestCommand(&out, &errOut, input)
	err := cmd.Run(context.Background(), []string{"aauth", "identify", "--now", "March 1st"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --now")
}
