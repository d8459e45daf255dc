//
//  Copyright © Manetu Inc. All rights reserved.
//

package identify

import (
	"fmt"
	"io"
	"os"

	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func readInput(cmd *cli.Command, path string) ([]byte, error) {
	if path == "-" || path == "" {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// parseFiles accepts either a YAML list of file records or a single record.
func parseFiles(data []byte) ([]*types.FileMetadata, error) {
	var files []*types.FileMetadata
	if err := yaml.Unmarshal(data, &files); err == nil {
		return files, nil
	}

	var f types.FileMetadata
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	return []*types.FileMetadata{&f}, nil
}
