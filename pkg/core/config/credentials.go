//
//  Copyright © Manetu Inc. All rights reserved.
//

package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/manetu/archiveauth/pkg/common"
)

// readUserInfoFile reads schedule database credentials from a text file. The
// first line containing a colon is taken as "username:password"; blank lines
// and lines without a colon are ignored.
func readUserInfoFile(path string) (user, password string, err error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from trusted config
	if err != nil {
		logger.SysErrorf("failed to read schedule db user information from %s: %v", path, err)
		return "", "", common.NewErrorf(common.Misconfiguration,
			"could not read schedule db user information; make sure %s exists, is readable, and contains '<username>:<password>'", path)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		user, password, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		return user, password, nil
	}
	if err := scanner.Err(); err != nil {
		return "", "", common.NewErrorf(common.Misconfiguration, "reading %s: %v", path, err)
	}

	return "", "", common.NewErrorf(common.Misconfiguration,
		"could not read schedule db user information; %s does not contain '<username>:<password>'", path)
}
