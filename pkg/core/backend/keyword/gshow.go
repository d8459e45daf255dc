//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package keyword reads OWNRHINT keyword history recorded at the telescopes.
//
// The history is kept by the observatory's keyword archiver and is only
// reachable through its gshow command line tool, which [Gshow] runs once per
// telescope and night.
package keyword

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/backend"
	"github.com/manetu/archiveauth/pkg/core/config"
)

var logger = logging.GetLogger("archiveauth.backend.keyword")

const (
	actor   = "backend.keyword"
	keyword = "OWNRHINT"
	undef   = "<undef>"
)

// Gshow implements [backend.KeywordSource] by running gshow.
type Gshow struct {
	path     string
	timeout  time.Duration
	services map[string]string
}

// NewGshow creates a keyword source from explicit settings. services maps a
// telescope to the keyword service holding its OWNRHINT history.
func NewGshow(path string, timeout time.Duration, services map[string]string) *Gshow {
	svc := make(map[string]string, len(services))
	for k, v := range services {
		svc[strings.ToLower(k)] = v
	}
	return &Gshow{path: path, timeout: timeout, services: svc}
}

// NewGshowFromConfig creates a keyword source from the schedule.gshow settings.
func NewGshowFromConfig() *Gshow {
	c := config.GetGshow()
	return NewGshow(c.Path, c.Timeout, c.Services)
}

// Command returns the gshow argument list for a service and night.
func (g *Gshow) Command(service string, night time.Time) []string {
	return []string{
		g.path, "-s", service, keyword,
		"-date", night.Format("2006-01-02") + " 12:00:00",
		"-window", "24hr",
		"-resolution", "0",
		"-timeformat", "%s",
		"-format", "%.0s%s%.0s",
		"-noredi",
		"-dbuser", "user",
	}
}

// GetKeywordOwnerhints runs gshow for the 24 hours starting at noon of the
// observing night and returns the recorded ownerhints sorted by time.
func (g *Gshow) GetKeywordOwnerhints(ctx context.Context, telescope string, night time.Time) ([]backend.KeywordOwnerhint, error) {
	service, ok := g.services[strings.ToLower(telescope)]
	if !ok {
		return nil, common.NewErrorf(common.Misconfiguration, "no keyword service configured for telescope %q", telescope)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := g.Command(service, night)
	logger.Infof(actor, "GetKeywordOwnerhints", "Calling %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204 -- tool path comes from trusted config
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, common.NewErrorf(common.ExternalServiceError, "gshow timed out after %s", g.timeout)
		}
		return nil, common.NewErrorf(common.ExternalServiceError, "failed to run gshow: %v", err)
	}

	logger.Debugf(actor, "GetKeywordOwnerhints", "gshow output:\n%s", out.String())
	return ParseOutput(out.Bytes()), nil
}

// ParseOutput parses gshow output lines of the form "<unix time> <ownerhint>".
// Lines that do not fit and "<undef>" values are skipped.
func ParseOutput(data []byte) []backend.KeywordOwnerhint {
	var results []backend.KeywordOwnerhint

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 2 {
			logger.SysDebugf("Ignoring unrecognized line: %q", line)
			continue
		}
		if fields[1] == undef {
			logger.SysDebugf("Ignoring <undef> line: %q", line)
			continue
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			logger.SysDebugf("Ignoring unrecognized line: %q: %v", line, err)
			continue
		}
		results = append(results, backend.KeywordOwnerhint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Ownerhint: fields[1],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results
}
