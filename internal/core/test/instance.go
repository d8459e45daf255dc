//
//  Copyright © Manetu Inc. All rights reserved.
//

package test

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/manetu/archiveauth/internal/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core"
	pkgaccesslog "github.com/manetu/archiveauth/pkg/core/accesslog"
	"github.com/manetu/archiveauth/pkg/core/config"
	"github.com/manetu/archiveauth/pkg/core/options"
)

// TestConfigFilename is the name of the test configuration file (without extension).
const TestConfigFilename = "aauth-config"

// GetTestdataPath returns the absolute path to the testdata directory.
// It is computed from this source file so tests work from any working directory.
func GetTestdataPath() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "testdata"
	}
	// internal/core/test/instance.go -> project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(thisFile))))
	return filepath.Join(projectRoot, "testdata")
}

// GetArchivePath returns the absolute path to the test archive.
func GetArchivePath() string {
	return filepath.Join(GetTestdataPath(), "archive")
}

// SetupTestConfig points AAUTH_CONFIG_PATH and AAUTH_CONFIG_FILENAME at the
// test configuration and reloads it.
func SetupTestConfig() error {
	if err := os.Setenv(config.ConfigPathEnv, GetTestdataPath()); err != nil {
		return err
	}
	if err := os.Setenv(config.ConfigFileNameEnv, TestConfigFilename); err != nil {
		return err
	}
	config.ResetConfig()
	return nil
}

// NewTestAuthEngine instantiates an engine suitable for unit-testing, backed by
// the mock fixtures of the test configuration. Decision records are delivered
// on the returned channel, which holds up to depth records.
func NewTestAuthEngine(depth int, opts ...options.EngineOptionsFunc) (core.AuthEngine, chan *pkgaccesslog.DecisionRecord, error) {
	if err := SetupTestConfig(); err != nil {
		return nil, nil, err
	}

	ch := make(chan *pkgaccesslog.DecisionRecord, depth)
	opts = append([]options.EngineOptionsFunc{options.WithAccessLog(accesslog.NewChannelLogger(ch))}, opts...)
	engine, err := core.NewAuthEngine(opts...)
	if err != nil {
		return nil, nil, err
	}

	return engine, ch, nil
}
