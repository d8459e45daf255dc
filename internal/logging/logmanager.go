//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

//lint:file-ignore U1001 Ignore all unused code, it's external

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// defaultModule is the module name used in a level string to set the default level
const defaultModule = "."

// LogManager keeps track of all instantiated loggers
type LogManager struct {
	loggers  map[string]*Logger
	explicit map[string]bool
	defLevel zapcore.Level
}

var (
	manager *LogManager
	mu      sync.RWMutex
	once    sync.Once
)

// resetForTesting resets the manager state - only for testing
func resetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	manager = nil
	once = sync.Once{}
}

func initManager() {
	manager = &LogManager{
		loggers:  make(map[string]*Logger),
		explicit: make(map[string]bool),
		defLevel: zapcore.InfoLevel,
	}
}

// GetLogger returns the logger for the specified module, creating it at the
// current default level on first use.
func GetLogger(module string) *Logger {
	once.Do(initManager)

	mu.RLock()
	l := manager.loggers[module]
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()

	if l = manager.loggers[module]; l != nil {
		return l
	}

	l = newLogger(module)
	l.SetLevel(manager.defLevel)
	manager.loggers[module] = l

	return l
}

// parseLevel converts a level name to a zapcore.Level. "trace" maps to debug.
func parseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// parseLevelSpec splits "mod1:debug;mod2:error;.:info" into per-module levels.
// Entries without a ':' are skipped.
func parseLevelSpec(spec string) (map[string]zapcore.Level, error) {
	spec = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n':
			return -1
		}
		return r
	}, spec)

	levels := make(map[string]zapcore.Level)
	for _, entry := range strings.Split(spec, ";") {
		mod, name, ok := strings.Cut(entry, ":")
		if !ok || mod == "" {
			continue
		}
		level, err := parseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mod, err)
		}
		levels[mod] = level
	}
	return levels, nil
}

// UpdateLogLevels updates log levels from a string of the form
// "mod1:debug;mod2:error;.:info". Whitespace is ignored. The "." entry sets the
// default level, which is also applied to every logger without an explicit level.
func UpdateLogLevels(spec string) error {
	once.Do(initManager)

	levels, err := parseLevelSpec(spec)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	for mod, level := range levels {
		if mod == defaultModule {
			continue
		}
		l := manager.loggers[mod]
		if l == nil {
			l = newLogger(mod)
			manager.loggers[mod] = l
		}
		l.SetLevel(level)
		manager.explicit[mod] = true
	}

	if level, ok := levels[defaultModule]; ok {
		manager.defLevel = level
		for mod, l := range manager.loggers {
			if _, set := levels[mod]; !set && !manager.explicit[mod] {
				l.SetLevel(level)
			}
		}
	}

	return nil
}
