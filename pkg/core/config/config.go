//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides configuration management for the archive
// authorization engine using [Viper].
//
// Configuration can be provided via:
//   - YAML configuration files
//   - Environment variables with the AAUTH_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default the engine looks for aauth-config.yaml in the current directory.
// Override the location using environment variables:
//
//	AAUTH_CONFIG_PATH=/etc/lick-archive
//	AAUTH_CONFIG_FILENAME=production
//
// Example configuration file:
//
//	log:
//	  level: ".:info;archiveauth.core:debug"
//	archive:
//	  root: /data
//	authorization:
//	  default_proprietary_period: "2 years"
//	  public_suffixes:
//	    AO: [".pub.fits"]
//	  fixed_owners:
//	    nickel: NICKEL_OWNER
//	  public_observers: [NICKEL_PUBLIC]
//	  public_ownerhint_pattern: "^RECUR_"
//	  unscheduled_observers:
//	    bob: 4
//	schedule:
//	  db:
//	    host: sched.ucolick.org
//	    name: schedule
//	cache:
//	  backend: lru
//	  ttl: 1h
//
// # Environment Variables
//
// All keys can be set via environment variables with the AAUTH_ prefix. Dots
// in key names become underscores:
//
//	AAUTH_LOG_LEVEL=.:debug
//	AAUTH_MOCK_ENABLED=true
//	AAUTH_SCHEDULE_DB_PASSWORD=secret
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all environment variables.
	// For example, the key "log.level" becomes AAUTH_LOG_LEVEL.
	EnvVarPrefix string = "AAUTH"

	// ConfigPathEnv names the directory containing the configuration file.
	ConfigPathEnv string = "AAUTH_CONFIG_PATH"

	// ConfigFileNameEnv names the configuration file (without extension).
	ConfigFileNameEnv string = "AAUTH_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "aauth-config"
)

// Configuration keys for use with [VConfig].
const (
	logLevel string = "log.level"

	// MockEnabled makes the engine use the config-driven mock schedule service
	// and override store regardless of the backends passed in options.
	MockEnabled string = "mock.enabled"

	// ArchiveRoot is the root directory of the archive file system. Override
	// access files live under <root>/YYYY-MM/DD/<instrument_dir>/.
	ArchiveRoot string = "archive.root"

	// DefaultProprietaryPeriod is used for observers whose runs carry no public date.
	DefaultProprietaryPeriod string = "authorization.default_proprietary_period"

	// PublicSuffixes maps an instrument to filename suffixes that are always public.
	PublicSuffixes string = "authorization.public_suffixes"

	// FixedOwners maps an instrument to the ownerhint that owns all of its files.
	FixedOwners string = "authorization.fixed_owners"

	// PublicObservers lists fixed owners that mean "public".
	PublicObservers string = "authorization.public_observers"

	// PublicOwnerhintPattern is a regular expression; matching ownerhints are
	// rewritten to "public" before being resolved.
	PublicOwnerhintPattern string = "authorization.public_ownerhint_pattern"

	// UnscheduledObservers maps observer names to observer ids for ownerhints
	// that the schedule does not know about.
	UnscheduledObservers string = "authorization.unscheduled_observers"

	// ScheduleDBHost and the keys below configure the schedule database connection.
	ScheduleDBHost         string = "schedule.db.host"
	ScheduleDBPort         string = "schedule.db.port"
	ScheduleDBName         string = "schedule.db.name"
	ScheduleDBUser         string = "schedule.db.user"
	ScheduleDBPassword     string = "schedule.db.password"
	ScheduleDBUserInfoFile string = "schedule.db.user_info_file"
	ScheduleDBSSLMode      string = "schedule.db.sslmode"
	ScheduleDBMaxOpenConns string = "schedule.db.max_open_conns"
	ScheduleDBMaxIdleConns string = "schedule.db.max_idle_conns"

	// GshowPath is the keyword history tool queried for OWNRHINT values.
	GshowPath string = "schedule.gshow.path"
	// GshowTimeout bounds a single gshow invocation.
	GshowTimeout string = "schedule.gshow.timeout"
	// GshowServices maps a telescope to its keyword service name.
	GshowServices string = "schedule.gshow.services"

	// CacheBackend selects the collaborator cache: "lru", "redis" or "none".
	CacheBackend string = "cache.backend"
	// CacheTTL is how long collaborator results are reused.
	CacheTTL string = "cache.ttl"
	// CacheSize bounds the in-process LRU.
	CacheSize string = "cache.size"
	// CacheRedisAddr and the keys below configure the shared redis cache.
	CacheRedisAddr     string = "cache.redis.addr"
	CacheRedisPassword string = "cache.redis.password"
	CacheRedisDB       string = "cache.redis.db"

	// OverridesDBEnabled selects the SQL override rule store instead of the
	// archive file system. The connection is configured by the overrides.db
	// keys, which mirror schedule.db.
	OverridesDBEnabled string = "overrides.db.enabled"
	OverridesDBHost    string = "overrides.db.host"
	OverridesDBName    string = "overrides.db.name"

	// AuditEnv maps decision record metadata keys to environment variable names.
	AuditEnv string = "audit.env"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance. It is initialized by
	// [Init] or [Load]; most applications get it loaded through
	// [core.NewAuthEngine].
	VConfig *viper.Viper
	logger  = logging.GetLogger("archiveauth.config")
)

// Init sets up Viper paths, environment handling and defaults without reading
// the configuration file. Safe to call more than once.
func Init() {
	once.Do(doInitialize)
}

func getConfigPath() string {
	if p, ok := os.LookupEnv(ConfigPathEnv); ok {
		return p
	}
	return ConfigDefaultPath
}

func getConfigFileName() string {
	if n, ok := os.LookupEnv(ConfigFileNameEnv); ok {
		return n
	}
	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// keys such as 'log.level' become 'AAUTH_LOG_LEVEL'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(MockEnabled, false)
	VConfig.SetDefault(ArchiveRoot, ".")
	VConfig.SetDefault(DefaultProprietaryPeriod, "2 years")
	VConfig.SetDefault(PublicOwnerhintPattern, "")
	for _, prefix := range []string{scheduleDB, overridesDB} {
		VConfig.SetDefault(prefix+".port", 5432)
		VConfig.SetDefault(prefix+".sslmode", "disable")
		VConfig.SetDefault(prefix+".max_open_conns", 4)
		VConfig.SetDefault(prefix+".max_idle_conns", 2)
	}
	VConfig.SetDefault(GshowPath, "gshow")
	VConfig.SetDefault(GshowTimeout, 10*time.Second)
	VConfig.SetDefault(CacheBackend, "lru")
	VConfig.SetDefault(CacheTTL, time.Hour)
	VConfig.SetDefault(CacheSize, 1024)
	VConfig.SetDefault(CacheRedisAddr, "localhost:6379")
	VConfig.SetDefault(CacheRedisDB, 0)
	VConfig.SetDefault(OverridesDBEnabled, false)
}

// Load initializes configuration and reads the configuration file, if any.
// A missing file is not an error. Log levels are updated from log.level once
// the file has been read. Subsequent calls return the result of the first.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// honor the environment early so config loading itself can be debugged
		if early := os.Getenv("AAUTH_LOG_LEVEL"); early != "" {
			if err := logging.UpdateLogLevels(early); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", early, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		if err := VConfig.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		level := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(level); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", level, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig discards all configuration and reloads it from scratch.
//
// WARNING: intended for tests only; it replaces global state.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	_ = Load()
}

// GetAuditEnv resolves audit.env into a map of metadata key to the current
// value of the named environment variable. Unset variables resolve to "".
func GetAuditEnv() map[string]string {
	result := make(map[string]string)
	for key, envVar := range VConfig.GetStringMapString(AuditEnv) {
		result[key] = os.Getenv(envVar)
	}
	return result
}
