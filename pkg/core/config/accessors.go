//
//  Copyright © Manetu Inc. All rights reserved.
//

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/pubdate"
)

// Authorization is the static policy consulted by the access resolver.
//
// Viper folds map keys to lower case, so instrument names, fixed owner names
// and unscheduled observer names are matched case-insensitively.
type Authorization struct {
	DefaultPeriod        pubdate.Period
	PublicSuffixes       map[string][]string
	FixedOwners          map[string]string
	PublicObservers      []string
	PublicOwnerhint      *regexp.Regexp
	UnscheduledObservers map[string]int
}

// SuffixesFor returns the always-public filename suffixes of an instrument.
func (a *Authorization) SuffixesFor(instrument string) []string {
	return a.PublicSuffixes[strings.ToLower(instrument)]
}

// FixedOwnerFor returns the ownerhint owning every file of an instrument.
func (a *Authorization) FixedOwnerFor(instrument string) (string, bool) {
	owner, ok := a.FixedOwners[strings.ToLower(instrument)]
	return owner, ok
}

// IsPublicObserver reports whether a fixed owner stands for the public.
func (a *Authorization) IsPublicObserver(owner string) bool {
	for _, o := range a.PublicObservers {
		if strings.EqualFold(o, owner) {
			return true
		}
	}
	return false
}

// IsPublicOwnerhint reports whether the public ownerhint pattern matches at
// the start of hint. A match later in the hint does not count.
func (a *Authorization) IsPublicOwnerhint(hint string) bool {
	if a.PublicOwnerhint == nil {
		return false
	}
	loc := a.PublicOwnerhint.FindStringIndex(hint)
	return loc != nil && loc[0] == 0
}

// UnscheduledObserver looks up the observer id for an observer missing from the schedule.
func (a *Authorization) UnscheduledObserver(name string) (int, bool) {
	id, ok := a.UnscheduledObservers[strings.ToLower(name)]
	return id, ok
}

// GetAuthorization builds the [Authorization] policy from [VConfig]. A bad
// default proprietary period or public ownerhint pattern is a MISCONFIGURATION error.
func GetAuthorization() (*Authorization, error) {
	period, err := pubdate.ParsePeriod(VConfig.GetString(DefaultProprietaryPeriod))
	if err != nil {
		return nil, common.NewErrorf(common.Misconfiguration, "%s: %v", DefaultProprietaryPeriod, err)
	}

	auth := &Authorization{
		DefaultPeriod:        period,
		PublicSuffixes:       make(map[string][]string),
		FixedOwners:          make(map[string]string),
		PublicObservers:      VConfig.GetStringSlice(PublicObservers),
		UnscheduledObservers: make(map[string]int),
	}

	if pattern := VConfig.GetString(PublicOwnerhintPattern); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, common.NewErrorf(common.Misconfiguration, "%s: %v", PublicOwnerhintPattern, err)
		}
		auth.PublicOwnerhint = re
	}

	for instr := range VConfig.GetStringMap(PublicSuffixes) {
		auth.PublicSuffixes[instr] = VConfig.GetStringSlice(PublicSuffixes + "." + instr)
	}
	for instr, owner := range VConfig.GetStringMapString(FixedOwners) {
		auth.FixedOwners[instr] = owner
	}
	for name := range VConfig.GetStringMap(UnscheduledObservers) {
		auth.UnscheduledObservers[name] = VConfig.GetInt(UnscheduledObservers + "." + name)
	}

	return auth, nil
}

const (
	scheduleDB  = "schedule.db"
	overridesDB = "overrides.db"
)

// Database holds the settings of a PostgreSQL connection.
type Database struct {
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN renders the settings as a lib/pq connection string.
func (d Database) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", d.Host, d.Port, d.Name, d.SSLMode)
	if d.User != "" {
		dsn += " user=" + d.User
	}
	if d.Password != "" {
		dsn += " password=" + quoteDSN(d.Password)
	}
	return dsn
}

func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// GetScheduleDB reads the schedule.db settings.
func GetScheduleDB() (Database, error) {
	return getDatabase(scheduleDB)
}

// GetOverridesDB reads the overrides.db settings.
func GetOverridesDB() (Database, error) {
	return getDatabase(overridesDB)
}

// getDatabase reads <prefix>.host and friends. When <prefix>.user_info_file is
// set the user and password come from that file instead of the config.
func getDatabase(prefix string) (Database, error) {
	d := Database{
		Host:         VConfig.GetString(prefix + ".host"),
		Port:         VConfig.GetInt(prefix + ".port"),
		Name:         VConfig.GetString(prefix + ".name"),
		User:         VConfig.GetString(prefix + ".user"),
		Password:     VConfig.GetString(prefix + ".password"),
		SSLMode:      VConfig.GetString(prefix + ".sslmode"),
		MaxOpenConns: VConfig.GetInt(prefix + ".max_open_conns"),
		MaxIdleConns: VConfig.GetInt(prefix + ".max_idle_conns"),
	}

	if d.Host == "" || d.Name == "" {
		return d, common.NewErrorf(common.Misconfiguration, "%s.host and %s.name are required", prefix, prefix)
	}

	if path := VConfig.GetString(prefix + ".user_info_file"); path != "" {
		user, password, err := readUserInfoFile(path)
		if err != nil {
			return d, err
		}
		d.User, d.Password = user, password
	}

	return d, nil
}

// Gshow holds the keyword history tool settings.
type Gshow struct {
	Path     string
	Timeout  time.Duration
	Services map[string]string
}

// ServiceFor returns the keyword service recording OWNRHINT for a telescope.
func (g Gshow) ServiceFor(telescope string) (string, bool) {
	svc, ok := g.Services[strings.ToLower(telescope)]
	return svc, ok
}

// GetGshow reads the schedule.gshow settings.
func GetGshow() Gshow {
	return Gshow{
		Path:     VConfig.GetString(GshowPath),
		Timeout:  VConfig.GetDuration(GshowTimeout),
		Services: VConfig.GetStringMapString(GshowServices),
	}
}

// Cache holds the collaborator cache settings.
type Cache struct {
	Backend       string
	TTL           time.Duration
	Size          int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// GetCache reads the cache settings.
func GetCache() Cache {
	return Cache{
		Backend:       strings.ToLower(VConfig.GetString(CacheBackend)),
		TTL:           VConfig.GetDuration(CacheTTL),
		Size:          VConfig.GetInt(CacheSize),
		RedisAddr:     VConfig.GetString(CacheRedisAddr),
		RedisPassword: VConfig.GetString(CacheRedisPassword),
		RedisDB:       VConfig.GetInt(CacheRedisDB),
	}
}
