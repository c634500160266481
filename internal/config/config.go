package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"invoicehandler/internal/errors"
	"invoicehandler/internal/lock"
	"invoicehandler/internal/rules"

	"github.com/gobwas/glob"
)

const (
	defaultMaxLockRetries   = 30
	defaultLockRetryDelayMs = 1000
)

// Config is one immutable generation of settings and rules. A generation is
// built completely before it is published and is never modified afterwards.
type Config struct {
	WatchDirectory string
	RetryPolicy    lock.RetryPolicy
	Rules          *rules.RuleSet
	ScanExisting   bool
	DryRun         bool
	// HistoryDB is the journal database path, empty when journaling is off.
	// It is read once at startup.
	HistoryDB string

	// Source is the file this generation was loaded from
	Source string
	// Generation is assigned by the Store when the config is published
	Generation uint64
	// Rejected lists rules dropped because their replacement was invalid
	Rejected []error

	ignorePatterns []string
	ignore         []glob.Glob
}

// Ignored reports whether a file name matches one of the ignore globs
func (c *Config) Ignored(name string) bool {
	for _, g := range c.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// IgnorePatterns returns the ignore globs as configured
func (c *Config) IgnorePatterns() []string {
	return append([]string(nil), c.ignorePatterns...)
}

// LoadConfigFile reads, parses and validates the config at path. Nothing is
// returned unless the whole file is usable.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError("config file not found", path, errors.ConfigNotFound, err)
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.InvalidConfig, err)
	}

	file, err := Parse(data, FormatFor(path))
	if err != nil {
		if errors.IsInvalidConfig(err) {
			return nil, err
		}
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}

	cfg, err := Build(file)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// Build validates a parsed file and compiles it into a Config
func Build(file *File) (*Config, error) {
	s := file.Settings

	dir, err := resolveDirectory(s.WatchDirectory)
	if err != nil {
		return nil, err
	}

	retries := defaultMaxLockRetries
	if s.MaxLockRetries != nil {
		retries = *s.MaxLockRetries
	}
	if retries < 0 {
		return nil, errors.NewConfigError("must be >= 0", "max_lock_retries", errors.InvalidConfig, nil)
	}
	delayMs := defaultLockRetryDelayMs
	if s.LockRetryDelayMs != nil {
		delayMs = *s.LockRetryDelayMs
	}
	if delayMs < 0 {
		return nil, errors.NewConfigError("must be >= 0", "lock_retry_delay_ms", errors.InvalidConfig, nil)
	}

	historyDB := strings.TrimSpace(s.HistoryDB)
	if historyDB != "" {
		if historyDB, err = expandHome(historyDB); err != nil {
			return nil, errors.NewConfigError("cannot expand home directory", "history_db", errors.InvalidConfig, err)
		}
		if historyDB, err = filepath.Abs(historyDB); err != nil {
			return nil, errors.NewConfigError("invalid path", "history_db", errors.InvalidConfig, err)
		}
	}

	set, rejected, err := rules.NewRuleSet(file.Translations)
	if err != nil {
		return nil, errors.NewConfigError("invalid translation", "translations", errors.InvalidConfig, err)
	}

	cfg := &Config{
		WatchDirectory: dir,
		RetryPolicy: lock.RetryPolicy{
			MaxAttempts: retries,
			Delay:       time.Duration(delayMs) * time.Millisecond,
		},
		Rules:        set,
		ScanExisting: s.ScanExisting,
		DryRun:       s.DryRun,
		HistoryDB:    historyDB,
		Rejected:     rejected,
	}

	for _, p := range s.Ignore {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewConfigError("invalid ignore pattern "+p, "ignore", errors.InvalidConfig, err)
		}
		cfg.ignorePatterns = append(cfg.ignorePatterns, p)
		cfg.ignore = append(cfg.ignore, g)
	}

	return cfg, nil
}

// resolveDirectory expands a leading ~ and requires an existing directory
func resolveDirectory(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", errors.NewConfigError("missing required setting", "watch_directory", errors.InvalidConfig, nil)
	}

	dir, err := expandHome(dir)
	if err != nil {
		return "", errors.NewConfigError("cannot expand home directory", "watch_directory", errors.InvalidConfig, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.NewConfigError("invalid path", "watch_directory", errors.InvalidConfig, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.NewConfigError("watch directory is not accessible", "watch_directory", errors.InvalidConfig, err)
	}
	if !info.IsDir() {
		return "", errors.NewConfigError("not a directory: "+abs, "watch_directory", errors.InvalidConfig, nil)
	}
	return filepath.Clean(abs), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
