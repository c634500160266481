package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

// EnvConfigPath overrides the default config location
const EnvConfigPath = "INVOICEHANDLER_CONFIG"

const appName = "invoicehandler"

// DefaultPath returns the config file to use when none is given on the
// command line: $INVOICEHANDLER_CONFIG if set, ~/.invoicehandler on Linux,
// and <config home>/invoicehandler/config.ini elsewhere.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if runtime.GOOS == "linux" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "."+appName)
		}
	}
	return filepath.Join(xdg.ConfigHome, appName, "config.ini")
}
