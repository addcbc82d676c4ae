package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigDirName is the per-directory configuration folder.
	ConfigDirName = ".nxstools"
	// ConfigFileName is the configuration file inside ConfigDirName.
	ConfigFileName = "config.yaml"
	// ConfigEnv overrides the configuration file location.
	ConfigEnv = "NXSTOOLS_CONFIG"
)

// FindConfigPath returns the configuration file to load.
// Priority order:
//  1. NXSTOOLS_CONFIG environment variable (if set)
//  2. .nxstools/config.yaml in dir or the nearest parent holding one
//  3. .nxstools/config.yaml in the user's home directory
//
// The returned path may not exist; LoadConfig treats that as defaults.
func FindConfigPath(dir string) string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return expandHome(p)
	}

	if abs, err := filepath.Abs(dir); err == nil {
		for cur := abs; ; {
			candidate := filepath.Join(cur, ConfigDirName, ConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			parent := filepath.Dir(cur)
			if parent == cur {
				break
			}
			cur = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ConfigDirName, ConfigFileName)
	}
	return filepath.Join(dir, ConfigDirName, ConfigFileName)
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
