package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the findary home directory.
const HomeEnv = "FINDARY_HOME"

// GetHome returns the findary home directory
// Priority order:
//  1. FINDARY_HOME environment variable (if set)
//  2. .findary in the current working directory
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ConfigDir)
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create findary home directory: %w", err)
	}

	return home, nil
}

// GetHistoryDBPath returns the path of the run history database.
// An explicit configured path wins over $FINDARY_HOME/history.db.
func GetHistoryDBPath(cfg *Config) (string, error) {
	if cfg != nil && cfg.History.DBPath != "" {
		return cfg.History.DBPath, nil
	}
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}

// GetTrackLockPath returns the lock file guarding git-lfs tracking of dir.
func GetTrackLockPath(dir string) string {
	return filepath.Join(dir, ConfigDir, "track.lock")
}
