package localcache

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envHome    = "LIFESYNC_DATA_DIR" // override for tests
	dirName    = ".lifesync"         // default under $HOME
	dbFilename = "cache.db"
)

// DataDir returns the directory where the local cache lives (~/.lifesync).
// It creates the directory with 0700 permissions if it does not exist.
func DataDir() (string, error) {
	if custom := os.Getenv(envHome); custom != "" {
		if err := os.MkdirAll(custom, 0o700); err != nil {
			return "", err
		}
		return custom, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath returns the absolute path to the SQLite cache file. A non-empty
// override is returned unchanged.
func DBPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFilename), nil
}
