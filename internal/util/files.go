package util

import (
	"errors"
	"os"
	"path/filepath"
)

var ErrRootNotFound = errors.New("project root not found")

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	return false, err
}

// FindRoot walks up from dir until it finds a directory containing marker.
func FindRoot(dir, marker string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if exists, _ := PathExists(filepath.Join(dir, marker)); exists {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}
