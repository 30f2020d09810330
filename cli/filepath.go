package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func replacePathTilde(path string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(path, homeDir) {
		path = strings.Replace(path, homeDir, "~", 1)

		return path, err
	}

	return "", errors.New("replace faild")
}

// displayPath returns the absolute path of name, shortened with ~ when it
// lives under the home directory.
func displayPath(name string) string {
	abs, err := filepath.Abs(name)
	if err != nil {
		return name
	}
	if p, err := replacePathTilde(abs); err == nil {
		return p
	}
	return abs
}
