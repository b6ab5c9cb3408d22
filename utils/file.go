package utils

import (
	"os"
	"path/filepath"
)

// SaveLocalFile writes data under the local archive directory, creating
// parent directories as needed, and returns the written path.
func SaveLocalFile(key string, data []byte) (string, error) {
	destPath := filepath.Join("archive", filepath.FromSlash(key))

	// ✅ Ensure the directory for the destination file exists
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}
