package history

import (
	"os"
	"path/filepath"
	"strings"
)

const lastPathFile = "last_chat_history_path.txt"

// cacheDir is replaced in tests
var cacheDir = func() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "claudette"), nil
}

func lastPathCache() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, lastPathFile), nil
}

// SaveLastPath remembers path so the next dialog starts in its directory.
// Failures are logged, never returned.
func SaveLastPath(path string) {
	cache, err := lastPathCache()
	if err != nil {
		log.Warn("history cache unavailable: %v", err)
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := os.WriteFile(cache, []byte(path), 0o644); err != nil {
		log.Warn("saving history cache: %v", err)
	}
}

// LastDir returns the directory of the last imported or exported file
// when it still exists, otherwise the home directory.
func LastDir() string {
	home, _ := os.UserHomeDir()
	cache, err := lastPathCache()
	if err != nil {
		return home
	}
	data, err := os.ReadFile(cache)
	if err != nil {
		return home
	}
	last := strings.TrimSpace(string(data))
	if last == "" {
		return home
	}
	dir := filepath.Dir(last)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return home
	}
	return dir
}

// ResolvePath places a bare or relative file name in LastDir. Absolute
// paths and paths starting with ./ or ../ are returned cleaned.
func ResolvePath(name string) string {
	if name == "" {
		name = DefaultFileName
	}
	if strings.HasPrefix(name, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, name[2:])
		}
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		return filepath.Clean(name)
	}
	return filepath.Join(LastDir(), name)
}
