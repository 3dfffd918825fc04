package contextfiles

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Manager adds and refreshes context files
type Manager struct {
	maxSize int64
}

// NewManager creates a manager; maxSize <= 0 uses DefaultMaxFileSize
func NewManager(maxSize int64) *Manager {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Manager{maxSize: maxSize}
}

// Summary counts what AddPaths did
type Summary struct {
	Dirs      int
	Files     int
	Processed int
	Skipped   int
	Ignored   int
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// Message renders the summary, e.g. "Included 1 directory and 2 files
// (5 total files processed), skipped 1 files, ignored 3 files (gitignore)"
func (s Summary) Message() string {
	var parts []string
	if s.Dirs > 0 {
		parts = append(parts, plural(s.Dirs, "directory", "directories"))
	}
	if s.Files > 0 {
		parts = append(parts, plural(s.Files, "file", "files"))
	}

	msg := "Included " + strings.Join(parts, " and ")
	if s.Processed > 0 {
		msg += fmt.Sprintf(" (%d total files processed)", s.Processed)
	}
	if s.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d files", s.Skipped)
	}
	if s.Ignored > 0 {
		msg += fmt.Sprintf(", ignored %d files (gitignore)", s.Ignored)
	}
	return msg
}

// AddPaths attaches files and directories to set. Directories are walked
// with their gitignore rules and .git is skipped; a file named directly is
// only checked against its parent's rules, with git files allowed.
func (m *Manager) AddPaths(set *Set, paths []string) Summary {
	var sum Summary
	var expanded []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			sum.Dirs++
			gitignore := NewGitignoreMatcher(path)
			_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if d.Name() == ".git" && p != path {
						sum.Ignored++
						return filepath.SkipDir
					}
					return nil
				}
				if gitignore.ShouldIgnore(p, false) {
					sum.Ignored++
					return nil
				}
				expanded = append(expanded, p)
				return nil
			})
			continue
		}

		sum.Files++
		gitignore := NewGitignoreMatcher(filepath.Dir(path))
		if gitignore.ShouldIgnore(path, true) {
			sum.Ignored++
			continue
		}
		expanded = append(expanded, path)
	}

	res := NewHandler(set, m.maxSize).ProcessPaths(expanded)
	sum.Processed = res.Processed
	sum.Skipped = res.Skipped
	log.Info("added paths %v: %s", paths, sum.Message())
	return sum
}

// RefreshResult counts what Refresh did
type RefreshResult struct {
	Views   int
	Updated int
	Removed int
}

// Message renders e.g. "Updated 3 files in 2 views, Removed 1 missing file"
func (r RefreshResult) Message() string {
	var parts []string
	if r.Updated > 0 {
		parts = append(parts, fmt.Sprintf("Updated %s in %s",
			plural(r.Updated, "file", "files"), plural(r.Views, "view", "views")))
	}
	if r.Removed > 0 {
		parts = append(parts, "Removed "+plural(r.Removed, "missing file", "missing files"))
	}
	if len(parts) == 0 {
		return "No files needed updating"
	}
	return strings.Join(parts, ", ")
}

// Refresh rereads every attached file in sets. Files gone from disk are
// dropped, as are files that are no longer text.
func (m *Manager) Refresh(sets ...*Set) RefreshResult {
	var res RefreshResult
	for _, set := range sets {
		files := set.List()
		if len(files) == 0 {
			continue
		}

		fresh := NewSet()
		handler := NewHandler(fresh, m.maxSize)
		updated, removed := 0, 0
		for _, f := range files {
			if _, err := os.Stat(f.AbsPath); err != nil {
				removed++
				continue
			}
			if handler.ProcessFile(f.AbsPath, rootOf(f)) != "" {
				updated++
			}
		}

		if updated > 0 || removed > 0 {
			set.Replace(fresh.List())
			if updated > 0 {
				res.Views++
				res.Updated += updated
			}
			res.Removed += removed
		}
	}
	return res
}

// rootOf recovers the directory f was added relative to
func rootOf(f File) string {
	abs := filepath.ToSlash(f.AbsPath)
	if root, ok := strings.CutSuffix(abs, f.RelPath); ok {
		return filepath.FromSlash(strings.TrimSuffix(root, "/"))
	}
	return filepath.Dir(f.AbsPath)
}
