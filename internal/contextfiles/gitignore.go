package contextfiles

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// gitPatterns are always ignored unless git files are allowed
var gitPatterns = []string{".git/", ".gitignore", ".git"}

// GitignoreMatcher filters paths below root using the .gitignore files of
// root and its ancestors, up to but excluding the filesystem root.
// Negations are not supported.
type GitignoreMatcher struct {
	root     string
	patterns []string
}

// NewGitignoreMatcher loads patterns for root
func NewGitignoreMatcher(root string) *GitignoreMatcher {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	m := &GitignoreMatcher{root: abs}
	m.patterns = append(m.patterns, gitPatterns...)

	seen := make(map[string]bool)
	for _, p := range m.patterns {
		seen[p] = true
	}
	for _, dir := range gitignoreDirs(abs) {
		for _, p := range readGitignore(filepath.Join(dir, ".gitignore")) {
			if !seen[p] {
				seen[p] = true
				m.patterns = append(m.patterns, p)
			}
		}
	}
	return m
}

// gitignoreDirs lists dir and its ancestors, nearest first, stopping
// before the filesystem root
func gitignoreDirs(dir string) []string {
	var dirs []string
	for ; filepath.Dir(dir) != dir; dir = filepath.Dir(dir) {
		dirs = append(dirs, dir)
	}
	return dirs
}

func readGitignore(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Patterns returns the loaded patterns, git defaults first
func (m *GitignoreMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// ShouldIgnore reports whether path matches a pattern. Paths outside root
// are never ignored. allowGitFiles lets .git and .gitignore through, for
// files the user picked one by one.
func (m *GitignoreMatcher) ShouldIgnore(path string, allowGitFiles bool) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")

	if !allowGitFiles {
		for _, p := range parts {
			if p == ".git" {
				return true
			}
		}
	}

	for _, pattern := range m.patterns {
		if allowGitFiles && isGitPattern(pattern) {
			continue
		}
		if matchPattern(pattern, rel, parts) {
			return true
		}
	}
	return false
}

func isGitPattern(p string) bool {
	for _, g := range gitPatterns {
		if p == g {
			return true
		}
	}
	return false
}

func matchPattern(pattern, rel string, parts []string) bool {
	// anchored to root
	if clean, ok := strings.CutPrefix(pattern, "/"); ok {
		if strings.ContainsAny(clean, "*?[") {
			return globPrefix(clean, parts)
		}
		return rel == clean || strings.HasPrefix(rel, clean+"/")
	}

	// directory anywhere below root
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		for _, p := range parts[:len(parts)-1] {
			if p == dir {
				return true
			}
			if ok, _ := doublestar.Match(dir, p); ok {
				return true
			}
		}
		return false
	}

	if strings.ContainsAny(pattern, "*?[") {
		if globPrefix(pattern, parts) {
			return true
		}
		// a slash-free glob matches any path component, like "*.log"
		if !strings.Contains(pattern, "/") {
			for _, p := range parts {
				if ok, _ := doublestar.Match(pattern, p); ok {
					return true
				}
			}
		}
		return false
	}

	return rel == pattern || strings.HasPrefix(rel, pattern+"/")
}

// globPrefix matches pattern against rel and each of its parent directories
func globPrefix(pattern string, parts []string) bool {
	for i := len(parts); i > 0; i-- {
		if ok, _ := doublestar.Match(pattern, strings.Join(parts[:i], "/")); ok {
			return true
		}
	}
	return false
}
