package contextfiles

import (
	"sort"
	"sync"
)

// File is one attached file
type File struct {
	RelPath  string   `json:"path"` // display path, relative to the root it was added from
	AbsPath  string   `json:"absolute_path"`
	Content  string   `json:"content"`
	Tokens   int      `json:"api_tokens"`
	Encoding Encoding `json:"encoding"`
}

// Set is the files attached to one chat, keyed by relative path
type Set struct {
	mu    sync.RWMutex
	files map[string]File
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{files: make(map[string]File)}
}

// Put adds or replaces f, returning true when it replaced an entry
func (s *Set) Put(f File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.files[f.RelPath]
	s.files[f.RelPath] = f
	return existed
}

// Remove drops the file with the given relative or absolute path
func (s *Set) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; ok {
		delete(s.files, path)
		return true
	}
	for rel, f := range s.files {
		if f.AbsPath == path {
			delete(s.files, rel)
			return true
		}
	}
	return false
}

// Clear drops every file and returns how many there were
func (s *Set) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.files)
	clear(s.files)
	return n
}

// Replace swaps in files wholesale
func (s *Set) Replace(files []File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.files)
	for _, f := range files {
		s.files[f.RelPath] = f
	}
}

// List returns the files sorted by relative path
func (s *Set) List() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Len returns the number of files
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Tokens returns the estimated token total
func (s *Set) Tokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, f := range s.files {
		total += f.Tokens
	}
	return total
}

// AbsPaths returns the absolute paths of every file
func (s *Set) AbsPaths() []string {
	files := s.List()
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.AbsPath
	}
	return out
}
