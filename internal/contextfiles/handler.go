package contextfiles

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var log = logger.WithPrefix("contextfiles")

// Handler reads files into a Set
type Handler struct {
	set     *Set
	maxSize int64
}

// NewHandler creates a handler writing into set
func NewHandler(set *Set, maxSize int64) *Handler {
	return &Handler{set: set, maxSize: maxSize}
}

// Result counts what ProcessPaths did
type Result struct {
	Processed int
	Skipped   int
}

// ProcessFile attaches one file under its path relative to root. It
// returns the relative path, or "" when the file was skipped.
func (h *Handler) ProcessFile(path, root string) string {
	ok, enc, reason := IsTextFile(path, h.maxSize)
	if !ok {
		log.Info("skipping %s: %s", path, reason)
		return ""
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	rel = filepath.ToSlash(rel)

	content, err := ReadText(abs, enc)
	if err != nil {
		log.Warn("error processing file %s: %v", path, err)
		return ""
	}

	if h.set.Put(File{
		RelPath:  rel,
		AbsPath:  abs,
		Content:  content,
		Tokens:   EstimateTokens(content),
		Encoding: enc,
	}) {
		log.Debug("updating file in context: %s", abs)
	}
	return rel
}

// ProcessPaths attaches files and walks directories. Paths are made
// relative to the parent of a single file, to a single directory, or to
// the common directory of several paths.
func (h *Handler) ProcessPaths(paths []string) Result {
	var res Result
	if len(paths) == 0 {
		return res
	}
	root := commonRoot(paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			res.Skipped++
			continue
		}
		if !info.IsDir() {
			if h.ProcessFile(path, root) != "" {
				res.Processed++
			} else {
				res.Skipped++
			}
			continue
		}
		_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if h.ProcessFile(p, root) != "" {
				res.Processed++
			} else {
				res.Skipped++
			}
			return nil
		})
	}
	return res
}

// commonRoot returns the directory paths are made relative to
func commonRoot(paths []string) string {
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			a = p
		}
		abs[i] = a
	}

	if len(abs) == 1 {
		if info, err := os.Stat(abs[0]); err == nil && info.IsDir() {
			return abs[0]
		}
		return filepath.Dir(abs[0])
	}

	common := strings.Split(abs[0], string(filepath.Separator))
	for _, p := range abs[1:] {
		parts := strings.Split(p, string(filepath.Separator))
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	root := strings.Join(common, string(filepath.Separator))
	if root == "" {
		return string(filepath.Separator)
	}
	return root
}
