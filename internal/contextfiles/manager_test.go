package contextfiles

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSummary_Message(t *testing.T) {
	tests := []struct {
		sum  Summary
		want string
	}{
		{
			Summary{Dirs: 1, Files: 2, Processed: 5, Skipped: 1, Ignored: 3},
			"Included 1 directory and 2 files (5 total files processed), skipped 1 files, ignored 3 files (gitignore)",
		},
		{Summary{Files: 1, Processed: 1}, "Included 1 file (1 total files processed)"},
		{Summary{Dirs: 2}, "Included 2 directories"},
	}
	for _, tt := range tests {
		if got := tt.sum.Message(); got != tt.want {
			t.Errorf("Message() = %q, want %q", got, tt.want)
		}
	}
}

func TestManager_AddPaths(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	writeFile(t, project, ".gitignore", []byte("*.log\n"))
	writeFile(t, project, "main.go", []byte("package main\n"))
	writeFile(t, project, "pkg/util.go", []byte("package pkg\n"))
	writeFile(t, project, "debug.log", []byte("noise\n"))
	writeFile(t, project, ".git/HEAD", []byte("ref: refs/heads/main\n"))
	writeFile(t, project, "image.bin", append([]byte{1}, make([]byte, 200)...))
	single := writeFile(t, root, "notes.md", []byte("# notes\n"))

	set := NewSet()
	sum := NewManager(0).AddPaths(set, []string{project, single})

	want := Summary{Dirs: 1, Files: 1, Processed: 3, Skipped: 1, Ignored: 3}
	if sum != want {
		t.Errorf("AddPaths() = %+v, want %+v", sum, want)
	}

	var rels []string
	for _, f := range set.List() {
		rels = append(rels, f.RelPath)
	}
	wantRels := []string{"notes.md", "project/main.go", "project/pkg/util.go"}
	if len(rels) != len(wantRels) {
		t.Fatalf("files = %v, want %v", rels, wantRels)
	}
	for i := range wantRels {
		if rels[i] != wantRels[i] {
			t.Errorf("files = %v, want %v", rels, wantRels)
			break
		}
	}
	if set.Tokens() == 0 {
		t.Error("Tokens() should count attached content")
	}
}

func TestManager_AddSingleDirectoryIsRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/b.txt", []byte("hello"))

	set := NewSet()
	NewManager(0).AddPaths(set, []string{dir})

	files := set.List()
	if len(files) != 1 || files[0].RelPath != "a/b.txt" || files[0].Content != "hello" {
		t.Errorf("files = %+v", files)
	}
}

func TestSet_RemoveAndClear(t *testing.T) {
	set := NewSet()
	set.Put(File{RelPath: "a.go", AbsPath: "/src/a.go"})
	set.Put(File{RelPath: "b.go", AbsPath: "/src/b.go"})

	if !set.Remove("/src/a.go") {
		t.Error("Remove by absolute path should succeed")
	}
	if !set.Remove("b.go") {
		t.Error("Remove by relative path should succeed")
	}
	if set.Remove("c.go") {
		t.Error("Remove of unknown file should fail")
	}

	set.Put(File{RelPath: "c.go"})
	if n := set.Clear(); n != 1 || set.Len() != 0 {
		t.Errorf("Clear() = %d, Len() = %d", n, set.Len())
	}
}

func TestManager_Refresh(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("one"))
	b := writeFile(t, dir, "b.txt", []byte("two"))

	m := NewManager(0)
	first, second, empty := NewSet(), NewSet(), NewSet()
	m.AddPaths(first, []string{dir})
	m.AddPaths(second, []string{a})

	if err := os.WriteFile(a, []byte("one, edited"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(b); err != nil {
		t.Fatal(err)
	}

	res := m.Refresh(first, second, empty)
	if res != (RefreshResult{Views: 2, Updated: 2, Removed: 1}) {
		t.Errorf("Refresh() = %+v", res)
	}
	if got := res.Message(); got != "Updated 2 files in 2 views, Removed 1 missing file" {
		t.Errorf("Message() = %q", got)
	}

	files := first.List()
	if len(files) != 1 || files[0].RelPath != "a.txt" || files[0].Content != "one, edited" {
		t.Errorf("refreshed set = %+v", files)
	}

	if got := (RefreshResult{}).Message(); got != "No files needed updating" {
		t.Errorf("empty Message() = %q", got)
	}
}
