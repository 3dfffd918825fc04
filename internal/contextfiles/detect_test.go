package contextfiles

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name      string
		sample    []byte
		truncated bool
		want      Encoding
	}{
		{"utf-8 bom", []byte("\xEF\xBB\xBFhello"), false, UTF8BOM},
		{"utf-16be bom", []byte("\xFE\xFF\x00h"), false, UTF16BE},
		{"utf-16le bom", []byte("\xFF\xFEh\x00"), false, UTF16LE},
		{"utf-32le bom", []byte("\xFF\xFE\x00\x00h\x00\x00\x00"), false, UTF32LE},
		{"utf-32be bom", []byte("\x00\x00\xFE\xFF\x00\x00\x00h"), false, UTF32BE},
		{"plain utf-8", []byte("héllo"), false, UTF8},
		{"latin-1", []byte("caf\xe9"), false, Latin1},
		{"rune cut by sample", []byte("caf\xc3"), true, UTF8},
		{"rune cut without truncation", []byte("caf\xc3"), false, Latin1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEncoding(tt.sample, tt.truncated); got != tt.want {
				t.Errorf("DetectEncoding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTextFile(t *testing.T) {
	dir := t.TempDir()

	binary := make([]byte, 1000)
	binary[0] = 'x'

	utf16 := []byte{0xFF, 0xFE}
	for _, r := range "hi there" {
		utf16 = append(utf16, byte(r), 0)
	}

	tests := []struct {
		name    string
		data    []byte
		maxSize int64
		wantOK  bool
		wantEnc Encoding
		reason  string
	}{
		{"empty", nil, 0, true, UTF8, "Empty file"},
		{"text", []byte("package main\n"), 0, true, UTF8, "Valid text file"},
		{"binary", binary, 0, false, "", "Binary file (contains NULL bytes)"},
		{"too large", bytes.Repeat([]byte("a"), 20), 10, false, "", "File too large"},
		{"latin-1", []byte("caf\xe9 cr\xe8me"), 0, true, Latin1, "Valid text file"},
		{"utf-16 with bom", utf16, 0, true, UTF16LE, "Valid text file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".txt", tt.data)
			ok, enc, reason := IsTextFile(path, tt.maxSize)
			if ok != tt.wantOK || enc != tt.wantEnc || reason != tt.reason {
				t.Errorf("IsTextFile() = (%v, %q, %q), want (%v, %q, %q)", ok, enc, reason, tt.wantOK, tt.wantEnc, tt.reason)
			}
		})
	}

	if ok, _, _ := IsTextFile(filepath.Join(dir, "missing"), 0); ok {
		t.Error("missing file should not be text")
	}
}

func TestReadText_Decodes(t *testing.T) {
	dir := t.TempDir()

	latin := writeFile(t, dir, "latin.txt", []byte("caf\xe9"))
	if got, err := ReadText(latin, Latin1); err != nil || got != "café" {
		t.Errorf("ReadText(latin-1) = %q, %v", got, err)
	}

	bom := writeFile(t, dir, "bom.txt", []byte("\xEF\xBB\xBFhello"))
	if got, err := ReadText(bom, UTF8BOM); err != nil || got != "hello" {
		t.Errorf("ReadText(utf-8-sig) = %q, %v", got, err)
	}

	utf16 := writeFile(t, dir, "utf16.txt", []byte{0xFE, 0xFF, 0x00, 'o', 0x00, 'k'})
	if got, err := ReadText(utf16, UTF16BE); err != nil || got != "ok" {
		t.Errorf("ReadText(utf-16be) = %q, %v", got, err)
	}

	bad := writeFile(t, dir, "bad.txt", []byte("caf\xe9"))
	if _, err := ReadText(bad, UTF8); err == nil {
		t.Error("invalid UTF-8 should fail to decode as utf-8")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("EstimateTokens() = %d, want 2", got)
	}
	if got := EstimateTokens("abc"); got != 0 {
		t.Errorf("EstimateTokens() = %d, want 0", got)
	}
}
