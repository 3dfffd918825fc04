// Package contextfiles attaches local files to a conversation: text
// detection, gitignore filtering, per-chat file sets and refresh on change.
package contextfiles

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// DefaultMaxFileSize is the largest file attached (10 MiB)
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// sampleSize is how much of a file is inspected before reading it whole
const sampleSize = 4096

// Encoding names a detected text encoding
type Encoding string

const (
	UTF8    Encoding = "utf-8"
	UTF8BOM Encoding = "utf-8-sig"
	UTF16BE Encoding = "utf-16be"
	UTF16LE Encoding = "utf-16le"
	UTF32BE Encoding = "utf-32be"
	UTF32LE Encoding = "utf-32le"
	Latin1  Encoding = "latin-1"
)

// decoder returns the x/text decoder for e, nil for plain UTF-8
func (e Encoding) decoder() *encoding.Decoder {
	switch e {
	case UTF8BOM:
		return unicode.UTF8BOM.NewDecoder()
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder()
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder()
	case Latin1:
		return charmap.ISO8859_1.NewDecoder()
	}
	return nil
}

var boms = []struct {
	prefix []byte
	enc    Encoding
}{
	// UTF-32LE before UTF-16LE: FF FE 00 00 starts with FF FE
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, UTF32LE},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, UTF32BE},
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8BOM},
	{[]byte{0xFE, 0xFF}, UTF16BE},
	{[]byte{0xFF, 0xFE}, UTF16LE},
}

// DetectEncoding picks an encoding from a byte-order mark, then tries
// UTF-8, then falls back to Latin-1. truncated means sample may end inside
// a multi-byte sequence.
func DetectEncoding(sample []byte, truncated bool) Encoding {
	for _, b := range boms {
		if bytes.HasPrefix(sample, b.prefix) {
			return b.enc
		}
	}
	if validUTF8(sample, truncated) {
		return UTF8
	}
	return Latin1
}

func validUTF8(b []byte, truncated bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !truncated {
		return false
	}
	// drop an incomplete rune cut off by the sample boundary
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			return utf8.Valid(b[:len(b)-i])
		}
	}
	return false
}

// IsTextFile reports whether path can be attached as text, the encoding to
// read it with, and why not when it cannot.
func IsTextFile(path string, maxSize int64) (bool, Encoding, string) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, "", fmt.Sprintf("IO Error: %v", err)
	}
	if info.Size() > maxSize {
		return false, "", "File too large"
	}
	if info.Size() == 0 {
		return true, UTF8, "Empty file"
	}

	f, err := os.Open(path)
	if err != nil {
		return false, "", fmt.Sprintf("IO Error: %v", err)
	}
	defer func() { _ = f.Close() }()

	sample := make([]byte, sampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false, "", fmt.Sprintf("IO Error: %v", err)
	}
	sample = sample[:n]

	enc := DetectEncoding(sample, int64(n) < info.Size())

	// UTF-16/32 text is full of NULs; only judge BOM-less files by them
	if enc == UTF8 || enc == Latin1 {
		if nulls := bytes.Count(sample, []byte{0}); nulls > 0 && float64(nulls)/float64(len(sample)) > 0.01 {
			return false, "", "Binary file (contains NULL bytes)"
		}
	}

	if _, err := ReadText(path, enc); err != nil {
		return false, "", "Unable to decode with detected encoding"
	}
	return true, enc, "Valid text file"
}

// ReadText reads path and decodes it to a UTF-8 string
func ReadText(path string, enc Encoding) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decode(data, enc)
}

func decode(data []byte, enc Encoding) (string, error) {
	dec := enc.decoder()
	if dec == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid UTF-8")
		}
		return string(data), nil
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EstimateTokens is the rough API token count for text (4 bytes a token)
func EstimateTokens(text string) int {
	return len(text) / 4
}
