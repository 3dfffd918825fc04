// Package sse reads Server-Sent Events streams from LLM providers.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// maxLineSize is the largest single SSE line accepted (1 MB). Long
// completions and reference-file echoes overflow bufio's 64 KiB default.
const maxLineSize = 1 * 1024 * 1024

// maxErrorBodySize caps how much of a failed response body is read.
const maxErrorBodySize int64 = 10 * 1024 * 1024

// Event is one dispatched SSE event
type Event struct {
	Name string // from "event:", empty when absent
	Data string // "data:" lines joined with "\n"
}

// Scanner reads events from an io.Reader.
type Scanner struct {
	scanner *bufio.Scanner
	done    bool
}

// NewScanner creates a Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{scanner: s}
}

// Next returns the next event carrying data. A blank line ends an event;
// lines starting with ':' are comments; "id:" and "retry:" are ignored.
// "data: [DONE]" and end of input both yield io.EOF, and every call after
// that returns io.EOF without touching the reader again.
func (s *Scanner) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	var (
		name  string
		lines []string
	)

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(lines) > 0 {
				return Event{Name: name, Data: strings.Join(lines, "\n")}, nil
			}
			name = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		// only the single space after the colon belongs to the syntax
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if value == "[DONE]" {
				s.done = true
				return Event{}, io.EOF
			}
			lines = append(lines, value)
		case "event":
			name = value
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("SSE scanner error: %w", err)
	}

	// flush an event cut off by end of stream
	if len(lines) > 0 {
		return Event{Name: name, Data: strings.Join(lines, "\n")}, nil
	}
	return Event{}, io.EOF
}

// DecodeJSON unmarshals an event payload into v. Truncated or sloppy JSON
// is passed through jsonrepair once before giving up.
func DecodeJSON(payload string, v any) error {
	err := json.Unmarshal([]byte(payload), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return fmt.Errorf("invalid chunk: %w (repair failed: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("invalid chunk after repair: %w", err)
	}
	return nil
}

// StatusError is returned by Post for a non-2xx response
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

// Post sends body as JSON and returns the response with its body open for
// streaming. The caller closes resp.Body. On a non-2xx status the body is
// drained and closed and a *StatusError is returned.
func Post(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return resp, nil
}
