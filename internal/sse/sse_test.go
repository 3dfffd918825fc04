package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func collect(t *testing.T, input string) []Event {
	t.Helper()
	s := NewScanner(strings.NewReader(input))
	var events []Event
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		events = append(events, ev)
	}
}

func TestScannerNext(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "single events",
			input: "data: {\"a\":1}\n\ndata: {\"a\":2}\n\n",
			want:  []Event{{Data: `{"a":1}`}, {Data: `{"a":2}`}},
		},
		{
			name:  "crlf line endings",
			input: "data: one\r\n\r\ndata: two\r\n\r\n",
			want:  []Event{{Data: "one"}, {Data: "two"}},
		},
		{
			name:  "multi-line data joined",
			input: "data: first\ndata: second\n\n",
			want:  []Event{{Data: "first\nsecond"}},
		},
		{
			name:  "comments and other fields ignored",
			input: ": keep-alive\nid: 7\nretry: 100\ndata: x\n\n",
			want:  []Event{{Data: "x"}},
		},
		{
			name:  "event name carried",
			input: "event: message_start\ndata: {}\n\nevent: ping\n\ndata: y\n\n",
			want:  []Event{{Name: "message_start", Data: "{}"}, {Data: "y"}},
		},
		{
			name:  "done sentinel stops",
			input: "data: a\n\ndata: [DONE]\n\ndata: never\n\n",
			want:  []Event{{Data: "a"}},
		},
		{
			name:  "unterminated final event flushed",
			input: "data: tail",
			want:  []Event{{Data: "tail"}},
		},
		{
			name:  "no space after colon",
			input: "data:{\"k\":true}\n\n",
			want:  []Event{{Data: `{"k":true}`}},
		},
		{
			name:  "surrounding whitespace kept",
			input: "data:   indented  \ndata:\tx\n\n",
			want:  []Event{{Data: "  indented  \n\tx"}},
		},
		{
			name:  "empty stream",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events %+v, want %d %+v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScannerEOFIsSticky(t *testing.T) {
	s := NewScanner(strings.NewReader("data: [DONE]\n\n"))
	for i := 0; i < 3; i++ {
		if _, err := s.Next(); !errors.Is(err, io.EOF) {
			t.Fatalf("call %d: expected io.EOF, got %v", i, err)
		}
	}
}

func TestScannerLineTooLong(t *testing.T) {
	long := "data: " + strings.Repeat("x", maxLineSize+10) + "\n\n"
	s := NewScanner(strings.NewReader(long))
	_, err := s.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected scanner error, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Type string `json:"type"`
		N    int    `json:"n"`
	}

	if err := DecodeJSON(`{"type":"ok","n":3}`, &v); err != nil || v.Type != "ok" || v.N != 3 {
		t.Fatalf("valid JSON: got %+v, %v", v, err)
	}

	v.Type, v.N = "", 0
	if err := DecodeJSON(`{"type":"fixed","n":4,}`, &v); err != nil {
		t.Fatalf("expected trailing comma to be repaired, got %v", err)
	}
	if v.Type != "fixed" || v.N != 4 {
		t.Errorf("repaired decode = %+v", v)
	}

	if err := DecodeJSON(`{"type": 5}`, &v); err == nil {
		t.Error("expected type mismatch to fail")
	}
}

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing Accept header")
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("custom header not applied")
		}
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
			return
		}
		_, _ = w.Write([]byte("data: hi\n\n"))
	}))
	defer srv.Close()

	headers := map[string]string{"x-goog-api-key": "k"}

	resp, err := Post(context.Background(), srv.Client(), srv.URL+"/ok", []byte(`{}`), headers)
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	ev, err := NewScanner(resp.Body).Next()
	if err != nil || ev.Data != "hi" {
		t.Errorf("Next() = %+v, %v", ev, err)
	}

	_, err = Post(context.Background(), srv.Client(), srv.URL+"/fail", []byte(`{}`), headers)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest || !strings.Contains(string(se.Body), "bad") {
		t.Errorf("StatusError = %+v", se)
	}
}
