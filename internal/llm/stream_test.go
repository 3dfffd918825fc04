package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// fakeStream replays events, optionally blocking before the first one
type fakeStream struct {
	events []anthropic.MessageStreamEventUnion
	block  chan struct{}
	pos    int
	err    error
	closed bool
}

func (f *fakeStream) Next() bool {
	if f.block != nil {
		<-f.block
	}
	if f.pos >= len(f.events) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeStream) Current() anthropic.MessageStreamEventUnion { return f.events[f.pos-1] }
func (f *fakeStream) Err() error                                 { return f.err }
func (f *fakeStream) Close() error                               { f.closed = true; return nil }

func TestStreamWrapper_Drains(t *testing.T) {
	fs := &fakeStream{events: []anthropic.MessageStreamEventUnion{{Type: "message_start"}, {Type: "message_stop"}}}
	sw := NewStreamWrapper(context.Background(), fs, time.Second)

	var types []string
	for {
		ev, more, err := sw.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !more {
			break
		}
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != "message_start" || types[1] != "message_stop" {
		t.Errorf("events = %v", types)
	}
	_ = sw.Close()
	if !fs.closed {
		t.Error("Close() should close the underlying stream")
	}
}

func TestStreamWrapper_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	sw := NewStreamWrapper(context.Background(), &fakeStream{block: block}, 20*time.Millisecond)
	defer func() { _ = sw.Close() }()

	_, more, err := sw.Next()
	if more || !errors.Is(err, ErrChunkTimeout) {
		t.Errorf("Next() = (%v, %v), want ErrChunkTimeout", more, err)
	}
}

func TestStreamWrapper_Cancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ctx, cancel := context.WithCancel(context.Background())
	sw := NewStreamWrapper(ctx, &fakeStream{block: block}, time.Minute)
	defer func() { _ = sw.Close() }()

	cancel()
	_, _, err := sw.Next()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestStreamWrapper_PropagatesStreamError(t *testing.T) {
	boom := errors.New("boom")
	sw := NewStreamWrapper(context.Background(), &fakeStream{err: boom}, time.Second)
	_, more, err := sw.Next()
	if more || !errors.Is(err, boom) {
		t.Errorf("Next() = (%v, %v), want boom", more, err)
	}
}
