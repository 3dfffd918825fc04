package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// ErrChunkTimeout is returned when no data is received within the timeout period
var ErrChunkTimeout = errors.New("stream chunk timeout: no data received")

// defaultChunkTimeout applies when the config leaves chunk_timeout unset
const defaultChunkTimeout = 2 * time.Minute

// eventStream is the part of the SDK stream the wrapper needs
type eventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

var _ eventStream = (*ssestream.Stream[anthropic.MessageStreamEventUnion])(nil)

type streamResult struct {
	hasNext bool
	event   anthropic.MessageStreamEventUnion
}

// StreamWrapper makes the SDK's blocking iterator interruptible by context
// and by a per-chunk timeout.
type StreamWrapper struct {
	stream       eventStream
	ctx          context.Context
	results      chan streamResult
	stop         chan struct{}
	stopOnce     sync.Once
	chunkTimeout time.Duration
	started      bool
}

// NewStreamWrapper wraps stream. A zero timeout uses two minutes.
func NewStreamWrapper(ctx context.Context, stream eventStream, timeout time.Duration) *StreamWrapper {
	if timeout <= 0 {
		timeout = defaultChunkTimeout
	}
	return &StreamWrapper{
		stream:       stream,
		ctx:          ctx,
		results:      make(chan streamResult, 1),
		stop:         make(chan struct{}),
		chunkTimeout: timeout,
	}
}

func (sw *StreamWrapper) startReader() {
	if sw.started {
		return
	}
	sw.started = true

	go func() {
		for {
			hasNext := sw.stream.Next()

			var event anthropic.MessageStreamEventUnion
			if hasNext {
				event = sw.stream.Current()
			}

			select {
			case sw.results <- streamResult{hasNext: hasNext, event: event}:
			case <-sw.ctx.Done():
				return
			case <-sw.stop:
				return
			}

			if !hasNext {
				return
			}
		}
	}()
}

// Next returns (event, hasMore, error). hasMore is false with a nil error
// when the stream ended normally.
func (sw *StreamWrapper) Next() (anthropic.MessageStreamEventUnion, bool, error) {
	sw.startReader()

	timer := time.NewTimer(sw.chunkTimeout)
	defer timer.Stop()

	select {
	case result := <-sw.results:
		if result.hasNext {
			return result.event, true, nil
		}
		return anthropic.MessageStreamEventUnion{}, false, sw.stream.Err()

	case <-sw.ctx.Done():
		return anthropic.MessageStreamEventUnion{}, false, sw.ctx.Err()

	case <-timer.C:
		return anthropic.MessageStreamEventUnion{}, false, ErrChunkTimeout
	}
}

// Close stops the reader and closes the underlying stream
func (sw *StreamWrapper) Close() error {
	sw.stopOnce.Do(func() { close(sw.stop) })
	return sw.stream.Close()
}

// Err returns any error from the underlying stream
func (sw *StreamWrapper) Err() error {
	return sw.stream.Err()
}
