// Package stream carries generated chunks from a running turn to the caller
// as one ordered sequence, however many generation passes produce them.
package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/m2tx/agent_chat/internal/model"
)

// ErrClosed is returned when emitting after the terminal chunk.
var ErrClosed = errors.New("stream: already terminated")

// FinishReasonStop is the finish reason of a normally completed turn.
const FinishReasonStop = "stop"

// Stream is a single-producer, single-consumer chunk pipe. Exactly one
// terminal chunk (finish or error) is ever delivered, after which the
// channel returned by Chunks is closed.
type Stream struct {
	ch chan model.Chunk

	mu         sync.Mutex
	terminated bool
	closeOnce  sync.Once
}

// New creates a stream with the given buffer size.
func New(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan model.Chunk, buffer)}
}

// Chunks returns the receive side. It is closed after the terminal chunk.
func (s *Stream) Chunks() <-chan model.Chunk {
	return s.ch
}

// Terminated reports whether a terminal chunk has been accepted.
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Emit appends a non-terminal chunk. It blocks until the consumer has room
// or ctx ends.
func (s *Stream) Emit(ctx context.Context, chunk model.Chunk) error {
	if chunk.Terminal() {
		return errors.New("stream: use Finish or Fail for terminal chunks")
	}
	if s.Terminated() {
		return ErrClosed
	}
	return s.send(ctx, chunk)
}

// Finish appends the success marker and closes the stream.
func (s *Stream) Finish(ctx context.Context, reason string) error {
	if reason == "" {
		reason = FinishReasonStop
	}
	return s.terminate(ctx, model.Chunk{Kind: model.ChunkFinish, FinishReason: reason})
}

// Fail appends the error marker and closes the stream.
func (s *Stream) Fail(ctx context.Context, err error) error {
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return s.terminate(ctx, model.Chunk{Kind: model.ChunkError, Err: msg})
}

// Abort closes the stream without a terminal chunk being delivered. Used
// when the consumer is gone. Later Finish or Fail calls return ErrClosed.
func (s *Stream) Abort() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
	s.close()
}

func (s *Stream) terminate(ctx context.Context, chunk model.Chunk) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return ErrClosed
	}
	s.terminated = true
	s.mu.Unlock()

	defer s.close()
	return s.send(ctx, chunk)
}

func (s *Stream) send(ctx context.Context, chunk model.Chunk) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case s.ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
