package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errSinkClosed = errors.New("logger: sink closed")

// sink hands lines to a single writer goroutine so slow outputs never block
// a handler for long. A full queue does block, so lines are not dropped.
// A failed output write loses the buffered lines only; the error is kept
// until Flush or Close reports it and later lines are written as usual.
type sink struct {
	lines chan []byte
	flush chan chan error
	done  chan struct{}
	dst   io.Writer
	out   *bufio.Writer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newSink(ws ...io.Writer) *sink {
	dst := io.MultiWriter(ws...)
	s := &sink{
		lines: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
		dst:   dst,
		out:   bufio.NewWriterSize(dst, 64*1024),
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.fail(s.out.Flush())
				return
			}
			s.put(line)
			if len(s.lines) == 0 {
				s.fail(s.out.Flush())
			}
		case ack := <-s.flush:
			s.drain()
			s.fail(s.out.Flush())
			ack <- s.take()
		}
	}
}

func (s *sink) put(line []byte) {
	if _, err := s.out.Write(line); err != nil {
		s.fail(err)
	}
}

func (s *sink) drain() {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			s.put(line)
		default:
			return
		}
	}
}

// Write queues a copy of p. Earlier output errors do not stop it.
func (s *sink) Write(p []byte) (int, error) {
	line := append([]byte(nil), p...)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errSinkClosed
	}
	s.lines <- line
	return len(p), nil
}

// Flush waits until every queued line reached the outputs and reports the
// first output error seen since the previous Flush.
func (s *sink) Flush() error {
	ack := make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return s.take()
	}
	s.flush <- ack
	s.mu.RUnlock()
	return <-ack
}

// Close drains the queue and stops the writer goroutine.
func (s *sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.lines)
	}
	s.mu.Unlock()
	<-s.done
	return s.take()
}

// fail records err and resets the buffer, which bufio would otherwise keep
// refusing writes with. Only the writer goroutine calls it.
func (s *sink) fail(err error) {
	if err == nil {
		return
	}
	s.out.Reset(s.dst)
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// take returns the pending output error and clears it.
func (s *sink) take() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}
