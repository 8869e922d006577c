package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
	"unicode/utf8"
)

const (
	FallbackMessage           = "Sorry, I couldn't process your question. Please try again."
	ConnectionFallbackMessage = "Cannot connect to backend API. Please make sure the server is running."
)

const readSize = 4096

// Stream delivers a response body as text fragments in arrival order. It
// reads from the wire only when Next is called, so nothing is buffered ahead
// of the consumer except an incomplete UTF-8 sequence.
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	buf     []byte
	pending []byte
	readErr error

	fallback string
	done     bool
	err      error
	once     sync.Once
}

func newStream(ctx context.Context, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:  ctx,
		body: body,
		buf:  make([]byte, readSize),
	}
}

func failedStream(err *Error, fallback string) *Stream {
	return &Stream{
		fallback: fallback,
		err:      err,
	}
}

// Next returns the next fragment. It returns ok=false once the stream has
// ended; it never restarts.
func (s *Stream) Next() (string, bool) {
	if s.done {
		return "", false
	}

	if s.body == nil {
		if s.fallback != "" {
			fragment := s.fallback
			s.fallback = ""
			return fragment, true
		}
		s.done = true
		return "", false
	}

	for {
		if s.readErr != nil {
			return s.finish(s.readErr)
		}

		n, err := s.body.Read(s.buf)
		s.readErr = err

		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := len(data) - incompleteSuffix(data)
			if err != nil {
				cut = len(data)
			}
			fragment := string(data[:cut])
			s.pending = append([]byte(nil), data[cut:]...)
			if fragment != "" {
				return fragment, true
			}
		}
	}
}

func (s *Stream) finish(err error) (string, bool) {
	s.done = true
	if !errors.Is(err, io.EOF) {
		s.err = &Error{Kind: StreamInterrupted, Op: "query-stream", Err: s.cause(err)}
	}
	s.Close()

	if len(s.pending) > 0 {
		fragment := string(s.pending)
		s.pending = nil
		return fragment, true
	}
	return "", false
}

func (s *Stream) cause(err error) error {
	if s.ctx != nil && s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	return err
}

// Err reports why the stream ended: nil for a clean end, RequestFailed when
// the server refused the request, StreamInterrupted when the body broke off.
func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}

// incompleteSuffix is the length of a truncated multi-byte rune at the end of b.
func incompleteSuffix(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		c := b[len(b)-i]
		if utf8.RuneStart(c) {
			if c >= utf8.RuneSelf && !utf8.FullRune(b[len(b)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}
