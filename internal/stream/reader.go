// Package stream decodes the chat event stream: newline-delimited
// `data: <json>` frames, read incrementally from the response body.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"vita-chat/internal/model"
	"vita-chat/pkg/logger"
)

// DefaultMaxFrameBytes bounds a single frame when no limit is configured.
const DefaultMaxFrameBytes = 1 << 20

var (
	ErrMalformedEvent = errors.New("malformed stream event")
	// ErrStreamClosed means the body ended before a terminal event.
	ErrStreamClosed = errors.New("stream closed unexpectedly")
	// ErrStreamIdle means nothing arrived within the idle timeout.
	ErrStreamIdle = errors.New("stream idle timeout")
)

var dataPrefix = []byte("data:")

// Reader yields events in arrival order. Partial frames are buffered until
// their newline arrives, so a payload split across reads decodes intact.
type Reader struct {
	br       *bufio.Reader
	maxFrame int
	frames   int
	dropped  int
}

func NewReader(r io.Reader, maxFrameBytes int) *Reader {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Reader{
		br:       bufio.NewReaderSize(r, 32*1024),
		maxFrame: maxFrameBytes,
	}
}

// Next returns the next well-formed event. Malformed frames are logged and
// skipped. At the end of the body it returns io.EOF; read failures are
// returned as-is.
func (r *Reader) Next() (model.StreamEvent, error) {
	for {
		line, err := r.readLine()
		if len(line) > 0 {
			if ev, ok := r.decode(line); ok {
				return ev, nil
			}
		}
		if err != nil {
			return model.StreamEvent{}, err
		}
	}
}

// Dropped is the number of malformed frames skipped so far.
func (r *Reader) Dropped() int {
	return r.dropped
}

func (r *Reader) decode(line []byte) (model.StreamEvent, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataPrefix) {
		// event:, id:, retry:, comments and blank separators
		return model.StreamEvent{}, false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, []byte("[DONE]")) {
		return model.StreamEvent{}, false
	}

	r.frames++
	var ev model.StreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.drop(fmt.Errorf("%w: %v", ErrMalformedEvent, err), payload)
		return model.StreamEvent{}, false
	}
	if ev.Type == "" {
		r.drop(fmt.Errorf("%w: missing type", ErrMalformedEvent), payload)
		return model.StreamEvent{}, false
	}
	return ev, true
}

func (r *Reader) drop(err error, payload []byte) {
	r.dropped++
	preview := payload
	if len(preview) > 120 {
		preview = preview[:120]
	}
	logger.WithFields(logger.Fields{
		"frame":   r.frames,
		"payload": string(preview),
	}).Warnf("dropping stream frame: %v", err)
}

// readLine returns one line including its newline. Lines over the frame
// limit are discarded whole and reported as malformed.
func (r *Reader) readLine() ([]byte, error) {
	var buf []byte
	oversized := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > r.maxFrame {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if oversized {
			r.frames++
			r.drop(fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedEvent, r.maxFrame), nil)
			if err != nil {
				return nil, err
			}
			return nil, nil
		}
		return buf, err
	}
}
