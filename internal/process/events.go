package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"copilot-gateway/internal/core"

	"github.com/tidwall/gjson"
)

var dataPrefix = []byte("data:")

// EventStream is a single-pass reader over an upstream server-sent event
// stream. It is not safe for concurrent use and cannot be restarted.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  core.Logger

	err       error
	closeOnce sync.Once
}

// NewEventStream wraps an upstream response body.
func NewEventStream(body io.ReadCloser, logger core.Logger) *EventStream {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), core.MaxScannerBufferSize)
	return &EventStream{body: body, scanner: scanner, logger: logger}
}

// Next returns the payload of the next data event. It returns io.EOF once the
// [DONE] event has been read and core.ErrStreamInterrupted when the stream
// ends without it. Events that are not valid JSON are logged and skipped.
func (s *EventStream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		if err := ctx.Err(); err != nil {
			s.err = err
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = fmt.Errorf("%w: %v", core.ErrStreamInterrupted, err)
			} else {
				s.err = core.ErrStreamInterrupted
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.err = ctxErr
			}
			return nil, s.err
		}

		line := bytes.TrimSpace(s.scanner.Bytes())
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimSpace(line[len(dataPrefix):])
		if len(data) == 0 {
			continue
		}
		if string(data) == core.StreamChunkDoneMessage {
			s.err = io.EOF
			return nil, io.EOF
		}
		if !gjson.ValidBytes(data) {
			s.logger.Warn("Skipping malformed upstream event: %s", truncateBytes(data, 120))
			continue
		}
		return bytes.Clone(data), nil
	}
}

// Close releases the upstream body. It is safe to call more than once.
func (s *EventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
