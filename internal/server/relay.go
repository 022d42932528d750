package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"copilot-gateway/internal/convert"
	"copilot-gateway/internal/core"
	"copilot-gateway/internal/process"
	"copilot-gateway/internal/util"

	"github.com/gin-gonic/gin"
)

// eventEncoder turns one upstream chunk into the payload of one SSE data line.
type eventEncoder func(chunk []byte) ([]byte, error)

func passThrough(chunk []byte) ([]byte, error) {
	return chunk, nil
}

func anthropicChunkEncoder(requestModel string) eventEncoder {
	translator := convert.NewChunkTranslator(requestModel)
	return func(chunk []byte) ([]byte, error) {
		msg, err := translator.Translate(chunk)
		if err != nil {
			return nil, err
		}
		return util.MarshalJSON(msg)
	}
}

// chatCall is one consumer chat request on its way upstream.
type chatCall struct {
	format string
	// model is the id named by the consumer, used for admission and metrics.
	model     string
	translate func() (*convert.Request, error)
	encode    eventEncoder
	complete  func(body []byte) ([]byte, error)
}

type chatOutcome int

const (
	chatFailed chatOutcome = iota
	chatCompleted
	// chatAborted means a stream broke after the response was committed.
	chatAborted
)

// serveChat admits, translates and runs a chat call, then writes the result
// in the consumer's format and records it. A stream that breaks after the
// response was committed aborts the connection so the consumer's transport
// sees the failure.
func (s *Server) serveChat(c *gin.Context, start time.Time, call chatCall) {
	outcome := s.runChat(c, call)
	s.recordChat(c, start, outcome == chatCompleted, call.model)
	if outcome == chatAborted {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) runChat(c *gin.Context, call chatCall) chatOutcome {
	ctx := c.Request.Context()

	if err := s.gate.Admit(ctx, admissionSummary(c, call.model)); err != nil {
		s.respondWithError(c, call.format, err)
		return chatFailed
	}

	chat, err := call.translate()
	if err != nil {
		s.respondWithError(c, call.format, err)
		return chatFailed
	}

	result, err := s.invoker.ChatCompletions(ctx, chat)
	if err != nil {
		s.respondWithError(c, call.format, err)
		return chatFailed
	}

	switch r := result.(type) {
	case process.Complete:
		body, err := call.complete(r.Body)
		if err != nil {
			s.respondWithError(c, call.format, err)
			return chatFailed
		}
		c.Data(http.StatusOK, core.ContentTypeJSON, body)
		return chatCompleted
	case process.Streaming:
		if err := s.relay(c, r.Events, call.encode); err != nil {
			s.logger.Warn("Stream for model %s ended early: %v", chat.Model, err)
			return chatAborted
		}
		return chatCompleted
	default:
		s.respondWithError(c, call.format, fmt.Errorf("unexpected chat result %T", result))
		return chatFailed
	}
}

// relay forwards upstream events as SSE. The terminal marker is written only
// after the upstream reported its own; an interrupted stream ends without one.
func (s *Server) relay(c *gin.Context, events *process.EventStream, encode eventEncoder) error {
	defer func() { _ = events.Close() }()

	ctx := c.Request.Context()
	setStreamingHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		chunk, err := events.Next(ctx)
		if errors.Is(err, io.EOF) {
			if _, werr := writeSSEDone(c.Writer); werr != nil {
				return fmt.Errorf("write terminal event: %w", werr)
			}
			c.Writer.Flush()
			return nil
		}
		if err != nil {
			return err
		}

		payload, err := encode(chunk)
		if err != nil {
			s.logger.Warn("Dropping untranslatable stream event: %v", err)
			continue
		}
		if _, err := writeSSEData(c.Writer, payload); err != nil {
			return fmt.Errorf("write stream event: %w", err)
		}
		c.Writer.Flush()
	}
}

// recordChat stores the outcome of a chat exchange.
func (s *Server) recordChat(c *gin.Context, start time.Time, ok bool, model string) {
	if errors.Is(c.Request.Context().Err(), context.Canceled) {
		s.logger.Debug("Client disconnected from %s", c.FullPath())
	}
	s.metricsService.RecordSince(start, ok, model, c.FullPath())
}
