package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"copilot-gateway/internal/account"
	"copilot-gateway/internal/convert"
	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"github.com/google/uuid"
)

// SessionSource yields the Authorization value for Copilot calls.
type SessionSource interface {
	SessionHeader() (string, error)
}

// ChatResult is the outcome of a chat call: either Complete or Streaming.
type ChatResult interface {
	isChatResult()
}

// Complete holds a non-streaming upstream response body.
type Complete struct {
	Body []byte
}

// Streaming holds the upstream event sequence of a streaming call.
type Streaming struct {
	Events *EventStream
}

func (Complete) isChatResult()  {}
func (Streaming) isChatResult() {}

// Invoker issues requests to the Copilot backend. Each call is sent exactly
// once; failures are never retried.
type Invoker struct {
	httpClient    *http.Client
	baseURL       string
	vscodeVersion string
	session       SessionSource
	logger        core.Logger
	requestID     func() string
}

// NewInvoker creates an Invoker for the given Copilot base URL.
func NewInvoker(httpClient *http.Client, baseURL, vscodeVersion string, session SessionSource, logger core.Logger) *Invoker {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if vscodeVersion == "" {
		vscodeVersion = core.DefaultVSCodeVersion
	}
	return &Invoker{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		vscodeVersion: vscodeVersion,
		session:       session,
		logger:        logger,
		requestID:     uuid.NewString,
	}
}

type callOptions struct {
	vision bool
	agent  bool
	stream bool
}

func (i *Invoker) newRequest(ctx context.Context, method, path string, body []byte, opts callOptions) (*http.Request, error) {
	auth, err := i.session.SessionHeader()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(core.HeaderAuthorization, auth)
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	req.Header.Set(core.HeaderCopilotIntegrationID, core.CopilotIntegrationID)
	req.Header.Set(core.HeaderOpenAIIntent, core.CopilotOpenAIIntent)
	req.Header.Set(core.HeaderRequestID, i.requestID())
	account.SetEditorHeaders(req.Header, i.vscodeVersion)

	if opts.stream {
		req.Header.Set(core.HeaderAccept, core.ContentTypeEventStream)
		req.Header.Set(core.HeaderCacheControl, core.CacheControlNoCache)
	} else {
		req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	}
	if opts.vision {
		req.Header.Set(core.HeaderCopilotVision, "true")
	}
	if method == http.MethodPost && path == core.CopilotChatCompletionsPath {
		initiator := core.InitiatorUser
		if opts.agent {
			initiator = core.InitiatorAgent
		}
		req.Header.Set(core.HeaderInitiator, initiator)
	}
	return req, nil
}

// send performs the request and turns any non-2xx status into an UpstreamError.
func (i *Invoker) send(req *http.Request) (*http.Response, error) {
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	i.logger.Debug("Copilot %s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
		if readErr != nil {
			i.logger.Warn("Failed to read upstream error body: %v", readErr)
		}
		i.logger.Error("Copilot %s failed with status %d: %s", req.URL.Path, resp.StatusCode, util.TruncateString(string(body), 200, 0, "..."))
		return nil, &core.UpstreamError{Status: resp.StatusCode, Body: body, Header: resp.Header.Clone()}
	}
	return resp, nil
}

func (i *Invoker) readAll(req *http.Request) ([]byte, error) {
	resp, err := i.send(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	return body, nil
}

// ChatCompletions sends a translated chat request. Streaming requests yield a
// Streaming result whose events must be closed by the caller.
func (i *Invoker) ChatCompletions(ctx context.Context, chat *convert.Request) (ChatResult, error) {
	req, err := i.newRequest(ctx, http.MethodPost, core.CopilotChatCompletionsPath, chat.Body, callOptions{
		vision: chat.Vision,
		agent:  chat.Agent,
		stream: chat.Stream,
	})
	if err != nil {
		return nil, err
	}

	i.logger.Debug("Chat completion: model=%s stream=%v vision=%v agent=%v size=%d",
		chat.Model, chat.Stream, chat.Vision, chat.Agent, len(chat.Body))

	if !chat.Stream {
		body, err := i.readAll(req)
		if err != nil {
			return nil, err
		}
		return Complete{Body: body}, nil
	}

	resp, err := i.send(req)
	if err != nil {
		return nil, err
	}
	return Streaming{Events: NewEventStream(resp.Body, i.logger)}, nil
}

// Embeddings forwards an embeddings request and returns the raw upstream body.
func (i *Invoker) Embeddings(ctx context.Context, in *core.EmbeddingRequest) ([]byte, error) {
	payload, err := util.MarshalJSON(in)
	if err != nil {
		return nil, fmt.Errorf("encode embeddings request: %w", err)
	}
	req, err := i.newRequest(ctx, http.MethodPost, core.CopilotEmbeddingsPath, payload, callOptions{})
	if err != nil {
		return nil, err
	}
	return i.readAll(req)
}

// Models fetches the raw model listing.
func (i *Invoker) Models(ctx context.Context) ([]byte, error) {
	req, err := i.newRequest(ctx, http.MethodGet, core.CopilotModelsPath, nil, callOptions{})
	if err != nil {
		return nil, err
	}
	req.Header.Del(core.HeaderContentType)
	return i.readAll(req)
}
