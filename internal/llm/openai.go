package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	app_errors "servimatt/chat/internal/errors"
)

// LLMProvider defines the interface for interacting with a chat-completion endpoint.
type LLMProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	Stream(ctx context.Context, req *CompletionRequest) (ChunkStream, error)
	ListModels(ctx context.Context) (*ListModelsResponse, error)
}

// ChunkStream is a finite, non-restartable sequence of text fragments.
// Usage mirrors bufio.Scanner:
//
//	for s.Next() { use(s.Chunk()) }
//	if err := s.Err(); err != nil { ... }
type ChunkStream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the conversation history. SystemPrompt is sent
// as the first message ahead of Messages.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type errorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type ListModelsResponse struct {
	Models []Model `json:"data"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return app_errors.ErrTransport }

type openAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates a client for an OpenAI-compatible API rooted at
// baseURL (e.g. https://api.openai.com/v1). No timeout is set on the client:
// streams last as long as the provider keeps sending.
func NewOpenAIProvider(baseURL, apiKey string) LLMProvider {
	return &openAIProvider{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *openAIProvider) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return "", fmt.Errorf("failed to get AI response: %w", err)
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to get AI response: %w: could not decode response: %w", app_errors.ErrTransport, err)
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("failed to get AI response: %w: no completion returned", app_errors.ErrTransport)
	}
	return body.Choices[0].Message.Content, nil
}

func (p *openAIProvider) Stream(ctx context.Context, req *CompletionRequest) (ChunkStream, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI response: %w", err)
	}
	return newSSEStream(ctx, resp.Body), nil
}

func (p *openAIProvider) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	if p.apiKey == "" {
		return nil, errMissingKey()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", app_errors.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp)
	}
	var models ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("%w: could not decode models: %w", app_errors.ErrTransport, err)
	}
	return &models, nil
}

// post sends one chat-completions request and returns the response only when
// it is 2xx. The caller owns the body.
func (p *openAIProvider) post(ctx context.Context, req *CompletionRequest, stream bool) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, errMissingKey()
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", app_errors.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newAPIError(resp)
	}
	return resp, nil
}

func errMissingKey() error {
	return fmt.Errorf("%w: API key is not set, add OPENAI_API_KEY to your environment or .env file", app_errors.ErrNotConfigured)
}

// newAPIError prefers the provider's own error message over the status line.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("API error: %s", resp.Status),
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var body errorBody
	if json.Unmarshal(data, &body) == nil && body.Error != nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// sseStream decodes `data: <json>` lines from a chat-completions stream.
type sseStream struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	chunk   string
	err     error
	done    bool
}

func newSSEStream(ctx context.Context, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &sseStream{ctx: ctx, body: body, scanner: scanner}
}

func (s *sseStream) Next() bool {
	if s.done {
		return false
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == doneMarker {
			s.finish(nil)
			return false
		}
		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			slog.Warn("Skipping malformed stream event", "error", err, "payload", payload)
			continue
		}
		if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
			continue
		}
		s.chunk = event.Choices[0].Delta.Content
		return true
	}

	err := s.scanner.Err()
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if err != nil {
		err = fmt.Errorf("failed to stream AI response: %w: %w", app_errors.ErrTransport, err)
	}
	s.finish(err)
	return false
}

func (s *sseStream) Chunk() string { return s.chunk }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	if errors.Is(err, http.ErrBodyReadAfterClose) {
		return nil
	}
	return err
}

func (s *sseStream) finish(err error) {
	s.done = true
	s.chunk = ""
	s.err = err
	if cerr := s.Close(); cerr != nil {
		slog.Debug("Failed to close completion stream body", "error", cerr)
	}
}
