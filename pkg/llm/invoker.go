package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/onramp-ai/onramp/pkg/models"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrKindTimeout ErrorKind = "timeout"
	ErrKindAuth    ErrorKind = "auth"
	ErrKindQuota   ErrorKind = "quota"
	ErrKindUnknown ErrorKind = "unknown"
)

// InvokeError is a classified failure from one provider attempt.
type InvokeError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }

// Invoker sends one prompt to one provider. Implementations do not retry;
// the Router owns retry policy.
type Invoker interface {
	Invoke(ctx context.Context, provider models.ProviderProfile, systemPrompt, query string) (string, error)
}

// HTTPInvoker calls OpenAI-compatible chat-completion endpoints.
type HTTPInvoker struct {
	Client *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke posts a chat completion to the provider and returns the answer
// text, or a classified *InvokeError.
func (h *HTTPInvoker) Invoke(ctx context.Context, provider models.ProviderProfile, systemPrompt, query string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: provider.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return "", &InvokeError{Provider: provider.Name, Kind: ErrKindUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &InvokeError{Provider: provider.Name, Kind: ErrKindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+provider.APIKey)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := ErrKindUnknown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = ErrKindTimeout
		}
		return "", &InvokeError{Provider: provider.Name, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &InvokeError{Provider: provider.Name, Kind: ErrKindUnknown, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &InvokeError{
			Provider: provider.Name,
			Kind:     classifyStatus(resp.StatusCode),
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &InvokeError{Provider: provider.Name, Kind: ErrKindUnknown, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &InvokeError{Provider: provider.Name, Kind: ErrKindUnknown, Err: errors.New("empty choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrKindAuth
	case code == http.StatusTooManyRequests:
		return ErrKindQuota
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return ErrKindTimeout
	default:
		return ErrKindUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
