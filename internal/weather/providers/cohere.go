package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/weather-dashboard/internal/assistant"
	"github.com/sony/gobreaker"
)

const (
	DefaultCohereURL   = "https://api.cohere.com"
	DefaultCohereModel = "command-a-03-2025"
)

var errNoAPIKey = errors.New("cohere api key is not configured")

// CohereClient implements assistant.Completer against the Cohere v2 chat API.
type CohereClient struct {
	apiKey  string
	baseURL string
	model   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ assistant.Completer = (*CohereClient)(nil)

// NewCohereClient creates a client. Empty baseURL or model select the defaults.
func NewCohereClient(client *http.Client, apiKey, baseURL, model string) *CohereClient {
	if baseURL == "" {
		baseURL = DefaultCohereURL
	}
	if model == "" {
		model = DefaultCohereModel
	}

	return &CohereClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff,
		},
		circuit: newCircuitBreaker("cohere"),
	}
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereChatRequest struct {
	Model    string          `json:"model"`
	Messages []cohereMessage `json:"messages"`
}

type cohereChatResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// Complete sends a system and user message and returns the first text reply.
func (c *CohereClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", errNoAPIKey
	}

	body, err := json.Marshal(cohereChatRequest{
		Model: c.model,
		Messages: []cohereMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v2/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload cohereChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode cohere response: %w", err)
	}

	for _, part := range payload.Message.Content {
		if part.Type == "text" || part.Type == "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("cohere response has no text content")
}
