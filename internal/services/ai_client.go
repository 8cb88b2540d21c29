package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPAIClient is an HTTP implementation of the AIClient interface. The
// sidecar owns prompting and model choice; this client only forwards.
type HTTPAIClient struct {
	baseURL string
	apiKey  string
	model   string
}

// NewHTTPAIClient creates a new HTTPAIClient.
func NewHTTPAIClient(baseURL, apiKey, model string) *HTTPAIClient {
	return &HTTPAIClient{baseURL: baseURL, apiKey: apiKey, model: model}
}

// Generate asks the sidecar to draft a workflow document and input schema
// from a natural-language prompt.
func (c *HTTPAIClient) Generate(ctx context.Context, prompt, provider string) (*GeneratedWorkflow, error) {
	requestBody, err := json.Marshal(map[string]string{
		"prompt":   prompt,
		"provider": provider,
		"model":    c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to generate workflow: status code %d", resp.StatusCode)
	}

	var generated GeneratedWorkflow
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return &generated, nil
}
