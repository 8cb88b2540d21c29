package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const apiKeyHeader = "X-API-KEY"

// HTTPEngineClient is an HTTP implementation of the EngineClient interface.
type HTTPEngineClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPEngineClient creates a new HTTPEngineClient.
func NewHTTPEngineClient(baseURL, apiKey string) *HTTPEngineClient {
	return &HTTPEngineClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  http.DefaultClient,
	}
}

// CreateWorkflow deploys a workflow document and returns the engine id. The
// document is reduced to the fields the engine's create endpoint accepts;
// anything else in the stored document (pinned data, tags, stale ids) makes
// the engine reject the request.
func (c *HTTPEngineClient) CreateWorkflow(ctx context.Context, name, document string) (string, error) {
	payload, err := sanitizeWorkflow(name, document)
	if err != nil {
		return "", err
	}

	var created EngineWorkflow
	if err := c.do(ctx, "POST", "/api/v1/workflows", payload, &created); err != nil {
		return "", fmt.Errorf("failed to create workflow: %w", err)
	}
	return created.ID, nil
}

// UpdateWorkflow replaces the document of an existing workflow.
func (c *HTTPEngineClient) UpdateWorkflow(ctx context.Context, id, name, document string) error {
	payload, err := sanitizeWorkflow(name, document)
	if err != nil {
		return err
	}
	if err := c.do(ctx, "PUT", "/api/v1/workflows/"+url.PathEscape(id), payload, nil); err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", id, err)
	}
	return nil
}

// GetWorkflow fetches a workflow's metadata.
func (c *HTTPEngineClient) GetWorkflow(ctx context.Context, id string) (*EngineWorkflow, error) {
	var wf EngineWorkflow
	if err := c.do(ctx, "GET", "/api/v1/workflows/"+url.PathEscape(id), nil, &wf); err != nil {
		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}
	return &wf, nil
}

// ActivateWorkflow switches a workflow's trigger on.
func (c *HTTPEngineClient) ActivateWorkflow(ctx context.Context, id string) error {
	if err := c.do(ctx, "POST", "/api/v1/workflows/"+url.PathEscape(id)+"/activate", nil, nil); err != nil {
		return fmt.Errorf("failed to activate workflow %s: %w", id, err)
	}
	return nil
}

// DeactivateWorkflow switches a workflow's trigger off.
func (c *HTTPEngineClient) DeactivateWorkflow(ctx context.Context, id string) error {
	if err := c.do(ctx, "POST", "/api/v1/workflows/"+url.PathEscape(id)+"/deactivate", nil, nil); err != nil {
		return fmt.Errorf("failed to deactivate workflow %s: %w", id, err)
	}
	return nil
}

// CreateCredential stores a secret in the engine's vault and returns the
// engine credential id.
func (c *HTTPEngineClient) CreateCredential(ctx context.Context, name, credType string, data map[string]string) (string, error) {
	payload := map[string]interface{}{
		"name": name,
		"type": credType,
		"data": data,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "/api/v1/credentials", payload, &created); err != nil {
		return "", fmt.Errorf("failed to create credential: %w", err)
	}
	return created.ID, nil
}

// ListExecutions returns the runs recorded for a workflow, newest first.
func (c *HTTPEngineClient) ListExecutions(ctx context.Context, workflowID string) ([]EngineExecution, error) {
	var out struct {
		Data []EngineExecution `json:"data"`
	}
	path := "/api/v1/executions?workflowId=" + url.QueryEscape(workflowID)
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return out.Data, nil
}

// GetExecution fetches a single run by its engine id.
func (c *HTTPEngineClient) GetExecution(ctx context.Context, id string) (*EngineExecution, error) {
	var exec EngineExecution
	if err := c.do(ctx, "GET", "/api/v1/executions/"+url.PathEscape(id), nil, &exec); err != nil {
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}
	return &exec, nil
}

func (c *HTTPEngineClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// sanitizeWorkflow reduces a stored workflow document to the shape the
// engine's create/update endpoints accept: name, nodes, connections and
// settings. Node ids are coerced to strings and unknown node fields dropped.
func sanitizeWorkflow(name, document string) (map[string]interface{}, error) {
	var doc struct {
		Nodes       []map[string]interface{} `json:"nodes"`
		Connections map[string]interface{}   `json:"connections"`
		Settings    map[string]interface{}   `json:"settings"`
	}
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("workflow document is not valid JSON: %w", err)
	}

	nodes := make([]map[string]interface{}, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		node := map[string]interface{}{}
		if id, ok := n["id"]; ok {
			node["id"] = fmt.Sprintf("%v", id)
		}
		for _, key := range []string{"name", "type", "typeVersion", "position", "parameters", "credentials"} {
			if v, ok := n[key]; ok {
				node[key] = v
			}
		}
		nodes = append(nodes, node)
	}

	connections := doc.Connections
	if connections == nil {
		connections = map[string]interface{}{}
	}
	settings := doc.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}

	return map[string]interface{}{
		"name":        name,
		"nodes":       nodes,
		"connections": connections,
		"settings":    settings,
	}, nil
}
