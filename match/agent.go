package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Agents get at most this much response body; anything larger is treated as
// a misbehaving agent.
const maxAgentResponseBytes = 1 << 20

// AgentRequest is the JSON body POSTed to an agent's registered URL.
type AgentRequest struct {
	Game      string          `json:"game"`
	Agentname string          `json:"agentname"`
	State     json.RawMessage `json:"state"`
	AgentData json.RawMessage `json:"agent_data,omitempty"`
}

// AgentResponse is what a well-behaved agent answers with. AgentData is an
// opaque blob stored for the agent's next turn; its contents are never
// interpreted.
type AgentResponse struct {
	Action    json.RawMessage `json:"action"`
	AgentData json.RawMessage `json:"agent_data,omitempty"`
}

// AgentClient calls remote agents. The client timeout is deliberately
// shorter than the lease TTL so a slow agent cannot outlive our lease.
type AgentClient struct {
	client *http.Client
}

func NewAgentClient(timeout time.Duration) *AgentClient {
	return &AgentClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Call performs one agent exchange. Any returned error is terminal for the
// match: transport failures, non-2xx statuses, oversized or non-JSON bodies
// and shape violations are all treated alike.
func (c *AgentClient) Call(ctx context.Context, url string, req *AgentRequest) (*AgentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid agent url: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %v", err)
	}
	if len(data) > maxAgentResponseBytes {
		return nil, fmt.Errorf("agent response exceeds %d bytes", maxAgentResponseBytes)
	}

	var out AgentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("agent response is not valid JSON: %v", err)
	}
	if len(out.Action) == 0 {
		return nil, fmt.Errorf("agent response is missing an action")
	}
	return &out, nil
}
