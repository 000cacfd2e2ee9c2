package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
)

// Client calls a diagnostics Server.
type Client struct {
	status  *connect.Client[emptypb.Empty, structpb.Struct]
	agents  *connect.Client[emptypb.Empty, structpb.Struct]
	history *connect.Client[structpb.Struct, structpb.Struct]
	events  *connect.Client[structpb.Struct, structpb.Struct]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		status:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetStatusProcedure, opts...),
		agents:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ListAgentsProcedure, opts...),
		history: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetHistoryProcedure, opts...),
		events:  connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetEventsProcedure, opts...),
	}
}

func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, fmt.Errorf("GetStatus failed: %w", err)
	}

	var report StatusReport
	if err := decode(resp.Msg, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Agents(ctx context.Context) ([]hub.AgentRecord, error) {
	resp, err := c.agents.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, fmt.Errorf("ListAgents failed: %w", err)
	}

	var body struct {
		Agents []hub.AgentRecord `json:"agents"`
	}
	if err := decode(resp.Msg, &body); err != nil {
		return nil, err
	}
	return body.Agents, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]hub.HistoryRecord, error) {
	req, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}

	resp, err := c.history.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("GetHistory failed: %w", err)
	}

	var body struct {
		Messages []hub.HistoryRecord `json:"messages"`
	}
	if err := decode(resp.Msg, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (c *Client) Events(ctx context.Context, eventType observability.EventType, limit int) ([]EventRecord, error) {
	req, err := structpb.NewStruct(map[string]any{
		"type":  string(eventType),
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.events.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("GetEvents failed: %w", err)
	}

	var body struct {
		Events []EventRecord `json:"events"`
	}
	if err := decode(resp.Msg, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

func decode(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
