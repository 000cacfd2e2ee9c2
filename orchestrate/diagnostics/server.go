package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
	"github.com/tailored-agentic-units/agentbus/orchestrate/runtime"
)

const ServiceName = "agentbus.diagnostics.v1.DiagnosticsService"

const (
	GetStatusProcedure  = "/" + ServiceName + "/GetStatus"
	ListAgentsProcedure = "/" + ServiceName + "/ListAgents"
	GetHistoryProcedure = "/" + ServiceName + "/GetHistory"
	GetEventsProcedure  = "/" + ServiceName + "/GetEvents"
)

const defaultLimit = 100

// EventSource serves recent observability events. Both
// observability.Recorder and sqlstore.Store satisfy it.
type EventSource interface {
	Recent(ctx context.Context, eventType observability.EventType, limit int) ([]observability.Event, error)
}

// StatusReport is the GetStatus response body.
type StatusReport struct {
	Bus      hub.Status       `json:"bus"`
	Runtimes []runtime.Status `json:"runtimes,omitempty"`
}

type EventRecord struct {
	Type      observability.EventType `json:"type"`
	Level     string                  `json:"level"`
	Timestamp time.Time               `json:"timestamp"`
	Source    string                  `json:"source"`
	Data      map[string]any          `json:"data,omitempty"`
}

type ServerOption func(*Server)

// WithRuntimes includes the runtimes' status in GetStatus.
func WithRuntimes(runtimes ...*runtime.Runtime) ServerOption {
	return func(s *Server) { s.runtimes = append(s.runtimes, runtimes...) }
}

// WithEvents enables GetEvents.
func WithEvents(source EventSource) ServerOption {
	return func(s *Server) { s.events = source }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// Server exposes a read-only view of a bus as Connect unary procedures.
// Requests and responses are google.protobuf.Struct messages, so any
// Connect, gRPC or gRPC-Web client can call it without generated stubs.
type Server struct {
	bus      hub.Bus
	runtimes []*runtime.Runtime
	events   EventSource
	logger   *slog.Logger
}

func NewServer(bus hub.Bus, opts ...ServerOption) *Server {
	s := &Server{
		bus:    bus,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the mount path and handler for the service.
func (s *Server) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, s.getStatus, opts...))
	mux.Handle(ListAgentsProcedure, connect.NewUnaryHandler(ListAgentsProcedure, s.listAgents, opts...))
	mux.Handle(GetHistoryProcedure, connect.NewUnaryHandler(GetHistoryProcedure, s.getHistory, opts...))
	mux.Handle(GetEventsProcedure, connect.NewUnaryHandler(GetEventsProcedure, s.getEvents, opts...))
	return "/" + ServiceName + "/", mux
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "diagnostics listening", slog.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("diagnostics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) getStatus(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	report := StatusReport{Bus: s.bus.Status()}
	for _, rt := range s.runtimes {
		report.Runtimes = append(report.Runtimes, rt.Status())
	}
	return respond(report)
}

func (s *Server) listAgents(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return respond(map[string]any{"agents": s.bus.Agents()})
}

func (s *Server) getHistory(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	limit := intField(req.Msg, "limit", defaultLimit)
	return respond(map[string]any{"messages": s.bus.History(limit)})
}

func (s *Server) getEvents(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.events == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("event source not configured"))
	}

	eventType := ""
	if v, ok := req.Msg.GetFields()["type"]; ok {
		eventType = v.GetStringValue()
	}

	events, err := s.events.Recent(ctx, observability.EventType(eventType), intField(req.Msg, "limit", defaultLimit))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read events", slog.String("error", err.Error()))
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	records := make([]EventRecord, 0, len(events))
	for _, e := range events {
		records = append(records, EventRecord{
			Type:      e.Type,
			Level:     e.Level.String(),
			Timestamp: e.Timestamp,
			Source:    e.Source,
			Data:      e.Data,
		})
	}
	return respond(map[string]any{"events": records})
}

func respond(v any) (*connect.Response[structpb.Struct], error) {
	s, err := messaging.ToStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(s), nil
}

func intField(s *structpb.Struct, name string, fallback int) int {
	v, ok := s.GetFields()[name]
	if !ok {
		return fallback
	}
	if n := int(v.GetNumberValue()); n > 0 {
		return n
	}
	return fallback
}
