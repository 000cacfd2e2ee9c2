// Package diagnostics serves a read-only view of a bus over Connect.
//
// The service exposes four unary procedures under
// agentbus.diagnostics.v1.DiagnosticsService: GetStatus, ListAgents,
// GetHistory and GetEvents. Messages are google.protobuf.Struct values
// carrying the JSON shape of the bus types, so no code generation is needed:
//
//	srv := diagnostics.NewServer(bus, diagnostics.WithRuntimes(worker))
//	mux.Handle(srv.Handler())
//
//	client := diagnostics.NewClient(http.DefaultClient, "http://127.0.0.1:9090")
//	agents, err := client.Agents(ctx)
package diagnostics
