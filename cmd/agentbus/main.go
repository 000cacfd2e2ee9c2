package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/observability/sqlstore"
	"github.com/tailored-agentic-units/agentbus/orchestrate/config"
	"github.com/tailored-agentic-units/agentbus/orchestrate/diagnostics"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file (.json, .yaml or .toml)")
		inspect    = flag.String("inspect", "", "Query a running diagnostics server at this base URL and exit")
		serve      = flag.Bool("serve", false, "Keep the bus and diagnostics server running until interrupted")
		provider   = flag.String("provider", "", "External model provider for the summarize task: anthropic or openai")
		prompt     = flag.String("prompt", "Describe an in-process agent bus in one sentence.", "Prompt for the summarize task")
		observer   = flag.String("observer", "slog", "Named observer for bus and runtime events")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *inspect != "" {
		if err := runInspect(ctx, *inspect); err != nil {
			log.Fatalf("Inspect failed: %v", err)
		}
		return
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	cfg.Bus.Logger = logger

	caller, err := newCaller(*provider)
	if err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}

	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	named, err := observability.GetObserver(*observer)
	if err != nil {
		log.Fatalf("Failed to resolve observer: %v (available: %v)", err, observability.ObserverNames())
	}

	recorder := observability.NewRecorder()
	observers := []observability.Observer{named, recorder}
	var events diagnostics.EventSource = recorder

	if cfg.Events.Path != "" {
		store, err := sqlstore.Open(cfg.Events.Path, logger)
		if err != nil {
			log.Fatalf("Failed to open event store: %v", err)
		}
		defer store.Close()
		observers = append(observers, store)
		events = store
	}
	obs := observability.NewMultiObserver(observers...)

	b := hub.New(ctx, cfg.Bus, hub.WithObserver(obs))
	defer func() {
		if err := b.Shutdown(5 * time.Second); err != nil {
			logger.Warn("bus shutdown", slog.String("error", err.Error()))
		}
	}()

	d, err := startDemo(ctx, b, &cfg, obs, logger, caller)
	if err != nil {
		log.Fatalf("Failed to start agents: %v", err)
	}
	defer d.shutdown(context.WithoutCancel(ctx))

	if err := d.run(ctx, *prompt); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}

	printStatus(b.Status(), b.Agents())

	if !*serve {
		return
	}

	if cfg.Diagnostics.Addr != "" {
		srv := diagnostics.NewServer(b,
			diagnostics.WithRuntimes(d.scheduler, d.worker),
			diagnostics.WithEvents(events),
			diagnostics.WithLogger(logger),
		)
		go func() {
			if err := srv.Serve(ctx, cfg.Diagnostics.Addr); err != nil {
				logger.Error("diagnostics server stopped", slog.String("error", err.Error()))
			}
		}()
		color.New(color.FgGreen).Print("▶ ")
		fmt.Printf("Diagnostics: http://%s\n", cfg.Diagnostics.Addr)
	}

	color.New(color.FgHiBlack).Println("Press Ctrl+C to stop.")
	<-ctx.Done()
}

func printStatus(status hub.Status, agents []hub.AgentRecord) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	fmt.Println()
	cyan.Printf("Bus %s\n", status.Name)
	fmt.Printf("  agents: %d (active %d, stale %d)\n", status.Agents, status.ActiveAgents, status.StaleAgents)
	fmt.Printf("  sent: %d  delivered: %d  failed: %d  received: %d\n",
		status.Metrics.Sent, status.Metrics.Delivered, status.Metrics.Failed, status.Metrics.Received)
	gray.Printf("  history: %d  uptime: %s\n", status.HistorySize, status.Uptime.Round(time.Millisecond))

	for _, a := range agents {
		fmt.Printf("  - %s ", a.ID)
		gray.Printf("[%s] %v v%s\n", a.Status, a.Capabilities, a.Version)
	}
}
