package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"

	"github.com/tailored-agentic-units/agentbus/orchestrate/diagnostics"
)

func runInspect(ctx context.Context, baseURL string) error {
	client := diagnostics.NewClient(http.DefaultClient, baseURL)

	report, err := client.Status(ctx)
	if err != nil {
		return err
	}
	agents, err := client.Agents(ctx)
	if err != nil {
		return err
	}
	history, err := client.History(ctx, 20)
	if err != nil {
		return err
	}

	printStatus(report.Bus, agents)

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	if len(report.Runtimes) > 0 {
		fmt.Println()
		cyan.Println("Runtimes")
		for _, rt := range report.Runtimes {
			fmt.Printf("  - %s %s ", rt.ID, rt.State)
			gray.Printf("completed %d, failed %d, pending %d\n", rt.Completed, rt.Failed, rt.Pending)
		}
	}

	fmt.Println()
	cyan.Println("Recent messages")
	for _, m := range history {
		recipient := m.Recipient
		if recipient == "" {
			recipient = "*"
		}
		gray.Print("  " + m.Timestamp.Format(time.TimeOnly) + " ")
		fmt.Printf("%-20s %s → %s (%s, %d)\n", m.Type, m.Sender, recipient, m.Status, m.Recipients)
	}
	return nil
}
