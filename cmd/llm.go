package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/store"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded model calls",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No model calls recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-20s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"ID", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK")
		lipgloss.Println(theme.Separator(106))
		for _, e := range events {
			lipgloss.Printf("%-5d  %-19s  %-20s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.Purpose, 20),
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				theme.Mark(e.Success),
			)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of a model call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		lipgloss.Println(theme.Field("ID       ", strconv.Itoa(e.ID)))
		lipgloss.Println(theme.Field("Time     ", e.Timestamp.Local().Format("2006-01-02 15:04:05")))
		lipgloss.Println(theme.Field("Provider ", e.Provider))
		lipgloss.Println(theme.Field("Model    ", e.Model))
		lipgloss.Println(theme.Field("Purpose  ", e.Purpose))
		lipgloss.Println(theme.Field("Tokens   ", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)))
		lipgloss.Println(theme.Field("Latency  ", fmt.Sprintf("%dms", e.LatencyMs)))
		lipgloss.Println(theme.Field("Success  ", theme.Mark(e.Success)))
		if e.ErrorMessage != "" {
			lipgloss.Println(theme.Field("Error    ", theme.Incorrect.Render(e.ErrorMessage)))
		}

		section := func(title, body string) {
			lipgloss.Println()
			lipgloss.Println(theme.Separator(60))
			lipgloss.Println(theme.Label.Render(title))
			lipgloss.Println(theme.Separator(60))
			if body == "" {
				body = theme.Hint.Render("(not captured)")
			}
			lipgloss.Println(body)
		}
		section("REQUEST", e.RequestBody)
		section("RESPONSE", e.ResponseBody)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage by purpose and estimated cost by model",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(stats) == 0 {
			fmt.Println("No model usage recorded yet.")
			return nil
		}

		lipgloss.Println(theme.Title.Render("Usage by Purpose"))
		lipgloss.Println(theme.Separator(76))
		fmt.Printf("%-20s  %6s  %10s  %10s  %10s  %8s\n",
			"Purpose", "Calls", "Input", "Output", "Total", "Avg Ms")
		lipgloss.Println(theme.Separator(76))

		var totalCalls, totalIn, totalOut int
		for _, st := range stats {
			fmt.Printf("%-20s  %6d  %10d  %10d  %10d  %8d\n",
				truncate(st.Purpose, 20), st.Calls, st.InputTokens, st.OutputTokens,
				st.InputTokens+st.OutputTokens, st.AvgLatencyMs)
			totalCalls += st.Calls
			totalIn += st.InputTokens
			totalOut += st.OutputTokens
		}
		lipgloss.Println(theme.Separator(76))
		fmt.Printf("%-20s  %6d  %10d  %10d  %10d\n",
			"TOTAL", totalCalls, totalIn, totalOut, totalIn+totalOut)

		modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(modelUsage) == 0 {
			return nil
		}

		lipgloss.Println()
		lipgloss.Println(theme.Title.Render("Estimated Cost (USD)"))
		lipgloss.Println(theme.Separator(76))
		fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", "Model", "Calls", "Input", "Output", "Cost")
		lipgloss.Println(theme.Separator(76))

		var totalCost float64
		var unknown []string
		for _, mu := range modelUsage {
			cost := "?"
			if price := llm.LookupCost(mu.Model); price != nil {
				c := price.Cost(mu.InputTokens, mu.OutputTokens)
				totalCost += c
				cost = formatCost(c)
			} else {
				unknown = append(unknown, mu.Model)
			}
			fmt.Printf("%-32s  %6d  %10d  %10d  %10s\n",
				truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, cost)
		}

		lipgloss.Println(theme.Separator(76))
		label := "TOTAL"
		if len(unknown) > 0 {
			label = "TOTAL (partial)"
		}
		fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", label, "", "", "", formatCost(totalCost))
		if len(unknown) > 0 {
			lipgloss.Println(theme.Hint.Render("\nPricing unavailable for: " + strings.Join(unknown, ", ")))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. flashcard-generation, quiz-grading, study-chat)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
