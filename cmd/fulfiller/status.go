package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [order-id]",
	Short: "Show order and agent state",
	Long: `Display the state of the fulfillment system.

Without arguments, shows order counts by status, the most recent orders
and every agent's load.

With an order ID, shows that order's status history, its tasks and the
current delivery.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// statusStyle colors a status value. Order, task, agent and delivery
// statuses share a vocabulary.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "COMPLETED", "AVAILABLE", "DELIVERED":
		return cellStyle.Foreground(lipgloss.Color("34")) // Green
	case "FAILED":
		return cellStyle.Foreground(lipgloss.Color("196")) // Red
	case "PROCESSING", "IN_PROGRESS", "BUSY":
		return cellStyle.Foreground(lipgloss.Color("214")) // Orange
	default:
		return cellStyle
	}
}

// renderTable renders rows under headers. statusCol, if not negative, is
// colored by value.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][col])
			}
			return cellStyle
		}).
		String()
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, _, _, err := openProjectStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return displayOrder(db, args[0])
	}
	return displayOverview(db)
}

func displayOverview(db *state.DB) error {
	orders, err := db.ListOrders(nil)
	if err != nil {
		return err
	}

	counts := make(map[models.OrderStatus]int)
	for _, o := range orders {
		counts[o.Status]++
	}
	var summary []string
	for _, s := range []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusInProgress,
		models.OrderStatusCompleted, models.OrderStatusFailed,
	} {
		summary = append(summary, fmt.Sprintf("%s %d", s, counts[s]))
	}
	fmt.Println(headingStyle.Render("Orders"))
	fmt.Println(dimStyle.Render(strings.Join(summary, " · ")))

	if len(orders) > 0 {
		var rows [][]string
		for i, o := range orders {
			if i >= 10 {
				break
			}
			rows = append(rows, []string{
				o.ID, o.ClientID, string(o.Category), string(o.Status),
				orDash(o.AssignedAgentID), fmt.Sprintf("%d", o.Priority),
				formatDuration(time.Since(o.CreatedAt)) + " ago",
			})
		}
		fmt.Println(renderTable([]string{"ID", "CLIENT", "CATEGORY", "STATUS", "AGENT", "PRI", "SUBMITTED"}, rows, 3))
	}

	agents, err := db.ListAgents(state.AgentFilter{})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(headingStyle.Render("Agents"))
	if len(agents) == 0 {
		fmt.Println(dimStyle.Render("No agents registered. Run 'fulfiller agents load <file>'."))
		return nil
	}
	fmt.Println(renderTable([]string{"ID", "TYPE", "STATUS", "LOAD", "ACTIVE"}, agentRows(agents), 2))
	return nil
}

func agentRows(agents []models.Agent) [][]string {
	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, []string{
			a.ID, string(a.Type), string(a.Status),
			fmt.Sprintf("%d/%d", a.CurrentLoad, a.MaxLoad),
			fmt.Sprintf("%t", a.Active),
		})
	}
	return rows
}

func displayOrder(db *state.DB, id string) error {
	order, err := db.GetOrder(id)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s not found", id)
	}

	fmt.Println(headingStyle.Render("Order " + order.ID))
	fmt.Printf("  Client:   %s\n", order.ClientID)
	fmt.Printf("  Category: %s\n", order.Category)
	fmt.Printf("  Status:   %s\n", statusStyle(string(order.Status)).UnsetPadding().Render(string(order.Status)))
	fmt.Printf("  Agent:    %s\n", orDash(order.AssignedAgentID))
	fmt.Printf("  Priority: %d\n", order.Priority)

	history, err := db.ListStatusHistory(order.ID)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		var rows [][]string
		for _, h := range history {
			rows = append(rows, []string{
				h.CreatedAt.Local().Format("15:04:05"),
				orDash(string(h.FromStatus)), string(h.ToStatus), h.Reason,
			})
		}
		fmt.Println()
		fmt.Println(headingStyle.Render("History"))
		fmt.Println(renderTable([]string{"TIME", "FROM", "TO", "REASON"}, rows, 2))
	}

	tasks, err := db.ListTasksByOrder(order.ID)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		var rows [][]string
		for _, t := range tasks {
			rows = append(rows, []string{
				fmt.Sprintf("%d", t.Sequence+1), string(t.Type), string(t.Status),
				fmt.Sprintf("%d/%d", t.RetryCount, t.MaxRetries),
				fmt.Sprintf("%ds", t.DurationSeconds),
				truncate(t.ErrorText(), 60),
			})
		}
		fmt.Println()
		fmt.Println(headingStyle.Render("Tasks"))
		fmt.Println(renderTable([]string{"#", "TYPE", "STATUS", "RETRIES", "TIME", "ERROR"}, rows, 2))
	}

	delivery, err := db.GetDelivery(order.ID)
	if err != nil {
		return err
	}
	if delivery != nil {
		fmt.Println()
		fmt.Println(headingStyle.Render("Delivery"))
		fmt.Printf("  %s (%s)\n", delivery.Title, delivery.Type)
		fmt.Printf("  %s\n", delivery.Description)
		fmt.Printf("  %s\n", dimStyle.Render(delivery.Content.Summary))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to n runes on one line.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
