package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/internal/config"
	"github.com/ShayCichocki/fulfiller/internal/notify"
)

var (
	outboxFollow bool
	outboxOrder  string
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Show client notifications",
	Long: `List the client notifications written to the outbox for the email/SMS
relay. With --follow, keep watching and print new notifications as orders
finish.`,
	Args: cobra.NoArgs,
	RunE: runOutbox,
}

func init() {
	outboxCmd.Flags().BoolVarP(&outboxFollow, "follow", "f", false, "Watch for new notifications")
	outboxCmd.Flags().StringVar(&outboxOrder, "order", "", "Only show notifications for this order")
}

func runOutbox(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	dir := outboxDirFor(cfg, root)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if !outboxFollow {
			fmt.Println("No notifications yet.")
			return nil
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create outbox: %w", err)
		}
	}

	existing, err := notify.ReadOutbox(dir)
	if err != nil {
		return err
	}
	for _, n := range existing {
		printNotification(n)
	}
	if !outboxFollow {
		if len(existing) == 0 {
			fmt.Println("No notifications yet.")
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(color.HiBlackString("Watching %s (Ctrl+C to stop)", dir))
	if err := notify.Follow(ctx, dir, printNotification); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printNotification(n notify.Notification) {
	if outboxOrder != "" && n.OrderID != outboxOrder {
		return
	}
	c := color.New(color.FgGreen)
	if n.Kind == notify.KindOrderFailed {
		c = color.New(color.FgRed)
	}
	fmt.Printf("%s %s %s\n", color.HiBlackString(n.CreatedAt.Local().Format("2006-01-02 15:04:05")),
		c.Sprint(n.Kind), n.Subject)
	fmt.Printf("  to %s, order %s\n", n.ClientID, n.OrderID)
	fmt.Printf("  %s\n\n", n.Body)
}
