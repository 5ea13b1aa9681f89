package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/internal/orchestrator"
)

var (
	serveOnce    bool
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously process pending orders",
	Long: `Poll the database for PENDING orders and process them concurrently.

Pending orders are picked up highest priority first, then oldest first.
Each poll submits every pending order that is not already in flight;
pool.workers bounds how many run at once and pool.poll_interval sets how
often new orders are looked for.

On SIGINT or SIGTERM, orders already running are failed and released and
orders not yet started stay PENDING for the next run.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveOnce, "once", false, "Process the current pending orders and exit")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Override pool.workers")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := openEngine(256)
	if err != nil {
		return err
	}
	printer := printEvents(rt.emitter.Events())

	workers := rt.cfg.Pool.Workers
	if serveWorkers > 0 {
		workers = serveWorkers
	}
	interval := rt.cfg.Pool.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	pool := orchestrator.NewOrderPool(orchestrator.PoolConfig{
		Processor: rt.orch,
		Store:     rt.db,
		Workers:   workers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("Serving orders with %d workers (poll every %s). Press Ctrl+C to stop.\n", workers, interval)

	// Draining runs on its own goroutine because Submit blocks while every
	// worker is busy.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			n, err := pool.DrainPending(ctx)
			if err != nil && ctx.Err() == nil {
				log.Printf("[serve] drain pending: %v", err)
			} else if n > 0 {
				log.Printf("[serve] submitted %d pending orders", n)
			}
			if serveOnce {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		cancel()
		pool.Stop()
		<-drained
	case <-drained:
		pool.Wait()
	}

	total, failed := pool.Processed()
	usage := rt.usage()
	rt.Close()
	printer.Wait()

	fmt.Printf("Processed %d orders (%d failed), %s\n", total, failed, usage)
	return nil
}
