package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/fulfiller/internal/orchestrator"
)

var processQuiet bool

var processCmd = &cobra.Command{
	Use:   "process <order-id>...",
	Short: "Process specific orders now",
	Long: `Run one or more PENDING orders through the full fulfillment flow:
assignment, planning, task execution, delivery and client notification.

Orders run concurrently, bounded by pool.workers. The command exits once
every order has reached COMPLETED or FAILED. Interrupting it fails the
orders that are mid-flight and leaves unstarted ones PENDING.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVarP(&processQuiet, "quiet", "q", false, "Only print the final result of each order")
}

func runProcess(cmd *cobra.Command, args []string) error {
	buffer := 64
	if processQuiet {
		buffer = 0
	}
	rt, err := openEngine(buffer)
	if err != nil {
		return err
	}
	printer := printEvents(rt.emitter.Events())

	var (
		mu       sync.Mutex
		failures int
	)
	pool := orchestrator.NewOrderPool(orchestrator.PoolConfig{
		Processor: rt.orch,
		Store:     rt.db,
		Workers:   rt.cfg.Pool.Workers,
		OnResult: func(orderID string, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				fmt.Printf("%s %s: %v\n", color.RedString("✗"), orderID, err)
				return
			}
			fmt.Printf("%s %s completed\n", color.GreenString("✓"), orderID)
		},
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Println("\nInterrupted, stopping...")
			pool.Stop()
		}
	}()

	for _, id := range args {
		if !pool.Submit(id) {
			fmt.Printf("%s %s: skipped (duplicate or shutting down)\n", color.YellowString("⚠"), id)
		}
	}
	pool.Wait()

	usage := rt.usage()
	rt.Close()
	printer.Wait()
	fmt.Println(color.HiBlackString("%s", usage))

	if failures > 0 {
		return fmt.Errorf("%d of %d orders failed", failures, len(args))
	}
	return nil
}
