package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// Processor processes a single order. *Orchestrator implements it.
type Processor interface {
	ProcessOrder(ctx context.Context, orderID string) error
}

var _ Processor = (*Orchestrator)(nil)

// DefaultWorkers is the pool size used when PoolConfig.Workers is unset.
const DefaultWorkers = 4

// PoolConfig contains configuration options for the OrderPool.
type PoolConfig struct {
	// Processor runs each order. Required.
	Processor Processor
	// Store lists pending orders for DrainPending.
	Store state.OrderStore
	// Workers bounds how many orders are processed at once.
	Workers int
	// OnResult is called after each order finishes, with the error
	// ProcessOrder returned.
	OnResult func(orderID string, err error)
}

// OrderPool processes many orders concurrently, one goroutine per order,
// bounded by Workers. Submitting an order that is already in flight is a
// no-op. A pool cannot be reused after Wait or Stop.
type OrderPool struct {
	cfg     PoolConfig
	workers *pool.Pool

	// inFlight tracks orders submitted but not yet finished.
	inFlight map[string]struct{}
	mu       sync.Mutex

	// submitMu keeps Go and Wait from racing on the underlying pool.
	submitMu sync.RWMutex
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// NewOrderPool creates a new OrderPool.
func NewOrderPool(cfg PoolConfig) *OrderPool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &OrderPool{
		cfg:      cfg,
		workers:  pool.New().WithMaxGoroutines(cfg.Workers),
		inFlight: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit queues an order for processing. It blocks while every worker is
// busy and reports false if the order is already in flight or the pool is
// closed.
func (p *OrderPool) Submit(orderID string) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		return false
	}

	p.mu.Lock()
	if _, ok := p.inFlight[orderID]; ok {
		p.mu.Unlock()
		return false
	}
	p.inFlight[orderID] = struct{}{}
	p.mu.Unlock()

	p.workers.Go(func() {
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, orderID)
			p.mu.Unlock()
		}()

		// Stopped before a worker freed up; leave the order PENDING.
		if p.ctx.Err() != nil {
			return
		}

		err := p.cfg.Processor.ProcessOrder(p.ctx, orderID)
		p.processed.Add(1)
		if err != nil {
			p.failed.Add(1)
			log.Printf("[pool] order %s: %v", orderID, err)
		}
		if p.cfg.OnResult != nil {
			p.cfg.OnResult(orderID, err)
		}
	})
	return true
}

// DrainPending submits every PENDING order, highest priority first and
// then oldest first. It returns how many orders were submitted.
func (p *OrderPool) DrainPending(ctx context.Context) (int, error) {
	if p.cfg.Store == nil {
		return 0, fmt.Errorf("drain pending: pool has no store")
	}

	status := models.OrderStatusPending
	orders, err := p.cfg.Store.ListOrders(&status)
	if err != nil {
		return 0, fmt.Errorf("list pending orders: %w", err)
	}

	submitted := 0
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return submitted, err
		}
		if p.Submit(o.ID) {
			submitted++
		}
	}
	return submitted, nil
}

// InFlight returns the number of orders submitted but not yet finished.
func (p *OrderPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Processed returns how many orders finished, and how many of those
// returned an error.
func (p *OrderPool) Processed() (total, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// Wait closes the pool to new submissions and blocks until every
// submitted order has finished.
func (p *OrderPool) Wait() {
	p.submitMu.Lock()
	if p.closed {
		p.submitMu.Unlock()
		return
	}
	p.closed = true
	p.submitMu.Unlock()

	p.workers.Wait()
	p.cancel()
}

// Stop cancels in-flight orders and waits for them to unwind.
func (p *OrderPool) Stop() {
	p.cancel()
	p.Wait()
}
