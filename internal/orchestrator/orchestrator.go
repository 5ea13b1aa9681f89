package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/fulfiller/internal/notify"
	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// Orchestrator drives orders from PENDING to a terminal status.
// ProcessOrder is safe to call concurrently for different orders.
type Orchestrator struct {
	store      state.Store
	executor   TaskRunner
	registry   *AgentRegistry
	machine    *StateMachine
	assembler  *DeliveryAssembler
	notifier   notify.Notifier
	templates  *notify.TemplateStore
	emitter    *EventEmitter
	logger     *DebugLogger
	maxRetries int
	now        func() time.Time
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Store == nil {
		return nil, fmt.Errorf("orchestrator store is required")
	}
	if req.Executor == nil {
		return nil, fmt.Errorf("orchestrator executor is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notify.Discard{}
	}
	if o.templates == nil {
		o.templates = notify.NewTemplateStore()
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	setPackageLogger(o.logger)

	machine := NewStateMachine(req.Store)
	machine.now = o.now
	assembler := NewDeliveryAssembler()
	assembler.now = o.now

	return &Orchestrator{
		store:      req.Store,
		executor:   req.Executor,
		registry:   NewAgentRegistry(req.Store),
		machine:    machine,
		assembler:  assembler,
		notifier:   o.notifier,
		templates:  o.templates,
		emitter:    o.emitter,
		logger:     o.logger,
		maxRetries: o.maxRetries,
		now:        o.now,
	}, nil
}

// Registry returns the agent registry used for assignments.
func (o *Orchestrator) Registry() *AgentRegistry {
	return o.registry
}

// Events returns the event channel, or nil if no emitter was configured.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// ProcessOrder runs one order through assignment, planning, execution and
// delivery.
//
// Once the order reaches PROCESSING every failure is handled in place: the
// agent (if any) is released, the order moves to FAILED with the cause in
// its history and the client is notified. The cause is still returned so
// callers can log it. Errors before PROCESSING (unknown order, order not
// PENDING) leave the order untouched.
func (o *Orchestrator) ProcessOrder(ctx context.Context, orderID string) error {
	order, err := o.store.GetOrder(orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order == nil {
		log.Printf("[orchestrator] order %s not found", orderID)
		return fmt.Errorf("process order %s: %w", orderID, ErrOrderNotFound)
	}

	o.logger.Log("ProcessOrder %s (%s, client %s)", order.ID, order.Category, order.ClientID)

	if err := o.machine.Transition(ctx, order, models.OrderStatusProcessing, ReasonProcessing); err != nil {
		return err
	}
	o.emit(OrchestratorEvent{Type: EventOrderProcessing, OrderID: order.ID, Message: ReasonProcessing})

	assigned, err := o.registry.Assign(ctx, order)
	if err != nil {
		return o.fail(ctx, order, nil, err)
	}
	release := o.releaser(ctx, order, assigned)
	defer release()
	o.emit(OrchestratorEvent{Type: EventAgentAssigned, OrderID: order.ID, AgentID: assigned.ID})

	specs := Plan(order.Category, order.Requirements)
	if len(specs) == 0 {
		return o.fail(ctx, order, release, &PlanningError{Category: order.Category})
	}

	tasks := newTasks(order, assigned, specs, o.maxRetries, o.now().UTC())
	if err := o.store.CreateTasks(tasks); err != nil {
		return o.fail(ctx, order, release, fmt.Errorf("persist tasks: %w", err))
	}

	if err := o.machine.Transition(ctx, order, models.OrderStatusInProgress, ReasonInProgress); err != nil {
		return o.fail(ctx, order, release, err)
	}

	for _, task := range tasks {
		o.emit(OrchestratorEvent{
			Type: EventTaskStarted, OrderID: order.ID, TaskID: task.ID, TaskType: task.Type, AgentID: assigned.ID,
		})

		if _, err := o.executor.Execute(ctx, order, task, assigned); err != nil {
			o.emit(OrchestratorEvent{
				Type: EventTaskFailed, OrderID: order.ID, TaskID: task.ID, TaskType: task.Type, AgentID: assigned.ID, Error: err,
			})
			return o.fail(ctx, order, release, err)
		}

		o.emit(OrchestratorEvent{
			Type: EventTaskCompleted, OrderID: order.ID, TaskID: task.ID, TaskType: task.Type, AgentID: assigned.ID,
		})
	}

	delivery, err := o.assembler.Build(order, tasks)
	if err != nil {
		return o.fail(ctx, order, release, err)
	}
	if err := o.store.CreateDelivery(delivery); err != nil {
		return o.fail(ctx, order, release, fmt.Errorf("persist delivery: %w", err))
	}

	release()
	if err := o.machine.Transition(ctx, order, models.OrderStatusCompleted, ReasonCompleted); err != nil {
		return err
	}

	log.Printf("[orchestrator] order %s completed by agent %s", order.ID, assigned.ID)
	o.emit(OrchestratorEvent{Type: EventOrderCompleted, OrderID: order.ID, AgentID: assigned.ID, Message: delivery.Title})
	o.notify(ctx, order, notify.KindOrderCompleted, delivery.Title)
	return nil
}

// fail runs the failure path: release the agent, move the order to FAILED
// and notify the client. It returns cause, joined with the transition error
// if the FAILED write itself failed.
func (o *Orchestrator) fail(ctx context.Context, order *models.Order, release func(), cause error) error {
	if release != nil {
		release()
	}

	log.Printf("[orchestrator] order %s failed: %v", order.ID, cause)
	reason := ReasonFailedPrefix + cause.Error()
	if err := o.machine.Transition(ctx, order, models.OrderStatusFailed, reason); err != nil {
		return errors.Join(cause, err)
	}

	o.emit(OrchestratorEvent{Type: EventOrderFailed, OrderID: order.ID, AgentID: order.AssignedAgentID, Error: cause})
	o.notify(ctx, order, notify.KindOrderFailed, "")
	return fmt.Errorf("order %s failed: %w", order.ID, cause)
}

// releaser returns a function that releases a once. Later calls are no-ops.
func (o *Orchestrator) releaser(ctx context.Context, order *models.Order, a *models.Agent) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := o.registry.Release(context.WithoutCancel(ctx), a); err != nil {
				log.Printf("[orchestrator] order %s: %v", order.ID, err)
			}
		})
	}
}

// notify renders and sends a client notification. Failures are logged
// and never affect the order.
func (o *Orchestrator) notify(ctx context.Context, order *models.Order, kind notify.Kind, deliveryTitle string) {
	n, err := o.templates.Render(kind, notify.OrderData{
		OrderID:       order.ID,
		ClientID:      order.ClientID,
		Category:      string(order.Category),
		DeliveryTitle: deliveryTitle,
	})
	if err != nil {
		log.Printf("[orchestrator] render %s notification for order %s: %v", kind, order.ID, err)
		return
	}
	if err := o.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		log.Printf("[orchestrator] send %s notification for order %s: %v", kind, order.ID, err)
	}
}

func (o *Orchestrator) emit(event OrchestratorEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = o.now()
	}
	o.emitter.Emit(event)
}
