package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// CompletionRequest is one call to a completion provider.
type CompletionRequest struct {
	// Model is the provider model identifier.
	Model string
	// SystemPrompt frames the call.
	SystemPrompt string
	// UserPrompt carries the task.
	UserPrompt string
	// Options is the agent's opaque provider configuration (max_tokens, temperature, ...).
	Options map[string]any
}

// Completer produces text for a prompt. Any error is treated as transient.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// TaskUpdater persists task state changes.
type TaskUpdater interface {
	UpdateTask(t *models.Task) error
}

// TaskResult is the outcome of a successful Execute.
type TaskResult struct {
	// Output is the provider text.
	Output string
	// DurationSeconds is the floor-rounded duration of the successful attempt.
	DurationSeconds int
	// Attempts is the number of provider calls made during this Execute.
	Attempts int
}

// RetryCallback is called after a failed attempt that will be retried.
type RetryCallback func(task *models.Task, err error, delay time.Duration)

// ExecutorConfig contains configuration options for the Executor.
type ExecutorConfig struct {
	// Store persists task transitions. Required.
	Store TaskUpdater
	// Completer is the completion provider. Required.
	Completer Completer
	// Instructions supplies the system prompt and category templates.
	// Nil uses DefaultInstructions().
	Instructions *Instructions
	// Retry paces re-attempts. The zero value means no waiting between attempts.
	Retry RetryPolicy
	// ProviderTimeout bounds each provider call. Zero means no per-call timeout.
	ProviderTimeout time.Duration
	// DefaultModel is used for agents that don't name a model.
	DefaultModel string
	// OnRetry is called before waiting for a retry.
	OnRetry RetryCallback
}

// Executor runs a single task against the completion provider, retrying
// transient failures up to the task's retry budget.
type Executor struct {
	store           TaskUpdater
	completer       Completer
	instructions    *Instructions
	retry           RetryPolicy
	providerTimeout time.Duration
	defaultModel    string
	onRetry         RetryCallback

	now func() time.Time
}

// NewExecutor creates a new Executor with the given configuration.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("executor store is required")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("executor completer is required")
	}

	inst := cfg.Instructions
	if inst == nil {
		inst = DefaultInstructions()
	}

	return &Executor{
		store:           cfg.Store,
		completer:       cfg.Completer,
		instructions:    inst,
		retry:           cfg.Retry,
		providerTimeout: cfg.ProviderTimeout,
		defaultModel:    cfg.DefaultModel,
		onRetry:         cfg.OnRetry,
		now:             time.Now,
	}, nil
}

// Execute runs task for order on agent. task is updated in place and
// persisted after every state change.
//
// Each attempt marks the task IN_PROGRESS and calls the provider once. A
// failed attempt with budget left increments RetryCount, resets the task to
// PENDING and waits the backoff delay before trying again. Once the budget
// is spent the task is marked FAILED and a *TaskExhaustedError is returned.
//
// Work that never reaches the provider, because the context is already done
// or the IN_PROGRESS write fails, does not count as an attempt.
func (e *Executor) Execute(ctx context.Context, order *models.Order, task *models.Task, agent *models.Agent) (*TaskResult, error) {
	if task.MaxRetries < 0 {
		task.MaxRetries = 0
	}

	req := CompletionRequest{
		Model:        e.modelFor(agent),
		SystemPrompt: e.instructions.SystemPrompt(),
		UserPrompt:   BuildTaskPrompt(order, task, e.instructions),
		Options:      agent.Config,
	}

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execute task %s: %w", task.ID, err)
		}

		started := e.now()
		task.Status = models.TaskStatusInProgress
		task.StartedAt = &started
		if err := e.store.UpdateTask(task); err != nil {
			return nil, fmt.Errorf("mark task %s in progress: %w", task.ID, err)
		}

		attempts++
		log.Printf("[executor] task %s (%s) attempt %d on agent %s", task.ID, task.Type, attempts, agent.ID)

		output, callErr := e.call(ctx, req)
		task.DurationSeconds = int(e.now().Sub(started) / time.Second)

		if callErr == nil {
			completed := e.now()
			task.Status = models.TaskStatusCompleted
			task.Output = &output
			task.Error = nil
			task.CompletedAt = &completed
			if err := e.store.UpdateTask(task); err != nil {
				return nil, fmt.Errorf("mark task %s completed: %w", task.ID, err)
			}
			return &TaskResult{
				Output:          output,
				DurationSeconds: task.DurationSeconds,
				Attempts:        attempts,
			}, nil
		}

		provErr := &ProviderError{
			TaskID:  task.ID,
			Attempt: attempts,
			Timeout: errors.Is(callErr, context.DeadlineExceeded) && ctx.Err() == nil,
			Err:     callErr,
		}
		msg := provErr.Error()
		task.Error = &msg

		// The caller gave up mid-call; leave the task resumable.
		if ctx.Err() != nil {
			task.Status = models.TaskStatusPending
			if err := e.store.UpdateTask(task); err != nil {
				log.Printf("[executor] failed to reset cancelled task %s: %v", task.ID, err)
			}
			return nil, fmt.Errorf("execute task %s: %w", task.ID, ctx.Err())
		}

		if task.RetryCount >= task.MaxRetries {
			completed := e.now()
			task.Status = models.TaskStatusFailed
			task.CompletedAt = &completed
			if err := e.store.UpdateTask(task); err != nil {
				return nil, fmt.Errorf("mark task %s failed: %w", task.ID, err)
			}
			log.Printf("[executor] task %s exhausted after %d attempts: %v", task.ID, attempts, callErr)
			return nil, &TaskExhaustedError{TaskID: task.ID, Attempts: attempts, Err: provErr}
		}

		task.RetryCount++
		task.Status = models.TaskStatusPending
		if err := e.store.UpdateTask(task); err != nil {
			return nil, fmt.Errorf("mark task %s for retry: %w", task.ID, err)
		}

		delay := e.retry.Backoff(task.RetryCount)
		log.Printf("[executor] task %s attempt %d failed, retry %d/%d in %s: %v",
			task.ID, attempts, task.RetryCount, task.MaxRetries, delay, callErr)
		if e.onRetry != nil {
			e.onRetry(task, provErr, delay)
		}

		if err := sleepContext(ctx, delay); err != nil {
			return nil, fmt.Errorf("execute task %s: %w", task.ID, err)
		}
	}
}

// call issues one provider request under the per-call timeout.
func (e *Executor) call(ctx context.Context, req CompletionRequest) (string, error) {
	if e.providerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.providerTimeout)
		defer cancel()
	}
	return e.completer.Complete(ctx, req)
}

func (e *Executor) modelFor(agent *models.Agent) string {
	if agent != nil && agent.Model != "" {
		return agent.Model
	}
	return e.defaultModel
}
