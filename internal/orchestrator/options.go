package orchestrator

import (
	"context"
	"time"

	"github.com/ShayCichocki/fulfiller/internal/agent"
	"github.com/ShayCichocki/fulfiller/internal/notify"
	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// TaskRunner executes one task to completion or exhaustion.
// *agent.Executor is the production implementation.
type TaskRunner interface {
	Execute(ctx context.Context, order *models.Order, task *models.Task, a *models.Agent) (*agent.TaskResult, error)
}

var _ TaskRunner = (*agent.Executor)(nil)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
type RequiredConfig struct {
	// Store is the record store for orders, agents, tasks and history.
	Store state.Store
	// Executor runs planned tasks against the completion provider.
	Executor TaskRunner
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	notifier   notify.Notifier
	templates  *notify.TemplateStore
	emitter    *EventEmitter
	logger     *DebugLogger
	maxRetries int
	now        func() time.Time
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		maxRetries: models.DefaultMaxRetries,
		now:        time.Now,
	}
}

// WithNotifier sets the client notification sink. Defaults to notify.Discard.
func WithNotifier(n notify.Notifier) Option {
	return func(o *orchestratorOptions) { o.notifier = n }
}

// WithTemplates sets the notification templates.
func WithTemplates(t *notify.TemplateStore) Option {
	return func(o *orchestratorOptions) { o.templates = t }
}

// WithEventEmitter enables event emission. Share the emitter with the
// executor's OnRetry (EventEmitter.RetryHook) to see retries too.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMaxRetries sets the retry budget given to newly planned tasks.
func WithMaxRetries(n int) Option {
	return func(o *orchestratorOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithClock overrides the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}
