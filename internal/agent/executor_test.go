package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// recordingStore implements TaskUpdater and keeps a copy of every write.
type recordingStore struct {
	mu      sync.Mutex
	updates []models.Task
	failOn  func(t *models.Task) error
}

func (s *recordingStore) UpdateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		if err := s.failOn(t); err != nil {
			return err
		}
	}
	s.updates = append(s.updates, *t)
	return nil
}

func (s *recordingStore) statuses() []models.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TaskStatus, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Status
	}
	return out
}

// scriptedCompleter fails the first `failures` calls, then succeeds.
type scriptedCompleter struct {
	mu       sync.Mutex
	failures int
	calls    int
	requests []CompletionRequest
}

func (c *scriptedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.requests = append(c.requests, req)
	if c.calls <= c.failures {
		return "", errors.New("rate limited")
	}
	return "output " + req.Model, nil
}

func newTestTask(maxRetries int) *models.Task {
	return &models.Task{
		ID:          "task-1",
		OrderID:     "order-1",
		AgentID:     "agent-1",
		Type:        models.TaskTypeAnalyze,
		Description: "Analyze the requirements",
		Input:       json.RawMessage(`{"pages":3}`),
		Status:      models.TaskStatusPending,
		MaxRetries:  maxRetries,
		CreatedAt:   time.Now(),
	}
}

func newTestOrder() *models.Order {
	return &models.Order{ID: "order-1", ClientID: "client-1", Category: models.CategoryWebsite}
}

func newTestAgent() *models.Agent {
	return &models.Agent{
		ID:      "agent-1",
		Type:    models.AgentTypeWebsiteBuilder,
		MaxLoad: 1,
		Model:   "claude-sonnet-4-20250514",
		Config:  map[string]any{"max_tokens": 2048},
		Active:  true,
	}
}

func newTestExecutor(t *testing.T, store TaskUpdater, c Completer) *Executor {
	t.Helper()
	e, err := NewExecutor(ExecutorConfig{Store: store, Completer: c})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	return e
}

func TestNewExecutor_RequiresDependencies(t *testing.T) {
	if _, err := NewExecutor(ExecutorConfig{Completer: &scriptedCompleter{}}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewExecutor(ExecutorConfig{Store: &recordingStore{}}); err == nil {
		t.Error("expected error without completer")
	}
}

func TestExecute_Success(t *testing.T) {
	store := &recordingStore{}
	completer := &scriptedCompleter{}
	e := newTestExecutor(t, store, completer)

	task := newTestTask(3)
	result, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Output != "output claude-sonnet-4-20250514" {
		t.Errorf("Output = %q", result.Output)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if task.Status != models.TaskStatusCompleted || task.OutputText() != result.Output {
		t.Errorf("task not completed: %+v", task)
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}

	want := []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusCompleted}
	got := store.statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	req := completer.requests[0]
	if req.SystemPrompt == "" {
		t.Error("expected a system prompt")
	}
	if !strings.Contains(req.UserPrompt, "ANALYZE") || !strings.Contains(req.UserPrompt, `"pages": 3`) {
		t.Errorf("user prompt missing task detail:\n%s", req.UserPrompt)
	}
	if req.Options["max_tokens"] != 2048 {
		t.Errorf("Options = %v, want agent config", req.Options)
	}
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	store := &recordingStore{}
	completer := &scriptedCompleter{failures: 2}

	var retries []int
	e, err := NewExecutor(ExecutorConfig{
		Store:     store,
		Completer: completer,
		OnRetry: func(task *models.Task, err error, delay time.Duration) {
			retries = append(retries, task.RetryCount)
			if !errors.Is(err, ErrProviderFailure) {
				t.Errorf("retry error should be a provider failure: %v", err)
			}
		},
	})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	task := newTestTask(3)
	result, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if task.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", task.RetryCount)
	}
	if task.Error != nil {
		t.Errorf("Error should be cleared on success, got %q", task.ErrorText())
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("retry callbacks = %v, want [1 2]", retries)
	}

	want := []models.TaskStatus{
		models.TaskStatusInProgress, models.TaskStatusPending,
		models.TaskStatusInProgress, models.TaskStatusPending,
		models.TaskStatusInProgress, models.TaskStatusCompleted,
	}
	got := store.statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExecute_ExhaustsAfterMaxRetriesPlusOne(t *testing.T) {
	tests := []struct {
		maxRetries int
	}{
		{0}, {1}, {3},
	}
	for _, tt := range tests {
		store := &recordingStore{}
		completer := &scriptedCompleter{failures: 100}
		e := newTestExecutor(t, store, completer)

		task := newTestTask(tt.maxRetries)
		_, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
		if !errors.Is(err, ErrTaskExhausted) {
			t.Fatalf("maxRetries=%d: expected ErrTaskExhausted, got %v", tt.maxRetries, err)
		}
		if !errors.Is(err, ErrProviderFailure) {
			t.Errorf("maxRetries=%d: exhausted error should wrap the provider failure", tt.maxRetries)
		}

		var exhausted *TaskExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected *TaskExhaustedError, got %T", err)
		}
		if exhausted.Attempts != tt.maxRetries+1 {
			t.Errorf("maxRetries=%d: Attempts = %d, want %d", tt.maxRetries, exhausted.Attempts, tt.maxRetries+1)
		}
		if completer.calls != tt.maxRetries+1 {
			t.Errorf("maxRetries=%d: provider calls = %d, want %d", tt.maxRetries, completer.calls, tt.maxRetries+1)
		}
		if task.RetryCount != tt.maxRetries {
			t.Errorf("maxRetries=%d: RetryCount = %d", tt.maxRetries, task.RetryCount)
		}
		if task.Status != models.TaskStatusFailed {
			t.Errorf("maxRetries=%d: Status = %s, want FAILED", tt.maxRetries, task.Status)
		}
		if !strings.Contains(task.ErrorText(), "rate limited") {
			t.Errorf("maxRetries=%d: Error = %q", tt.maxRetries, task.ErrorText())
		}
		for _, u := range store.updates {
			if u.RetryCount > u.MaxRetries {
				t.Errorf("persisted RetryCount %d exceeds MaxRetries %d", u.RetryCount, u.MaxRetries)
			}
		}
	}
}

func TestExecute_BudgetComesFromTask(t *testing.T) {
	tests := []struct {
		maxRetries int
		wantCalls  int
	}{
		{maxRetries: 2, wantCalls: 3},
		{maxRetries: 0, wantCalls: 1},
		{maxRetries: -1, wantCalls: 1},
	}
	for _, tt := range tests {
		completer := &scriptedCompleter{failures: 100}
		e, err := NewExecutor(ExecutorConfig{
			Store:     &recordingStore{},
			Completer: completer,
			Retry:     RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		})
		if err != nil {
			t.Fatalf("NewExecutor failed: %v", err)
		}

		task := newTestTask(tt.maxRetries)
		if _, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent()); !errors.Is(err, ErrTaskExhausted) {
			t.Fatalf("maxRetries=%d: expected ErrTaskExhausted, got %v", tt.maxRetries, err)
		}
		if completer.calls != tt.wantCalls {
			t.Errorf("maxRetries=%d: provider calls = %d, want %d", tt.maxRetries, completer.calls, tt.wantCalls)
		}
		if task.MaxRetries < 0 {
			t.Errorf("maxRetries=%d: negative budget persisted", tt.maxRetries)
		}
	}
}

func TestExecute_StoreFailureIsNotAnAttempt(t *testing.T) {
	store := &recordingStore{
		failOn: func(task *models.Task) error {
			if task.Status == models.TaskStatusInProgress {
				return errors.New("disk full")
			}
			return nil
		},
	}
	completer := &scriptedCompleter{}
	e := newTestExecutor(t, store, completer)

	task := newTestTask(3)
	_, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTaskExhausted) {
		t.Error("store failure must not be reported as exhaustion")
	}
	if completer.calls != 0 {
		t.Errorf("provider called %d times, want 0", completer.calls)
	}
	if task.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", task.RetryCount)
	}
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	store := &recordingStore{}
	completer := &scriptedCompleter{}
	e := newTestExecutor(t, store, completer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newTestTask(3)
	_, err := e.Execute(ctx, newTestOrder(), task, newTestAgent())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if completer.calls != 0 || len(store.updates) != 0 {
		t.Errorf("cancelled execute touched provider (%d) or store (%d)", completer.calls, len(store.updates))
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Status = %s, want PENDING", task.Status)
	}
}

func TestExecute_CancelledDuringBackoff(t *testing.T) {
	store := &recordingStore{}
	completer := &scriptedCompleter{failures: 100}

	ctx, cancel := context.WithCancel(context.Background())
	e, err := NewExecutor(ExecutorConfig{
		Store:     store,
		Completer: completer,
		Retry:     RetryPolicy{BaseDelay: time.Hour},
		OnRetry: func(*models.Task, error, time.Duration) {
			cancel()
		},
	})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	task := newTestTask(3)
	_, err = e.Execute(ctx, newTestOrder(), task, newTestAgent())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if completer.calls != 1 {
		t.Errorf("provider calls = %d, want 1", completer.calls)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Status = %s, want PENDING", task.Status)
	}
}

func TestExecute_ProviderTimeoutIsTransient(t *testing.T) {
	store := &recordingStore{}
	calls := 0
	completer := CompleterFunc(func(ctx context.Context, req CompletionRequest) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	})

	var retryErr error
	e, err := NewExecutor(ExecutorConfig{
		Store:           store,
		Completer:       completer,
		ProviderTimeout: 10 * time.Millisecond,
		OnRetry: func(_ *models.Task, err error, _ time.Duration) {
			retryErr = err
		},
	})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	task := newTestTask(3)
	result, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "ok" || result.Attempts != 2 {
		t.Errorf("result = %+v", result)
	}

	var provErr *ProviderError
	if !errors.As(retryErr, &provErr) || !provErr.Timeout {
		t.Errorf("expected timeout ProviderError, got %v", retryErr)
	}
}

func TestExecute_DurationFloorsToSeconds(t *testing.T) {
	store := &recordingStore{}
	e := newTestExecutor(t, store, &scriptedCompleter{})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Duration{0, 2999 * time.Millisecond, 3 * time.Second}
	i := 0
	e.now = func() time.Time {
		d := ticks[len(ticks)-1]
		if i < len(ticks) {
			d = ticks[i]
		}
		i++
		return base.Add(d)
	}

	task := newTestTask(3)
	result, err := e.Execute(context.Background(), newTestOrder(), task, newTestAgent())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.DurationSeconds != 2 {
		t.Errorf("DurationSeconds = %d, want 2", result.DurationSeconds)
	}
	if task.DurationSeconds != 2 {
		t.Errorf("task.DurationSeconds = %d, want 2", task.DurationSeconds)
	}
}

func TestExecute_DefaultModel(t *testing.T) {
	completer := &scriptedCompleter{}
	e, err := NewExecutor(ExecutorConfig{
		Store:        &recordingStore{},
		Completer:    completer,
		DefaultModel: "fallback-model",
	})
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	agent := newTestAgent()
	agent.Model = ""
	if _, err := e.Execute(context.Background(), newTestOrder(), newTestTask(0), agent); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if completer.requests[0].Model != "fallback-model" {
		t.Errorf("Model = %q, want fallback-model", completer.requests[0].Model)
	}
}
