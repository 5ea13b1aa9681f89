package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/fulfiller/internal/agent"
	"github.com/ShayCichocki/fulfiller/internal/notify"
	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

func setupStore(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

// countingStore records load changes so tests can check Assign/Release symmetry.
type countingStore struct {
	*state.DB

	increments atomic.Int32
	decrements atomic.Int32

	mu      sync.Mutex
	maxSeen map[string]int
}

func newCountingStore(db *state.DB) *countingStore {
	return &countingStore{DB: db, maxSeen: make(map[string]int)}
}

func (s *countingStore) IncrementAgentLoad(id string) (*models.Agent, error) {
	a, err := s.DB.IncrementAgentLoad(id)
	if err != nil {
		return nil, err
	}
	s.increments.Add(1)
	s.mu.Lock()
	if a.CurrentLoad > s.maxSeen[id] {
		s.maxSeen[id] = a.CurrentLoad
	}
	s.mu.Unlock()
	return a, nil
}

func (s *countingStore) DecrementAgentLoad(id string) (*models.Agent, error) {
	a, err := s.DB.DecrementAgentLoad(id)
	if err != nil {
		return nil, err
	}
	s.decrements.Add(1)
	return a, nil
}

func (s *countingStore) maxLoadSeen(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen[id]
}

type harness struct {
	db    *state.DB
	store *countingStore
	sink  *notify.MemorySink
	orch  *Orchestrator
}

func newHarness(t *testing.T, completer agent.Completer, opts ...Option) *harness {
	t.Helper()
	db := setupStore(t)
	store := newCountingStore(db)

	executor, err := agent.NewExecutor(agent.ExecutorConfig{Store: db, Completer: completer})
	require.NoError(t, err)

	sink := notify.NewMemorySink()
	orch, err := New(RequiredConfig{Store: store, Executor: executor},
		append([]Option{WithNotifier(sink)}, opts...)...)
	require.NoError(t, err)

	return &harness{db: db, store: store, sink: sink, orch: orch}
}

func addAgent(t *testing.T, db *state.DB, id string, typ models.AgentType, load, maxLoad int) {
	t.Helper()
	require.NoError(t, db.CreateAgent(&models.Agent{
		ID:          id,
		Type:        typ,
		CurrentLoad: load,
		MaxLoad:     maxLoad,
		Active:      true,
	}))
}

func addOrder(t *testing.T, db *state.DB, id string, category models.Category) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.CreateOrder(&models.Order{
		ID:           id,
		ClientID:     "client-1",
		Category:     category,
		Requirements: json.RawMessage(`{"property":"Maple Court","units":12}`),
		Status:       models.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func staticCompleter(output string) agent.Completer {
	return agent.CompleterFunc(func(context.Context, agent.CompletionRequest) (string, error) {
		return output, nil
	})
}

// taskTypeOf extracts the task type from a prompt built by agent.BuildTaskPrompt.
func taskTypeOf(prompt string) models.TaskType {
	line, _, _ := strings.Cut(prompt, "\n")
	return models.TaskType(strings.TrimPrefix(line, "## Task: "))
}

func historyStatuses(t *testing.T, db *state.DB, orderID string) []models.OrderStatus {
	t.Helper()
	history, err := db.ListStatusHistory(orderID)
	require.NoError(t, err)
	var out []models.OrderStatus
	for i, h := range history {
		if i == 0 {
			out = append(out, h.FromStatus)
		}
		out = append(out, h.ToStatus)
	}
	return out
}

func lastReason(t *testing.T, db *state.DB, orderID string) string {
	t.Helper()
	history, err := db.ListStatusHistory(orderID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	return history[len(history)-1].Reason
}

// assertValidPath checks that an order's history is a path through the
// status graph that starts at PENDING and ends terminal.
func assertValidPath(t *testing.T, db *state.DB, orderID string) {
	t.Helper()
	history, err := db.ListStatusHistory(orderID)
	require.NoError(t, err)
	require.NotEmpty(t, history)

	assert.Equal(t, models.OrderStatusPending, history[0].FromStatus)
	for i, h := range history {
		assert.True(t, CanTransition(h.FromStatus, h.ToStatus), "order %s: %s -> %s", orderID, h.FromStatus, h.ToStatus)
		assert.Equal(t, models.ActorSystem, h.Actor)
		if i > 0 {
			assert.Equal(t, history[i-1].ToStatus, h.FromStatus)
		}
	}
	assert.True(t, history[len(history)-1].ToStatus.Terminal())
}

func TestNew_RequiresStoreAndExecutor(t *testing.T) {
	db := setupStore(t)
	executor, err := agent.NewExecutor(agent.ExecutorConfig{Store: db, Completer: staticCompleter("ok")})
	require.NoError(t, err)

	_, err = New(RequiredConfig{Executor: executor})
	assert.Error(t, err)
	_, err = New(RequiredConfig{Store: db})
	assert.Error(t, err)

	orch, err := New(RequiredConfig{Store: db, Executor: executor})
	require.NoError(t, err)
	assert.NotNil(t, orch.Registry())
	assert.Nil(t, orch.Events())
}

func TestProcessOrder_WebsiteCompletes(t *testing.T) {
	h := newHarness(t, staticCompleter("generated"))
	addAgent(t, h.db, "agent-1", models.AgentTypeWebsiteBuilder, 0, 3)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	require.NoError(t, h.orch.ProcessOrder(context.Background(), "order-1"))

	order, err := h.db.GetOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, "agent-1", order.AssignedAgentID)

	a, err := h.db.GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentLoad)
	assert.Equal(t, models.AgentStatusAvailable, a.Status)

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	wantTypes := []models.TaskType{
		models.TaskTypeAnalyze, models.TaskTypeDesign, models.TaskTypeCode, models.TaskTypeDeploy, models.TaskTypeTest,
	}
	for i, task := range tasks {
		assert.Equal(t, wantTypes[i], task.Type)
		assert.Equal(t, models.TaskStatusCompleted, task.Status)
		assert.Equal(t, "generated", task.OutputText())
		assert.Equal(t, "agent-1", task.AgentID)
		assert.Equal(t, i, task.Sequence)
		assert.JSONEq(t, `{"property":"Maple Court","units":12}`, string(task.Input))
	}

	delivery, err := h.db.GetDelivery("order-1")
	require.NoError(t, err)
	require.NotNil(t, delivery)
	assert.Equal(t, models.DeliveryTypeWebsiteURL, delivery.Type)
	assert.Equal(t, models.DeliveryStatusDelivered, delivery.Status)
	assert.Len(t, delivery.Content.Tasks, 5)

	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusInProgress, models.OrderStatusCompleted,
	}, historyStatuses(t, h.db, "order-1"))
	assert.Equal(t, ReasonCompleted, lastReason(t, h.db, "order-1"))
	assertValidPath(t, h.db, "order-1")

	assert.Equal(t, int32(1), h.store.increments.Load())
	assert.Equal(t, int32(1), h.store.decrements.Load())

	sent := h.sink.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindOrderCompleted, sent[0].Kind)
	assert.Equal(t, "client-1", sent[0].ClientID)
	assert.Contains(t, sent[0].Body, delivery.Title)
}

func TestProcessOrder_NoAgentAvailable(t *testing.T) {
	h := newHarness(t, staticCompleter("unused"))
	addAgent(t, h.db, "busy", models.AgentTypeWebsiteBuilder, 1, 1)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, ErrNoAgentAvailable)
	var noAgent *NoAgentAvailableError
	require.ErrorAs(t, err, &noAgent)
	assert.Equal(t, models.AgentTypeWebsiteBuilder, noAgent.AgentType)

	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusFailed,
	}, historyStatuses(t, h.db, "order-1"))
	assert.Equal(t, "Order failed: No available WEBSITE_BUILDER agent", lastReason(t, h.db, "order-1"))

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	a, err := h.db.GetAgent("busy")
	require.NoError(t, err)
	assert.Equal(t, 1, a.CurrentLoad)
	assert.Zero(t, h.store.increments.Load())
	assert.Zero(t, h.store.decrements.Load())

	sent := h.sink.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindOrderFailed, sent[0].Kind)
	assert.Contains(t, sent[0].Body, "We encountered an issue")
	assert.NotContains(t, sent[0].Body, "WEBSITE_BUILDER")
}

func TestProcessOrder_TaskExhaustionStopsPlan(t *testing.T) {
	var mu sync.Mutex
	calls := make(map[models.TaskType]int)
	completer := agent.CompleterFunc(func(_ context.Context, req agent.CompletionRequest) (string, error) {
		typ := taskTypeOf(req.UserPrompt)
		mu.Lock()
		calls[typ]++
		mu.Unlock()
		if typ == models.TaskTypeDesign {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	})

	h := newHarness(t, completer)
	// Pre-existing load exposes a double release.
	addAgent(t, h.db, "agent-1", models.AgentTypeWebsiteBuilder, 1, 3)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, agent.ErrTaskExhausted)
	require.ErrorIs(t, err, agent.ErrProviderFailure)

	mu.Lock()
	assert.Equal(t, 1, calls[models.TaskTypeAnalyze])
	assert.Equal(t, models.DefaultMaxRetries+1, calls[models.TaskTypeDesign])
	assert.Zero(t, calls[models.TaskTypeCode])
	assert.Zero(t, calls[models.TaskTypeDeploy])
	assert.Zero(t, calls[models.TaskTypeTest])
	mu.Unlock()

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	assert.Equal(t, models.TaskStatusCompleted, tasks[0].Status)
	assert.Equal(t, models.TaskStatusFailed, tasks[1].Status)
	assert.Equal(t, models.DefaultMaxRetries, tasks[1].RetryCount)
	assert.Contains(t, tasks[1].ErrorText(), "rate limited")
	for _, task := range tasks[2:] {
		assert.Equal(t, models.TaskStatusPending, task.Status, "task %s", task.Type)
		assert.Nil(t, task.StartedAt)
		assert.Zero(t, task.RetryCount)
	}

	order, err := h.db.GetOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.True(t, strings.HasPrefix(lastReason(t, h.db, "order-1"), ReasonFailedPrefix))
	assert.Contains(t, lastReason(t, h.db, "order-1"), "rate limited")
	assertValidPath(t, h.db, "order-1")

	a, err := h.db.GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.CurrentLoad, "agent released exactly once")
	assert.Equal(t, int32(1), h.store.decrements.Load())

	delivery, err := h.db.GetDelivery("order-1")
	require.NoError(t, err)
	assert.Nil(t, delivery)

	sent := h.sink.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindOrderFailed, sent[0].Kind)
	assert.NotContains(t, sent[0].Body, "rate limited")
}

func TestProcessOrder_UnmappedCategory(t *testing.T) {
	h := newHarness(t, staticCompleter("unused"))
	addAgent(t, h.db, "general-1", models.AgentTypeGeneral, 0, 2)
	addOrder(t, h.db, "order-1", models.Category("LEGAL"))

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, ErrPlanningFailure)

	assert.Equal(t, "Order failed: no task template for category LEGAL", lastReason(t, h.db, "order-1"))
	assert.Equal(t, []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusFailed,
	}, historyStatuses(t, h.db, "order-1"))

	assert.Equal(t, int32(1), h.store.increments.Load())
	assert.Equal(t, int32(1), h.store.decrements.Load())

	a, err := h.db.GetAgent("general-1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentLoad)

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProcessOrder_UnmappedCategoryWithoutGeneralAgent(t *testing.T) {
	h := newHarness(t, staticCompleter("unused"))
	addOrder(t, h.db, "order-1", models.Category("LEGAL"))

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, ErrNoAgentAvailable)
	assert.Equal(t, "Order failed: No available GENERAL agent", lastReason(t, h.db, "order-1"))
	assert.Zero(t, h.store.decrements.Load())
}

func TestProcessOrder_SingleCapacityAgentContention(t *testing.T) {
	entered := make(chan struct{}, 1)
	unblock := make(chan struct{})
	completer := agent.CompleterFunc(func(ctx context.Context, _ agent.CompletionRequest) (string, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-unblock:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	h := newHarness(t, completer)
	addAgent(t, h.db, "solo", models.AgentTypeChatbotCreator, 0, 1)
	addOrder(t, h.db, "first", models.CategoryChatbot)
	addOrder(t, h.db, "second", models.CategoryChatbot)
	addOrder(t, h.db, "third", models.CategoryChatbot)

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.orch.ProcessOrder(context.Background(), "first") }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first order never reached the provider")
	}

	err := h.orch.ProcessOrder(context.Background(), "second")
	require.ErrorIs(t, err, ErrNoAgentAvailable)

	close(unblock)
	require.NoError(t, <-firstDone)

	// Capacity is back once the first order released it.
	require.NoError(t, h.orch.ProcessOrder(context.Background(), "third"))

	for id, want := range map[string]models.OrderStatus{
		"first":  models.OrderStatusCompleted,
		"second": models.OrderStatusFailed,
		"third":  models.OrderStatusCompleted,
	} {
		order, err := h.db.GetOrder(id)
		require.NoError(t, err)
		assert.Equal(t, want, order.Status, id)
	}

	a, err := h.db.GetAgent("solo")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentLoad)
	assert.Equal(t, 1, h.store.maxLoadSeen("solo"))
}

func TestProcessOrder_ConcurrentOrdersRespectCapacity(t *testing.T) {
	const orders = 8
	const maxLoad = 2

	completer := agent.CompleterFunc(func(ctx context.Context, _ agent.CompletionRequest) (string, error) {
		select {
		case <-time.After(2 * time.Millisecond):
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	h := newHarness(t, completer)
	addAgent(t, h.db, "phone-1", models.AgentTypePhoneAI, 0, maxLoad)
	for i := 0; i < orders; i++ {
		addOrder(t, h.db, fmt.Sprintf("order-%d", i), models.CategoryPhoneAssistant)
	}

	var wg sync.WaitGroup
	var completed, rejected atomic.Int32
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := h.orch.ProcessOrder(context.Background(), id)
			switch {
			case err == nil:
				completed.Add(1)
			case errors.Is(err, ErrNoAgentAvailable):
				rejected.Add(1)
			default:
				t.Errorf("order %s: unexpected error %v", id, err)
			}
		}(fmt.Sprintf("order-%d", i))
	}
	wg.Wait()

	assert.Equal(t, int32(orders), completed.Load()+rejected.Load())
	assert.GreaterOrEqual(t, completed.Load(), int32(1))
	assert.LessOrEqual(t, h.store.maxLoadSeen("phone-1"), maxLoad)
	assert.Equal(t, h.store.increments.Load(), h.store.decrements.Load())
	assert.Equal(t, completed.Load(), h.store.increments.Load())

	a, err := h.db.GetAgent("phone-1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentLoad)

	for i := 0; i < orders; i++ {
		assertValidPath(t, h.db, fmt.Sprintf("order-%d", i))
	}
}

func TestProcessOrder_OrderNotFound(t *testing.T) {
	h := newHarness(t, staticCompleter("unused"))

	err := h.orch.ProcessOrder(context.Background(), "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, h.sink.Sent())
}

func TestProcessOrder_AlreadyTerminal(t *testing.T) {
	h := newHarness(t, staticCompleter("done"))
	addAgent(t, h.db, "agent-1", models.AgentTypeTaxSpecialist, 0, 1)
	addOrder(t, h.db, "order-1", models.CategoryTaxPrep)

	require.NoError(t, h.orch.ProcessOrder(context.Background(), "order-1"))
	before := historyStatuses(t, h.db, "order-1")

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.OrderStatusCompleted, invalid.From)
	assert.Equal(t, models.OrderStatusProcessing, invalid.To)

	assert.Equal(t, before, historyStatuses(t, h.db, "order-1"))
	assert.Equal(t, int32(1), h.store.increments.Load())
	assert.Len(t, h.sink.Sent(), 1)
}

func TestProcessOrder_CancelledDuringTask(t *testing.T) {
	entered := make(chan struct{}, 1)
	completer := agent.CompleterFunc(func(ctx context.Context, _ agent.CompletionRequest) (string, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", ctx.Err()
	})

	h := newHarness(t, completer)
	addAgent(t, h.db, "agent-1", models.AgentTypeWebsiteBuilder, 0, 1)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.ProcessOrder(ctx, "order-1") }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("order never reached the provider")
	}
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	order, err := h.db.GetOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
	assert.Zero(t, tasks[0].RetryCount)

	a, err := h.db.GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.CurrentLoad)
	assert.Len(t, h.sink.Sent(), 1)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, notify.Notification) error {
	return errors.New("smtp unreachable")
}

func TestProcessOrder_NotificationFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, staticCompleter("ok"), WithNotifier(failingNotifier{}))
	addAgent(t, h.db, "agent-1", models.AgentTypeWebsiteBuilder, 0, 1)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	require.NoError(t, h.orch.ProcessOrder(context.Background(), "order-1"))

	order, err := h.db.GetOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestProcessOrder_RecordsNotificationsInStore(t *testing.T) {
	db := setupStore(t)
	executor, err := agent.NewExecutor(agent.ExecutorConfig{Store: db, Completer: staticCompleter("ok")})
	require.NoError(t, err)
	orch, err := New(RequiredConfig{Store: db, Executor: executor}, WithNotifier(notify.NewStoreSink(db)))
	require.NoError(t, err)

	addAgent(t, db, "agent-1", models.AgentTypeChatbotCreator, 0, 1)
	addOrder(t, db, "order-1", models.CategoryChatbot)
	require.NoError(t, orch.ProcessOrder(context.Background(), "order-1"))

	records, err := db.ListNotifications("order-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(notify.KindOrderCompleted), records[0].Kind)
	assert.Equal(t, "client-1", records[0].ClientID)
}

func TestProcessOrder_EmitsEvents(t *testing.T) {
	db := setupStore(t)
	emitter := NewEventEmitter(100)

	var failedOnce atomic.Bool
	completer := agent.CompleterFunc(func(context.Context, agent.CompletionRequest) (string, error) {
		if failedOnce.CompareAndSwap(false, true) {
			return "", errors.New("overloaded")
		}
		return "ok", nil
	})
	executor, err := agent.NewExecutor(agent.ExecutorConfig{
		Store:     db,
		Completer: completer,
		OnRetry:   emitter.RetryHook(),
	})
	require.NoError(t, err)

	orch, err := New(RequiredConfig{Store: db, Executor: executor}, WithEventEmitter(emitter))
	require.NoError(t, err)

	addAgent(t, db, "agent-1", models.AgentTypeTaxSpecialist, 0, 1)
	addOrder(t, db, "order-1", models.CategoryTaxPrep)
	require.NoError(t, orch.ProcessOrder(context.Background(), "order-1"))
	emitter.Close()

	var types []EventType
	for e := range orch.Events() {
		assert.Equal(t, "order-1", e.OrderID)
		assert.False(t, e.Timestamp.IsZero())
		types = append(types, e.Type)
	}

	assert.Equal(t, []EventType{
		EventOrderProcessing,
		EventAgentAssigned,
		EventTaskStarted, EventTaskRetry, EventTaskCompleted,
		EventTaskStarted, EventTaskCompleted,
		EventTaskStarted, EventTaskCompleted,
		EventTaskStarted, EventTaskCompleted,
		EventOrderCompleted,
	}, types)
	assert.Zero(t, emitter.DroppedCount())
}

func TestProcessOrder_MaxRetriesOption(t *testing.T) {
	var calls atomic.Int32
	completer := agent.CompleterFunc(func(context.Context, agent.CompletionRequest) (string, error) {
		calls.Add(1)
		return "", errors.New("down")
	})

	h := newHarness(t, completer, WithMaxRetries(1))
	addAgent(t, h.db, "agent-1", models.AgentTypeWebsiteBuilder, 0, 1)
	addOrder(t, h.db, "order-1", models.CategoryWebsite)

	err := h.orch.ProcessOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, agent.ErrTaskExhausted)
	assert.Equal(t, int32(2), calls.Load())

	tasks, err := h.db.ListTasksByOrder("order-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tasks[0].MaxRetries)
	assert.Equal(t, 1, tasks[0].RetryCount)
}
