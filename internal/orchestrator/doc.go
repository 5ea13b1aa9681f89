// Package orchestrator drives service orders from submission to delivery.
//
// For each order the orchestrator:
//   - moves it to PROCESSING and reserves capacity on a matching agent
//   - plans a fixed, category-specific sequence of tasks
//   - executes the tasks in order against the completion provider
//   - assembles a delivery, releases the agent and marks it COMPLETED
//
// Any failure after PROCESSING releases the agent, marks the order FAILED
// with the cause in its status history and sends the client a generic
// failure notification. OrderPool runs many orders concurrently.
//
// Example usage:
//
//	orch, err := orchestrator.New(
//		orchestrator.RequiredConfig{Store: db, Executor: executor},
//		orchestrator.WithNotifier(sink),
//	)
//	err = orch.ProcessOrder(ctx, orderID)
package orchestrator
