// Package queue pushes trigger jobs onto the outbound notification queue.
// Delivery downstream is at-least-once; the engine enqueues at most once per
// evaluation pass per alert.
package queue

import "context"

// JobName identifies the downstream consumer of trigger jobs.
const JobName = "alert-triggered"

// TriggerJob is the payload handed to the notification pipeline.
type TriggerJob struct {
	AlertID string `json:"alertId"`
}

// Enqueuer accepts trigger jobs for downstream notification delivery.
type Enqueuer interface {
	EnqueueAlertTriggered(ctx context.Context, alertID string) error
}
