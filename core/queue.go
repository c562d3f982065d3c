package core

import (
	"fmt"
	"log"
)

// IntakeQueue is the ingress for quest-creation jobs. The HTTP intake layer
// produces into it; the coordinator loop is its single consumer.
type IntakeQueue struct {
	jobs chan QuestSubmission
}

// NewIntakeQueue creates an intake queue with the given buffer size.
func NewIntakeQueue(size int) *IntakeQueue {
	return &IntakeQueue{jobs: make(chan QuestSubmission, size)}
}

// Submit enqueues one quest job without blocking. A full queue is reported
// to the producer so the intake layer can reject the submission.
func (q *IntakeQueue) Submit(sub QuestSubmission) error {
	select {
	case q.jobs <- sub:
		return nil
	default:
		return fmt.Errorf("intake queue full")
	}
}

// Jobs returns the consumer side of the queue.
func (q *IntakeQueue) Jobs() <-chan QuestSubmission {
	return q.jobs
}

// CompletionSink receives terminal quest outcomes. PublishCompletion fires
// exactly once per successful quest; PublishFailure once per failed quest.
type CompletionSink interface {
	PublishCompletion(evt CompletionEvent)
	PublishFailure(evt FailureEvent)
}

// CompletionQueue is the channel-backed egress to the downstream settlement
// and notification consumers. Publishing never blocks the coordinator loop;
// when a buffer is full the event is dropped with a log line and counted,
// rather than retried.
type CompletionQueue struct {
	completions chan CompletionEvent
	failures    chan FailureEvent
	metrics     *Metrics
}

// NewCompletionQueue creates a completion queue with the given buffer size
// per channel. metrics may be nil.
func NewCompletionQueue(size int, metrics *Metrics) *CompletionQueue {
	return &CompletionQueue{
		completions: make(chan CompletionEvent, size),
		failures:    make(chan FailureEvent, size),
		metrics:     metrics,
	}
}

// PublishCompletion hands a completion event to the downstream consumer.
func (q *CompletionQueue) PublishCompletion(evt CompletionEvent) {
	select {
	case q.completions <- evt:
	default:
		log.Printf("[CompletionQueue] Buffer full, dropping completion event for quest %s", evt.QuestID)
		if q.metrics != nil {
			q.metrics.DroppedEvents.Inc()
		}
	}
}

// PublishFailure hands a quest-failed event to the downstream consumer.
func (q *CompletionQueue) PublishFailure(evt FailureEvent) {
	select {
	case q.failures <- evt:
	default:
		log.Printf("[CompletionQueue] Buffer full, dropping failure event for quest %s", evt.QuestID)
		if q.metrics != nil {
			q.metrics.DroppedEvents.Inc()
		}
	}
}

// Completions returns the consumer side of the completion channel.
func (q *CompletionQueue) Completions() <-chan CompletionEvent {
	return q.completions
}

// Failures returns the consumer side of the failure channel.
func (q *CompletionQueue) Failures() <-chan FailureEvent {
	return q.failures
}
