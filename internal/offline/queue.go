// Package offline provides a bounded in-memory buffer for interactions that
// could not be durably persisted immediately.
package offline

import (
	"sync"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the default hard bound on queued interactions.
const DefaultCapacity = 100

// Queue is a bounded FIFO buffer of interactions awaiting durable
// persistence. Capacity is a hard bound: enqueueing past it evicts the
// oldest entry. Eviction is accepted data loss and is always logged.
//
// The queue is per-process shared mutable state between the ingestion path
// and the drain path; all methods are safe for concurrent use.
type Queue struct {
	entries  []models.UserInteraction
	capacity int
	evicted  int64
	mu       sync.Mutex
}

// NewQueue creates a queue with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		entries:  make([]models.UserInteraction, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends an interaction, evicting the oldest entry first when the
// queue is full.
func (q *Queue) Enqueue(interaction models.UserInteraction) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		dropped := q.entries[0]
		q.entries = q.entries[1:]
		q.evicted++
		log.Warn().
			Str("interactionId", dropped.ID).
			Str("userId", dropped.UserID).
			Int("capacity", q.capacity).
			Msg("Offline queue full, evicting oldest interaction")
	}
	q.entries = append(q.entries, interaction)
}

// DrainAll returns and clears the full contents atomically with respect to
// concurrent Enqueue calls. Entries are returned in FIFO order.
func (q *Queue) DrainAll() []models.UserInteraction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	drained := make([]models.UserInteraction, len(q.entries))
	copy(drained, q.entries)
	q.entries = q.entries[:0]
	return drained
}

// Requeue puts interactions back at the front of the queue after a failed
// flush, preserving FIFO order as far as capacity allows. When the combined
// size exceeds capacity the oldest requeued entries are dropped first.
func (q *Queue) Requeue(interactions []models.UserInteraction) {
	if len(interactions) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	combined := make([]models.UserInteraction, 0, len(interactions)+len(q.entries))
	combined = append(combined, interactions...)
	combined = append(combined, q.entries...)

	if overflow := len(combined) - q.capacity; overflow > 0 {
		q.evicted += int64(overflow)
		log.Warn().
			Int("dropped", overflow).
			Int("capacity", q.capacity).
			Msg("Offline queue overflow on requeue, dropping oldest entries")
		combined = combined[overflow:]
	}
	q.entries = combined
}

// Size returns the number of buffered interactions.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// EvictedCount returns the total number of interactions lost to eviction
// since the queue was created.
func (q *Queue) EvictedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}
