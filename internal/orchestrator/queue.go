package orchestrator

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// admissionQueue is a FIFO-per-tenant, round-robin-across-tenants queue.
// Ties (simultaneous arrival into the rotation) are broken by earliest
// submitted_at, which FIFO-within-tenant already guarantees; rotation
// order among tenants is arrival order of their first pending item.
type admissionQueue struct {
	mu      sync.Mutex
	order   *list.List                  // rotation order of tenant ids (list.Element holds uuid.UUID)
	byTenant map[uuid.UUID]*list.Element // tenant -> its node in order
	queues  map[uuid.UUID][]uuid.UUID   // tenant -> FIFO of job ids
	cursor  *list.Element                // next tenant to serve from
	size    int
}

func newAdmissionQueue() *admissionQueue {
	return &admissionQueue{
		order:    list.New(),
		byTenant: make(map[uuid.UUID]*list.Element),
		queues:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (q *admissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Push enqueues a job id under its tenant's FIFO, registering the tenant
// in the rotation if it has no other pending work.
func (q *admissionQueue) Push(tenantID, jobID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byTenant[tenantID]; !ok {
		el := q.order.PushBack(tenantID)
		q.byTenant[tenantID] = el
	}
	q.queues[tenantID] = append(q.queues[tenantID], jobID)
	q.size++
}

// Pop returns the next job id to admit, advancing the round-robin cursor
// by one tenant. Returns ok=false when the queue is empty.
func (q *admissionQueue) Pop() (jobID uuid.UUID, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.order.Len() == 0 {
		return uuid.Nil, false
	}
	if q.cursor == nil {
		q.cursor = q.order.Front()
	}

	start := q.cursor
	for {
		tenantID := q.cursor.Value.(uuid.UUID)
		pending := q.queues[tenantID]
		next := q.cursor.Next()

		if len(pending) > 0 {
			jobID = pending[0]
			q.queues[tenantID] = pending[1:]
			q.size--
			if len(q.queues[tenantID]) == 0 {
				delete(q.queues, tenantID)
				delete(q.byTenant, tenantID)
				toRemove := q.cursor
				q.cursor = next
				q.order.Remove(toRemove)
			} else {
				q.cursor = next
			}
			if q.cursor == nil {
				q.cursor = q.order.Front()
			}
			return jobID, true
		}

		q.cursor = next
		if q.cursor == nil {
			q.cursor = q.order.Front()
		}
		if q.cursor == start {
			return uuid.Nil, false
		}
	}
}

// Remove drops a specific pending job id (used by Cancel on a Queued
// job), returning true if it was found and removed.
func (q *admissionQueue) Remove(tenantID, jobID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.queues[tenantID]
	for i, id := range pending {
		if id == jobID {
			q.queues[tenantID] = append(pending[:i], pending[i+1:]...)
			q.size--
			if len(q.queues[tenantID]) == 0 {
				if el, ok := q.byTenant[tenantID]; ok {
					if q.cursor == el {
						q.cursor = el.Next()
					}
					q.order.Remove(el)
					delete(q.byTenant, tenantID)
				}
				delete(q.queues, tenantID)
			}
			return true
		}
	}
	return false
}
