// README: Async notification queue; decouples delivery from trip transitions.
package notification

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"busops/internal/types"
)

var ErrQueueFull = errors.New("notification queue full")
var ErrQueueClosed = errors.New("notification queue closed")

const deliveryTimeout = 10 * time.Second

type job struct {
	userID types.ID
	role   string
	p      Payload
}

// Queue buffers notifications and delivers them on a fixed worker pool.
// Send and SendToRole never block; a full buffer drops the notification.
type Queue struct {
	next Dispatcher
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(next Dispatcher, size int) *Queue {
	return &Queue{next: next, jobs: make(chan job, size)}
}

// Start launches workers. Call Close to drain and stop them.
func (q *Queue) Start(workers int) {
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		var err error
		if j.role != "" {
			err = q.next.SendToRole(ctx, j.role, j.p)
		} else {
			err = q.next.Send(ctx, j.userID, j.p)
		}
		cancel()
		if err != nil {
			log.Printf("[NOTIFY] action=deliver user_id=%s role=%s type=%s err=%v", j.userID, j.role, j.p.Type, err)
		}
	}
}

func (q *Queue) Send(_ context.Context, userID types.ID, p Payload) error {
	return q.enqueue(job{userID: userID, p: p})
}

func (q *Queue) SendToRole(_ context.Context, role string, p Payload) error {
	return q.enqueue(job{role: role, p: p})
}

func (q *Queue) enqueue(j job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		return nil
	default:
		log.Printf("[NOTIFY] action=drop user_id=%s role=%s type=%s err=%v", j.userID, j.role, j.p.Type, ErrQueueFull)
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for queued notifications to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
