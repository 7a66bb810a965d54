package improve

import (
	"context"
	"log"
	"sync"
)

// FeedbackQueue decouples webhook deliveries from iteration runs: the
// gateway enqueues admitted feedback and returns immediately, a single worker
// drains the queue. One worker is deliberate since iterations contend on the
// workspace lease anyway.
type FeedbackQueue struct {
	it   *Iterator
	ch   chan Feedback
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewFeedbackQueue creates a queue with the given buffer size.
func NewFeedbackQueue(it *Iterator, size int) *FeedbackQueue {
	if size <= 0 {
		size = 16
	}
	return &FeedbackQueue{
		it:   it,
		ch:   make(chan Feedback, size),
		stop: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (q *FeedbackQueue) Start() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case fb := <-q.ch:
				if _, err := q.it.Run(context.Background(), fb); err != nil {
					log.Printf("Iteration for comment %d on PR #%d failed: %v", fb.CommentID, fb.PRNumber, err)
				}
			case <-q.stop:
				return
			}
		}
	}()
}

// Dispatch enqueues feedback, blocking while the queue is full. The gateway
// has already acknowledged the delivery, so back-pressure must queue the work
// rather than lose it; excess concurrency waits here and then serializes on
// the workspace lease.
func (q *FeedbackQueue) Dispatch(fb Feedback) {
	select {
	case q.ch <- fb:
	case <-q.stop:
		log.Printf("Queue stopped, discarding comment %d on PR #%d", fb.CommentID, fb.PRNumber)
	}
}

// Shutdown stops the worker. Queued feedback that has not started is
// abandoned; unprocessed comments will be redelivered by GitHub.
func (q *FeedbackQueue) Shutdown() {
	q.once.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}
