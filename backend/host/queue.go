package host

import "sync"

// queue is an in-order command queue served by a single goroutine.
// Commands run strictly one after another in submission order.
type queue struct {
	tasks chan func() error
	done  chan struct{}

	pending sync.WaitGroup

	mu  sync.Mutex
	err error // first command error since the last finish
}

func newQueue(depth int) *queue {
	q := &queue{
		tasks: make(chan func() error, depth),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for task := range q.tasks {
		if err := task(); err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
		}
		q.pending.Done()
	}
}

// submit enqueues task. It blocks only when the queue is full.
func (q *queue) submit(task func() error) {
	q.pending.Add(1)
	q.tasks <- task
}

// finish waits for all submitted commands and returns the first error
// any of them reported.
func (q *queue) finish() error {
	q.pending.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

// close drains the queue and stops its goroutine.
func (q *queue) close() {
	close(q.tasks)
	<-q.done
}
