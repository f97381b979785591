package reqcoord

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	pq "github.com/ipfs/go-ipfs-pq"
)

// task is a fetch waiting for a free execution slot.
type task struct {
	key        string
	priority   int
	seq        uint64
	enqueuedAt time.Time
	ready      chan struct{}
	index      int
}

func (t *task) Index() int {
	return t.index
}

func (t *task) SetIndex(i int) {
	t.index = i
}

// taskOrder puts higher priority first and, for equal priority, the task that
// was enqueued first.
func taskOrder(a, b pq.Elem) bool {
	ta := a.(*task)
	tb := b.(*task)
	if ta.priority != tb.priority {
		return ta.priority > tb.priority
	}
	return ta.seq < tb.seq
}

// queue limits the number of running tasks. A task that cannot start
// immediately waits in a priority queue until a running task releases its
// slot.
type queue struct {
	limit int
	clock clock.Clock

	mutex   sync.Mutex
	waiting pq.PQ
	running int
	seq     uint64

	// onChange is called with the queue lock held.
	onChange func(pending, running int)
}

func newQueue(limit int, clk clock.Clock, onChange func(pending, running int)) *queue {
	return &queue{
		limit:    limit,
		clock:    clk,
		waiting:  pq.New(taskOrder),
		onChange: onChange,
	}
}

// acquire blocks until the caller may run. Every acquire must be followed by
// exactly one release. There is no way to give up while waiting; a queued
// task always runs. The time spent waiting is returned.
func (q *queue) acquire(key string, priority int) time.Duration {
	q.mutex.Lock()
	if q.running < q.limit && q.waiting.Len() == 0 {
		q.running++
		q.changed()
		q.mutex.Unlock()
		return 0
	}
	q.seq++
	t := &task{
		key:        key,
		priority:   priority,
		seq:        q.seq,
		enqueuedAt: q.clock.Now(),
		ready:      make(chan struct{}),
	}
	q.waiting.Push(t)
	q.changed()
	q.mutex.Unlock()

	log.Debugw("Request queued", "key", key, "priority", priority)
	<-t.ready
	return q.clock.Since(t.enqueuedAt)
}

// release frees the caller's slot and hands it to the next waiting task.
func (q *queue) release() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.running--
	for q.running < q.limit && q.waiting.Len() != 0 {
		t := q.waiting.Pop().(*task)
		q.running++
		close(t.ready)
	}
	q.changed()
}

func (q *queue) stats() (pending, running int) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.waiting.Len(), q.running
}

func (q *queue) changed() {
	if q.onChange != nil {
		q.onChange(q.waiting.Len(), q.running)
	}
}
