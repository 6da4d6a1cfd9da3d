package leader

import (
	"container/list"
	"sync"

	"github.com/razinbouzar/druid/common/lifecycle"
)

// serialExecutor delivers queued tasks strictly one at a time, in
// arrival order, on a single worker goroutine. This is what guarantees
// the application listener never observes overlapping callbacks, no
// matter which coordination-client goroutine produced the notification.
// Stop discards tasks that have not begun executing.
type serialExecutor struct {
	sync.Mutex
	tasks *list.List

	// signal has a buffer of one so an enqueue that races with the
	// worker draining the queue is never lost.
	signal chan struct{}
	lc     lifecycle.LifeCycle
}

func newSerialExecutor() *serialExecutor {
	return &serialExecutor{
		tasks:  list.New(),
		signal: make(chan struct{}, 1),
		lc:     lifecycle.NewLifeCycle(),
	}
}

// Start spawns the worker goroutine. Idempotent.
func (e *serialExecutor) Start() {
	if !e.lc.Start() {
		return
	}
	go e.run()
}

// Enqueue adds a task to the back of the queue. This never blocks;
// tasks enqueued after Stop are silently dropped.
func (e *serialExecutor) Enqueue(task func()) {
	e.Lock()
	e.tasks.PushBack(task)
	e.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Stop terminates the worker and discards everything still queued. It
// does not wait for an in-flight task; there is no mid-flight
// cancellation of a running callback.
func (e *serialExecutor) Stop() {
	e.lc.Stop()
}

// join blocks until the worker goroutine has exited. Test hook.
func (e *serialExecutor) join() {
	e.lc.Wait()
}

func (e *serialExecutor) run() {
	stopCh := e.lc.StopCh()
	defer e.lc.StopComplete()

	for {
		e.Lock()
		f := e.tasks.Front()
		if f != nil {
			e.tasks.Remove(f)
		}
		e.Unlock()

		if f == nil {
			select {
			case <-stopCh:
				return
			case <-e.signal:
			}
			continue
		}

		// Re-check before executing so that Stop discards queued work
		// immediately rather than draining it.
		select {
		case <-stopCh:
			return
		default:
		}

		f.Value.(func())()
	}
}
