package leader

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uber-go/atomic"
)

func TestSerialExecutorPreservesOrder(t *testing.T) {
	e := newSerialExecutor()
	e.Start()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		e.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(testWindow):
		t.Fatal("timed out waiting for tasks to drain")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	e.Stop()
}

func TestSerialExecutorNeverOverlaps(t *testing.T) {
	e := newSerialExecutor()
	e.Start()

	running := atomic.NewInt32(0)
	overlapped := atomic.NewBool(false)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		e.Enqueue(func() {
			if running.Inc() > 1 {
				overlapped.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			running.Dec()
			if i == 49 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(testWindow):
		t.Fatal("timed out waiting for tasks to drain")
	}
	assert.False(t, overlapped.Load())
	e.Stop()
}

func TestSerialExecutorStopDiscardsQueued(t *testing.T) {
	e := newSerialExecutor()
	e.Start()

	entered := make(chan struct{})
	release := make(chan struct{})
	e.Enqueue(func() {
		close(entered)
		<-release
	})

	ran := atomic.NewBool(false)
	e.Enqueue(func() { ran.Store(true) })

	<-entered
	// the in-flight task is not cancelled, but the queued one must
	// never run
	e.Stop()
	close(release)
	e.join()
	assert.False(t, ran.Load())
}

func TestSerialExecutorEnqueueAfterStop(t *testing.T) {
	e := newSerialExecutor()
	e.Start()
	e.Stop()
	e.join()

	ran := atomic.NewBool(false)
	e.Enqueue(func() { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}
