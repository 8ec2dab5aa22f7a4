package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(2, 4, zaptest.NewLogger(t))
	defer p.Stop()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		ok := p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		})
		assert.True(t, ok)
	}
	wg.Wait()
	assert.Equal(t, int32(4), ran.Load())
}

func TestPool_FullQueueRejects(t *testing.T) {
	p := NewPool(1, 1, zaptest.NewLogger(t))
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})

	assert.True(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// Worker is busy; one slot in the queue, then rejection.
	assert.True(t, p.Submit(func() {}))

	rejected := false
	for i := 0; i < 10; i++ {
		if !p.Submit(func() {}) {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)
	close(release)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, zaptest.NewLogger(t))
	p.Stop()
	assert.False(t, p.Submit(func() {}))
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p := NewPool(1, 2, zaptest.NewLogger(t))
	defer p.Stop()

	done := make(chan struct{})
	assert.True(t, p.Submit(func() { panic("boom") }))
	assert.True(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not survive a panicking task")
	}
}
