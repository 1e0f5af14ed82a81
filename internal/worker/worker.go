// Package worker bounds how many CPU-heavy tasks (password hashing) run at once.
package worker

import "sync"

// Task represents a unit of work executed by the pool.
type Task func()

// Pool defines a fixed-size worker pool.
type Pool interface {
	// Submit queues t and returns once a worker has accepted it.
	Submit(Task)
	// Do runs t on a worker and blocks until it has finished.
	Do(Task)
	// Stop waits for accepted tasks and shuts the workers down. Tasks handed to
	// a stopped pool run on the caller's goroutine.
	Stop()
}

// NewPool creates a pool with n workers. n<=0 defaults to 1.
func NewPool(n int) Pool {
	if n <= 0 {
		n = 1
	}
	p := &pool{jobs: make(chan Task)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if job != nil {
					job()
				}
			}
		}()
	}
	return p
}

type pool struct {
	mu      sync.RWMutex
	stopped bool
	jobs    chan Task
	wg      sync.WaitGroup
}

func (p *pool) Submit(t Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		if t != nil {
			t()
		}
		return
	}
	p.jobs <- t
}

func (p *pool) Do(t Task) {
	done := make(chan struct{})
	p.Submit(func() {
		defer close(done)
		if t != nil {
			t()
		}
	})
	<-done
}

func (p *pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
