package receipt

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Processor is what the pool runs. *Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, raw []byte) (*Result, error)
}

type outcome struct {
	res *Result
	err error
}

type job struct {
	ctx  context.Context
	raw  []byte
	done chan outcome // buffered so an abandoned job never blocks its worker
}

// Pool bounds the number of receipts being processed at once.
type Pool struct {
	proc    Processor
	timeout time.Duration
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. timeout caps how long Submit waits;
// zero means only the caller's context applies.
func NewPool(proc Processor, workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{proc: proc, timeout: timeout, jobs: make(chan job, workers)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				res, err := p.proc.Process(context.WithoutCancel(j.ctx), j.raw)
				j.done <- outcome{res, err}
			}
		}()
	}
	return p
}

// Submit queues raw and waits for its result. If the pool is saturated or the
// job outlives the deadline, ErrOCRUnavailable is returned; a job already
// running finishes in the background and its result is dropped.
func (p *Pool) Submit(ctx context.Context, raw []byte) (*Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrOCRUnavailable
	}
	j := job{ctx: ctx, raw: raw, done: make(chan outcome, 1)}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, unavailable(ctx)
	}
	select {
	case o := <-j.done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, unavailable(ctx)
	}
}

func unavailable(ctx context.Context) error {
	return errors.Join(ErrOCRUnavailable, ctx.Err())
}

// Close stops accepting work and waits for running jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
