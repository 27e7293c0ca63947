// Package parallel runs batches of independent jobs on a fixed set of
// goroutines. It is used to record the command buffers of one pass
// concurrently.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Job is one unit of work. worker identifies the goroutine running it,
// in [0, Workers()), so jobs can use per-worker scratch state.
type Job func(worker int)

// Pool is a set of worker goroutines with one queue each. An idle worker
// steals from the other queues before blocking on its own.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// New starts a pool of workers goroutines. If workers is not positive,
// GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan Job, workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan Job, depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(id)
			return
		case job := <-own:
			job(id)
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			job(id)
			continue
		}
		select {
		case <-p.done:
			p.drain(id)
			return
		case job := <-own:
			job(id)
		}
	}
}

func (p *Pool) drain(id int) {
	for {
		select {
		case job := <-p.queues[id]:
			job(id)
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) Job {
	for i := 1; i < p.workers; i++ {
		select {
		case job := <-p.queues[(id+i)%p.workers]:
			return job
		default:
		}
	}
	return nil
}

// Run executes jobs and waits for all of them. Jobs are dealt round-robin
// over the worker queues. On a closed pool Run executes the jobs on the
// calling goroutine as worker 0.
func (p *Pool) Run(jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	if !p.running.Load() {
		for _, job := range jobs {
			job(0)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		wrapped := func(worker int) {
			defer wg.Done()
			job(worker)
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			wrapped(0)
		}
	}
	wg.Wait()
}

// ForEach calls fn(i) for every i in [0, n) and waits.
func (p *Pool) ForEach(n int, fn func(i int)) {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = func(int) { fn(i) }
	}
	p.Run(jobs)
}

// Close stops the workers after the queued jobs ran. It is safe to call
// more than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// IsRunning reports whether the pool accepts jobs.
func (p *Pool) IsRunning() bool { return p.running.Load() }
