package pass

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// rowFunc evaluates rows [start, end). It returns the first error it hits.
type rowFunc func(start, end int) error

// workChunk represents a range of rows for a worker to process.
type workChunk struct {
	start, end int
	fn         rowFunc
}

// workerPool holds persistent goroutines that evaluate row chunks.
type workerPool struct {
	numWorkers int

	mu       sync.Mutex     // serialises run calls
	workChan chan workChunk // sends work to workers
	doneChan chan error     // workers report chunk completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: workers}
}

// start launches the worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan error, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.doneChan <- chunk.fn(chunk.start, chunk.end)
		}
	}
}

// run splits rows into one chunk per worker and waits for all of them.
// It returns the first non-nil chunk error received.
func (p *workerPool) run(rows int, fn rowFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.start()
	}

	chunkSize := (rows + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, rows)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, fn: fn}
		dispatched++
	}

	var first error
	for i := 0; i < dispatched; i++ {
		if err := <-p.doneChan; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// firstError records the earliest error reported by any worker.
type firstError struct {
	set atomic.Bool
	mu  sync.Mutex
	err error
}

func (f *firstError) store(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
		f.set.Store(true)
	}
	f.mu.Unlock()
}

func (f *firstError) failed() bool { return f.set.Load() }

func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
