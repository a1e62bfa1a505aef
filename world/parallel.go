package world

import (
	"runtime"
	"sync"
)

// workChunk is a range of tiles for one worker.
type workChunk struct {
	start, end int
}

// parallelState runs tile updates across a persistent worker pool.
// Updates only read the snapshot and write their own tile, so chunks need
// no locking; all cross-tile effects happen later in the serial merge.
type parallelState struct {
	tiles      []*Tile
	alive      []bool
	snap       Snapshot
	threshold  int
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(threshold int) *parallelState {
	return &parallelState{
		threshold:  threshold,
		numWorkers: runtime.GOMAXPROCS(0),
	}
}

// run updates every tile and returns, per index, whether it stayed alive.
// The returned slice is reused by the next call.
func (p *parallelState) run(tiles []*Tile, snap Snapshot) []bool {
	n := len(tiles)
	if cap(p.alive) < n {
		p.alive = make([]bool, n)
	}
	p.alive = p.alive[:n]
	if n == 0 {
		return p.alive
	}

	p.tiles = tiles
	p.snap = snap

	if n < p.threshold || p.numWorkers < 2 {
		p.computeChunk(0, n)
	} else {
		p.computeParallel(n)
	}

	p.tiles = nil
	return p.alive
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.computeChunk(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// computeParallel dispatches work to the worker pool and waits for it.
func (p *parallelState) computeParallel(n int) {
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk updates tiles[i0:i1].
func (p *parallelState) computeChunk(i0, i1 int) {
	for i := i0; i < i1; i++ {
		p.alive[i] = p.tiles[i].Update(p.snap)
	}
}
