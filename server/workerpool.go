package server

import (
	"net"
	"sync"
)

// workerPoolSize is the fixed I/O concurrency the accept loop hands
// connections off to.
const workerPoolSize = 4

// connPool is a bounded pool of goroutines draining an accepted-
// connection queue: a buffered channel (size*4 slots) acts as the FIFO
// work queue, so acceptance does not wait on busy workers until that
// queue is full; then submit blocks until a worker frees a slot.
type connPool struct {
	queue  chan net.Conn
	wg     sync.WaitGroup
	handle func(net.Conn)
}

// newConnPool starts size worker goroutines, each looping on queue and
// invoking handle for every connection it receives.
func newConnPool(size int, handle func(net.Conn)) *connPool {
	p := &connPool{
		queue:  make(chan net.Conn, size*4),
		handle: handle,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *connPool) worker() {
	defer p.wg.Done()
	for conn := range p.queue {
		p.handle(conn)
	}
}

// submit hands conn to the pool, blocking if every worker is busy and
// the queue is full.
func (p *connPool) submit(conn net.Conn) {
	p.queue <- conn
}

// close stops accepting new work and waits for in-flight connections to
// drain.
func (p *connPool) close() {
	close(p.queue)
	p.wg.Wait()
}
