package homeassistant

import "sync"

// dispatcher runs queued callbacks one at a time on its own goroutine.
type dispatcher struct {
	queue    chan func()
	closing  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		queue:   make(chan func(), 32),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case fn := <-d.queue:
			fn()
		case <-d.closing:
			d.drain()
			return
		}
	}
}

// drain runs the callbacks that were queued before stop.
func (d *dispatcher) drain() {
	for {
		select {
		case fn := <-d.queue:
			fn()
		default:
			return
		}
	}
}

// enqueue blocks while the queue is full and gives up once the dispatcher
// is stopped.
func (d *dispatcher) enqueue(fn func()) {
	select {
	case <-d.closing:
		return
	default:
	}

	select {
	case d.queue <- fn:
	case <-d.closing:
	}
}

// stop refuses new callbacks. It does not wait for the queue to drain and is
// safe to call from a running callback.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.closing) })
}
