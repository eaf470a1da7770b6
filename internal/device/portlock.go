package device

import "sync"

// portLocks serializes sessions that target the same serial port, so a
// diagnostic check never interleaves frames with the scheduler.
type portLocks struct {
	mu    sync.Mutex
	ports map[string]*sync.Mutex
}

var sessions = &portLocks{ports: make(map[string]*sync.Mutex)}

// acquire blocks until port is free and returns the release func.
func (p *portLocks) acquire(port string) func() {
	p.mu.Lock()
	m, ok := p.ports[port]
	if !ok {
		m = &sync.Mutex{}
		p.ports[port] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
