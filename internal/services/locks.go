package services

import "sync"

// instanceLocks allows one running job per instance.
type instanceLocks struct {
	mu   sync.Mutex
	busy map[string]bool
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{busy: make(map[string]bool)}
}

func (l *instanceLocks) tryLock(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[name] {
		return false
	}
	l.busy[name] = true
	return true
}

func (l *instanceLocks) unlock(name string) {
	l.mu.Lock()
	delete(l.busy, name)
	l.mu.Unlock()
}
