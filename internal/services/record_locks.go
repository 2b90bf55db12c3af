package services

import "sync"

// recordLocks serializes publish/delete transitions per record id. Holding
// an id spans the store transition and the bus dispatch for that record,
// so one record's slow downstream consumers never block transitions on
// other records.
type recordLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newRecordLocks() *recordLocks {
	return &recordLocks{held: make(map[string]chan struct{})}
}

// lock blocks until the id is free, then holds it.
func (l *recordLocks) lock(id string) {
	for {
		l.mu.Lock()
		ch, taken := l.held[id]
		if !taken {
			l.held[id] = make(chan struct{})
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()
		<-ch
	}
}

// tryLock holds the id only if it is free.
func (l *recordLocks) tryLock(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[id]; taken {
		return false
	}
	l.held[id] = make(chan struct{})
	return true
}

// unlock releases the id and wakes blocked lock calls.
func (l *recordLocks) unlock(id string) {
	l.mu.Lock()
	ch := l.held[id]
	delete(l.held, id)
	l.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

// inFlight reports whether the id's transition is currently mid-run.
func (l *recordLocks) inFlight(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, taken := l.held[id]
	return taken
}
