package vote

import "sync"

// recipeLocks hands out one mutex per recipe ID. Entries are reference
// counted and removed once no goroutine holds or waits on them.
type recipeLocks struct {
	mu sync.Mutex
	m  map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecipeLocks() *recipeLocks {
	return &recipeLocks{m: make(map[int64]*lockEntry)}
}

// lock acquires the mutex of id and returns its release function.
func (l *recipeLocks) lock(id int64) func() {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &lockEntry{}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

func (l *recipeLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
