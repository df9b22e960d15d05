package state

import "sync"

// Locks hands out one mutex per user so updates from the same user are
// handled one at a time. Idle mutexes are released.
type Locks struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks constructs an empty lock table.
func NewLocks() *Locks {
	return &Locks{users: make(map[int64]*userLock)}
}

// Lock blocks until the caller owns the user's mutex and returns the unlock func.
func (l *Locks) Lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.users[userID]
	if !ok {
		ul = &userLock{}
		l.users[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many users currently hold or wait for a lock.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
