package conversation

import (
	"context"
	"sync"
)

// Locker serializes work per user inside one process. Entries are reference
// counted and dropped once nobody holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{users: make(map[int64]*userLock)}
}

// Lock blocks until userID is free or ctx is done. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	ul, ok := l.users[userID]
	if !ok {
		ul = &userLock{ch: make(chan struct{}, 1)}
		l.users[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, ul)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ul.ch
			l.release(userID, ul)
		})
	}, nil
}

func (l *Locker) release(userID int64, ul *userLock) {
	l.mu.Lock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.users, userID)
	}
	l.mu.Unlock()
}

// Do runs fn while holding userID.
func (l *Locker) Do(ctx context.Context, userID int64, fn func() error) error {
	unlock, err := l.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
