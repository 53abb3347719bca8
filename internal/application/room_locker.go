package application

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
)

// LocalRoomLocker はプロセス内の部屋タイプ別ミューテックス。Redis未設定時に使う
type LocalRoomLocker struct {
	mu    sync.Mutex
	locks map[string]*roomMutex
}

type roomMutex struct {
	ch   chan struct{}
	refs int
}

func NewLocalRoomLocker() *LocalRoomLocker {
	return &LocalRoomLocker{locks: make(map[string]*roomMutex)}
}

// Lock はソート順に取得する。コンテキストが終了したら取得済み分を解放して返す
func (l *LocalRoomLocker) Lock(ctx context.Context, roomIDs []string) (inventory.Release, error) {
	ids := inventory.LockOrder(roomIDs)
	held := make([]string, 0, len(ids))
	for _, id := range ids {
		m := l.acquireRef(id)
		select {
		case m.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.releaseRef(id)
			l.unlock(held)
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func(context.Context) { once.Do(func() { l.unlock(held) }) }, nil
}

func (l *LocalRoomLocker) acquireRef(id string) *roomMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &roomMutex{ch: make(chan struct{}, 1)}
		l.locks[id] = m
	}
	m.refs++
	return m
}

func (l *LocalRoomLocker) releaseRef(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.locks[id]
	m.refs--
	if m.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *LocalRoomLocker) unlock(ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		m := l.locks[ids[i]]
		l.mu.Unlock()
		<-m.ch
		l.releaseRef(ids[i])
	}
}

var _ inventory.Locker = (*LocalRoomLocker)(nil)
