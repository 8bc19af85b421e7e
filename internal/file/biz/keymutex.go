package biz

import "sync"

// keyMutex 按 key 串行化的互斥锁集合。
// 同一 key 的临界区互斥执行，不同 key 互不影响；
// 无人持有时对应的锁会被回收，不会随 key 数量无限增长。
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{
		locks: make(map[string]*keyLock),
	}
}

// Lock 获取 key 对应的锁
func (km *keyMutex) Lock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &keyLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
}

// Unlock 释放 key 对应的锁
func (km *keyMutex) Unlock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		panic("keymutex: unlock of unlocked key " + key)
	}
	l.refs--
	if l.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	l.mu.Unlock()
}
