package memory

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// lockTable: именованные семафоры со счётчиком ссылок.
// Запись живёт, пока кто-то держит или ждёт семафор, затем удаляется.
type lockTable struct {
	mu    sync.Mutex
	size  int64
	locks map[string]*lockEntry
}

func newLockTable(size int64) *lockTable {
	return &lockTable{size: size, locks: make(map[string]*lockEntry)}
}

func (t *lockTable) ref(key string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(t.size)}
		t.locks[key] = e
	}
	e.refs++
	return e
}

func (t *lockTable) unref(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.locks, key)
	}
}

// Len: число живых записей.
func (t *lockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

type heldLock struct {
	table *lockTable
	key   string
	sem   *semaphore.Weighted
	n     int64
}

// heldLocks отпускаются в обратном порядке захвата.
type heldLocks []heldLock

func (h *heldLocks) acquire(ctx context.Context, t *lockTable, key string, n int64) error {
	e := t.ref(key)
	if err := e.sem.Acquire(ctx, n); err != nil {
		t.unref(key)
		return err
	}
	*h = append(*h, heldLock{table: t, key: key, sem: e.sem, n: n})
	return nil
}

func (h *heldLocks) release() {
	for i := len(*h) - 1; i >= 0; i-- {
		l := (*h)[i]
		l.sem.Release(l.n)
		l.table.unref(l.key)
	}
	*h = nil
}
