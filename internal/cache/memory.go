package cache

import (
	"container/list"
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TTL-пресеты: от данных о доступности до статической конфигурации.
const (
	TTLVeryShort = time.Minute
	TTLShort     = 5 * time.Minute
	TTLMedium    = 15 * time.Minute
	TTLLong      = time.Hour
	TTLVeryLong  = 24 * time.Hour
)

const (
	defaultCapacity      = 1000
	defaultSweepInterval = time.Minute
)

type Config struct {
	Capacity      int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
	Size      int
}

type entry struct {
	key        string
	value      any
	expiresAt  time.Time
	lastAccess time.Time
}

// Memory: процессный кэш с абсолютным сроком жизни записей и LRU-вытеснением.
// Список упорядочен по последнему обращению: в голове самая свежая запись.
type Memory struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List

	capacity      int
	defaultTTL    time.Duration
	sweepInterval time.Duration
	stats         Stats

	log    *zap.Logger
	now    func() time.Time
	stopCh chan struct{}
	stopMu sync.Once
	wg     sync.WaitGroup
}

func NewMemory(cfg Config, log *zap.Logger) *Memory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = TTLShort
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		items:         make(map[string]*list.Element, cfg.Capacity),
		order:         list.New(),
		capacity:      cfg.Capacity,
		defaultTTL:    cfg.DefaultTTL,
		sweepInterval: cfg.SweepInterval,
		log:           log,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	now := m.now()
	if !now.Before(e.expiresAt) {
		m.removeElement(el)
		m.stats.Expired++
		m.stats.Misses++
		return nil, false
	}
	e.lastAccess = now
	m.order.MoveToFront(el)
	m.stats.Hits++
	return e.value, true
}

func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	if !m.now().Before(el.Value.(*entry).expiresAt) {
		m.removeElement(el)
		m.stats.Expired++
		return false
	}
	return true
}

func (m *Memory) Set(key string, value any) {
	m.SetWithTTL(key, value, m.defaultTTL)
}

func (m *Memory) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if el, ok := m.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = now.Add(ttl)
		e.lastAccess = now
		m.order.MoveToFront(el)
		return
	}

	if len(m.items) >= m.capacity {
		m.evictOldest()
	}

	el := m.order.PushFront(&entry{key: key, value: value, expiresAt: now.Add(ttl), lastAccess: now})
	m.items[key] = el
}

func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	m.removeElement(el)
	return true
}

// DeletePattern удаляет все ключи, подходящие под регулярное выражение.
func (m *Memory) DeletePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compile cache pattern %q: %w", pattern, err)
	}
	return m.DeleteMatch(re.MatchString), nil
}

func (m *Memory) DeleteMatch(match func(key string) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, el := range m.items {
		if match(key) {
			m.removeElement(el)
			removed++
		}
	}
	return removed
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element, m.capacity)
	m.order.Init()
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = len(m.items)
	return s
}

// Sweep удаляет все просроченные записи независимо от обращений к ним.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, el := range m.items {
		if !now.Before(el.Value.(*entry).expiresAt) {
			m.removeElement(el)
			removed++
		}
	}
	m.stats.Expired += uint64(removed)
	return removed
}

// Start запускает фоновую очистку просроченных записей.
func (m *Memory) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.log.Debug("cache sweep", zap.Int("expired", n), zap.Int("size", m.Len()))
				}
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Memory) Stop() {
	m.stopMu.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Memory) evictOldest() {
	el := m.order.Back()
	if el == nil {
		return
	}
	m.removeElement(el)
	m.stats.Evictions++
}

func (m *Memory) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(m.items, e.key)
	m.order.Remove(el)
}
