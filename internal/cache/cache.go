package cache

import (
	"context"
	"time"
)

// Cache: то, что нужно сервисам от кэша запросов. Источником истины он не является.
type Cache interface {
	Get(key string) (any, bool)
	SetWithTTL(key string, value any, ttl time.Duration)
	Delete(key string) bool
	DeletePattern(pattern string) (int, error)
	DeleteMatch(match func(key string) bool) int
}

var _ Cache = (*Memory)(nil)

func GetAs[T any](c Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// GetOrLoad читает значение из кэша, а при промахе загружает и кладёт его с заданным TTL.
// Ошибки загрузки не кэшируются.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := GetAs[T](c, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.SetWithTTL(key, v, ttl)
	return v, nil
}
