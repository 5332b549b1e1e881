package workflow

import (
	"sync"
	"time"
)

// Busy реализуют workflow, которые нельзя выгружать из реестра
// (например, пока отправка заказа не завершилась).
type Busy interface {
	Busy() bool
}

type entry[T any] struct {
	value   T
	touched time.Time
}

// Registry хранит экземпляры workflow по id вместе со временем последнего обращения.
type Registry[T any] struct {
	mu    sync.Mutex
	items map[string]*entry[T]
	now   func() time.Time
}

// NewRegistry создаёт пустой реестр. now=nil означает time.Now.
func NewRegistry[T any](now func() time.Time) *Registry[T] {
	if now == nil {
		now = time.Now
	}
	return &Registry[T]{items: make(map[string]*entry[T]), now: now}
}

// Put сохраняет экземпляр под id.
func (r *Registry[T]) Put(id string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = &entry[T]{value: value, touched: r.now()}
}

// Get возвращает экземпляр и продлевает ему жизнь.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.touched = r.now()
	return e.value, true
}

// Delete удаляет экземпляр.
func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Len возвращает число экземпляров.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep удаляет экземпляры, к которым не обращались дольше olderThan.
// Занятые (Busy) экземпляры пропускаются. Возвращает число удалённых.
func (r *Registry[T]) Sweep(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	removed := 0
	for id, e := range r.items {
		if e.touched.After(cutoff) {
			continue
		}
		if busy, ok := any(e.value).(Busy); ok && busy.Busy() {
			continue
		}
		delete(r.items, id)
		removed++
	}
	return removed
}
