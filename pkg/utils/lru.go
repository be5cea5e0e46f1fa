package utils

import "container/list"

// Sized is the constraint an LRU-tracked item must satisfy: a stable key
// to index by and a size to weigh against the index's capacity.
type Sized interface {
	Key() any
	Size() int64
}

// LRU is a size-bounded least-recently-used index. It does not own the
// underlying resource: Add/Remove only track bookkeeping, and eviction
// is delegated to evict, which may veto removal of the least-recently-
// used entry (e.g. because it is still pinned, or too young to expire).
// When evict vetoes, the entry is left in place and no further eviction
// is attempted for this Add.
type LRU[T Sized] struct {
	maxSize int64
	size    int64
	evict   func(T) bool

	order *list.List
	index map[any]*list.Element
}

// NewLRU creates an LRU index bounded by maxSize (in whatever unit
// Size() reports; typically bytes). evict is invoked with the least-
// recently-used item when the index exceeds maxSize after an Add; it
// returns true if the item was actually evicted.
func NewLRU[T Sized](maxSize int64, evict func(T) bool) *LRU[T] {
	return &LRU[T]{
		maxSize: maxSize,
		evict:   evict,
		order:   list.New(),
		index:   make(map[any]*list.Element),
	}
}

// Add inserts or refreshes an item, then evicts least-recently-used
// entries until the index is back under maxSize or evict vetoes further
// progress.
func (l *LRU[T]) Add(value T) {
	k := value.Key()

	if el, ok := l.index[k]; ok {
		l.size -= el.Value.(T).Size()
		l.order.Remove(el)
	}

	el := l.order.PushFront(value)
	l.index[k] = el
	l.size += value.Size()

	l.reclaim()
}

// Get returns the item for key, marking it most-recently-used.
func (l *LRU[T]) Get(key any) (T, bool) {
	el, ok := l.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	l.order.MoveToFront(el)
	return el.Value.(T), true
}

// Remove drops an item from the index without invoking evict.
func (l *LRU[T]) Remove(key any) {
	el, ok := l.index[key]
	if !ok {
		return
	}
	l.size -= el.Value.(T).Size()
	l.order.Remove(el)
	delete(l.index, key)
}

// Count returns the number of tracked items.
func (l *LRU[T]) Count() int {
	return l.order.Len()
}

// Size returns the current total size of tracked items.
func (l *LRU[T]) Size() int64 {
	return l.size
}

func (l *LRU[T]) reclaim() {
	for l.size > l.maxSize {
		back := l.order.Back()
		if back == nil {
			return
		}

		entry := back.Value.(T)
		if !l.evict(entry) {
			return
		}

		l.size -= entry.Size()
		l.order.Remove(back)
		delete(l.index, entry.Key())
	}
}
