package rbac

import "sync"

// Broker fans a value out to subscribers. Each subscriber sees the latest
// value; intermediate values are dropped for slow readers.
type Broker[T any] struct {
	mu     sync.Mutex
	latest T
	subs   map[uint64]chan T
	nextID uint64
}

func NewBroker[T any](initial T) *Broker[T] {
	return &Broker[T]{
		latest: initial,
		subs:   make(map[uint64]chan T),
	}
}

// Publish stores v and delivers it to every subscriber without blocking
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = v
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Subscribe returns a channel primed with the current value and a cancel
// func that closes it. Cancel is safe to call more than once.
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, 1)
	ch <- b.latest
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broker[T]) Latest() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Subscribers is the number of live subscriptions
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
