package environment

import "sync"

// LoadEvent is published every time a template source is loaded during a
// render, carrying the requested logical name and the logical name of the
// template that asked for it.
type LoadEvent struct {
	Name          string
	RequestedFrom string
}

// subscribers manages scoped load-notification subscriptions. Delivery is
// synchronous on the loading goroutine; handlers that need to do real work
// should hand it off themselves.
type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(LoadEvent)
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[int]func(LoadEvent))}
}

// subscribe registers fn and returns a cancel func removing it. Cancel is
// idempotent.
func (s *subscribers) subscribe(fn func(LoadEvent)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// publish delivers ev to every active subscriber.
func (s *subscribers) publish(ev LoadEvent) {
	s.mu.RLock()
	fns := make([]func(LoadEvent), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
