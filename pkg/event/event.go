package event

import "sync"

// Modified is emitted alongside every property change that alters persisted state.
const Modified = "modified"

type Event struct {
	Property string
	Value    any
}

type Listener func(Event)

// Emitter fans property changes out to subscribed listeners in subscription order.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

// Subscribe registers l and returns a function that removes it.
func (e *Emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

func (e *Emitter) Emit(property string, value any) {
	e.mu.Lock()
	ls := make([]Listener, 0, len(e.order))
	for _, id := range e.order {
		ls = append(ls, e.listeners[id])
	}
	e.mu.Unlock()

	ev := Event{Property: property, Value: value}
	for _, l := range ls {
		l(ev)
	}
}

// Changed emits the property event followed by Modified.
func (e *Emitter) Changed(property string, value any) {
	e.Emit(property, value)
	e.Emit(Modified, nil)
}
