package craft

// GridPos is a cell address.
type GridPos struct {
	Col int
	Row int
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// listeners is a typed subscriber list.  Delivery is synchronous and in
// registration order.
type listeners[T any] struct {
	nextID int
	subs   []subscription[T]
}

func (l *listeners[T]) add(fn func(T)) (unsubscribe func()) {
	id := l.nextID
	l.nextID++
	l.subs = append(l.subs, subscription[T]{id: id, fn: fn})
	return func() {
		for i, s := range l.subs {
			if s.id == id {
				// Capped slice forces a copy; emit may be ranging over the old one.
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[T]) emit(v T) {
	for _, s := range l.subs {
		s.fn(v)
	}
}
