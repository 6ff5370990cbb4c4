package series

// ring is a fixed-capacity circular buffer of points. Unlike a queue, it is
// never drained: pushes past capacity overwrite the oldest element and reads
// linearize the ring into a fresh slice.
type ring[T timed] struct {
	buf      []T
	head     int // Oldest element
	count    int
	capacity int
}

func newRing[T timed](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// push appends an element, overwriting the oldest when full.
// Returns true if an element was dropped.
func (r *ring[T]) push(item T) bool {
	tail := (r.head + r.count) % r.capacity
	r.buf[tail] = item

	if r.count == r.capacity {
		// Full: the slot we just wrote was the old head.
		r.head = (r.head + 1) % r.capacity
		return true
	}

	r.count++
	return false
}

// replace resets the ring to hold exactly the given points, keeping only the
// newest capacity elements when the input is larger.
func (r *ring[T]) replace(points []T) {
	if len(points) > r.capacity {
		points = points[len(points)-r.capacity:]
	}

	r.buf = make([]T, r.capacity)
	copy(r.buf, points)
	r.head = 0
	r.count = len(points)
}

// clear empties the ring.
func (r *ring[T]) clear() {
	r.buf = make([]T, r.capacity)
	r.head = 0
	r.count = 0
}

// snapshot returns the elements oldest-first in a fresh slice.
func (r *ring[T]) snapshot() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%r.capacity]
	}
	return out
}

// last returns the newest element.
func (r *ring[T]) last() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.head+r.count-1)%r.capacity], true
}

func (r *ring[T]) len() int {
	return r.count
}
