package config

const poolPageSize = 128

// Pool is an arena allocator for T that avoids per-node heap allocation
// during DDG construction and editing. Grounded on the teacher's
// wazevoapi.Pool[T], adapted here for move-node-sized allocations.
type Pool[T any] struct {
	pages            []*[poolPageSize]T
	allocated, index int
}

// NewPool returns a new Pool.
func NewPool[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocate returns a pointer to a fresh, zero-valued T.
func (p *Pool[T]) Allocate() *T {
	if p.index == poolPageSize {
		p.pages = append(p.pages, new([poolPageSize]T))
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

// Allocated returns how many items have been allocated since the last
// Reset.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Reset releases every allocated T back to the pool.
func (p *Pool[T]) Reset() {
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}
