package heap

import "fmt"

// span is one free byte range.
type span struct {
	offset int
	size   int
}

// freeList is an ordered list of disjoint free ranges over [0, capacity).
// Ranges stay sorted by offset and adjacent ranges are merged on free, so
// no two free ranges are ever contiguous.
type freeList struct {
	spans    []span
	capacity int
}

func newFreeList(capacity int) *freeList {
	return &freeList{
		spans:    []span{{offset: 0, size: capacity}},
		capacity: capacity,
	}
}

// alloc carves size bytes out of the first fitting range (first-fit) and
// returns the offset. ok is false when no range is large enough.
func (f *freeList) alloc(size int) (offset int, ok bool) {
	for i := range f.spans {
		s := &f.spans[i]
		if s.size < size {
			continue
		}
		offset = s.offset
		if s.size == size {
			f.spans = append(f.spans[:i], f.spans[i+1:]...)
		} else {
			s.offset += size
			s.size -= size
		}
		return offset, true
	}
	return 0, false
}

// free returns [offset, offset+size) to the list, merging with adjacent
// free neighbors.
func (f *freeList) free(offset, size int) error {
	if size <= 0 || offset < 0 || offset+size > f.capacity {
		return fmt.Errorf("free [%d,%d) outside heap of %d", offset, offset+size, f.capacity)
	}
	// Find insertion point keeping spans sorted by offset.
	i := 0
	for i < len(f.spans) && f.spans[i].offset < offset {
		i++
	}
	if i > 0 && f.spans[i-1].offset+f.spans[i-1].size > offset {
		return fmt.Errorf("free [%d,%d) overlaps free range at %d", offset, offset+size, f.spans[i-1].offset)
	}
	if i < len(f.spans) && offset+size > f.spans[i].offset {
		return fmt.Errorf("free [%d,%d) overlaps free range at %d", offset, offset+size, f.spans[i].offset)
	}

	mergePrev := i > 0 && f.spans[i-1].offset+f.spans[i-1].size == offset
	mergeNext := i < len(f.spans) && offset+size == f.spans[i].offset
	switch {
	case mergePrev && mergeNext:
		f.spans[i-1].size += size + f.spans[i].size
		f.spans = append(f.spans[:i], f.spans[i+1:]...)
	case mergePrev:
		f.spans[i-1].size += size
	case mergeNext:
		f.spans[i].offset = offset
		f.spans[i].size += size
	default:
		f.spans = append(f.spans, span{})
		copy(f.spans[i+1:], f.spans[i:])
		f.spans[i] = span{offset: offset, size: size}
	}
	return nil
}

// extend grows capacity to newCapacity, adding the new tail bytes as free
// space merged with a trailing free range when present.
func (f *freeList) extend(newCapacity int) {
	added := newCapacity - f.capacity
	if added <= 0 {
		return
	}
	old := f.capacity
	f.capacity = newCapacity
	if n := len(f.spans); n > 0 && f.spans[n-1].offset+f.spans[n-1].size == old {
		f.spans[n-1].size += added
		return
	}
	f.spans = append(f.spans, span{offset: old, size: added})
}

// freeBytes sums all free range sizes.
func (f *freeList) freeBytes() int {
	total := 0
	for _, s := range f.spans {
		total += s.size
	}
	return total
}
