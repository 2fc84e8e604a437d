package mira

import (
	"encoding/binary"
)

// Addr is an offset into the allocator's backing arena. It plays the role of
// the source's raw pointer into the kernel heap, but since Go code cannot
// address arbitrary offsets of a []byte as a real pointer, slab caches
// thread their freelist through the first 8 bytes of each free slot encoded
// as a little-endian uint64 offset rather than a machine pointer.
type Addr int64

// NullAddr is the distinguished "no address" value returned on exhaustion,
// playing the role of the source's NULL.
const NullAddr Addr = -1

// Allocator is a process-wide bump-pointer arena plus a set of fixed-size
// slab caches layered over the same backing storage. It is initialized once
// at boot and never torn down: there is no free-the-arena operation, only
// Free, which returns individual allocations to their owning slab cache (or
// is a no-op for bump-only allocations).
type Allocator struct {
	heap   []byte
	offset int

	caches []*slabCache
}

// NewAllocator constructs an Allocator over a freshly-allocated heap of the
// given size.
func NewAllocator(heapSize int) *Allocator {
	return &Allocator{heap: make([]byte, heapSize)}
}

// Alloc performs a bump-pointer allocation of size bytes, 8-byte aligned
// (the caller is responsible for any stricter alignment). Returns
// (NullAddr, ErrOutOfMemory) on exhaustion.
func (a *Allocator) Alloc(size int) (Addr, error) {
	if size <= 0 {
		size = 8
	}
	// round up to 8-byte alignment, matching the machine-word freelist
	// encoding used by slab caches over this same arena.
	aligned := (a.offset + 7) &^ 7
	if aligned+size > len(a.heap) {
		return NullAddr, ErrOutOfMemory
	}
	addr := Addr(aligned)
	a.offset = aligned + size
	return addr, nil
}

// Bytes returns the backing slice for the size-byte region starting at addr,
// for callers that need to read or write through the allocation.
func (a *Allocator) Bytes(addr Addr, size int) []byte {
	return a.heap[addr : int(addr)+size]
}

// slabCache is a fixed-size-slot cache with a freelist threaded through the
// first machine word (8 bytes) of each free slot, exactly as the source's
// mk_slab_setup threads mk_slab_cache_t.free_list.
type slabCache struct {
	alloc    *Allocator
	base     Addr
	slotSize int
	slots    int
	freeHead Addr // NullAddr when exhausted
}

// NewSlabCache reserves slots*slotSize bytes from the allocator's arena and
// threads a freelist through them. slotSize must be at least 8 bytes (one
// machine word) to hold the freelist pointer.
func (a *Allocator) NewSlabCache(slotSize, slots int) (*slabCache, error) {
	if slotSize < 8 {
		slotSize = 8
	}
	base, err := a.Alloc(slotSize * slots)
	if err != nil {
		return nil, err
	}
	c := &slabCache{alloc: a, base: base, slotSize: slotSize, slots: slots}
	c.setup()
	a.caches = append(a.caches, c)
	return c, nil
}

// setup threads the freelist front-to-back: slot i's first word points to
// slot i+1, and the last slot terminates the chain with NullAddr.
func (c *slabCache) setup() {
	for i := 0; i < c.slots; i++ {
		slotAddr := c.base + Addr(i*c.slotSize)
		var next Addr
		if i == c.slots-1 {
			next = NullAddr
		} else {
			next = c.base + Addr((i+1)*c.slotSize)
		}
		c.writeNext(slotAddr, next)
	}
	c.freeHead = c.base
}

func (c *slabCache) writeNext(slot Addr, next Addr) {
	buf := c.alloc.Bytes(slot, 8)
	binary.LittleEndian.PutUint64(buf, uint64(next))
}

func (c *slabCache) readNext(slot Addr) Addr {
	buf := c.alloc.Bytes(slot, 8)
	return Addr(binary.LittleEndian.Uint64(buf))
}

// contains reports whether addr falls within this cache's reserved pool.
func (c *slabCache) contains(addr Addr) bool {
	if addr == NullAddr {
		return false
	}
	end := c.base + Addr(c.slots*c.slotSize)
	if addr < c.base || addr >= end {
		return false
	}
	return int(addr-c.base)%c.slotSize == 0
}

// SlabAlloc pops the head of the freelist, or returns (NullAddr,
// ErrOutOfMemory) if the cache is exhausted.
func (c *slabCache) SlabAlloc() (Addr, error) {
	if c.freeHead == NullAddr {
		return NullAddr, ErrOutOfMemory
	}
	slot := c.freeHead
	c.freeHead = c.readNext(slot)
	return slot, nil
}

// SlabFree returns addr to the freelist. A no-op if addr is NullAddr or
// falls outside this cache's pool, matching the source's bounds-checked
// no-op semantics.
func (c *slabCache) SlabFree(addr Addr) {
	if !c.contains(addr) {
		return
	}
	c.writeNext(addr, c.freeHead)
	c.freeHead = addr
}

// Free dispatches addr to whichever slab cache owns it; a no-op if no cache
// claims it (it was a plain bump allocation).
func (a *Allocator) Free(addr Addr) {
	for _, c := range a.caches {
		if c.contains(addr) {
			c.SlabFree(addr)
			return
		}
	}
}
