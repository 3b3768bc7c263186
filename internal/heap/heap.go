// Package heap implements the kernel's partitioned sub-region allocator:
// fixed-size categories (512B, 1024B, 1536B, and multiples of 1024B beyond
// that), each served by an ordered list of region/sub-region-run strategies.
//
// Grounded directly on original_source/mm.c's mallocFromHeap/freeToHeap and
// their per-size-category strategy chains; the region table comes from
// internal/mpu, so the allocator's sub-region indices line up exactly with
// the bits a task's srd mask uses.
package heap

import (
	"fmt"

	"github.com/tinyrange/rtkernel/internal/mpu"
)

const totalSubRegions = mpu.RegionCount * mpu.SubRegionsPerRegion

// ledgerEntry is one active allocation: a base address and the number of
// contiguous sub-regions (within a single region) that it spans.
type ledgerEntry struct {
	base       uint32
	subRegions int
}

// Heap is the fixed-capacity sub-region allocator described in spec.md §3
// and §4.5.
type Heap struct {
	allotment [totalSubRegions]bool
	ledger    []ledgerEntry
}

// New returns an empty heap with no sub-regions allocated.
func New() *Heap {
	return &Heap{ledger: make([]ledgerEntry, 0, totalSubRegions)}
}

// strategy is one attempt within a size category's search order: try to
// find count contiguous free sub-regions within region, starting the search
// at firstSub (inclusive) and ending at lastSub (inclusive).
type strategy struct {
	region            int
	firstSub, lastSub int
	count             int
}

// regionIndexOf returns the index into mpu.Regions with the given name.
func regionIndexOf(name string) int {
	for i, r := range mpu.Regions {
		if r.Name == name {
			return i
		}
	}
	panic("heap: unknown region " + name)
}

var (
	idx4K1 = regionIndexOf("4K1")
	idx8K1 = regionIndexOf("8K1")
	idx4K2 = regionIndexOf("4K2")
	idx4K3 = regionIndexOf("4K3")
	idx8K2 = regionIndexOf("8K2")
)

// strategiesFor returns the ordered strategy list for a (rounded) size, per
// spec.md §4.5's summary of the original's per-category search order.
func strategiesFor(size uint32) []strategy {
	switch {
	case size == 512:
		return []strategy{
			{idx4K1, 0, 7, 1},
			{idx4K2, 0, 7, 1},
			{idx4K3, 0, 7, 1},
		}
	case size == 1024:
		return []strategy{
			{idx4K1, 0, 7, 2},
			{idx4K2, 0, 7, 2},
			{idx4K3, 0, 7, 2},
			{idx8K1, 0, 7, 1},
			{idx8K2, 0, 7, 1},
		}
	default:
		// 2048 and beyond: contiguous 1024B runs in the two 8K regions,
		// falling back to 512B runs in the 4K regions.
		blocks1024 := int(size / 1024)
		blocks512 := int(size / 512)
		return []strategy{
			{idx8K1, 0, 7, blocks1024},
			{idx8K2, 0, 7, blocks1024},
			{idx4K1, 0, 7, blocks512},
			{idx4K2, 0, 7, blocks512},
			{idx4K3, 0, 7, blocks512},
		}
	}
}

// roundSize rounds an allocation request up to the next size category
// (spec.md §4.5).
func roundSize(requested uint32) uint32 {
	switch {
	case requested <= 512:
		return 512
	case requested <= 1024:
		return 1024
	case requested <= 1536:
		return 1536
	default:
		return ((requested + 1023) / 1024) * 1024
	}
}

// tryRegion scans sub-region indices [firstSub, lastSub] of region for a run
// of count contiguous free sub-regions, allocates it, and returns the base
// address and the region-local starting sub-region on success.
func (h *Heap) tryRegion(region, firstSub, lastSub, count int) (base uint32, startSub int, ok bool) {
	r := mpu.Regions[region]
	globalBase := region * mpu.SubRegionsPerRegion
	run := 0
	for sub := firstSub; sub <= lastSub; sub++ {
		if !h.allotment[globalBase+sub] {
			run++
			if run >= count {
				start := sub - count + 1
				for i := start; i <= sub; i++ {
					h.allotment[globalBase+i] = true
				}
				addr := r.Base + uint32(start)*r.SubRegionSize
				h.ledger = append(h.ledger, ledgerEntry{base: addr, subRegions: count})
				return addr, start, true
			}
		} else {
			run = 0
		}
	}
	return 0, 0, false
}

// MallocFromHeap allocates at least size bytes, rounding up to the nearest
// serviced category, and returns the base address. It returns 0 (a null
// pointer) if no strategy can satisfy the request, spec.md §4.5/§7:
// "Failure: returns a null pointer; no exception is raised."
func (h *Heap) MallocFromHeap(size uint32) uint32 {
	rounded := roundSize(size)

	if rounded == 1536 {
		return h.allocate1536()
	}

	for _, s := range strategiesFor(rounded) {
		if base, _, ok := h.tryRegion(s.region, s.firstSub, s.lastSub, s.count); ok {
			return base
		}
	}
	return 0
}

// allocate1536 handles the 1536-byte category's two distinct shapes: three
// contiguous 512B sub-regions in a single 4K region, or one 1024B sub-region
// paired with a 512B sub-region (spec.md §4.5: "a cross-boundary 512+1024
// pair"). The cross-boundary pair is modeled as two separate ledger entries
// bridging an 8K region and an adjacent 4K region, mirroring the base+offset
// arithmetic in original_source/mm.c.
func (h *Heap) allocate1536() uint32 {
	for _, region := range []int{idx4K1, idx4K2, idx4K3} {
		if base, _, ok := h.tryRegion(region, 0, 7, 3); ok {
			return base
		}
	}

	// Cross-boundary: one 1024B sub-region from an 8K region plus one 512B
	// sub-region from the adjacent 4K region, recorded as two ledger
	// entries so freeToHeap can release them independently.
	type pair struct {
		big, small int
	}
	for _, p := range []pair{{idx8K1, idx4K2}, {idx8K2, idx4K1}} {
		bigBase, _, ok := h.tryRegion(p.big, 0, 7, 1)
		if !ok {
			continue
		}
		_, _, ok = h.tryRegion(p.small, 0, 7, 1)
		if !ok {
			h.releaseLedgerEntry(bigBase)
			continue
		}
		return bigBase
	}
	return 0
}

// FreeToHeap releases the allocation at ptr. A double-free or an unknown
// pointer is a silent no-op (spec.md §4.5/§7).
func (h *Heap) FreeToHeap(ptr uint32) {
	h.releaseLedgerEntry(ptr)
}

func (h *Heap) releaseLedgerEntry(base uint32) {
	for i, e := range h.ledger {
		if e.base != base {
			continue
		}
		idx, _, err := mpu.SubRegionIndex(e.base)
		if err != nil {
			// base address outside any managed region; nothing to clear.
			h.ledger = append(h.ledger[:i], h.ledger[i+1:]...)
			return
		}
		for s := 0; s < e.subRegions; s++ {
			h.allotment[idx+s] = false
		}
		h.ledger = append(h.ledger[:i], h.ledger[i+1:]...)
		return
	}
	// No matching entry: double-free, silent no-op.
}

// AllocationSpan returns the sub-region mask spanned by the live allocation
// based at ptr, and whether one exists, used by the kernel to fold a
// malloc/free into a task's srd window (spec.md §9).
func (h *Heap) AllocationSpan(ptr uint32) (mpu.Mask, bool) {
	for _, e := range h.ledger {
		if e.base != ptr {
			continue
		}
		_, subSize, err := mpu.SubRegionIndex(e.base)
		if err != nil {
			return 0, false
		}
		mask, aerr := mpu.AddWindow(0, e.base, uint32(e.subRegions)*subSize)
		if aerr != nil {
			return 0, false
		}
		return mask, true
	}
	return 0, false
}

// String renders the allotment ledger, useful for debugging and tests.
func (h *Heap) String() string {
	return fmt.Sprintf("heap{allocations=%d}", len(h.ledger))
}
