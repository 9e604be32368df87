package slotstore

import (
	"errors"
	"testing"

	"github.com/brackenworld/voxelcore/addressing"
	"github.com/brackenworld/voxelcore/voxelerr"
)

func chunk(x, y, z int32) addressing.ChunkCoord {
	return addressing.ChunkCoord{X: x, Y: y, Z: z}
}

func TestAllocateAssignsAndLooksUp(t *testing.T) {
	a := New(4, nil)
	c := chunk(1, 2, 3)

	res, err := a.Allocate(c, 1, nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	slot, ok := a.Lookup(c)
	if !ok || slot != res.Slot {
		t.Fatalf("Lookup after Allocate = (%d, %v), want (%d, true)", slot, ok, res.Slot)
	}
	meta := a.Meta(slot)
	if meta.SlotIndex != slot {
		t.Errorf("meta.SlotIndex = %d, want %d", meta.SlotIndex, slot)
	}
	cx, cz := UnpackCxCz(meta.Flags)
	if cx != c.X || cz != c.Z || meta.YPosition != c.Y {
		t.Errorf("meta does not resolve back to chunk: cx=%d cz=%d y=%d, want %+v", cx, cz, meta.YPosition, c)
	}
}

func TestFreeMakesSlotAvailable(t *testing.T) {
	a := New(1, nil)
	c1 := chunk(0, 0, 0)
	res1, err := a.Allocate(c1, 1, nil)
	if err != nil {
		t.Fatalf("Allocate c1: %v", err)
	}

	a.Free(c1)
	if _, ok := a.Lookup(c1); ok {
		t.Error("c1 should no longer be resident after Free")
	}

	c2 := chunk(9, 9, 9)
	res2, err := a.Allocate(c2, 2, nil)
	if err != nil {
		t.Fatalf("Allocate c2: %v", err)
	}
	if res2.Slot != res1.Slot {
		t.Errorf("expected freed slot %d to be reused, got %d", res1.Slot, res2.Slot)
	}
}

// TestEvictionUnderPressure checks that with N=4 and an empty keep set,
// the fifth allocation evicts the oldest chunk (c1) and reuses its slot.
func TestEvictionUnderPressure(t *testing.T) {
	a := New(4, nil)
	coords := []addressing.ChunkCoord{chunk(0, 0, 0), chunk(1, 0, 0), chunk(2, 0, 0), chunk(3, 0, 0)}

	var firstSlot uint32
	for i, c := range coords {
		res, err := a.Allocate(c, uint32(i+1), nil)
		if err != nil {
			t.Fatalf("Allocate %+v: %v", c, err)
		}
		if i == 0 {
			firstSlot = res.Slot
		}
	}

	c5 := chunk(4, 0, 0)
	res5, err := a.Allocate(c5, 5, nil)
	if err != nil {
		t.Fatalf("fifth Allocate: %v", err)
	}
	if !res5.Evicted || res5.EvictedCoord != coords[0] {
		t.Fatalf("expected eviction of %+v, got evicted=%v coord=%+v", coords[0], res5.Evicted, res5.EvictedCoord)
	}
	if res5.Slot != firstSlot {
		t.Errorf("expected c1's old slot %d to be reused, got %d", firstSlot, res5.Slot)
	}
	if _, ok := a.Lookup(coords[0]); ok {
		t.Error("c1 should no longer be resident after eviction")
	}
	if slot, ok := a.Lookup(c5); !ok || slot != firstSlot {
		t.Errorf("Lookup(c5) = (%d, %v), want (%d, true)", slot, ok, firstSlot)
	}
}

func TestCapacityExhaustedWhenEverySlotKept(t *testing.T) {
	a := New(2, nil)
	c1, c2 := chunk(0, 0, 0), chunk(1, 0, 0)
	if _, err := a.Allocate(c1, 1, nil); err != nil {
		t.Fatalf("Allocate c1: %v", err)
	}
	if _, err := a.Allocate(c2, 2, nil); err != nil {
		t.Fatalf("Allocate c2: %v", err)
	}

	keepSet := map[addressing.ChunkCoord]bool{c1: true, c2: true}
	_, err := a.Allocate(chunk(2, 0, 0), 3, keepSet)
	if !errors.Is(err, voxelerr.ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
}

func TestKeepSetProtectsFromEviction(t *testing.T) {
	a := New(2, nil)
	c1, c2 := chunk(0, 0, 0), chunk(1, 0, 0)
	if _, err := a.Allocate(c1, 1, nil); err != nil {
		t.Fatalf("Allocate c1: %v", err)
	}
	if _, err := a.Allocate(c2, 2, nil); err != nil {
		t.Fatalf("Allocate c2: %v", err)
	}

	keepSet := map[addressing.ChunkCoord]bool{c1: true}
	c3 := chunk(2, 0, 0)
	res, err := a.Allocate(c3, 3, keepSet)
	if err != nil {
		t.Fatalf("Allocate c3: %v", err)
	}
	if !res.Evicted || res.EvictedCoord != c2 {
		t.Fatalf("expected eviction of c2 (c1 is kept), got evicted=%v coord=%+v", res.Evicted, res.EvictedCoord)
	}
	if _, ok := a.Lookup(c1); !ok {
		t.Error("c1 should still be resident (protected by keep set)")
	}
}

func TestMarkGeneratedAndDirtyFlags(t *testing.T) {
	a := New(1, nil)
	c := chunk(0, 0, 0)
	res, err := a.Allocate(c, 1, nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if a.IsGenerated(res.Slot) {
		t.Error("freshly allocated slot should not be generated yet")
	}
	a.MarkGenerated(res.Slot)
	if !a.IsGenerated(res.Slot) {
		t.Error("slot should report generated after MarkGenerated")
	}

	a.MarkDirty(res.Slot, DirtyLight)
	if !a.IsDirty(res.Slot, DirtyLight) {
		t.Error("slot should report dirty-light after MarkDirty")
	}
	a.ClearDirty(res.Slot, DirtyLight)
	if a.IsDirty(res.Slot, DirtyLight) {
		t.Error("slot should not report dirty-light after ClearDirty")
	}
}
