package kernels

import (
	"testing"

	"github.com/brackenworld/voxelcore/addressing"
)

// openRegion returns every position within a cube of the given half-extent
// around the origin, the work list a lighting dispatch would be given for
// a small resident region.
func openRegion(extent int32) [][3]int32 {
	var out [][3]int32
	for x := -extent; x <= extent; x++ {
		for y := -extent; y <= extent; y++ {
			for z := -extent; z <= extent; z++ {
				out = append(out, [3]int32{x, y, z})
			}
		}
	}
	return out
}

func manhattan(x, y, z int32) int32 {
	abs := func(v int32) int32 {
		if v < 0 {
			return -v
		}
		return v
	}
	return abs(x) + abs(y) + abs(z)
}

// TestLightPropagationBoundedByIterations checks that after K iterations,
// every air voxel within Manhattan distance K of the source holds at least
// L minus its distance.
func TestLightPropagationBoundedByIterations(t *testing.T) {
	const L = 12
	const K = 6

	acc := newMapAccessor()
	positions := openRegion(L + 3)
	for _, p := range positions {
		acc.Set(p[0], p[1], p[2], addressing.VoxelPack(addressing.BlockAir, 0, 0, 0))
	}
	// Source: an opaque voxel holding a fixed block_light of L. Opaque
	// voxels are never recomputed by PropagateIteration, so it stays pinned.
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockStone, L, 0, 0))

	PropagateK(acc, BlockLightField, positions, K)

	for _, p := range positions {
		d := manhattan(p[0], p[1], p[2])
		v, _ := acc.Get(p[0], p[1], p[2])
		if addressing.IsAir(v) && d <= K {
			want := L - d
			if want < 0 {
				want = 0
			}
			if got := int(addressing.VoxelGetBlockLight(v)); got < int(want) {
				t.Errorf("position %v (distance %d): block_light = %d, want >= %d", p, d, got, want)
			}
		}
	}
}

func TestLightPropagationDarkBeyondSourceRange(t *testing.T) {
	const L = 4
	acc := newMapAccessor()
	positions := openRegion(L + 4)
	for _, p := range positions {
		acc.Set(p[0], p[1], p[2], addressing.VoxelPack(addressing.BlockAir, 0, 0, 0))
	}
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockStone, L, 0, 0))

	PropagateK(acc, BlockLightField, positions, L+4)

	for _, p := range positions {
		d := manhattan(p[0], p[1], p[2])
		if d <= L {
			continue
		}
		v, _ := acc.Get(p[0], p[1], p[2])
		if got := addressing.VoxelGetBlockLight(v); got != 0 {
			t.Errorf("position %v (distance %d, beyond source range %d): block_light = %d, want 0", p, d, L, got)
		}
	}
}

func TestOpaqueVoxelsRetainPreviousLight(t *testing.T) {
	acc := newMapAccessor()
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockStone, 9, 0, 0))
	positions := [][3]int32{{0, 0, 0}}
	PropagateIteration(acc, BlockLightField, positions)

	v, _ := acc.Get(0, 0, 0)
	if addressing.VoxelGetBlockLight(v) != 9 {
		t.Errorf("opaque voxel light changed: got %d, want 9", addressing.VoxelGetBlockLight(v))
	}
}

func TestNonResidentNeighborAssumesSky(t *testing.T) {
	acc := newMapAccessor()
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockAir, 0, 0, 0))
	acc.markAbsent(1, 0, 0)
	acc.markAbsent(-1, 0, 0)
	acc.markAbsent(0, 1, 0)
	acc.markAbsent(0, -1, 0)
	acc.markAbsent(0, 0, 1)
	acc.markAbsent(0, 0, -1)

	PropagateIteration(acc, SkyLightField, [][3]int32{{0, 0, 0}})

	v, _ := acc.Get(0, 0, 0)
	if got := addressing.VoxelGetSkyLight(v); got != NonResidentLightValue-1 {
		t.Errorf("sky_light with all-absent neighbors = %d, want %d", got, NonResidentLightValue-1)
	}
}

func TestPropagateKStopsEarlyOnQuiescence(t *testing.T) {
	acc := newMapAccessor()
	positions := [][3]int32{{0, 0, 0}}
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockAir, 0, 0, 0))
	acc.markAbsent(1, 0, 0)
	acc.markAbsent(-1, 0, 0)
	acc.markAbsent(0, 1, 0)
	acc.markAbsent(0, -1, 0)
	acc.markAbsent(0, 0, 1)
	acc.markAbsent(0, 0, -1)

	ran := PropagateK(acc, SkyLightField, positions, 50)
	if ran != 2 {
		t.Errorf("expected quiescence after 2 iterations (value stabilizes at 14), ran %d", ran)
	}
}
