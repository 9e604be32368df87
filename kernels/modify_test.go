package kernels

import (
	"testing"

	"github.com/brackenworld/voxelcore/addressing"
)

// TestSetEditPreservesLight checks that a set command replaces only the
// block id, leaving block_light and sky_light untouched.
func TestSetEditPreservesLight(t *testing.T) {
	acc := newMapAccessor()
	acc.Set(100, 50, 100, addressing.VoxelPack(addressing.BlockStone, 0, 0, 0))

	cmd := EditCommand{WorldX: 100, WorldY: 50, WorldZ: 100, BlockID: addressing.BlockDirt, ModType: ModSet}
	ApplyEdit(acc, cmd, 0)

	v, _ := acc.Get(100, 50, 100)
	if addressing.VoxelGetBlockID(v) != addressing.BlockDirt {
		t.Errorf("block id = %d, want dirt (%d)", addressing.VoxelGetBlockID(v), addressing.BlockDirt)
	}
	if addressing.VoxelGetBlockLight(v) != 0 || addressing.VoxelGetSkyLight(v) != 0 {
		t.Errorf("lighting disturbed: block_light=%d sky_light=%d", addressing.VoxelGetBlockLight(v), addressing.VoxelGetSkyLight(v))
	}
}

func TestBreakSetsAirAndSkylight(t *testing.T) {
	acc := newMapAccessor()
	acc.Set(0, 0, 0, addressing.VoxelPack(addressing.BlockStone, 3, 0, 0))

	ApplyEdit(acc, EditCommand{WorldX: 0, WorldY: 0, WorldZ: 0, ModType: ModBreak}, 0)

	v, _ := acc.Get(0, 0, 0)
	if !addressing.IsAir(v) {
		t.Error("expected air after break")
	}
	if addressing.VoxelGetSkyLight(v) != 15 {
		t.Errorf("sky_light after break = %d, want 15", addressing.VoxelGetSkyLight(v))
	}
}

// TestExplosionRespectsBedrock checks that an explosion command never
// removes a bedrock voxel regardless of radius or seed.
func TestExplosionRespectsBedrock(t *testing.T) {
	acc := newMapAccessor()
	acc.Set(0, 1, 0, addressing.VoxelPack(addressing.BedrockBlockID, 0, 0, 0))
	for dx := int32(-5); dx <= 5; dx++ {
		for dy := int32(-5); dy <= 5; dy++ {
			for dz := int32(-5); dz <= 5; dz++ {
				if dx == 0 && dy == 1 && dz == 0 {
					continue
				}
				acc.Set(dx, dy, dz, addressing.VoxelPack(addressing.BlockStone, 0, 0, 0))
			}
		}
	}

	ApplyEdit(acc, EditCommand{WorldX: 0, WorldY: 0, WorldZ: 0, ModType: ModExplode, Radius: 5}, 7)

	v, _ := acc.Get(0, 1, 0)
	if !addressing.IsBedrock(v) {
		t.Fatalf("bedrock was destroyed: block id = %d", addressing.VoxelGetBlockID(v))
	}

	removed := 0
	for dx := int32(-5); dx <= 5; dx++ {
		for dy := int32(-5); dy <= 5; dy++ {
			for dz := int32(-5); dz <= 5; dz++ {
				if dx == 0 && dy == 1 && dz == 0 {
					continue
				}
				v, _ := acc.Get(dx, dy, dz)
				if addressing.IsAir(v) {
					removed++
				}
			}
		}
	}
	if removed == 0 {
		t.Error("expected at least some non-bedrock voxels to be removed by the explosion")
	}
}

func TestExplodeIsDeterministicForFixedSeed(t *testing.T) {
	build := func() *mapAccessor {
		acc := newMapAccessor()
		for dx := int32(-3); dx <= 3; dx++ {
			for dy := int32(-3); dy <= 3; dy++ {
				for dz := int32(-3); dz <= 3; dz++ {
					acc.Set(dx, dy, dz, addressing.VoxelPack(addressing.BlockStone, 0, 0, 0))
				}
			}
		}
		return acc
	}

	a1, a2 := build(), build()
	cmd := EditCommand{ModType: ModExplode, Radius: 3}
	ApplyEdit(a1, cmd, 99)
	ApplyEdit(a2, cmd, 99)

	for k, v1 := range a1.voxels {
		if v2 := a2.voxels[k]; v1 != v2 {
			t.Fatalf("explosion result differs between identical runs at %v: %#x vs %#x", k, v1, v2)
		}
	}
}

func TestAffectedChunksSingleVoxelEdit(t *testing.T) {
	chunks := AffectedChunks(EditCommand{WorldX: 5, WorldY: 5, WorldZ: 5, ModType: ModSet})
	if len(chunks) != 1 || chunks[0] != (addressing.ChunkCoord{}) {
		t.Errorf("AffectedChunks for a single-voxel edit = %+v, want [{0 0 0}]", chunks)
	}
}

func TestAffectedChunksExplosionSpansMultipleChunks(t *testing.T) {
	chunks := AffectedChunks(EditCommand{WorldX: 31, WorldY: 31, WorldZ: 31, ModType: ModExplode, Radius: 5})
	if len(chunks) < 2 {
		t.Errorf("expected an explosion near a chunk boundary to span multiple chunks, got %+v", chunks)
	}
}
