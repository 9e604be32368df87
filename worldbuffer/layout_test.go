package worldbuffer

import (
	"testing"

	"github.com/brackenworld/voxelcore/addressing"
)

func TestSlotByteOffsetAlignment(t *testing.T) {
	for slot := uint32(0); slot < 8; slot++ {
		off := SlotByteOffset(slot)
		if off%SlotAlignment != 0 {
			t.Errorf("slot %d offset %d is not a multiple of %d", slot, off, SlotAlignment)
		}
	}
}

func TestBufferSize(t *testing.T) {
	if got, want := BufferSize(2048), uint64(2048)*uint64(BytesPerSlot); got != want {
		t.Errorf("BufferSize(2048) = %d, want %d", got, want)
	}
}

func TestEncodeDecodeSlotVoxelsRoundTrip(t *testing.T) {
	voxels := make([]uint32, addressing.VoxelsPerChunk)
	for i := range voxels {
		voxels[i] = addressing.VoxelPack(uint32(i%65536), uint32(i%16), uint32((i/2)%16), uint32(i%256))
	}

	encoded := EncodeSlotVoxels(voxels)
	if len(encoded) != BytesPerSlot {
		t.Fatalf("encoded length = %d, want %d", len(encoded), BytesPerSlot)
	}

	decoded := DecodeSlotVoxels(encoded)
	if len(decoded) != len(voxels) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(voxels))
	}
	for i := range voxels {
		if decoded[i] != voxels[i] {
			t.Fatalf("voxel %d round-trip mismatch: got %#x, want %#x", i, decoded[i], voxels[i])
		}
	}
}

func TestTerrainUniformSizeIsSixteenByteAligned(t *testing.T) {
	if TerrainUniformSize%16 != 0 {
		t.Errorf("TerrainUniformSize = %d is not a multiple of 16", TerrainUniformSize)
	}
}
