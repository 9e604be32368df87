// Package worldbuffer owns the single GPU-resident storage buffer holding
// all resident chunks' voxels, its metadata sidecar, and the
// terrain-parameters uniform, plus the async upload/readback paths CPU
// callers use for persistence and debug queries. Grounded on the donor's
// voxelrt/rt/gpu/manager.go (buffer ownership, ensureBuffer growth,
// byte-packing helpers) and manager_hiz.go (the MapAsync/Poll/
// GetMappedRange/Unmap readback sequence), generalized from a sparse
// brick/sector store to the dense fixed-capacity slot array this core
// requires.
package worldbuffer

import "github.com/brackenworld/voxelcore/addressing"

// BytesPerVoxel is the wire size of one packed voxel word.
const BytesPerVoxel = 4

// BytesPerSlot is 32,768 voxels * 4 bytes = 128 KiB, the fixed stride of
// one slot in the world buffer.
const BytesPerSlot = addressing.VoxelsPerChunk * BytesPerVoxel

// SlotAlignment is the GPU buffer-offset alignment every slot boundary
// must respect: the buffer base is aligned to 256 bytes, and each slot
// begins at a 256-byte-aligned offset.
const SlotAlignment = 256

func init() {
	if BytesPerSlot%SlotAlignment != 0 {
		panic("worldbuffer: BytesPerSlot is not a multiple of SlotAlignment")
	}
}

// BufferSize returns the total byte size of the voxel storage buffer for a
// world buffer with the given slot capacity.
func BufferSize(capacity uint32) uint64 {
	return uint64(capacity) * uint64(BytesPerSlot)
}

// SlotByteOffset returns the byte offset of slot within the voxel storage
// buffer.
func SlotByteOffset(slot uint32) uint64 {
	return uint64(slot) * uint64(BytesPerSlot)
}

// EncodeSlotVoxels serializes one slot's VoxelsPerChunk-length voxel array
// into its little-endian wire representation, ready for queue_upload or
// for comparison against a readback result.
func EncodeSlotVoxels(voxels []uint32) []byte {
	if len(voxels) != addressing.VoxelsPerChunk {
		panic("worldbuffer.EncodeSlotVoxels: wrong voxel count")
	}
	out := make([]byte, BytesPerSlot)
	for i, v := range voxels {
		off := i * BytesPerVoxel
		out[off+0] = byte(v)
		out[off+1] = byte(v >> 8)
		out[off+2] = byte(v >> 16)
		out[off+3] = byte(v >> 24)
	}
	return out
}

// DecodeSlotVoxels parses a slot's raw bytes (as returned by a readback)
// back into its VoxelsPerChunk packed voxel words.
func DecodeSlotVoxels(b []byte) []uint32 {
	if len(b) != BytesPerSlot {
		panic("worldbuffer.DecodeSlotVoxels: wrong byte length")
	}
	out := make([]uint32, addressing.VoxelsPerChunk)
	for i := range out {
		off := i * BytesPerVoxel
		out[i] = uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
	}
	return out
}
