package slotstore

import "encoding/binary"

// ChunkMeta is the 16-byte, 4-byte-aligned metadata entry, one per slot,
// mirrored between the CPU allocator and the GPU metadata storage buffer.
//
// Flags carries only the chunk's X/Z coordinates (bits 0-15 = cx, bits
// 16-31 = cz, both shader-convention sign-extended 16-bit values): the
// wire-compatible field the terrain kernel decodes to recover a chunk's
// world-space origin. The donor documentation this core was distilled
// from also overloaded this field with generated/dirty bit flags, which
// left no bit budget once both 16-bit coordinates are packed in; this
// implementation keeps those bits purely CPU-side in the allocator's
// separate state bitmask instead, since no kernel contract in this core
// actually requires the GPU to read them: the work lists the unified
// dispatch consumes are always built CPU-side.
type ChunkMeta struct {
	Flags     uint32
	YPosition int32
	SlotIndex uint32
	Timestamp uint32
}

// MetaEntrySize is the wire size of one ChunkMeta entry.
const MetaEntrySize = 16

// packCxCz packs cx into the low 16 bits and cz into the high 16 bits of
// the wire Flags field.
func packCxCz(cx, cz int32) uint32 {
	return uint32(uint16(cx)) | uint32(uint16(cz))<<16
}

// UnpackCxCz recovers the signed chunk X/Z coordinates from a wire Flags
// value.
func UnpackCxCz(flags uint32) (cx, cz int32) {
	cx = int32(int16(uint16(flags)))
	cz = int32(int16(uint16(flags >> 16)))
	return
}

// EncodeBytes serializes a ChunkMeta to its 16-byte little-endian wire
// representation, suitable for upload into the GPU metadata storage
// buffer.
func (m ChunkMeta) EncodeBytes() [MetaEntrySize]byte {
	var out [MetaEntrySize]byte
	binary.LittleEndian.PutUint32(out[0:4], m.Flags)
	binary.LittleEndian.PutUint32(out[4:8], uint32(m.YPosition))
	binary.LittleEndian.PutUint32(out[8:12], m.SlotIndex)
	binary.LittleEndian.PutUint32(out[12:16], m.Timestamp)
	return out
}

// DecodeChunkMeta parses a 16-byte wire entry back into a ChunkMeta.
func DecodeChunkMeta(b []byte) ChunkMeta {
	return ChunkMeta{
		Flags:     binary.LittleEndian.Uint32(b[0:4]),
		YPosition: int32(binary.LittleEndian.Uint32(b[4:8])),
		SlotIndex: binary.LittleEndian.Uint32(b[8:12]),
		Timestamp: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// EncodeTable serializes an entire metadata table in slot order, the shape
// uploaded as the GPU-visible metadata storage buffer.
func EncodeTable(entries []ChunkMeta) []byte {
	out := make([]byte, len(entries)*MetaEntrySize)
	for i, m := range entries {
		b := m.EncodeBytes()
		copy(out[i*MetaEntrySize:], b[:])
	}
	return out
}
