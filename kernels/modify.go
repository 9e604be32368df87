package kernels

import (
	"encoding/binary"
	"math"

	"github.com/brackenworld/voxelcore/addressing"
)

// ModType enumerates the modification kernel's edit command kinds.
type ModType uint8

const (
	ModSet ModType = iota
	ModBreak
	ModExplode
)

// EditCommand is the CPU-side representation of the 16-byte wire command:
// {world_position: i32x3, block_id: u16, mod_type: u8, radius: u8}.
type EditCommand struct {
	WorldX, WorldY, WorldZ int32
	BlockID                uint16
	ModType                ModType
	Radius                 uint8
}

// EditCommandSize is the wire size of one edit command.
const EditCommandSize = 16

// EncodeEditCommands serializes a batch of commands into the flat byte
// buffer submitted to the GPU storage buffer, matching the donor's
// FlushEdits serialization in voxelrt/rt/gpu/manager_edit.go.
func EncodeEditCommands(cmds []EditCommand) []byte {
	out := make([]byte, len(cmds)*EditCommandSize)
	for i, c := range cmds {
		off := i * EditCommandSize
		binary.LittleEndian.PutUint32(out[off+0:], uint32(c.WorldX))
		binary.LittleEndian.PutUint32(out[off+4:], uint32(c.WorldY))
		binary.LittleEndian.PutUint32(out[off+8:], uint32(c.WorldZ))
		binary.LittleEndian.PutUint16(out[off+12:], c.BlockID)
		out[off+14] = byte(c.ModType)
		out[off+15] = c.Radius
	}
	return out
}

// VoxelAccessor is the minimal world-state surface the modification and
// lighting kernels' CPU reference implementations need: resolving a world
// position to its current packed voxel, and writing one back. The
// orchestrator's software dispatch path backs this with the slot
// allocator + an in-memory mirror of the world buffer; the GPU dispatch
// path never uses it (the shader performs the identical resolution against
// the real storage buffers).
type VoxelAccessor interface {
	Get(x, y, z int32) (v uint32, resident bool)
	Set(x, y, z int32, v uint32)
}

// explodeHash mirrors the WGSL explode_hash function bit-for-bit; it must
// stay in sync with shaders/modify.wgsl.
func explodeHash(x, y, z int32, seed uint32) float32 {
	h := uint32(x)*0x27d4eb2f ^ uint32(y)*0x165667b1 ^ uint32(z)*0x9e3779b1 ^ seed
	h = (h ^ (h >> 15)) * 0x2c1b3c6d
	h ^= h >> 12
	return float32(h&0xFFFFFF) / float32(0xFFFFFF)
}

// ApplyEdit applies one command's per-voxel behavior against acc. seed
// drives the explode command's position-hashed falloff and should be
// stable across a single batch so repeated invocations against
// unchanged voxels are deterministic.
//
// ApplyEdit handles a single command; a batch is applied by calling it
// once per command in slice order (as Orchestrator.RunModification does),
// a concrete serialization chosen purely to make this CPU reference (and
// its tests) deterministic.
// The GPU kernel contract remains last-write-wins/unordered across
// threads, and callers must not rely on this ordering.
func ApplyEdit(acc VoxelAccessor, cmd EditCommand, seed uint32) {
	switch cmd.ModType {
	case ModSet:
		v, resident := acc.Get(cmd.WorldX, cmd.WorldY, cmd.WorldZ)
		if !resident {
			return
		}
		acc.Set(cmd.WorldX, cmd.WorldY, cmd.WorldZ, addressing.VoxelWithBlockID(v, uint32(cmd.BlockID)))

	case ModBreak:
		v, resident := acc.Get(cmd.WorldX, cmd.WorldY, cmd.WorldZ)
		if !resident {
			return
		}
		v = addressing.VoxelWithBlockID(v, addressing.BlockAir)
		v = addressing.VoxelWithSkyLight(v, 15)
		acc.Set(cmd.WorldX, cmd.WorldY, cmd.WorldZ, v)

	case ModExplode:
		applyExplode(acc, cmd, seed)
	}
}

func applyExplode(acc VoxelAccessor, cmd EditCommand, seed uint32) {
	r := int32(cmd.Radius)
	if r <= 0 {
		return
	}
	radius := float64(cmd.Radius)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				x := cmd.WorldX + dx
				y := cmd.WorldY + dy
				z := cmd.WorldZ + dz

				dist := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
				if dist > radius {
					continue
				}
				v, resident := acc.Get(x, y, z)
				if !resident || addressing.IsBedrock(v) {
					continue
				}
				roll := explodeHash(x, y, z, seed)
				falloff := 1 - dist/radius
				if float64(roll) < falloff*falloff {
					acc.Set(x, y, z, addressing.VoxelWithBlockID(v, addressing.BlockAir))
				}
			}
		}
	}
}

// AffectedChunks returns the distinct chunk coordinates touched by cmd.
// This is derived from the command list on the CPU, which knows
// positions, and requires no GPU-side bookkeeping.
func AffectedChunks(cmd EditCommand) []addressing.ChunkCoord {
	if cmd.ModType != ModExplode || cmd.Radius == 0 {
		coord, _, _, _ := addressing.WorldToChunk(cmd.WorldX, cmd.WorldY, cmd.WorldZ)
		return []addressing.ChunkCoord{coord}
	}

	r := int32(cmd.Radius)
	seen := make(map[addressing.ChunkCoord]bool)
	var out []addressing.ChunkCoord
	corners := [][3]int32{
		{cmd.WorldX - r, cmd.WorldY - r, cmd.WorldZ - r},
		{cmd.WorldX + r, cmd.WorldY - r, cmd.WorldZ - r},
		{cmd.WorldX - r, cmd.WorldY + r, cmd.WorldZ - r},
		{cmd.WorldX - r, cmd.WorldY - r, cmd.WorldZ + r},
		{cmd.WorldX + r, cmd.WorldY + r, cmd.WorldZ - r},
		{cmd.WorldX + r, cmd.WorldY - r, cmd.WorldZ + r},
		{cmd.WorldX - r, cmd.WorldY + r, cmd.WorldZ + r},
		{cmd.WorldX + r, cmd.WorldY + r, cmd.WorldZ + r},
	}
	for _, c := range corners {
		coord, _, _, _ := addressing.WorldToChunk(c[0], c[1], c[2])
		if !seen[coord] {
			seen[coord] = true
			out = append(out, coord)
		}
	}
	return out
}
