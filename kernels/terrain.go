// Package kernels implements the compute kernels that mutate the world
// buffer: terrain generation, voxel modification, and light propagation,
// plus the unified per-frame dispatch that sequences them. Each kernel
// carries a CPU reference implementation, the "golden" algorithm the
// WGSL source in package shaders must match bit-for-bit, used both as a
// test oracle and as a software fallback dispatch path for headless
// operation without a GPU device. Grounded on the donor's habit
// (voxelrt/rt/volume/xbrickmap.go) of keeping spatial algorithms as plain
// Go functions operable without touching wgpu at all.
package kernels

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/brackenworld/voxelcore/addressing"
	"github.com/brackenworld/voxelcore/voxelerr"
)

// MaxDistributions bounds the SoA block-distribution arrays.
const MaxDistributions = 16

// Distribution is one entry of the terrain parameters' Structure-of-Arrays
// block distributions.
type Distribution struct {
	BlockID       uint32
	MinHeight     int32
	MaxHeight     int32
	Probability   float32
	NoiseThreshold float32
}

// TerrainParams mirrors the terrain uniform. Distributions is capped at
// MaxDistributions and validated by Validate before any dispatch.
type TerrainParams struct {
	Seed                 uint32
	SeaLevel             int32
	TerrainScale         float32
	MountainThreshold    float32
	CaveThreshold        float32
	Temperature          float32
	WeatherTypeIntensity uint32
	Distributions        []Distribution

	// Noise2D/Noise3D override the hash-based placeholder noise functions
	// when non-nil. Production callers leave these nil; tests use them to
	// pin down a deterministic "constant noise" terrain without needing a
	// real noise library.
	Noise2D func(x, z int32, seed uint32) float32
	Noise3D func(x, y, z int32, seed uint32) float32
}

func (p TerrainParams) noise2(x, z int32, seed uint32) float32 {
	if p.Noise2D != nil {
		return p.Noise2D(x, z, seed)
	}
	return hash2(x, z, seed)
}

func (p TerrainParams) noise3(x, y, z int32, seed uint32) float32 {
	if p.Noise3D != nil {
		return p.Noise3D(x, y, z, seed)
	}
	return hash3(x, y, z, seed)
}

const freezingTemperature = 0.0

// Validate enforces the CPU-side parameter checks required before any
// dispatch: distribution count within bounds, probabilities in [0,1], and
// min <= max per distribution band.
func (p TerrainParams) Validate() error {
	if len(p.Distributions) > MaxDistributions {
		return fmt.Errorf("terrain params: %d distributions exceeds max %d: %w", len(p.Distributions), MaxDistributions, voxelerr.ErrInvalidTerrainParams)
	}
	for i, d := range p.Distributions {
		if d.Probability < 0 || d.Probability > 1 {
			return fmt.Errorf("terrain params: distribution %d probability %f out of [0,1]: %w", i, d.Probability, voxelerr.ErrInvalidTerrainParams)
		}
		if d.MinHeight > d.MaxHeight {
			return fmt.Errorf("terrain params: distribution %d min height %d > max height %d: %w", i, d.MinHeight, d.MaxHeight, voxelerr.ErrInvalidTerrainParams)
		}
	}
	return nil
}

// EncodeUniformBytes serializes TerrainParams into the 352-byte wire
// uniform: scalars first, then five parallel arrays of MaxDistributions
// entries each.
func (p TerrainParams) EncodeUniformBytes() []byte {
	const scalarBytes = 32
	const arrayBytes = MaxDistributions * 4
	out := make([]byte, scalarBytes+5*arrayBytes)

	binary.LittleEndian.PutUint32(out[0:4], p.Seed)
	binary.LittleEndian.PutUint32(out[4:8], uint32(p.SeaLevel))
	binary.LittleEndian.PutUint32(out[8:12], math.Float32bits(p.TerrainScale))
	binary.LittleEndian.PutUint32(out[12:16], math.Float32bits(p.MountainThreshold))
	binary.LittleEndian.PutUint32(out[16:20], math.Float32bits(p.CaveThreshold))
	binary.LittleEndian.PutUint32(out[20:24], math.Float32bits(p.Temperature))
	binary.LittleEndian.PutUint32(out[24:28], p.WeatherTypeIntensity)
	binary.LittleEndian.PutUint32(out[28:32], uint32(len(p.Distributions)))

	base := scalarBytes
	for i, d := range p.Distributions {
		binary.LittleEndian.PutUint32(out[base+i*4:], d.BlockID)
		binary.LittleEndian.PutUint32(out[base+arrayBytes+i*4:], uint32(d.MinHeight))
		binary.LittleEndian.PutUint32(out[base+2*arrayBytes+i*4:], uint32(d.MaxHeight))
		binary.LittleEndian.PutUint32(out[base+3*arrayBytes+i*4:], math.Float32bits(d.Probability))
		binary.LittleEndian.PutUint32(out[base+4*arrayBytes+i*4:], math.Float32bits(d.NoiseThreshold))
	}
	return out
}

// hash2 is a deterministic position-hashed value in [0,1), a simple
// hash-based value noise standing in for a full gradient-noise
// implementation.
func hash2(x, z int32, seed uint32) float32 {
	h := uint32(x)*374761393 + uint32(z)*668265263 + seed*2654435761
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float32(h&0xFFFFFF) / float32(0xFFFFFF)
}

// hash3 is the 3D variant used for cave density.
func hash3(x, y, z int32, seed uint32) float32 {
	h := uint32(x)*0x27d4eb2f ^ uint32(y)*0x165667b1 ^ uint32(z)*0x9e3779b1 ^ seed
	h = (h ^ (h >> 15)) * 0x2c1b3c6d
	h ^= h >> 12
	return float32(h&0xFFFFFF) / float32(0xFFFFFF)
}

// SurfaceHeight computes h(x,z): sea_level plus a fractal-Brownian sum of
// hash-based 2D noise, 6 octaves, lacunarity 2, persistence 0.5.
func (p TerrainParams) SurfaceHeight(x, z int32) int32 {
	amplitude := float32(1.0)
	frequency := p.TerrainScale
	if frequency == 0 {
		frequency = 1
	}
	var sum, norm float32
	for o := 0; o < 6; o++ {
		sum += amplitude * (p.noise2(int32(float32(x)*frequency), int32(float32(z)*frequency), p.Seed)*2 - 1)
		norm += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	if norm == 0 {
		return p.SeaLevel
	}
	return p.SeaLevel + int32((sum/norm)*24)
}

// selectDistribution walks the SoA distributions in order and returns the
// first whose height band contains y and whose hashed noise/probability
// test passes.
func (p TerrainParams) selectDistribution(x, y, z int32) (uint32, bool) {
	for _, d := range p.Distributions {
		if y < d.MinHeight || y > d.MaxHeight {
			continue
		}
		noise := p.noise3(x, y, z, p.Seed^0xA5A5A5A5)*2 - 1
		if noise <= d.NoiseThreshold {
			continue
		}
		roll := p.noise3(x, y+1, z, p.Seed^0x5A5A5A5A)
		if roll < d.Probability {
			return d.BlockID, true
		}
	}
	return 0, false
}

// ClassifyVoxel takes a world position and the locally computed surface
// height and returns the packed voxel value the terrain kernel must
// write. This is the CPU reference the WGSL classify() function in
// shaders/terrain.wgsl mirrors.
func (p TerrainParams) ClassifyVoxel(x, y, z int32) uint32 {
	h := p.SurfaceHeight(x, z)

	switch {
	case y < h-3:
		if blockID, ok := p.selectDistribution(x, y, z); ok {
			return addressing.VoxelPack(blockID, 0, 0, 0)
		}
		return addressing.VoxelPack(addressing.BlockStone, 0, 0, 0)

	case y < h:
		if p.noise3(x, y, z, p.Seed) > p.CaveThreshold && (h-y) > 4 {
			// Cave air: heuristic sky_light=5 until a lighting pass
			// recomputes it.
			return addressing.VoxelPack(addressing.BlockAir, 0, 5, 0)
		}
		return addressing.VoxelPack(addressing.BlockStone, 0, 0, 0)

	case y == h:
		blockID := uint32(addressing.BlockGrass)
		if p.Temperature <= freezingTemperature {
			blockID = 10 // frozen grass / snow surface placeholder block id
		}
		return addressing.VoxelPack(blockID, 0, 15, 0)

	case y < p.SeaLevel && y > h:
		depth := p.SeaLevel - y
		sky := int32(15) - depth/2
		if sky < 0 {
			sky = 0
		}
		blockID := uint32(9) // water
		if p.Temperature <= freezingTemperature {
			blockID = 11 // ice
		}
		return addressing.VoxelPack(blockID, 0, uint32(sky), 0)

	default:
		return addressing.VoxelPack(addressing.BlockAir, 0, 15, 0)
	}
}

// GenerateSlot fills a slot's VoxelsPerChunk-length voxel array
// deterministically from the chunk's world-space origin, running the
// per-voxel classification sequentially on the CPU instead of one GPU
// thread per voxel. out must have length addressing.VoxelsPerChunk.
func (p TerrainParams) GenerateSlot(origin addressing.ChunkCoord, out []uint32) {
	if len(out) != addressing.VoxelsPerChunk {
		panic(fmt.Sprintf("kernels.GenerateSlot: out has length %d, want %d", len(out), addressing.VoxelsPerChunk))
	}
	ox := origin.X * addressing.ChunkSize
	oy := origin.Y * addressing.ChunkSize
	oz := origin.Z * addressing.ChunkSize

	for lx := uint32(0); lx < addressing.ChunkSize; lx++ {
		for ly := uint32(0); ly < addressing.ChunkSize; ly++ {
			for lz := uint32(0); lz < addressing.ChunkSize; lz++ {
				localIndex := addressing.Morton3D(lx, ly, lz)
				wx := ox + int32(lx)
				wy := oy + int32(ly)
				wz := oz + int32(lz)
				out[localIndex] = p.ClassifyVoxel(wx, wy, wz)
			}
		}
	}
}
