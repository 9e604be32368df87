package kernels

import "github.com/brackenworld/voxelcore/addressing"

// LightField selects which of a voxel's two independent light channels a
// propagation pass operates on. Sky light and block light propagate
// independently but use identical kernels.
type LightField int

const (
	BlockLightField LightField = iota
	SkyLightField
)

// NonResidentLightValue is the sentinel used when a neighbor lookup
// crosses into a chunk that has no resident slot: assume full sky.
const NonResidentLightValue = 15

func getField(v uint32, f LightField) uint32 {
	if f == BlockLightField {
		return addressing.VoxelGetBlockLight(v)
	}
	return addressing.VoxelGetSkyLight(v)
}

func setField(v uint32, f LightField, value uint32) uint32 {
	if f == BlockLightField {
		return addressing.VoxelWithBlockLight(v, value)
	}
	return addressing.VoxelWithSkyLight(v, value)
}

// neighborValue resolves one axis-aligned neighbor's light value, treating
// a non-resident neighbor chunk as full sky rather than failing.
func neighborValue(acc VoxelAccessor, f LightField, x, y, z int32) uint32 {
	v, resident := acc.Get(x, y, z)
	if !resident {
		return NonResidentLightValue
	}
	return getField(v, f)
}

var neighborOffsets = [6][3]int32{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// computeTarget implements the per-voxel update rule: the target light
// value is the max over the six axis-aligned neighbors of (neighbor_light
// - 1), clamped to [0, 15].
func computeTarget(acc VoxelAccessor, f LightField, x, y, z int32) uint32 {
	var best uint32
	for _, off := range neighborOffsets {
		n := neighborValue(acc, f, x+off[0], y+off[1], z+off[2])
		if n == 0 {
			continue
		}
		v := n - 1
		if v > best {
			best = v
		}
	}
	if best > 15 {
		best = 15
	}
	return best
}

// PropagateIteration runs one dispatch-equivalent iteration of the lighting
// kernel over positions: every opaque voxel retains its previous light
// value, every air voxel is recomputed from a snapshot of its neighbors
// taken before any writes in this iteration are applied (matching the
// GPU's read-then-write-all-at-once dispatch semantics). It reports
// whether any voxel's value changed, enabling the caller to exit early
// once propagation quiesces.
func PropagateIteration(acc VoxelAccessor, f LightField, positions [][3]int32) bool {
	type update struct {
		pos   [3]int32
		value uint32
	}
	updates := make([]update, 0, len(positions))
	changed := false

	for _, p := range positions {
		v, resident := acc.Get(p[0], p[1], p[2])
		if !resident || !addressing.IsAir(v) {
			continue
		}
		target := computeTarget(acc, f, p[0], p[1], p[2])
		if target != getField(v, f) {
			changed = true
		}
		updates = append(updates, update{p, target})
	}

	for _, u := range updates {
		v, resident := acc.Get(u.pos[0], u.pos[1], u.pos[2])
		if !resident {
			continue
		}
		acc.Set(u.pos[0], u.pos[1], u.pos[2], setField(v, f, u.value))
	}
	return changed
}

// PropagateK runs up to k iterations, stopping early if an iteration
// changes nothing (quiescence). It returns the number of iterations
// actually executed.
func PropagateK(acc VoxelAccessor, f LightField, positions [][3]int32, k int) int {
	ran := 0
	for i := 0; i < k; i++ {
		ran++
		if !PropagateIteration(acc, f, positions) {
			break
		}
	}
	return ran
}
