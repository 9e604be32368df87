// Package voxelerr holds the sentinel error values surfaced by the world
// storage and kernel-dispatch core. Callers should compare with errors.Is
// rather than type assertions.
package voxelerr

import "errors"

var (
	// ErrCapacityExhausted is returned by the slot allocator when no free
	// slot exists and no evictable candidate can be found outside the
	// caller's keep set. Fatal to the current frame; not recoverable by
	// retrying the identical allocation.
	ErrCapacityExhausted = errors.New("voxelcore: slot capacity exhausted")

	// ErrChunkNotResident is returned when an operation targets a chunk
	// that has no allocated slot.
	ErrChunkNotResident = errors.New("voxelcore: chunk not resident")

	// ErrInvalidTerrainParams is returned by CPU-side validation of the
	// terrain uniform before any dispatch occurs.
	ErrInvalidTerrainParams = errors.New("voxelcore: invalid terrain parameters")

	// ErrDeviceLost marks a fatal GPU device-lost condition. The engine
	// must reinitialize all GPU state; this error is never retried.
	ErrDeviceLost = errors.New("voxelcore: GPU device lost")

	// ErrCancelled is returned to callers of a pending readback when the
	// orchestrator shuts down before the readback's fence resolved.
	ErrCancelled = errors.New("voxelcore: operation cancelled")
)
