// GPU ownership for the world buffer: the voxel storage buffer, the
// metadata sidecar, and the terrain-parameters uniform, plus the async
// upload/readback paths CPU callers use for persistence and debug
// queries.
//
// Grounded on the donor's voxelrt/rt/gpu/manager.go buffer ownership and
// ensureBuffer growth helper, and on manager_hiz.go's
// MapAsync/Poll/GetMappedRange/Unmap readback sequence, generalized from a
// sparse brick/sector store to the dense fixed-capacity slot array this
// core requires.
package worldbuffer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// Logger is the minimal logging surface Buffer needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// Buffer owns the GPU-resident voxel storage buffer, the chunk metadata
// storage buffer, and the terrain parameters uniform buffer for a world of
// fixed slot capacity. It is the single owner of these wgpu resources;
// kernels and consumers receive read-only or read-write bindings derived
// from it, never the buffers directly.
type Buffer struct {
	device   *wgpu.Device
	capacity uint32
	log      Logger

	Voxels   *wgpu.Buffer
	Metadata *wgpu.Buffer
	Params   *wgpu.Buffer

	// readback is the single staging buffer every QueueReadback request
	// maps through. Only one request may occupy it at a time, so
	// queued holds requests still waiting their turn and inFlight is
	// the one currently copied into and mapped.
	readback *wgpu.Buffer
	queued   []*readbackRequest
	inFlight *readbackRequest
}

type readbackRequest struct {
	id     uuid.UUID
	slot   uint32
	size   uint64
	mapped bool
	done   chan readbackResult
}

// readbackResult is delivered on a ReadbackFuture's channel once the
// staged copy's MapAsync callback fires.
type readbackResult struct {
	voxels []uint32
	err    error
}

// ReadbackFuture is returned by QueueReadback; callers block on Wait until
// the request's turn at the staging buffer comes up and the resulting
// submission fence resolves.
type ReadbackFuture struct {
	id   uuid.UUID
	done chan readbackResult
}

// Wait blocks until the readback completes and returns the slot's voxel
// array, or an error (voxelerr.ErrCancelled if the orchestrator shut down
// first).
func (f *ReadbackFuture) Wait() ([]uint32, error) {
	r := <-f.done
	return r.voxels, r.err
}

// New allocates the three GPU buffers for a world buffer of the given slot
// capacity: a voxel storage buffer of BufferSize(capacity) bytes, a
// metadata storage buffer of capacity*MetaEntrySize bytes, and a 352-byte
// terrain-parameters uniform, all CopySrc|CopyDst so queue_upload and
// queue_readback can stage through them, matching the donor's
// ensureBuffer's "always add CopySrc/CopyDst" policy.
func New(device *wgpu.Device, capacity uint32, log Logger) (*Buffer, error) {
	if log == nil {
		log = noopLogger{}
	}
	b := &Buffer{device: device, capacity: capacity, log: log}

	voxelsDesc := &wgpu.BufferDescriptor{
		Label:            "voxelcore.world_buffer.voxels",
		Size:             BufferSize(capacity),
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	}
	voxels, err := device.CreateBuffer(voxelsDesc)
	if err != nil {
		return nil, fmt.Errorf("worldbuffer: create voxel storage buffer: %w", err)
	}
	b.Voxels = voxels

	metaDesc := &wgpu.BufferDescriptor{
		Label:            "voxelcore.world_buffer.metadata",
		Size:             uint64(capacity) * MetaEntrySize,
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	}
	meta, err := device.CreateBuffer(metaDesc)
	if err != nil {
		voxels.Release()
		return nil, fmt.Errorf("worldbuffer: create metadata storage buffer: %w", err)
	}
	b.Metadata = meta

	paramsDesc := &wgpu.BufferDescriptor{
		Label:            "voxelcore.world_buffer.terrain_params",
		Size:             TerrainUniformSize,
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	}
	params, err := device.CreateBuffer(paramsDesc)
	if err != nil {
		voxels.Release()
		meta.Release()
		return nil, fmt.Errorf("worldbuffer: create terrain params uniform: %w", err)
	}
	b.Params = params

	readbackDesc := &wgpu.BufferDescriptor{
		Label:            "voxelcore.world_buffer.readback_staging",
		Size:             uint64(BytesPerSlot),
		Usage:            wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	}
	readback, err := device.CreateBuffer(readbackDesc)
	if err != nil {
		voxels.Release()
		meta.Release()
		params.Release()
		return nil, fmt.Errorf("worldbuffer: create readback staging buffer: %w", err)
	}
	b.readback = readback

	log.Debugf("worldbuffer: allocated voxel=%d meta=%d params=%d bytes for capacity=%d", BufferSize(capacity), uint64(capacity)*MetaEntrySize, TerrainUniformSize, capacity)
	return b, nil
}

// TerrainUniformSize is the wire size of the terrain parameters uniform:
// 32 scalar bytes plus five 64-byte SoA arrays, already a multiple of the
// platform's 16-byte uniform alignment.
const TerrainUniformSize = 32 + 5*16*4

// MetaEntrySize is the wire size of a chunk metadata entry (spec §6.2):
// flags, y_position, slot_index, timestamp, each a 4-byte field.
const MetaEntrySize = 16

// Release frees all GPU resources owned by Buffer.
func (b *Buffer) Release() {
	if b.Voxels != nil {
		b.Voxels.Release()
	}
	if b.Metadata != nil {
		b.Metadata.Release()
	}
	if b.Params != nil {
		b.Params.Release()
	}
	if b.readback != nil {
		b.readback.Release()
	}
}

// Capacity returns the fixed slot count N this buffer was created with.
func (b *Buffer) Capacity() uint32 { return b.capacity }

// QueueUpload stages voxels (exactly VoxelsPerChunk words) into slot's
// region of the voxel storage buffer, the rarely used path for loading
// persisted chunks.
func (b *Buffer) QueueUpload(slot uint32, voxels []uint32) {
	encoded := EncodeSlotVoxels(voxels)
	b.device.GetQueue().WriteBuffer(b.Voxels, SlotByteOffset(slot), encoded)
	b.log.Debugf("worldbuffer: queued upload of slot %d (%d bytes)", slot, len(encoded))
}

// UploadMetadata writes the full metadata table in slot order. Metadata
// is CPU-written only, between frame submissions; the GPU binding over
// it is read-only.
func (b *Buffer) UploadMetadata(encoded []byte) {
	b.device.GetQueue().WriteBuffer(b.Metadata, 0, encoded)
}

// UploadTerrainParams writes a new terrain-parameters uniform. This
// binding is refreshed only when configuration changes, not every frame.
func (b *Buffer) UploadTerrainParams(encoded []byte) {
	if uint64(len(encoded)) != TerrainUniformSize {
		panic(fmt.Sprintf("worldbuffer.UploadTerrainParams: got %d bytes, want %d", len(encoded), TerrainUniformSize))
	}
	b.device.GetQueue().WriteBuffer(b.Params, 0, encoded)
}

// QueueReadback copies slot's voxel region into the host-visible staging
// buffer and returns a future resolved once the copy's fence signals and
// the caller calls PollReadbacks, mirroring the donor's
// MapAsync/Poll/GetMappedRange/Unmap sequence in manager_hiz.go's
// ReadbackHiZ. The staging buffer holds only one mapped region at a
// time, so a request queues behind any already in flight and its copy
// is issued only once it reaches the front; callers may queue as many
// as they like, in any order, and each is tagged with a uuid.UUID
// correlation id so its future resolves with exactly its own slot's
// data regardless of how many others are queued alongside it.
func (b *Buffer) QueueReadback(slot uint32) (*ReadbackFuture, error) {
	req := &readbackRequest{id: uuid.New(), slot: slot, size: uint64(BytesPerSlot), done: make(chan readbackResult, 1)}
	if b.inFlight == nil {
		if err := b.startReadback(req); err != nil {
			return nil, err
		}
	} else {
		b.queued = append(b.queued, req)
	}
	return &ReadbackFuture{id: req.id, done: req.done}, nil
}

func (b *Buffer) startReadback(req *readbackRequest) error {
	b.inFlight = req

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("worldbuffer: create command encoder for readback: %w", err)
	}
	encoder.CopyBufferToBuffer(b.Voxels, SlotByteOffset(req.slot), b.readback, 0, uint64(BytesPerSlot))
	cmdBuf, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("worldbuffer: finish readback copy encoder: %w", err)
	}
	b.device.GetQueue().Submit(cmdBuf)

	slot := req.slot
	b.readback.MapAsync(wgpu.MapModeRead, 0, req.size, func(status wgpu.BufferMapAsyncStatus) {
		if status == wgpu.BufferMapAsyncStatusSuccess {
			req.mapped = true
		} else {
			req.done <- readbackResult{err: fmt.Errorf("worldbuffer: readback MapAsync failed for slot %d: status %d", slot, status)}
		}
	})
	return nil
}

// PollReadbacks advances the in-flight MapAsync callback and, once the
// staging buffer has finished mapping, copies the bytes out, delivers
// them to the waiting future, unmaps the staging buffer, and starts the
// next queued request, if any. The owner of the frame loop calls this
// once per frame after submitting the frame's dispatch, the same polling
// shape as the donor's ReadbackHiZ; the orchestrator package does not
// call it.
func (b *Buffer) PollReadbacks() {
	if b.inFlight == nil {
		return
	}
	b.device.Poll(false, nil)

	req := b.inFlight
	if !req.mapped {
		return
	}
	data := b.readback.GetMappedRange(0, uint(req.size))
	voxels := DecodeSlotVoxels(append([]byte(nil), data...))
	b.readback.Unmap()
	req.done <- readbackResult{voxels: voxels}
	b.inFlight = nil

	if len(b.queued) > 0 {
		next := b.queued[0]
		b.queued = b.queued[1:]
		if err := b.startReadback(next); err != nil {
			next.done <- readbackResult{err: err}
			b.inFlight = nil
		}
	}
}

// CancelPending resolves every outstanding readback, in flight or still
// queued, with cancelErr; cancelErr should be voxelerr.ErrCancelled,
// passed in rather than imported directly to keep this package free of
// a dependency on voxelerr's error values.
func (b *Buffer) CancelPending(cancelErr error) {
	if b.inFlight != nil {
		b.inFlight.done <- readbackResult{err: cancelErr}
		b.inFlight = nil
	}
	for _, req := range b.queued {
		req.done <- readbackResult{err: cancelErr}
	}
	b.queued = nil
}
