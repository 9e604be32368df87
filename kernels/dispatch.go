// Unified dispatch & work graph: the per-frame sequencing of terrain,
// modification, and lighting kernel invocations against the shared world
// buffer, with GPU pipeline barriers between dependent stages. Grounded
// on the donor's compute-pipeline creation in
// voxelrt/rt/gpu/manager_edit.go's CreateEditPipeline (shader module ->
// ComputePipelineDescriptor -> CreateComputePipeline) and its
// BeginComputePass/SetBindGroup/DispatchWorkgroups dispatch shape in
// FlushEdits and manager_compression.go's CompressBricks.
package kernels

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/brackenworld/voxelcore/shaders"
)

// WorkgroupsPerChunk is the fixed workgroup count one terrain dispatch
// covers per chunk: ceil(32/8) * ceil(32/4) * ceil(32/4) = 4*8*8 = 256.
const WorkgroupsPerChunk = 256

// Pipelines owns the three compute pipelines this core's kernels compile
// to, built once at startup from the embedded WGSL sources in package
// shaders. A fresh Pipelines must be built whenever the device is
// recreated (e.g. after ErrDeviceLost).
type Pipelines struct {
	device  *wgpu.Device
	Terrain *wgpu.ComputePipeline
	Modify  *wgpu.ComputePipeline
	Light   *wgpu.ComputePipeline
}

// NewPipelines compiles the terrain, modify, and light compute pipelines.
func NewPipelines(device *wgpu.Device) (*Pipelines, error) {
	p := &Pipelines{device: device}

	terrain, err := compilePipeline(device, "voxelcore.terrain", shaders.AddressingWGSL+shaders.TerrainWGSL, "generate_terrain")
	if err != nil {
		return nil, fmt.Errorf("kernels: compile terrain pipeline: %w", err)
	}
	p.Terrain = terrain

	modify, err := compilePipeline(device, "voxelcore.modify", shaders.AddressingWGSL+shaders.ModifyWGSL, "edit_voxels")
	if err != nil {
		return nil, fmt.Errorf("kernels: compile modify pipeline: %w", err)
	}
	p.Modify = modify

	light, err := compilePipeline(device, "voxelcore.light", shaders.AddressingWGSL+shaders.LightWGSL, "propagate_light")
	if err != nil {
		return nil, fmt.Errorf("kernels: compile light pipeline: %w", err)
	}
	p.Light = light

	return p, nil
}

func compilePipeline(device *wgpu.Device, label, source, entryPoint string) (*wgpu.ComputePipeline, error) {
	shaderDesc := &wgpu.ShaderModuleDescriptor{
		Label: label + ".wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	}
	module, err := device.CreateShaderModule(shaderDesc)
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	defer module.Release()

	pipelineDesc := &wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entryPoint,
		},
	}
	pipeline, err := device.CreateComputePipeline(pipelineDesc)
	if err != nil {
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	return pipeline, nil
}

// Release releases all three compute pipelines.
func (p *Pipelines) Release() {
	if p.Terrain != nil {
		p.Terrain.Release()
	}
	if p.Modify != nil {
		p.Modify.Release()
	}
	if p.Light != nil {
		p.Light.Release()
	}
}

// WorkNode is a fused-dispatch work-list entry: {work_type, region_index,
// dependencies, priority}. Nothing in this module builds a work-node
// table: the orchestrator exposes freshly allocated chunks, queued edits,
// and dirty-light chunks separately, and this core issues them as three
// separate compute passes rather than one fused dispatch.
type WorkNode struct {
	WorkType     uint32
	RegionIndex  uint32
	Dependencies uint32
	Priority     uint32
}

const (
	WorkTypeTerrain uint32 = iota
	WorkTypeModify
	WorkTypeLight
)

// DispatchTerrain issues one terrain generation dispatch covering
// len(slots) chunks, each slot contributing WorkgroupsPerChunk workgroups
// along the X axis. bindGroup must bind voxels (rw), metadata (ro),
// terrain params (uniform), and the pending-slots list in the layout
// shaders/terrain.wgsl declares.
func DispatchTerrain(encoder *wgpu.CommandEncoder, pipelines *Pipelines, bindGroup *wgpu.BindGroup, slotCount uint32) {
	if slotCount == 0 {
		return
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipelines.Terrain)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(slotCount*WorkgroupsPerChunk, 1, 1)
	pass.End()
}

// DispatchModify issues one modification dispatch over commandCount edit
// commands, 64 threads per workgroup per manager_edit.go's FlushEdits
// convention.
func DispatchModify(encoder *wgpu.CommandEncoder, pipelines *Pipelines, bindGroup0, bindGroup1 *wgpu.BindGroup, commandCount uint32) {
	if commandCount == 0 {
		return
	}
	workgroups := (commandCount + 63) / 64
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipelines.Modify)
	pass.SetBindGroup(0, bindGroup0, nil)
	pass.SetBindGroup(1, bindGroup1, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
}

// DispatchLightIteration issues one lighting propagation iteration over
// voxelCount voxels (a multiple of 8*4*4), ping-ponging the light_in/
// light_out bindings the caller built for this iteration: each iteration
// is a compute dispatch that reads the previous iteration's field and
// writes it back.
func DispatchLightIteration(encoder *wgpu.CommandEncoder, pipelines *Pipelines, bindGroup0, bindGroup1 *wgpu.BindGroup, voxelCount uint32) {
	if voxelCount == 0 {
		return
	}
	workgroups := (voxelCount + 127) / 128
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipelines.Light)
	pass.SetBindGroup(0, bindGroup0, nil)
	pass.SetBindGroup(1, bindGroup1, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
}
