package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/recording"
)

const (
	// uniformAlignment is the minimum uniform buffer offset alignment.
	uniformAlignment = 256

	arenaChunkSize = 64 << 10
)

// uniformArena sub-allocates const data for one frame from a list of
// uniform buffers. Chunks are reused after the frame's fence signals.
type uniformArena struct {
	device  hal.Device
	queue   hal.Queue
	chunks  []hal.Buffer
	cur     int
	off     uint64
	scratch []byte
}

// push uploads registers float4 registers from data, zero-padding what
// data does not cover.
func (a *uniformArena) push(data []float32, registers uint32) (buf hal.Buffer, offset, size uint64, err error) {
	size = max(uint64(registers)*16, 16)
	if size > arenaChunkSize {
		return nil, 0, 0, fmt.Errorf("wgpu: const block of %d bytes exceeds %d", size, arenaChunkSize)
	}
	for {
		if a.cur == len(a.chunks) {
			chunk, err := a.device.CreateBuffer(&hal.BufferDescriptor{
				Label: fmt.Sprintf("uniform_arena_%d", len(a.chunks)),
				Size:  arenaChunkSize,
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return nil, 0, 0, fmt.Errorf("wgpu: create uniform chunk: %w", err)
			}
			a.chunks = append(a.chunks, chunk)
		}
		if a.off+size <= arenaChunkSize {
			break
		}
		a.cur++
		a.off = 0
	}

	if cap(a.scratch) < int(size) {
		a.scratch = make([]byte, size)
	}
	bytes := a.scratch[:size]
	clear(bytes)
	for i, f := range data {
		if 4*i+4 > len(bytes) {
			break
		}
		binary.LittleEndian.PutUint32(bytes[4*i:], math.Float32bits(f))
	}

	buf, offset = a.chunks[a.cur], a.off
	a.queue.WriteBuffer(buf, offset, bytes)
	a.off = (a.off + size + uniformAlignment - 1) &^ (uniformAlignment - 1)
	return buf, offset, size, nil
}

func (a *uniformArena) reset() {
	a.cur = 0
	a.off = 0
}

func (a *uniformArena) destroy() {
	for _, c := range a.chunks {
		a.device.DestroyBuffer(c)
	}
	a.chunks = nil
	a.reset()
}

// bindGroup builds group 0 for the bound pipeline from the current
// constants, textures and samplers. The group lives until the frame ends.
func (b *Backend) bindGroup() (hal.BindGroup, error) {
	d := &b.draw
	desc := &d.ps.desc
	var entries []gputypes.BindGroupEntry

	consts := func(slots *[maxConstSlots]constSlot, regs []uint32, binding func(int) uint32) error {
		for i, n := range regs {
			buf, off, size, err := b.arena.push(slots[i].data, n)
			if err != nil {
				return err
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  binding(i),
				Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: off, Size: size},
			})
		}
		return nil
	}
	if err := consts(&d.vconst, desc.VertexConsts, vertexConstBinding); err != nil {
		return nil, err
	}
	if err := consts(&d.fconst, desc.FragmentConsts, fragmentConstBinding); err != nil {
		return nil, err
	}

	for u := range desc.VertexSamplers + desc.FragmentSamplers {
		stage, unit := recording.StageVertex, u
		if u >= desc.VertexSamplers {
			stage, unit = recording.StageFragment, u-desc.VertexSamplers
		}
		view, sampler := b.textureUnit(stage, unit)
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  textureBinding(u),
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  samplerBinding(u),
				Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()},
			},
		)
	}

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   d.ps.label,
		Layout:  d.ps.group,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}
	b.frame.bindGroups = append(b.frame.bindGroups, bg)
	return bg, nil
}

// textureUnit resolves the view and sampler bound to a texture unit,
// falling back to the white texture and the default sampler.
func (b *Backend) textureUnit(stage recording.Stage, unit uint32) (hal.TextureView, hal.Sampler) {
	units := &b.draw.ftex
	if stage == recording.StageVertex {
		units = &b.draw.vtex
	}
	view := b.fallback.view
	if t := units[unit]; t != nil && t.view != nil {
		view = t.view
	}
	sampler := b.sampler
	if b.draw.ss != nil {
		if s := b.draw.ss.unit(stage, unit); s != nil {
			sampler = s
		}
	}
	return view, sampler
}
