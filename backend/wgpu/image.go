package wgpu

import (
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/rhi/recording"
)

// copyPitchAlignment is the row pitch required for texture to buffer copies.
const copyPitchAlignment = 256

// ErrInsideFrame is returned by ReadPixels while a frame is being encoded.
var ErrInsideFrame = errors.New("wgpu: readback inside an open frame")

// ToRGBA returns img as *image.RGBA, converting when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Src)
	return dst
}

// rgbaView wraps tightly packed RGBA bytes without copying.
func rgbaView(data []byte, w, h uint32) *image.RGBA {
	return &image.RGBA{
		Pix:    data,
		Stride: int(4 * w),
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}
}

// mipChain returns levels 1..levels-1 of base, each half the size of the
// previous one and never smaller than 1x1.
func mipChain(base *image.RGBA, levels uint32) []*image.RGBA {
	if levels <= 1 {
		return nil
	}
	out := make([]*image.RGBA, 0, levels-1)
	src := base
	for range levels - 1 {
		b := src.Bounds()
		w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		out = append(out, dst)
		src = dst
		if w == 1 && h == 1 {
			break
		}
	}
	return out
}

// UploadImage replaces the contents of an RGBA texture with img. The
// image must match the texture size.
func (b *Backend) UploadImage(tex recording.Resource, img image.Image) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignResource, tex)
	}
	size := img.Bounds().Size()
	if size.X != int(t.desc.Width) || size.Y != int(t.desc.Height) {
		return fmt.Errorf("wgpu: image %v does not match texture %q (%dx%d)", size, t.label, t.desc.Width, t.desc.Height)
	}
	rgba := ToRGBA(img)
	if t.format == gputypes.TextureFormatBGRA8Unorm {
		swapped := make([]byte, len(rgba.Pix))
		swapRB(swapped, rgba.Pix)
		return b.uploadTexture(t, swapped)
	}
	return b.uploadTexture(t, rgba.Pix)
}

// ReadPixels copies level 0 of a render target back to the CPU. A nil
// texture reads the default framebuffer. It must be called between frames.
func (b *Backend) ReadPixels(tex *Texture) (*image.RGBA, error) {
	if tex == nil {
		tex = b.target
	}
	if b.frame.encoder != nil {
		return nil, ErrInsideFrame
	}
	if bpp, _ := bytesPerPixel(tex.format); bpp != 4 || !tex.desc.RenderTarget {
		return nil, fmt.Errorf("wgpu: texture %q cannot be read back", tex.label)
	}

	w, h := tex.desc.Width, tex.desc.Height
	bytesPerRow := w * 4
	pitch := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(pitch) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rhi_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rhi_readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("rhi_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	enc.CopyTextureToBuffer(tex.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	b.fenceValue++
	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, b.fence, b.fenceValue); err != nil {
		return nil, fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := b.device.Wait(b.fence, b.fenceValue, frameTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", recording.ErrContextLost, err)
	}
	if !ok {
		return nil, fmt.Errorf("wgpu: readback not completed after %v", frameTimeout)
	}

	raw := make([]byte, size)
	if err := b.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := range int(h) {
		src := raw[y*int(pitch) : y*int(pitch)+int(bytesPerRow)]
		dst := img.Pix[y*img.Stride : y*img.Stride+int(bytesPerRow)]
		if tex.format == gputypes.TextureFormatBGRA8Unorm {
			swapRB(dst, src)
		} else {
			copy(dst, src)
		}
	}
	return img, nil
}

// swapRB converts between BGRA and RGBA byte order.
func swapRB(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+3]
	}
}
