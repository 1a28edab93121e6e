// Package compositor supplies a concrete, deterministic reference
// implementation of the GPU mixer spec.md §4.1 treats as an opaque
// composite([Frame]) -> Frame primitive. It applies texcoords (crop),
// translate (placement), alpha and back-to-front layering using
// golang.org/x/image/draw over image.NRGBA.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

// Compositor flattens a composite Frame's children into a single image.
type Compositor interface {
	Composite(ctx context.Context, f frame.Frame) (*image.NRGBA, error)
}

// SoftwareCompositor is the default Compositor, backed by
// golang.org/x/image/draw. It is used by tests and by the hls and mpegts
// consumers; a real GPU mixer can implement the same interface in
// production without the Stage or Transition Producer knowing the
// difference.
type SoftwareCompositor struct {
	width, height int
	scaler        draw.Scaler
}

// NewSoftwareCompositor creates a SoftwareCompositor that renders onto a
// canvas of the given dimensions.
func NewSoftwareCompositor(width, height int) *SoftwareCompositor {
	return &SoftwareCompositor{width: width, height: height, scaler: draw.BiLinear}
}

// Composite renders f onto a fresh canvas. cut frames (no Children, a
// direct image payload) pass through unchanged, per spec.md §4.1: "cut
// bypasses all of these: it returns the source frame unchanged."
func (c *SoftwareCompositor) Composite(_ context.Context, f frame.Frame) (*image.NRGBA, error) {
	if len(f.Children) == 0 {
		img, err := toNRGBA(f.Pixels)
		if err != nil {
			return nil, fmt.Errorf("compositing single frame: %w", err)
		}
		return img, nil
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, c.width, c.height))

	for _, child := range f.Children {
		if err := c.layer(canvas, child); err != nil {
			return nil, fmt.Errorf("compositing child frame: %w", err)
		}
	}

	return canvas, nil
}

// layer applies texcoords -> translate -> alpha -> Over-compositing for a
// single child frame onto canvas, in the order spec.md §4.1 mandates.
func (c *SoftwareCompositor) layer(canvas *image.NRGBA, child frame.Frame) error {
	src, err := toNRGBA(child.Pixels)
	if err != nil {
		return err
	}

	srcBounds := src.Bounds()
	srcRect := cropRect(srcBounds, child.TexCoords)
	dstRect := placeRect(canvas.Bounds(), srcRect, child.Translate)

	alpha := uint8(clamp01(child.Alpha) * 255)
	mask := image.NewUniform(color.Alpha{A: alpha})

	c.scaler.Scale(canvas, dstRect, src, srcRect, draw.Over, &draw.Options{
		SrcMask: mask,
	})

	return nil
}

// cropRect maps a unit-square texcoords rectangle onto src's pixel bounds.
func cropRect(bounds image.Rectangle, tc frame.Rect) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	left := bounds.Min.X + int(tc.Left*w)
	right := bounds.Min.X + int(tc.Right*w)
	top := bounds.Min.Y + int((1-tc.Top)*h)
	bottom := bounds.Min.Y + int((1-tc.Bottom)*h)

	if right < left {
		left, right = right, left
	}
	if bottom < top {
		top, bottom = bottom, top
	}

	return image.Rect(left, top, right, bottom)
}

// placeRect maps a [-1,1]^2 translate onto the destination canvas,
// preserving srcRect's size. t=(0,0) centers srcRect on the canvas; t=(-1,0)
// and t=(1,0) center it on the left/right edges, respectively, so half of
// it lies outside the canvas.
func placeRect(canvasBounds, srcRect image.Rectangle, t frame.Translate) image.Rectangle {
	cw := float64(canvasBounds.Dx())
	ch := float64(canvasBounds.Dy())

	w := srcRect.Dx()
	h := srcRect.Dy()

	offsetX := canvasBounds.Min.X + int((t.X+1)/2*cw) - w/2
	offsetY := canvasBounds.Min.Y + int((1-t.Y)/2*ch) - h/2

	return image.Rect(offsetX, offsetY, offsetX+w, offsetY+h)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// toNRGBA coerces an opaque Frame.Pixels payload into an *image.NRGBA. The
// core itself never interprets Pixels; this conversion is specific to the
// software reference compositor.
func toNRGBA(pixels any) (*image.NRGBA, error) {
	switch v := pixels.(type) {
	case *image.NRGBA:
		return v, nil
	case image.Image:
		b := v.Bounds()
		out := image.NewNRGBA(b)
		draw.Draw(out, b, v, b.Min, draw.Src)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported frame pixel payload type %T", pixels)
	}
}
