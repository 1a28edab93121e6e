package compositor

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairstack/stagecast/internal/playout/frame"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestComposite_CutPassesThroughUnchanged(t *testing.T) {
	c := NewSoftwareCompositor(10, 10)
	src := solidImage(10, 10, color.NRGBA{R: 200, A: 255})

	f := frame.New(ulid.Make(), src, nil)
	out, err := c.Composite(context.Background(), f)
	require.NoError(t, err)

	assert.Same(t, src, out)
}

func TestComposite_SingleOpaqueChildCoversCanvas(t *testing.T) {
	c := NewSoftwareCompositor(4, 4)
	red := solidImage(4, 4, color.NRGBA{R: 255, A: 255})

	child := frame.New(ulid.Make(), red, nil)
	composite := frame.Composite(ulid.Make(), child)

	out, err := c.Composite(context.Background(), composite)
	require.NoError(t, err)

	r, _, _, a := out.At(2, 2).RGBA()
	assert.Greater(t, r, uint32(0))
	assert.Greater(t, a, uint32(0))
}

func TestComposite_AlphaZeroLeavesCanvasUntouched(t *testing.T) {
	c := NewSoftwareCompositor(4, 4)
	red := solidImage(4, 4, color.NRGBA{R: 255, A: 255})

	child := frame.New(ulid.Make(), red, nil)
	child.Alpha = 0
	composite := frame.Composite(ulid.Make(), child)

	out, err := c.Composite(context.Background(), composite)
	require.NoError(t, err)

	_, _, _, a := out.At(2, 2).RGBA()
	assert.Zero(t, a)
}

func TestComposite_BackToFrontOrder(t *testing.T) {
	c := NewSoftwareCompositor(4, 4)
	back := solidImage(4, 4, color.NRGBA{R: 255, A: 255})
	front := solidImage(4, 4, color.NRGBA{B: 255, A: 255})

	backFrame := frame.New(ulid.Make(), back, nil)
	frontFrame := frame.New(ulid.Make(), front, nil)
	composite := frame.Composite(ulid.Make(), backFrame, frontFrame)

	out, err := c.Composite(context.Background(), composite)
	require.NoError(t, err)

	r, _, b, _ := out.At(2, 2).RGBA()
	assert.Zero(t, r, "front layer (blue) should win over back layer (red)")
	assert.Greater(t, b, uint32(0))
}

func TestCropRect_UnitRectangleIsIdentity(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	got := cropRect(bounds, frame.UnitRect())
	assert.Equal(t, bounds, got)
}

func TestPlaceRect_ZeroTranslateIsCentered(t *testing.T) {
	canvas := image.Rect(0, 0, 100, 100)
	src := image.Rect(0, 0, 20, 20)
	got := placeRect(canvas, src, frame.Translate{})
	assert.Equal(t, image.Rect(40, 40, 60, 60), got)
}
