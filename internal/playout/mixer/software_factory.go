package mixer

import (
	"image"
	"image/color"
)

// SoftwareFactory is the default producer.FrameFactory when no GPU mixer
// binding is configured: it allocates plain image.NRGBA canvases. Real
// deployments wrap a GPU mixer handle behind the same interface; this
// implementation exists so the core is runnable end to end without one,
// mirroring the role compositor.SoftwareCompositor plays on the consumer
// side.
type SoftwareFactory struct{}

// NewSoftwareFactory constructs a SoftwareFactory.
func NewSoftwareFactory() *SoftwareFactory {
	return &SoftwareFactory{}
}

// CreateFrame allocates an opaque black canvas of the requested size. tag
// is accepted for parity with GPU mixer handles that key allocations by
// producer name; the software path ignores it.
func (f *SoftwareFactory) CreateFrame(_ string, width, height int) (any, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fillBlack(img)
	return img, nil
}

func fillBlack(img *image.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
}
