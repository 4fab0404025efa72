package framediff

import (
	"image"
	"image/color"
)

// diffNoiseFloor masks sub-perceptual codec noise out of the highlight, on an
// 8-bit intensity scale.
const diffNoiseFloor = 25

var highlight = color.RGBA{R: 255, A: 255}

// RenderDiff draws the regions where the two frames disagree onto a black
// canvas sized like the acceptance frame. Pixels whose grayscale delta exceeds
// the noise floor are painted solid red.
func RenderDiff(acceptance, emission image.Image) *image.RGBA {
	bounds := acceptance.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			canvas.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}

	emissionBounds := emission.Bounds()
	width := bounds.Dx()
	if emissionBounds.Dx() < width {
		width = emissionBounds.Dx()
	}
	height := bounds.Dy()
	if emissionBounds.Dy() < height {
		height = emissionBounds.Dy()
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			grayA := color.GrayModel.Convert(acceptance.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			grayB := color.GrayModel.Convert(emission.At(emissionBounds.Min.X+x, emissionBounds.Min.Y+y)).(color.Gray)
			delta := int(grayA.Y) - int(grayB.Y)
			if delta < 0 {
				delta = -delta
			}
			if delta > diffNoiseFloor {
				canvas.SetRGBA(x, y, highlight)
			}
		}
	}
	return canvas
}
