package framediff

import (
	"image"
	"image/color"
)

// computeCap bounds the longer dimension of the compared representation so a
// 4K frame costs the same as a preview-sized one.
const computeCap = 256

const (
	ssimWindow = 8
	ssimC1     = 0.0001 // (0.01)^2 on unit-normalized intensity
	ssimC2     = 0.0009 // (0.03)^2
)

// grayPlane is a single-channel float representation of a frame.
type grayPlane struct {
	width  int
	height int
	pix    []float64
}

func newGrayPlane(img image.Image) grayPlane {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := grayPlane{width: width, height: height, pix: make([]float64, width*height)}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride:]
			for x := 0; x < width; x++ {
				plane.pix[y*width+x] = float64(row[x]) / 255.0
			}
		}
		return plane
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			plane.pix[y*width+x] = float64(gray.Y) / 255.0
		}
	}
	return plane
}

// downscale area-averages the plane so its longer dimension fits the cap.
func (p grayPlane) downscale(cap int) grayPlane {
	longest := p.width
	if p.height > longest {
		longest = p.height
	}
	if longest <= cap {
		return p
	}

	scale := float64(cap) / float64(longest)
	width := int(float64(p.width)*scale + 0.5)
	height := int(float64(p.height)*scale + 0.5)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	out := grayPlane{width: width, height: height, pix: make([]float64, width*height)}
	for y := 0; y < height; y++ {
		y0 := y * p.height / height
		y1 := (y + 1) * p.height / height
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < width; x++ {
			x0 := x * p.width / width
			x1 := (x + 1) * p.width / width
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					sum += p.pix[sy*p.width+sx]
				}
			}
			out.pix[y*width+x] = sum / float64((y1-y0)*(x1-x0))
		}
	}
	return out
}

// ssim computes the mean windowed structural similarity composite
// (luminance x contrast x structure) between two equally sized planes. The
// raw composite can go slightly negative for extreme mismatches; the caller
// clamps to [0,1].
func ssim(a, b grayPlane) float64 {
	if a.width != b.width || a.height != b.height || a.width == 0 || a.height == 0 {
		return 0
	}

	var total float64
	var windows int
	for wy := 0; wy < a.height; wy += ssimWindow {
		for wx := 0; wx < a.width; wx += ssimWindow {
			wEnd := wx + ssimWindow
			if wEnd > a.width {
				wEnd = a.width
			}
			hEnd := wy + ssimWindow
			if hEnd > a.height {
				hEnd = a.height
			}

			var sumA, sumB float64
			n := float64((wEnd - wx) * (hEnd - wy))
			for y := wy; y < hEnd; y++ {
				for x := wx; x < wEnd; x++ {
					sumA += a.pix[y*a.width+x]
					sumB += b.pix[y*b.width+x]
				}
			}
			meanA := sumA / n
			meanB := sumB / n

			var varA, varB, cov float64
			for y := wy; y < hEnd; y++ {
				for x := wx; x < wEnd; x++ {
					da := a.pix[y*a.width+x] - meanA
					db := b.pix[y*b.width+x] - meanB
					varA += da * da
					varB += db * db
					cov += da * db
				}
			}
			varA /= n
			varB /= n
			cov /= n

			numerator := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
			denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
			total += numerator / denominator
			windows++
		}
	}
	if windows == 0 {
		return 0
	}
	return total / float64(windows)
}

// Similarity computes the clamped structural similarity of two frames.
func Similarity(a, b image.Image) float64 {
	planeA := newGrayPlane(a).downscale(computeCap)
	planeB := newGrayPlane(b).downscale(computeCap)
	if planeA.width != planeB.width || planeA.height != planeB.height {
		return 0
	}
	value := ssim(planeA, planeB)
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
