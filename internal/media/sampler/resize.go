package sampler

import "image"

// Resize scales src to the requested dimensions with bilinear interpolation.
// The emission unit is always resized into the acceptance unit's space, never
// the other way around.
func Resize(src image.Image, width, height int) *image.RGBA {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	xRatio := float64(srcW) / float64(width)
	yRatio := float64(srcH) / float64(height)

	for y := 0; y < height; y++ {
		srcY := (float64(y) + 0.5) * yRatio
		y0 := int(srcY - 0.5)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		fy := srcY - 0.5 - float64(y0)
		if fy < 0 {
			fy = 0
		}

		for x := 0; x < width; x++ {
			srcX := (float64(x) + 0.5) * xRatio
			x0 := int(srcX - 0.5)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}
			fx := srcX - 0.5 - float64(x0)
			if fx < 0 {
				fx = 0
			}

			r00, g00, b00, a00 := src.At(bounds.Min.X+x0, bounds.Min.Y+y0).RGBA()
			r10, g10, b10, a10 := src.At(bounds.Min.X+x1, bounds.Min.Y+y0).RGBA()
			r01, g01, b01, a01 := src.At(bounds.Min.X+x0, bounds.Min.Y+y1).RGBA()
			r11, g11, b11, a11 := src.At(bounds.Min.X+x1, bounds.Min.Y+y1).RGBA()

			offset := dst.PixOffset(x, y)
			dst.Pix[offset+0] = lerp2(r00, r10, r01, r11, fx, fy)
			dst.Pix[offset+1] = lerp2(g00, g10, g01, g11, fx, fy)
			dst.Pix[offset+2] = lerp2(b00, b10, b01, b11, fx, fy)
			dst.Pix[offset+3] = lerp2(a00, a10, a01, a11, fx, fy)
		}
	}
	return dst
}

func lerp2(v00, v10, v01, v11 uint32, fx, fy float64) uint8 {
	top := float64(v00)*(1-fx) + float64(v10)*fx
	bottom := float64(v01)*(1-fx) + float64(v11)*fx
	value := (top*(1-fy) + bottom*fy) / 257.0
	if value < 0 {
		value = 0
	}
	if value > 255 {
		value = 255
	}
	return uint8(value + 0.5)
}
