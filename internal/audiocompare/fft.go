package audiocompare

import "math"

// fft computes the in-place radix-2 decimation-in-time transform. The input
// length must be a power of two.
func fft(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			data[i], data[j] = data[j], data[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wLen := complex(math.Cos(angle), math.Sin(angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := data[start+k]
				v := data[start+k+length/2] * w
				data[start+k] = u + v
				data[start+k+length/2] = u - v
				w *= wLen
			}
		}
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// magnitudeSpectrum windows the samples with a Hann window, zero-pads to a
// power of two, and returns the magnitudes of the non-redundant half.
func magnitudeSpectrum(samples []float64) []float64 {
	n := nextPowerOfTwo(len(samples))
	buf := make([]complex128, n)
	for i, s := range samples {
		window := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(samples))))
		buf[i] = complex(s*window, 0)
	}
	fft(buf)

	mags := make([]float64, n/2+1)
	for i := range mags {
		mags[i] = cmplxAbs(buf[i])
	}
	return mags
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
