// Package feature turns face crops into fixed-length normalized descriptors.
//
// The extraction scheme is deterministic signal processing: per-quadrant
// intensity histograms plus strided local-gradient magnitudes. The constants
// below form a versioned schema; changing any of them invalidates every
// stored template, so SchemaVersion must be bumped alongside.
package feature

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	// SchemaVersion tags template stores produced by this extractor.
	SchemaVersion = 1

	// CanonicalSize is the side length faces are resized to before
	// extraction. Aspect ratio is not preserved.
	CanonicalSize = 100

	// HistogramBins is the number of intensity bins per quadrant histogram.
	HistogramBins = 16

	// GradientStride is the row/column step of the gradient scan.
	GradientStride = 4

	quadrants      = 4
	gradientBorder = 1

	// 1, 5, ... up to CanonicalSize-2 inclusive.
	gradientSamples = (CanonicalSize - 2*gradientBorder - 1)/GradientStride + 1

	// Dim is the fixed dimensionality of every extracted vector.
	Dim = quadrants*HistogramBins + gradientSamples*gradientSamples*4
)

// ErrDegenerateCrop is returned for empty or zero-sized face crops.
var ErrDegenerateCrop = errors.New("feature: degenerate face crop")

// Vector is an L2-normalized face descriptor of length Dim.
type Vector []float32

// Norm returns the Euclidean norm of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product with another vector of the same length.
func (v Vector) Dot(other Vector) float64 {
	var dot float64
	for i := range v {
		dot += float64(v[i]) * float64(other[i])
	}
	return dot
}

// Extractor computes feature vectors from face crops. It is stateless and
// a pure function of its input plus the package constants.
type Extractor struct{}

// Extract converts a face crop into a Vector. The crop is resized to the
// canonical square, reduced to single-channel intensity, and described by
// quadrant histograms and local gradients. Degenerate input returns
// ErrDegenerateCrop, never a zero vector.
func (Extractor) Extract(face image.Image) (Vector, error) {
	if face == nil {
		return nil, ErrDegenerateCrop
	}
	bounds := face.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrDegenerateCrop
	}

	gray := canonicalGray(face)
	vec := make(Vector, 0, Dim)
	vec = appendQuadrantHistograms(vec, gray)
	vec = appendGradients(vec, gray)

	normalize(vec)
	return vec, nil
}

// canonicalGray resizes to CanonicalSize×CanonicalSize and converts to
// intensity values in [0,255], indexed [y][x].
func canonicalGray(img image.Image) [][]float64 {
	resized := image.NewRGBA(image.Rect(0, 0, CanonicalSize, CanonicalSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	gray := make([][]float64, CanonicalSize)
	for y := 0; y < CanonicalSize; y++ {
		gray[y] = make([]float64, CanonicalSize)
		for x := 0; x < CanonicalSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// ITU-R BT.601 luma.
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// appendQuadrantHistograms computes a HistogramBins-bin intensity histogram
// for each of the four equal quadrants. Each histogram is min-max normalized
// to [0,1] independently; a flat histogram maps to all zeros.
func appendQuadrantHistograms(vec Vector, gray [][]float64) Vector {
	half := CanonicalSize / 2
	regions := [quadrants][2]int{{0, 0}, {half, 0}, {0, half}, {half, half}}

	for _, origin := range regions {
		var hist [HistogramBins]float64
		for y := origin[1]; y < origin[1]+half; y++ {
			for x := origin[0]; x < origin[0]+half; x++ {
				bin := int(gray[y][x]) * HistogramBins / 256
				if bin >= HistogramBins {
					bin = HistogramBins - 1
				}
				hist[bin]++
			}
		}

		minV, maxV := hist[0], hist[0]
		for _, h := range hist[1:] {
			if h < minV {
				minV = h
			}
			if h > maxV {
				maxV = h
			}
		}
		for _, h := range hist {
			if maxV > minV {
				vec = append(vec, float32((h-minV)/(maxV-minV)))
			} else {
				vec = append(vec, 0)
			}
		}
	}
	return vec
}

// appendGradients scans the image on a GradientStride grid, skipping a
// one-pixel border, and appends four absolute gradient magnitudes per
// sample point: horizontal, vertical and both diagonals of the 3×3
// neighborhood, in scan order.
func appendGradients(vec Vector, gray [][]float64) Vector {
	for y := gradientBorder; y < CanonicalSize-gradientBorder; y += GradientStride {
		for x := gradientBorder; x < CanonicalSize-gradientBorder; x += GradientStride {
			dx := math.Abs(gray[y][x+1] - gray[y][x-1])
			dy := math.Abs(gray[y+1][x] - gray[y-1][x])
			d1 := math.Abs(gray[y+1][x+1] - gray[y-1][x-1])
			d2 := math.Abs(gray[y+1][x-1] - gray[y-1][x+1])
			vec = append(vec, float32(dx), float32(dy), float32(d1), float32(d2))
		}
	}
	return vec
}

// normalize performs L2 normalization in-place.
func normalize(v Vector) {
	norm := v.Norm()
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
}
