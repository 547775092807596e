package feature

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestDimConstants(t *testing.T) {
	// 4 quadrant histograms of 16 bins plus a 25x25 grid of 4 gradient
	// magnitudes each.
	if gradientSamples != 25 {
		t.Errorf("gradientSamples = %d; want 25", gradientSamples)
	}
	if Dim != 2564 {
		t.Errorf("Dim = %d; want 2564", Dim)
	}
}

func TestExtractDimensionAndNorm(t *testing.T) {
	img := gradientImage(80, 120)

	vec, err := Extractor{}.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(vec) != Dim {
		t.Fatalf("len(vec) = %d; want %d", len(vec), Dim)
	}

	norm := vec.Norm()
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("norm = %f; want 1.0", norm)
	}
}

func TestExtractDeterministic(t *testing.T) {
	img := gradientImage(100, 100)

	a, err := Extractor{}.Extract(img)
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	b, err := Extractor{}.Extract(img)
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestExtractDistinguishesImages(t *testing.T) {
	a, err := Extractor{}.Extract(gradientImage(100, 100))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := Extractor{}.Extract(checkerImage(100, 100))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// Normalized vectors of different images should not be collinear.
	if dot := a.Dot(b); dot > 0.999 {
		t.Errorf("dot = %f; distinct images should produce distinct descriptors", dot)
	}
}

func TestExtractDegenerateCrop(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil image", nil},
		{"zero-size image", image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (Extractor{}).Extract(tc.img); err != ErrDegenerateCrop {
				t.Errorf("Extract = %v; want ErrDegenerateCrop", err)
			}
		})
	}
}

func TestExtractSolidColor(t *testing.T) {
	// A flat image has flat histograms and zero gradients; the vector
	// stays all-zero rather than dividing by a zero norm.
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	vec, err := Extractor{}.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(vec) != Dim {
		t.Fatalf("len(vec) = %d; want %d", len(vec), Dim)
	}
	for i, x := range vec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			t.Fatalf("vec[%d] = %f; want finite", i, x)
		}
	}
}

func TestVectorDot(t *testing.T) {
	tests := []struct {
		name     string
		a        Vector
		b        Vector
		expected float64
	}{
		{"identical unit", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Dot(tc.b); math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("Dot = %f; want %f", got, tc.expected)
			}
		})
	}
}

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}

func checkerImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}
