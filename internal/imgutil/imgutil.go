// Package imgutil has small image helpers shared by training and the
// recognition pipeline.
package imgutil

import (
	"bytes"
	"image"
	"image/jpeg"
)

// CropRegion extracts a region from the image, clamped to its bounds.
// Returns nil for an empty intersection.
func CropRegion(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			crop.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return crop
}

// EncodeJPEG encodes an image as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}
