// Package localize supplies face bounding boxes. The core consumes
// rectangular regions and never depends on how they were found.
package localize

import "image"

// Localizer finds face regions in a frame. Zero or more regions may be
// returned per frame; no ordering is guaranteed.
type Localizer interface {
	Detect(frame image.Image) ([]image.Rectangle, error)
}
