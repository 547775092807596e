package localize

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoConfig tunes the cascade detector.
type PigoConfig struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	IoUThresh   float64
	MinQuality  float32
}

// DefaultPigoConfig returns detection parameters that work for webcam
// frames around 640px wide.
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:     40,
		MaxSize:     800,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoUThresh:   0.2,
		MinQuality:  5.0,
	}
}

// PigoLocalizer detects faces with a pixel-intensity-comparison cascade.
type PigoLocalizer struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
}

// NewPigoLocalizer loads a binary cascade file and returns a ready
// localizer.
func NewPigoLocalizer(cascadePath string, cfg PigoConfig) (*PigoLocalizer, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &PigoLocalizer{classifier: classifier, cfg: cfg}, nil
}

// Detect runs the cascade over the frame and returns clustered face
// regions in frame coordinates.
func (l *PigoLocalizer) Detect(frame image.Image) ([]image.Rectangle, error) {
	src := pigo.ImgToNRGBA(frame)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	params := pigo.CascadeParams{
		MinSize:     l.cfg.MinSize,
		MaxSize:     l.cfg.MaxSize,
		ShiftFactor: l.cfg.ShiftFactor,
		ScaleFactor: l.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, l.cfg.IoUThresh)

	regions := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < l.cfg.MinQuality {
			continue
		}
		r := image.Rect(
			det.Col-det.Scale/2,
			det.Row-det.Scale/2,
			det.Col+det.Scale/2,
			det.Row+det.Scale/2,
		).Intersect(frame.Bounds())
		if r.Empty() {
			continue
		}
		regions = append(regions, r)
	}
	return regions, nil
}
