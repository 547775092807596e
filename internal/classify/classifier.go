// Package classify matches feature vectors against enrolled templates.
package classify

import (
	"errors"
	"fmt"

	"github.com/your-org/attend/internal/feature"
	"github.com/your-org/attend/internal/template"
)

// ErrDimensionMismatch means a vector's length disagrees with the
// extractor schema. This indicates templates from an incompatible
// extractor version and is fatal configuration, not per-frame noise.
var ErrDimensionMismatch = errors.New("classify: vector dimension mismatch")

// Result is the outcome of classifying one face descriptor.
type Result struct {
	IdentityID string  `json:"identity_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
	Known      bool    `json:"known"`
}

// Classifier is a nearest-template matcher over a flattened, immutable
// index. Updating templates requires building a new Classifier.
type Classifier struct {
	entries   []template.Entry
	threshold float64
}

// New builds a classifier from a template store. Every stored vector is
// validated against the extractor dimensionality up front so an
// incompatible store fails at startup rather than per frame.
// threshold is the stranger cutoff on cosine distance; lower is stricter.
func New(store *template.Store, threshold float64) (*Classifier, error) {
	entries := store.Flatten()
	for _, e := range entries {
		if len(e.Vector) != feature.Dim {
			return nil, fmt.Errorf("%w: identity %q has a %d-dim template, extractor produces %d (retrain required)",
				ErrDimensionMismatch, e.ID, len(e.Vector), feature.Dim)
		}
	}
	return &Classifier{entries: entries, threshold: threshold}, nil
}

// Classify finds the nearest template under cosine distance. Vectors are
// L2-normalized, so distance is 1 minus the dot product. Ties keep the
// earlier index entry. An empty index always reports a stranger.
func (c *Classifier) Classify(vec feature.Vector) (Result, error) {
	if len(vec) != feature.Dim {
		return Result{}, fmt.Errorf("%w: query has %d dims, want %d", ErrDimensionMismatch, len(vec), feature.Dim)
	}
	if len(c.entries) == 0 {
		return Result{Known: false}, nil
	}

	bestID := c.entries[0].ID
	bestDist := cosineDistance(vec, c.entries[0].Vector)
	for _, e := range c.entries[1:] {
		if d := cosineDistance(vec, e.Vector); d < bestDist {
			bestDist = d
			bestID = e.ID
		}
	}

	confidence := (1 - bestDist) * 100
	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}

	if bestDist < c.threshold {
		return Result{IdentityID: bestID, Confidence: confidence, Distance: bestDist, Known: true}, nil
	}
	return Result{Confidence: confidence, Distance: bestDist, Known: false}, nil
}

// Size returns the number of indexed templates.
func (c *Classifier) Size() int {
	return len(c.entries)
}

func cosineDistance(a, b feature.Vector) float64 {
	d := 1 - a.Dot(b)
	if d < 0 {
		return 0
	}
	return d
}
