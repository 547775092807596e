// Package attendance turns per-frame recognition results into idempotent
// attendance records, throttled logs and UI-facing annotations.
package attendance

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/your-org/attend/internal/classify"
	"github.com/your-org/attend/internal/feature"
	"github.com/your-org/attend/internal/imgutil"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
)

// strangerGrid quantizes region geometry into the synthetic subject key.
// The key is a cheap throttling heuristic, not a tracking identity: a
// moving stranger re-alerts per grid cell and two strangers in one cell
// are merged.
const strangerGrid = 48

const snapshotQuality = 85

// Recorder is the persistence contract the state machine relies on. The
// at-most-one-record-per-identity-per-day invariant is enforced there,
// not re-verified here.
type Recorder interface {
	RecordIfAbsent(ctx context.Context, identityID, date string, checkIn time.Time) (bool, error)
	LookupIdentity(ctx context.Context, identityID string) (*models.Identity, error)
	TodayRecords(ctx context.Context, date string) ([]models.AttendanceRecord, error)
}

// EventSink receives attendance events for UI consumers. Optional.
type EventSink interface {
	CheckInRecorded(evt models.CheckInEvent)
	StrangerDetected(evt models.StrangerEvent)
}

// SnapshotSink archives stranger crops. Optional.
type SnapshotSink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Stats is a statistics snapshot. Session counters cover this process's
// lifetime since the last Reset; the Today values come from the
// persistence layer and survive restarts, so the two can differ.
type Stats struct {
	FramesWithFaces    int `json:"frames_with_faces"`
	Recognized         int `json:"recognized"`
	AttendanceRecorded int `json:"attendance_recorded"`
	Strangers          int `json:"strangers"`
	TodayTotal         int `json:"today_total"`
	TodayUnique        int `json:"today_unique"`
}

// Config wires a Machine. Classifier and Store are required; Events and
// Snapshots may be nil. Now defaults to time.Now.
type Config struct {
	Classifier *classify.Classifier
	Store      Recorder
	Events     EventSink
	Snapshots  SnapshotSink
	Cooldown   time.Duration
	Now        func() time.Time
}

// Machine is the per-frame attendance state machine. It is exclusively
// owned by the frame loop: one frame is fully processed before the next
// is accepted, and no state is shared across goroutines.
type Machine struct {
	extractor  feature.Extractor
	classifier *classify.Classifier
	store      Recorder
	events     EventSink
	snapshots  SnapshotSink
	cooldown   time.Duration
	now        func() time.Time

	// ledger maps subject keys (identity ids or synthetic stranger
	// keys) to the last event timestamp. In-memory only; a restart
	// forgets all cooldowns.
	ledger   map[string]time.Time
	counters struct {
		framesWithFaces    int
		recognized         int
		attendanceRecorded int
		strangers          int
	}
}

func NewMachine(cfg Config) *Machine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		classifier: cfg.Classifier,
		store:      cfg.Store,
		events:     cfg.Events,
		snapshots:  cfg.Snapshots,
		cooldown:   cfg.Cooldown,
		now:        now,
		ledger:     make(map[string]time.Time),
	}
}

// ProcessFrame runs the recognition pipeline over one frame's detected
// regions and returns the annotated frame plus the number of detected
// regions (not recognized identities). Per-face failures are logged and
// skipped; a failed persistence write leaves the ledger untouched so the
// write is retried on the next frame.
func (m *Machine) ProcessFrame(ctx context.Context, frame image.Image, regions []image.Rectangle) (image.Image, int) {
	observability.FramesProcessed.Inc()

	annotated := cloneFrame(frame)
	if len(regions) == 0 {
		return annotated, 0
	}

	m.counters.framesWithFaces++
	observability.FacesDetected.Add(float64(len(regions)))

	for _, region := range regions {
		crop := imgutil.CropRegion(frame, region)
		if crop == nil {
			slog.Warn("degenerate face region", "region", region.String())
			continue
		}

		start := m.now()
		vec, err := m.extractor.Extract(crop)
		observability.StageDuration.WithLabelValues("extract").Observe(m.now().Sub(start).Seconds())
		if err != nil {
			slog.Warn("feature extraction failed", "region", region.String(), "error", err)
			continue
		}

		start = m.now()
		result, err := m.classifier.Classify(vec)
		observability.StageDuration.WithLabelValues("classify").Observe(m.now().Sub(start).Seconds())
		if err != nil {
			slog.Error("classification failed", "error", err)
			continue
		}

		if result.Known {
			m.handleKnown(ctx, annotated, region, result, crop)
		} else {
			m.handleStranger(ctx, annotated, region, result, crop)
		}
	}

	return annotated, len(regions)
}

func (m *Machine) handleKnown(ctx context.Context, annotated *image.RGBA, region image.Rectangle, result classify.Result, crop image.Image) {
	m.counters.recognized++
	observability.FacesRecognized.Inc()

	ident, err := m.store.LookupIdentity(ctx, result.IdentityID)
	if err != nil {
		slog.Error("identity lookup failed", "identity", result.IdentityID, "error", err)
		drawKnown(annotated, region, fmt.Sprintf("%s (%.1f)", result.IdentityID, result.Confidence))
		return
	}

	// Matched a template but the identity store has no (active) row:
	// annotate only, no attendance write, no ledger update.
	if ident == nil {
		drawKnown(annotated, region, fmt.Sprintf("Unknown ID %s (%.1f)", result.IdentityID, result.Confidence))
		return
	}
	if !ident.Active {
		drawKnown(annotated, region, fmt.Sprintf("%s (Inactive)", ident.Name))
		return
	}

	now := m.now()
	date := now.Format(models.DateLayout)

	created, err := m.store.RecordIfAbsent(ctx, ident.ID, date, now)
	if err != nil {
		// Retryable on the next frame; the ledger is only updated
		// after a successful write.
		slog.Error("attendance write failed", "identity", ident.ID, "error", err)
		drawKnown(annotated, region, fmt.Sprintf("%s (%.1f)", ident.Name, result.Confidence))
		return
	}

	if created {
		m.ledger[ident.ID] = now
		m.counters.attendanceRecorded++
		observability.AttendanceRecorded.Inc()
		slog.Info("attendance recorded",
			"identity", ident.ID,
			"name", ident.Name,
			"confidence", fmt.Sprintf("%.1f", result.Confidence),
		)
		if m.events != nil {
			m.events.CheckInRecorded(models.CheckInEvent{
				IdentityID: ident.ID,
				Name:       ident.Name,
				Date:       date,
				Timestamp:  now,
				Confidence: result.Confidence,
			})
		}
	} else if last, ok := m.ledger[ident.ID]; !ok || now.Sub(last) >= m.cooldown {
		// Already checked in today. Log at most once per cooldown
		// interval so an idle subject in front of the camera doesn't
		// flood the log on every frame.
		slog.Info("already checked in today", "identity", ident.ID, "name", ident.Name)
		m.ledger[ident.ID] = now
	}

	drawKnown(annotated, region, fmt.Sprintf("%s (%.1f)", ident.Name, result.Confidence))
}

func (m *Machine) handleStranger(ctx context.Context, annotated *image.RGBA, region image.Rectangle, result classify.Result, crop image.Image) {
	key := strangerKey(region)
	now := m.now()

	last, seen := m.ledger[key]
	if !seen || now.Sub(last) >= m.cooldown {
		m.counters.strangers++
		observability.StrangersDetected.Inc()

		evt := models.StrangerEvent{
			SubjectKey: key,
			X:          region.Min.X,
			Y:          region.Min.Y,
			Width:      region.Dx(),
			Height:     region.Dy(),
			Confidence: result.Confidence,
			Timestamp:  now,
		}

		if m.snapshots != nil {
			snapKey := fmt.Sprintf("strangers/%s.jpg", now.Format("20060102_150405.000"))
			if err := m.snapshots.Put(ctx, snapKey, imgutil.EncodeJPEG(crop, snapshotQuality), "image/jpeg"); err != nil {
				slog.Warn("archive stranger snapshot", "error", err)
			} else {
				evt.SnapshotKey = snapKey
			}
		}

		slog.Warn("stranger detected",
			"subject", key,
			"confidence", fmt.Sprintf("%.1f", result.Confidence),
		)
		if m.events != nil {
			m.events.StrangerDetected(evt)
		}
	}
	// The ledger is refreshed on every observation so a lingering
	// stranger keeps being throttled.
	m.ledger[key] = now

	drawStranger(annotated, region, fmt.Sprintf("Unknown (%.1f)", result.Confidence))
}

// Reset clears the cooldown ledger and session counters, for day
// rollover or explicit operator action.
func (m *Machine) Reset() {
	m.ledger = make(map[string]time.Time)
	m.counters.framesWithFaces = 0
	m.counters.recognized = 0
	m.counters.attendanceRecorded = 0
	m.counters.strangers = 0
	slog.Info("attendance state reset")
}

// Statistics combines session counters with the persistence layer's view
// of today. The persisted numbers can exceed the session ones after a
// mid-day restart. A failed today-query still returns the session part.
func (m *Machine) Statistics(ctx context.Context) (Stats, error) {
	stats := Stats{
		FramesWithFaces:    m.counters.framesWithFaces,
		Recognized:         m.counters.recognized,
		AttendanceRecorded: m.counters.attendanceRecorded,
		Strangers:          m.counters.strangers,
	}

	records, err := m.store.TodayRecords(ctx, m.now().Format(models.DateLayout))
	if err != nil {
		return stats, fmt.Errorf("query today records: %w", err)
	}

	unique := make(map[string]bool, len(records))
	for _, rec := range records {
		unique[rec.IdentityID] = true
	}
	stats.TodayTotal = len(records)
	stats.TodayUnique = len(unique)
	return stats, nil
}

func strangerKey(r image.Rectangle) string {
	return fmt.Sprintf("stranger/%d_%d_%d_%d",
		r.Min.X/strangerGrid,
		r.Min.Y/strangerGrid,
		r.Dx()/strangerGrid,
		r.Dy()/strangerGrid,
	)
}
