package attendance

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/your-org/attend/internal/classify"
	"github.com/your-org/attend/internal/feature"
	"github.com/your-org/attend/internal/imgutil"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/template"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeStore struct {
	identities map[string]models.Identity
	records    map[string]bool
	today      []models.AttendanceRecord

	writeCalls int
	failWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: make(map[string]models.Identity),
		records:    make(map[string]bool),
	}
}

func (s *fakeStore) RecordIfAbsent(_ context.Context, identityID, date string, _ time.Time) (bool, error) {
	s.writeCalls++
	if s.failWrites {
		return false, errors.New("store unavailable")
	}
	key := identityID + "|" + date
	if s.records[key] {
		return false, nil
	}
	s.records[key] = true
	return true, nil
}

func (s *fakeStore) LookupIdentity(_ context.Context, identityID string) (*models.Identity, error) {
	ident, ok := s.identities[identityID]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (s *fakeStore) TodayRecords(context.Context, string) ([]models.AttendanceRecord, error) {
	return s.today, nil
}

type fakeEvents struct {
	checkIns  []models.CheckInEvent
	strangers []models.StrangerEvent
}

func (e *fakeEvents) CheckInRecorded(evt models.CheckInEvent) {
	e.checkIns = append(e.checkIns, evt)
}

func (e *fakeEvents) StrangerDetected(evt models.StrangerEvent) {
	e.strangers = append(e.strangers, evt)
}

type fakeSnapshots struct {
	keys []string
}

func (s *fakeSnapshots) Put(_ context.Context, key string, _ []byte, _ string) error {
	s.keys = append(s.keys, key)
	return nil
}

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			g := uint8((x*3 + y*2) % 256)
			img.Set(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}

// matchingClassifier enrolls the frame's own face region so the pipeline
// recognizes it with distance zero.
func matchingClassifier(t *testing.T, frame image.Image, region image.Rectangle, id string) *classify.Classifier {
	t.Helper()

	crop := imgutil.CropRegion(frame, region)
	vec, err := feature.Extractor{}.Extract(crop)
	if err != nil {
		t.Fatalf("extract template: %v", err)
	}

	store := template.New()
	store.Append(id, vec)

	classifier, err := classify.New(store, 0.5)
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}
	return classifier
}

func strangerClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	classifier, err := classify.New(template.New(), 0.5)
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}
	return classifier
}

func TestProcessFrameRecordsAttendanceOnce(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	store.identities["7"] = models.Identity{ID: "7", Name: "Alice", Active: true}
	events := &fakeEvents{}

	m := NewMachine(Config{
		Classifier: matchingClassifier(t, frame, region, "7"),
		Store:      store,
		Events:     events,
		Cooldown:   time.Minute,
		Now:        clock.now,
	})

	_, count := m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if count != 1 {
		t.Fatalf("face count = %d; want 1", count)
	}
	if len(events.checkIns) != 1 {
		t.Fatalf("check-in events = %d; want 1", len(events.checkIns))
	}
	if evt := events.checkIns[0]; evt.IdentityID != "7" || evt.Name != "Alice" {
		t.Errorf("event = %+v; want identity 7 / Alice", evt)
	}

	// Same face a second later: the record already exists, nothing new.
	clock.advance(time.Second)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})

	if len(events.checkIns) != 1 {
		t.Errorf("check-in events = %d after repeat; want still 1", len(events.checkIns))
	}

	stats, err := m.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.AttendanceRecorded != 1 {
		t.Errorf("AttendanceRecorded = %d; want 1", stats.AttendanceRecorded)
	}
	if stats.Recognized != 2 {
		t.Errorf("Recognized = %d; want 2", stats.Recognized)
	}
	if stats.FramesWithFaces != 2 {
		t.Errorf("FramesWithFaces = %d; want 2", stats.FramesWithFaces)
	}
}

func TestProcessFrameRepeatLogCooldown(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	store := newFakeStore()
	store.identities["7"] = models.Identity{ID: "7", Name: "Alice", Active: true}
	events := &fakeEvents{}

	cooldown := time.Minute
	m := NewMachine(Config{
		Classifier: matchingClassifier(t, frame, region, "7"),
		Store:      store,
		Events:     events,
		Cooldown:   cooldown,
		Now:        clock.now,
	})

	// First sighting writes the record and stamps the ledger.
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if got := m.ledger["7"]; !got.Equal(start) {
		t.Fatalf("ledger[7] = %v; want %v", got, start)
	}

	// Half a cooldown later the repeat is suppressed: no ledger refresh.
	clock.advance(cooldown / 2)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if got := m.ledger["7"]; !got.Equal(start) {
		t.Errorf("ledger[7] = %v within cooldown; want unchanged %v", got, start)
	}

	// A full cooldown and a half after the first sighting the repeat log
	// fires again and refreshes the ledger.
	clock.advance(cooldown)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if want := start.Add(cooldown + cooldown/2); !m.ledger["7"].Equal(want) {
		t.Errorf("ledger[7] = %v after cooldown; want refreshed %v", m.ledger["7"], want)
	}

	// Only the very first sighting emitted a check-in event.
	if len(events.checkIns) != 1 {
		t.Errorf("check-in events = %d; want 1", len(events.checkIns))
	}
	if store.writeCalls != 3 {
		t.Errorf("writeCalls = %d; want one idempotent attempt per frame", store.writeCalls)
	}
}

func TestProcessFrameInactiveIdentity(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	store := newFakeStore()
	store.identities["7"] = models.Identity{ID: "7", Name: "Alice", Active: false}
	events := &fakeEvents{}

	m := NewMachine(Config{
		Classifier: matchingClassifier(t, frame, region, "7"),
		Store:      store,
		Events:     events,
		Cooldown:   time.Minute,
	})

	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})

	if store.writeCalls != 0 {
		t.Errorf("writeCalls = %d; inactive identities must not be recorded", store.writeCalls)
	}
	if len(events.checkIns) != 0 {
		t.Errorf("check-in events = %d; want 0", len(events.checkIns))
	}
}

func TestProcessFrameUnknownIdentityRow(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	// Template matches but the identity registry has no such row.
	store := newFakeStore()
	events := &fakeEvents{}

	m := NewMachine(Config{
		Classifier: matchingClassifier(t, frame, region, "7"),
		Store:      store,
		Events:     events,
		Cooldown:   time.Minute,
	})

	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})

	if store.writeCalls != 0 {
		t.Errorf("writeCalls = %d; want 0", store.writeCalls)
	}
}

func TestProcessFrameRetriesFailedWrite(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	store.identities["7"] = models.Identity{ID: "7", Name: "Alice", Active: true}
	store.failWrites = true
	events := &fakeEvents{}

	m := NewMachine(Config{
		Classifier: matchingClassifier(t, frame, region, "7"),
		Store:      store,
		Events:     events,
		Cooldown:   time.Minute,
		Now:        clock.now,
	})

	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.checkIns) != 0 {
		t.Fatalf("check-in events = %d after failed write; want 0", len(events.checkIns))
	}

	// The ledger was not updated, so the next frame retries and succeeds.
	store.failWrites = false
	clock.advance(time.Second)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})

	if len(events.checkIns) != 1 {
		t.Errorf("check-in events = %d after retry; want 1", len(events.checkIns))
	}
}

func TestProcessFrameStrangerThrottled(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	events := &fakeEvents{}
	snaps := &fakeSnapshots{}

	m := NewMachine(Config{
		Classifier: strangerClassifier(t),
		Store:      store,
		Events:     events,
		Snapshots:  snaps,
		Cooldown:   time.Minute,
		Now:        clock.now,
	})

	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.strangers) != 1 {
		t.Fatalf("stranger events = %d; want 1", len(events.strangers))
	}
	if len(snaps.keys) != 1 {
		t.Fatalf("snapshots = %d; want 1", len(snaps.keys))
	}
	if events.strangers[0].SnapshotKey != snaps.keys[0] {
		t.Errorf("SnapshotKey = %q; want %q", events.strangers[0].SnapshotKey, snaps.keys[0])
	}

	// Same region half a cooldown later: throttled.
	clock.advance(30 * time.Second)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.strangers) != 1 {
		t.Errorf("stranger events = %d within cooldown; want 1", len(events.strangers))
	}

	// A lingering stranger keeps being throttled: the ledger refreshes on
	// every observation, so 30s later it is still inside the window.
	clock.advance(30 * time.Second)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.strangers) != 1 {
		t.Errorf("stranger events = %d while lingering; want 1", len(events.strangers))
	}

	// A full cooldown after the last observation it alerts again.
	clock.advance(time.Minute)
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.strangers) != 2 {
		t.Errorf("stranger events = %d after cooldown; want 2", len(events.strangers))
	}
}

func TestProcessFrameNoRegions(t *testing.T) {
	store := newFakeStore()
	m := NewMachine(Config{
		Classifier: strangerClassifier(t),
		Store:      store,
		Cooldown:   time.Minute,
	})

	annotated, count := m.ProcessFrame(context.Background(), testFrame(), nil)
	if count != 0 {
		t.Errorf("face count = %d; want 0", count)
	}
	if annotated == nil {
		t.Error("annotated frame should never be nil")
	}

	stats, _ := m.Statistics(context.Background())
	if stats.FramesWithFaces != 0 {
		t.Errorf("FramesWithFaces = %d; want 0", stats.FramesWithFaces)
	}
}

func TestReset(t *testing.T) {
	frame := testFrame()
	region := frame.Bounds()

	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	events := &fakeEvents{}

	m := NewMachine(Config{
		Classifier: strangerClassifier(t),
		Store:      store,
		Events:     events,
		Cooldown:   time.Hour,
		Now:        clock.now,
	})

	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	m.Reset()

	stats, err := m.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Strangers != 0 || stats.FramesWithFaces != 0 {
		t.Errorf("stats = %+v; want zeroed session counters", stats)
	}

	// Reset also clears the cooldown ledger: the same stranger alerts
	// again immediately.
	m.ProcessFrame(context.Background(), frame, []image.Rectangle{region})
	if len(events.strangers) != 2 {
		t.Errorf("stranger events = %d after reset; want 2", len(events.strangers))
	}
}

func TestStatisticsMergesTodayRecords(t *testing.T) {
	store := newFakeStore()
	store.today = []models.AttendanceRecord{
		{IdentityID: "7", Date: "2026-03-02"},
		{IdentityID: "9", Date: "2026-03-02"},
		{IdentityID: "7", Date: "2026-03-02"},
	}

	m := NewMachine(Config{
		Classifier: strangerClassifier(t),
		Store:      store,
		Cooldown:   time.Minute,
	})

	stats, err := m.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TodayTotal != 3 {
		t.Errorf("TodayTotal = %d; want 3", stats.TodayTotal)
	}
	if stats.TodayUnique != 2 {
		t.Errorf("TodayUnique = %d; want 2", stats.TodayUnique)
	}
}

func TestStrangerKeyQuantization(t *testing.T) {
	tests := []struct {
		name string
		a    image.Rectangle
		b    image.Rectangle
		same bool
	}{
		{"identical", image.Rect(0, 0, 47, 47), image.Rect(0, 0, 47, 47), true},
		{"jitter within one cell", image.Rect(10, 10, 57, 57), image.Rect(40, 40, 87, 87), true},
		{"different cell", image.Rect(0, 0, 47, 47), image.Rect(48, 0, 95, 47), false},
		{"different size", image.Rect(0, 0, 47, 47), image.Rect(0, 0, 143, 143), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ka, kb := strangerKey(tc.a), strangerKey(tc.b)
			if (ka == kb) != tc.same {
				t.Errorf("strangerKey(%v) = %s, strangerKey(%v) = %s; same = %v, want %v",
					tc.a, ka, tc.b, kb, ka == kb, tc.same)
			}
		})
	}
}
