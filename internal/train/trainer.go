// Package train builds the template store from a directory of labeled
// face images.
package train

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/your-org/attend/internal/feature"
	"github.com/your-org/attend/internal/imgutil"
	"github.com/your-org/attend/internal/localize"
	"github.com/your-org/attend/internal/template"
)

// ErrNoFeatures means an entire batch produced zero feature vectors. The
// previous template store is left untouched in that case; an empty result
// must never overwrite a valid one.
var ErrNoFeatures = errors.New("train: no features extracted from batch")

// TemplateMirror receives a copy of each identity's templates after a
// successful run (the Postgres/pgvector mirror). Optional.
type TemplateMirror interface {
	ReplaceTemplates(ctx context.Context, identityID string, vectors []feature.Vector) error
}

// Report summarizes one training run.
type Report struct {
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	Identities []string `json:"identities"`
	StoreSize  int      `json:"store_size"`
}

// Trainer extracts features from labeled dataset images and merges them
// into the persisted template store. Successfully consumed source images
// are deleted after the store has been replaced atomically.
type Trainer struct {
	localizer localize.Localizer
	extractor feature.Extractor

	templatesPath string
	mirror        TemplateMirror
}

func New(localizer localize.Localizer, templatesPath string, mirror TemplateMirror) *Trainer {
	return &Trainer{
		localizer:     localizer,
		templatesPath: templatesPath,
		mirror:        mirror,
	}
}

// Train processes every labeled image under datasetDir. Images expect the
// original dataset naming `<prefix>.<identity-id>.<seq>.<ext>`; anything
// else is skipped with a warning. Each image must contain exactly one
// face. Training is additive across runs: new samples merge with the
// previously persisted store. Per-image failures are warnings; a batch
// that yields zero features is ErrNoFeatures and leaves the prior store
// untouched.
func (t *Trainer) Train(ctx context.Context, datasetDir string) (*Report, error) {
	store, err := t.loadStore()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(datasetDir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	report := &Report{}
	var consumed []string
	trained := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(datasetDir, entry.Name())

		id, ok := parseLabel(entry.Name())
		if !ok {
			slog.Warn("skipping unlabeled dataset file", "file", entry.Name())
			report.Skipped++
			continue
		}

		vec, err := t.extractOne(path)
		if err != nil {
			slog.Warn("skipping dataset image", "file", entry.Name(), "error", err)
			report.Skipped++
			continue
		}

		store.Append(id, vec)
		trained[id] = true
		consumed = append(consumed, path)
		report.Processed++
	}

	if report.Processed == 0 {
		return nil, ErrNoFeatures
	}

	if err := store.Save(t.templatesPath); err != nil {
		return nil, fmt.Errorf("persist templates: %w", err)
	}

	// Source images are removed only now, after the merged store is
	// durable. Failed images stay on disk for retry.
	for _, path := range consumed {
		if err := os.Remove(path); err != nil {
			slog.Warn("remove consumed dataset image", "file", path, "error", err)
		}
	}

	if t.mirror != nil {
		for id := range trained {
			if err := t.mirror.ReplaceTemplates(ctx, id, store.Samples(id)); err != nil {
				slog.Warn("mirror templates", "identity", id, "error", err)
			}
		}
	}

	for id := range trained {
		report.Identities = append(report.Identities, id)
	}
	report.StoreSize = store.Size()

	slog.Info("training complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"identities", len(report.Identities),
		"store_size", report.StoreSize,
	)
	return report, nil
}

// ResetIdentities drops all enrolled samples for the given ids and
// persists the store, for deliberate re-enrollment. The pgvector mirror
// is cleared alongside so no stale embeddings survive until the next
// training run. Unknown ids are no-ops.
func (t *Trainer) ResetIdentities(ctx context.Context, ids []string) error {
	store, err := t.loadStore()
	if err != nil {
		return err
	}
	for _, id := range ids {
		store.ResetIdentity(id)
		slog.Info("reset identity templates", "identity", id)
	}
	if err := store.Save(t.templatesPath); err != nil {
		return fmt.Errorf("persist templates: %w", err)
	}
	if t.mirror != nil {
		for _, id := range ids {
			if err := t.mirror.ReplaceTemplates(ctx, id, nil); err != nil {
				slog.Warn("clear mirrored templates", "identity", id, "error", err)
			}
		}
	}
	return nil
}

// loadStore loads the existing template blob. A schema mismatch means the
// old store was built by an incompatible extractor version; retraining
// rebuilds it from scratch.
func (t *Trainer) loadStore() (*template.Store, error) {
	store, err := template.Load(t.templatesPath)
	if err != nil {
		if errors.Is(err, template.ErrSchemaMismatch) {
			slog.Warn("template store schema mismatch, rebuilding", "path", t.templatesPath)
			return template.New(), nil
		}
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return store, nil
}

func (t *Trainer) extractOne(path string) (feature.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	regions, err := t.localizer.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("localize face: %w", err)
	}
	if len(regions) != 1 {
		return nil, fmt.Errorf("expected exactly one face, found %d", len(regions))
	}

	crop := imgutil.CropRegion(img, regions[0])
	if crop == nil {
		return nil, feature.ErrDegenerateCrop
	}

	vec, err := t.extractor.Extract(crop)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	return vec, nil
}

// parseLabel extracts the identity id from a dataset file name of the
// form `<prefix>.<identity-id>.<seq>.<ext>`, e.g. user.7.12.jpg.
func parseLabel(name string) (string, bool) {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return "", false
	}
	id := parts[1]
	if id == "" {
		return "", false
	}
	return id, true
}
