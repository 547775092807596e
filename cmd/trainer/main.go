package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/localize"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/train"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	datasetDir := flag.String("dataset", "", "dataset directory (overrides config)")
	resetIDs := flag.String("reset", "", "comma-separated identity ids to drop before training")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	dir := cfg.Training.DatasetDir
	if *datasetDir != "" {
		dir = *datasetDir
	}

	slog.Info("starting trainer",
		"dataset", dir, "templates", cfg.Recognition.TemplatesPath)

	localizer, err := localize.NewPigoLocalizer(cfg.Recognition.CascadePath, localize.DefaultPigoConfig())
	if err != nil {
		slog.Error("load face cascade", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Mirror templates into Postgres when a database is configured, so
	// reporting tools can query embeddings alongside attendance rows.
	var mirror train.TemplateMirror
	if cfg.Database.Enabled() {
		pg, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("ensure database schema", "error", err)
			os.Exit(1)
		}
		mirror = pg
	}

	trainer := train.New(localizer, cfg.Recognition.TemplatesPath, mirror)

	didReset := false
	if *resetIDs != "" {
		ids := strings.Split(*resetIDs, ",")
		if err := trainer.ResetIdentities(ctx, ids); err != nil {
			slog.Error("reset identities", "error", err)
			os.Exit(1)
		}
		didReset = true
	}

	report, err := trainer.Train(ctx, dir)
	if err != nil {
		if errors.Is(err, train.ErrNoFeatures) {
			if didReset {
				// A reset-only invocation with an empty dataset is fine.
				fmt.Println("no new samples trained")
				return
			}
			slog.Error("no usable features extracted from dataset", "dataset", dir)
		} else {
			slog.Error("training failed", "error", err)
		}
		os.Exit(1)
	}

	sort.Strings(report.Identities)
	fmt.Printf("trained %d identities from %d images (%d skipped), store now holds %d templates\n",
		len(report.Identities), report.Processed, report.Skipped, report.StoreSize)
	for _, id := range report.Identities {
		fmt.Printf("  %s\n", id)
	}
}
