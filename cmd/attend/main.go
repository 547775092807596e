package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/attend/internal/api"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/classify"
	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/localize"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/notify"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/template"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance service", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when configured, in-memory otherwise.
	var db storage.Store
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
		db = pg
	} else {
		slog.Warn("no database configured — attendance records will not survive restarts")
		db = storage.NewMemoryStore()
	}

	// Object storage for stranger snapshots (optional).
	var snapshots *storage.SnapshotStore
	if cfg.MinIO.Endpoint != "" {
		snapshots, err = storage.NewSnapshotStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := snapshots.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
	}

	// NATS for downstream attendance-event consumers (optional).
	var producer *notify.Producer
	if cfg.NATS.URL != "" {
		producer, err = notify.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		if err := producer.EnsureStream(ctx); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
	}

	// Recognition core.
	store, err := template.Load(cfg.Recognition.TemplatesPath)
	if err != nil {
		if errors.Is(err, template.ErrSchemaMismatch) {
			slog.Error("template store schema mismatch — re-run the trainer", "path", cfg.Recognition.TemplatesPath)
		} else {
			slog.Error("load template store", "error", err)
		}
		os.Exit(1)
	}
	if store.Empty() {
		slog.Warn("template store is empty — every face will classify as stranger",
			"path", cfg.Recognition.TemplatesPath)
	} else {
		slog.Info("loaded template store",
			"identities", len(store.Identities()), "templates", store.Size())
	}

	classifier, err := classify.New(store, cfg.Recognition.StrangerThreshold)
	if err != nil {
		slog.Error("build classifier", "error", err)
		os.Exit(1)
	}

	localizer, err := localize.NewPigoLocalizer(cfg.Recognition.CascadePath, localize.DefaultPigoConfig())
	if err != nil {
		slog.Error("load face cascade", "error", err)
		os.Exit(1)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	var events attendance.EventSink = hub
	if producer != nil {
		events = &fanoutSink{hub: hub, producer: producer}
	}

	var snapSink attendance.SnapshotSink
	if snapshots != nil && cfg.Attendance.SnapshotStrangers {
		snapSink = snapshots
	}

	machine := attendance.NewMachine(attendance.Config{
		Classifier: classifier,
		Store:      db,
		Events:     events,
		Snapshots:  snapSink,
		Cooldown:   cfg.Attendance.Cooldown,
	})

	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		Producer:  producer,
		Snapshots: snapshots,
		Hub:       hub,
		Machine:   machine,
		Localizer: localizer,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// fanoutSink delivers attendance events to both WebSocket clients and
// the NATS stream. Publish failures are logged, never propagated: event
// delivery must not block or fail the frame loop.
type fanoutSink struct {
	hub      *ws.Hub
	producer *notify.Producer
}

func (s *fanoutSink) CheckInRecorded(evt models.CheckInEvent) {
	s.hub.CheckInRecorded(evt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.producer.PublishCheckIn(ctx, evt); err != nil {
		slog.Error("publish check-in event", "identity", evt.IdentityID, "error", err)
	}
}

func (s *fanoutSink) StrangerDetected(evt models.StrangerEvent) {
	s.hub.StrangerDetected(evt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.producer.PublishStranger(ctx, evt); err != nil {
		slog.Error("publish stranger event", "subject", evt.SubjectKey, "error", err)
	}
}
