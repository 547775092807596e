package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/auth"
	"github.com/your-org/attend/internal/localize"
	"github.com/your-org/attend/internal/notify"
	"github.com/your-org/attend/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        storage.Store
	Producer  *notify.Producer
	Snapshots *storage.SnapshotStore
	Hub       *ws.Hub
	Machine   *attendance.Machine
	Localizer localize.Localizer
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Producer, cfg.Snapshots)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Recognition pipeline
	frameH := handlers.NewFrameHandler(cfg.Machine, cfg.Localizer)
	v1.POST("/frames", frameH.Process)
	v1.GET("/attendance/stats", frameH.Stats)
	v1.POST("/attendance/reset", frameH.Reset)

	// Attendance reports
	attH := handlers.NewAttendanceHandler(cfg.DB)
	v1.GET("/attendance/today", attH.Today)

	// Identities
	identH := handlers.NewIdentityHandler(cfg.DB)
	v1.POST("/identities", identH.Create)
	v1.GET("/identities", identH.List)
	v1.GET("/identities/:id", identH.Get)
	v1.POST("/identities/:id/deactivate", identH.Deactivate)
	v1.POST("/identities/:id/reactivate", identH.Reactivate)
	v1.GET("/identities/:id/attendance", identH.History)

	// Stranger snapshot archive
	v1.GET("/snapshots/*key", systemH.Snapshot)

	return r
}
