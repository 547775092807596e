package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/notify"
	"github.com/your-org/attend/internal/storage"
)

// SystemHandler serves health probes and the stranger-snapshot archive.
// Producer and snapshots may be nil when the deployment runs without
// NATS or object storage.
type SystemHandler struct {
	db        storage.Store
	producer  *notify.Producer
	snapshots *storage.SnapshotStore
}

func NewSystemHandler(db storage.Store, producer *notify.Producer, snapshots *storage.SnapshotStore) *SystemHandler {
	return &SystemHandler{db: db, producer: producer, snapshots: snapshots}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports per-dependency readiness. Disabled dependencies are
// reported but never fail the probe.
func (h *SystemHandler) Readyz(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if err := h.db.Ping(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if h.producer != nil {
		if err := h.producer.Ping(); err != nil {
			checks["nats"] = err.Error()
			ready = false
		} else {
			checks["nats"] = "ok"
		}
	} else {
		checks["nats"] = "disabled"
	}

	if h.snapshots != nil {
		if err := h.snapshots.Ping(c.Request.Context()); err != nil {
			checks["object_storage"] = err.Error()
			ready = false
		} else {
			checks["object_storage"] = "ok"
		}
	} else {
		checks["object_storage"] = "disabled"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

// Snapshot serves an archived stranger crop by object key.
func (h *SystemHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot archive disabled"})
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing snapshot key"})
		return
	}

	data, err := h.snapshots.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
