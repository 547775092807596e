package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/pkg/dto"
)

const defaultHistoryLimit = 100

// IdentityHandler manages the enrolled-identity registry.
type IdentityHandler struct {
	db storage.Store
}

func NewIdentityHandler(db storage.Store) *IdentityHandler {
	return &IdentityHandler{db: db}
}

func (h *IdentityHandler) Create(c *gin.Context) {
	var req dto.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident := &models.Identity{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.db.CreateIdentity(c.Request.Context(), ident); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, identityResponse(ident))
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.IdentityListResponse{
		Identities: make([]dto.IdentityResponse, 0, len(identities)),
		Total:      len(identities),
	}
	for i := range identities {
		resp.Identities = append(resp.Identities, identityResponse(&identities[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *IdentityHandler) Get(c *gin.Context) {
	ident, err := h.db.LookupIdentity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}
	c.JSON(http.StatusOK, identityResponse(ident))
}

func (h *IdentityHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *IdentityHandler) Reactivate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *IdentityHandler) setActive(c *gin.Context, active bool) {
	found, err := h.db.SetIdentityActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": active})
}

// History returns attendance records for one identity, newest first.
// Optional query params: from, to (calendar dates) and limit.
func (h *IdentityHandler) History(c *gin.Context) {
	id := c.Param("id")

	ident, err := h.db.LookupIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.db.History(c.Request.Context(), id, c.Query("from"), c.Query("to"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.HistoryResponse{
		IdentityID: id,
		Records:    make([]dto.AttendanceRecordResponse, 0, len(records)),
		Total:      len(records),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, recordResponse(rec))
	}
	c.JSON(http.StatusOK, resp)
}

func identityResponse(ident *models.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		Email:     ident.Email,
		Phone:     ident.Phone,
		Active:    ident.Active,
		CreatedAt: ident.CreatedAt.Format(time.RFC3339),
	}
}

func recordResponse(rec models.AttendanceRecord) dto.AttendanceRecordResponse {
	return dto.AttendanceRecordResponse{
		IdentityID: rec.IdentityID,
		Name:       rec.Name,
		Date:       rec.Date,
		CheckIn:    rec.CheckIn.Format(time.RFC3339),
		Status:     string(rec.Status),
	}
}
