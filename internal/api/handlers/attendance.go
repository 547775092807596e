package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/pkg/dto"
)

// AttendanceHandler serves report queries over persisted attendance.
type AttendanceHandler struct {
	db storage.Store
}

func NewAttendanceHandler(db storage.Store) *AttendanceHandler {
	return &AttendanceHandler{db: db}
}

// Today splits active identities into present (have a record for the
// requested date, today by default) and absent.
func (h *AttendanceHandler) Today(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	records, err := h.db.TodayRecords(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	identities, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	present := make(map[string]bool, len(records))
	resp := dto.TodayReportResponse{
		Date:    date,
		Present: make([]dto.AttendanceRecordResponse, 0, len(records)),
		Absent:  []dto.IdentityResponse{},
	}
	for _, rec := range records {
		present[rec.IdentityID] = true
		resp.Present = append(resp.Present, recordResponse(rec))
	}
	for i := range identities {
		if identities[i].Active && !present[identities[i].ID] {
			resp.Absent = append(resp.Absent, identityResponse(&identities[i]))
		}
	}

	c.JSON(http.StatusOK, resp)
}
