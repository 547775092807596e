package handlers

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/imgutil"
	"github.com/your-org/attend/internal/localize"
	"github.com/your-org/attend/pkg/dto"
)

const annotatedQuality = 85

// FrameHandler feeds frames pushed by the UI layer through the
// recognition pipeline. The mutex serializes frame processing: the state
// machine is single-threaded by design, one frame fully processed before
// the next is accepted.
type FrameHandler struct {
	machine   *attendance.Machine
	localizer localize.Localizer
	mu        sync.Mutex
}

func NewFrameHandler(machine *attendance.Machine, localizer localize.Localizer) *FrameHandler {
	return &FrameHandler{machine: machine, localizer: localizer}
}

// Process accepts a frame (multipart field "frame" or raw body) and
// returns the annotated JPEG with an X-Face-Count header, or a JSON
// summary when format=json is requested.
func (h *FrameHandler) Process(c *gin.Context) {
	data, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frame, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "undecodable frame: " + err.Error()})
		return
	}

	regions, err := h.localizer.Detect(frame)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "face localization failed: " + err.Error()})
		return
	}

	h.mu.Lock()
	annotated, count := h.machine.ProcessFrame(c.Request.Context(), frame, regions)
	h.mu.Unlock()

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, dto.FrameResponse{FaceCount: count})
		return
	}

	c.Header("X-Face-Count", strconv.Itoa(count))
	c.Data(http.StatusOK, "image/jpeg", imgutil.EncodeJPEG(annotated, annotatedQuality))
}

// Stats returns the combined session/persisted statistics snapshot.
func (h *FrameHandler) Stats(c *gin.Context) {
	h.mu.Lock()
	stats, err := h.machine.Statistics(c.Request.Context())
	h.mu.Unlock()

	resp := dto.StatsResponse{
		FramesWithFaces:    stats.FramesWithFaces,
		Recognized:         stats.Recognized,
		AttendanceRecorded: stats.AttendanceRecorded,
		Strangers:          stats.Strangers,
		TodayTotal:         stats.TodayTotal,
		TodayUnique:        stats.TodayUnique,
		TodayAvailable:     err == nil,
	}
	c.JSON(http.StatusOK, resp)
}

// Reset clears the cooldown ledger and session counters.
func (h *FrameHandler) Reset(c *gin.Context) {
	h.mu.Lock()
	h.machine.Reset()
	h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func readFrame(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("frame"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}
