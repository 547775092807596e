package dto

type AttendanceRecordResponse struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	CheckIn    string `json:"check_in"`
	Status     string `json:"status"`
}

// TodayReportResponse splits active identities into those with and
// without an attendance record today.
type TodayReportResponse struct {
	Date    string                     `json:"date"`
	Present []AttendanceRecordResponse `json:"present"`
	Absent  []IdentityResponse         `json:"absent"`
}

type HistoryResponse struct {
	IdentityID string                     `json:"identity_id"`
	Records    []AttendanceRecordResponse `json:"records"`
	Total      int                        `json:"total"`
}

type StatsResponse struct {
	FramesWithFaces    int  `json:"frames_with_faces"`
	Recognized         int  `json:"recognized"`
	AttendanceRecorded int  `json:"attendance_recorded"`
	Strangers          int  `json:"strangers"`
	TodayTotal         int  `json:"today_total"`
	TodayUnique        int  `json:"today_unique"`
	TodayAvailable     bool `json:"today_available"`
}

// FrameResponse is returned by the frame endpoint when the caller asks
// for JSON instead of the annotated image.
type FrameResponse struct {
	FaceCount int `json:"face_count"`
}

// WSEvent wraps attendance events broadcast to UI clients.
type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
