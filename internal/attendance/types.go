package attendance

import (
	"fmt"
	"time"
)

// Status is one student's state within a session.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// SessionType selects what the coordinator extracts from the photo.
type SessionType string

const (
	TypeFace        SessionType = "FACE"
	TypeEmotion     SessionType = "EMOTION"
	TypeFaceEmotion SessionType = "FACE_EMOTION"
	TypeManual      SessionType = "MANUAL"
)

// ParseSessionType validates a session type string.
func ParseSessionType(s string) (SessionType, error) {
	switch SessionType(s) {
	case TypeFace, TypeEmotion, TypeFaceEmotion, TypeManual:
		return SessionType(s), nil
	}
	return "", fmt.Errorf("invalid session type %q", s)
}

// Analyzes reports whether sessions of this type run attribute analysis.
func (t SessionType) Analyzes() bool {
	return t == TypeEmotion || t == TypeFaceEmotion
}

// Session is one attendance-taking event for a course/date/lesson. It
// owns its Detail children as a single logical unit even though the
// store persists them in a separate collection.
type Session struct {
	ID                   int            `json:"id"`
	CourseID             int            `json:"course_id"`
	Date                 string         `json:"date"`
	LessonNumber         int            `json:"lesson_number"`
	Type                 SessionType    `json:"type"`
	PhotoPath            string         `json:"photo_path,omitempty"`
	TotalStudents        int            `json:"total_students"`
	RecognizedStudents   int            `json:"recognized_students"`
	UnrecognizedStudents int            `json:"unrecognized_students"`
	EmotionStatistics    map[string]int `json:"emotion_statistics,omitempty"`
	CreatedBy            int            `json:"created_by"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (s Session) EntityID() int { return s.ID }

// Detail is one student's status record within a session. Exactly one
// exists per (session, student) pair; analysis fields stay nil unless
// the student was matched in an analyzing session.
type Detail struct {
	ID              int       `json:"id"`
	AttendanceID    int       `json:"attendance_id"`
	StudentID       int       `json:"student_id"`
	Status          Status    `json:"status"`
	Confidence      *float64  `json:"confidence,omitempty"`
	Emotion         *string   `json:"emotion,omitempty"`
	EstimatedAge    *int      `json:"estimated_age,omitempty"`
	EstimatedGender *string   `json:"estimated_gender,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (d Detail) EntityID() int { return d.ID }

// EmotionRecord is one per-student emotion observation appended by the
// worker after a session commits.
type EmotionRecord struct {
	ID           int       `json:"id"`
	AttendanceID int       `json:"attendance_id"`
	StudentID    int       `json:"student_id"`
	CourseID     int       `json:"course_id"`
	Emotion      string    `json:"emotion"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e EmotionRecord) EntityID() int { return e.ID }

// StudentResult is one student's outcome in a creation summary.
type StudentResult struct {
	StudentID       int      `json:"student_id"`
	Status          Status   `json:"status"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Emotion         *string  `json:"emotion,omitempty"`
	EstimatedAge    *int     `json:"estimated_age,omitempty"`
	EstimatedGender *string  `json:"estimated_gender,omitempty"`
}

// Summary is the attendance-creation result returned to the caller.
type Summary struct {
	SessionID         int             `json:"session_id"`
	RecognizedCount   int             `json:"recognized_count"`
	UnrecognizedCount int             `json:"unrecognized_count"`
	TotalStudents     int             `json:"total_students"`
	EmotionStatistics map[string]int  `json:"emotion_statistics,omitempty"`
	PhotoPath         string          `json:"photo_path,omitempty"`
	Results           []StudentResult `json:"results"`
}

// StudentInfo is the basic identity embedded in responses.
type StudentInfo struct {
	ID            int    `json:"id"`
	StudentNumber string `json:"student_number"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
}

// CourseInfo is the basic course identity embedded in responses.
type CourseInfo struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// DetailWithStudent pairs a detail with its student's identity.
type DetailWithStudent struct {
	Detail
	Student *StudentInfo `json:"student,omitempty"`
}

// SessionDetails is a session together with all of its details.
type SessionDetails struct {
	Session
	Details []DetailWithStudent `json:"details"`
}

// HistoryEntry is one detail annotated with its session's date/lesson.
type HistoryEntry struct {
	Detail
	Date         string `json:"date"`
	LessonNumber int    `json:"lesson_number"`
}

// History is one student's attendance record within a course.
type History struct {
	Course  CourseInfo     `json:"course_info"`
	Student StudentInfo    `json:"student_info"`
	Entries []HistoryEntry `json:"attendance_details"`
}

// ReportRow is one student's attendance rate within a course report.
type ReportRow struct {
	Student         StudentInfo `json:"student"`
	TotalSessions   int         `json:"total_sessions"`
	PresentSessions int         `json:"present_sessions"`
	AttendanceRate  *float64    `json:"attendance_rate,omitempty"`
}

// Report aggregates attendance rates for every enrolled student.
type Report struct {
	Course   CourseInfo  `json:"course_info"`
	Sessions int         `json:"total_sessions"`
	Rows     []ReportRow `json:"students"`
}

// SessionCommitted is the event payload published after a successful
// creation, consumed by the emotion-history worker.
type SessionCommitted struct {
	SessionID int `json:"session_id"`
}
