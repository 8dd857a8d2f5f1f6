package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/muhammetmertkus/face-recognition-backend/internal/auth"
	"github.com/muhammetmertkus/face-recognition-backend/internal/faceclient"
	"github.com/muhammetmertkus/face-recognition-backend/internal/facematch"
	"github.com/muhammetmertkus/face-recognition-backend/internal/queue"
	"github.com/muhammetmertkus/face-recognition-backend/internal/roster"
)

// PhotoStore persists attendance photos and can remove them again
// during rollback.
type PhotoStore interface {
	SaveAttendancePhoto(courseID int, date string, lessonNumber int, filename string, data []byte) (path, url string, err error)
	Remove(path string) error
}

// Service coordinates attendance creation end to end: input validation,
// face detection and matching, staged persistence with compensating
// rollback, and the read/report operations over committed sessions.
type Service struct {
	roster    *roster.Repository
	repo      Repo
	detector  faceclient.Detector
	analyzer  faceclient.Analyzer
	photos    PhotoStore
	events    queue.Queue
	tolerance float64
	validate  *validator.Validate
}

// Config carries the Service dependencies. Events may be nil when no
// queue backend is configured.
type Config struct {
	Roster    *roster.Repository
	Repo      Repo
	Detector  faceclient.Detector
	Analyzer  faceclient.Analyzer
	Photos    PhotoStore
	Events    queue.Queue
	Tolerance float64
}

func NewService(cfg Config) *Service {
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = facematch.DefaultTolerance
	}
	return &Service{
		roster:    cfg.Roster,
		repo:      cfg.Repo,
		detector:  cfg.Detector,
		analyzer:  cfg.Analyzer,
		photos:    cfg.Photos,
		events:    cfg.Events,
		tolerance: tol,
		validate:  validator.New(),
	}
}

// CreateRequest is the input to attendance creation.
type CreateRequest struct {
	CourseID     int    `form:"course_id" validate:"required,gt=0"`
	Date         string `form:"date" validate:"required,datetime=2006-01-02"`
	LessonNumber int    `form:"lesson_number" validate:"required,gt=0"`
	Type         string `form:"type" validate:"required"`
	Filename     string `validate:"-"`
	Image        []byte `validate:"required"`
}

// Create runs the attendance transaction. It validates the request,
// detects and matches faces, then persists the session, its details and
// the photo as a unit: if any write fails, every earlier write of this
// call is compensated before the error is returned.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Summary, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	sessionType, err := ParseSessionType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	course, err := s.roster.CourseByID(req.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("course %d: %w", req.CourseID, ErrNotFound)
	}
	if err := s.authorizeCourse(actor, course); err != nil {
		return nil, err
	}

	boxes, err := s.detector.DetectFaces(ctx, req.Image)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return nil, ErrNoFaceDetected
	}
	facesDetected.Add(float64(len(boxes)))

	students, err := s.roster.EnrolledStudents(req.CourseID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("course %d has no enrolled students: %w", req.CourseID, ErrNotFound)
	}

	known := make([]facematch.Known, 0, len(students))
	for _, st := range students {
		if st.FaceEncodings == "" {
			continue
		}
		embs, err := facematch.DecodeEmbeddings(st.FaceEncodings)
		if err != nil {
			log.Printf("attendance: student %d: unreadable face profile: %v", st.ID, err)
			continue
		}
		for _, e := range embs {
			known = append(known, facematch.Known{StudentID: st.ID, Embedding: e})
		}
	}
	if len(known) == 0 {
		return nil, ErrNoMatchableStudents
	}

	embeddings, err := s.detector.Embeddings(ctx, req.Image, boxes)
	if err != nil {
		return nil, fmt.Errorf("extract embeddings: %w", err)
	}

	attrs := make([]*faceclient.Attributes, len(boxes))
	if sessionType.Analyzes() && s.analyzer != nil {
		for i, box := range boxes {
			a, err := s.analyzer.Analyze(ctx, req.Image, box)
			if err != nil {
				// Attribute analysis is best-effort; the face still
				// counts for matching.
				log.Printf("attendance: face %d: attribute analysis failed: %v", i, err)
				continue
			}
			attrs[i] = a
		}
	}

	matches := facematch.Assign(embeddings, known, s.tolerance)
	facesMatched.Add(float64(len(matches)))

	emotionStats := make(map[string]int)
	for _, a := range attrs {
		if a != nil && a.Emotion != nil {
			emotionStats[*a.Emotion]++
		}
	}
	if len(emotionStats) == 0 {
		emotionStats = nil
	}

	now := time.Now().UTC()
	var undo undoLog

	photoPath, photoURL, perr := s.photos.SaveAttendancePhoto(req.CourseID, req.Date, req.LessonNumber, req.Filename, req.Image)
	if perr != nil {
		// A missing photo never blocks attendance.
		log.Printf("attendance: photo not saved: %v", perr)
		photoPath, photoURL = "", ""
	}
	if photoPath != "" {
		p := photoPath
		undo.push(func() error { return s.photos.Remove(p) })
	}

	sessionID, err := s.repo.NextSessionID()
	if err != nil {
		return s.fail(&undo, fmt.Errorf("allocate session id: %w", err))
	}
	session := Session{
		ID:                   sessionID,
		CourseID:             req.CourseID,
		Date:                 req.Date,
		LessonNumber:         req.LessonNumber,
		Type:                 sessionType,
		PhotoPath:            photoURL,
		TotalStudents:        len(students),
		RecognizedStudents:   len(matches),
		UnrecognizedStudents: len(students) - len(matches),
		EmotionStatistics:    emotionStats,
		CreatedBy:            actor.UserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := s.repo.InsertSession(session); err != nil {
		return s.fail(&undo, fmt.Errorf("insert session: %w", err))
	}
	undo.push(func() error {
		_, err := s.repo.DeleteSession(sessionID)
		return err
	})

	results := make([]StudentResult, 0, len(students))
	for _, st := range students {
		detail := Detail{
			AttendanceID: sessionID,
			StudentID:    st.ID,
			Status:       StatusAbsent,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if m, ok := matches[st.ID]; ok {
			detail.Status = StatusPresent
			conf := m.Confidence
			detail.Confidence = &conf
			if a := attrs[m.FaceIndex]; a != nil {
				detail.EstimatedAge = a.Age
				detail.EstimatedGender = a.Gender
				detail.Emotion = a.Emotion
			}
		}
		created, err := s.repo.InsertDetail(detail)
		if err != nil {
			return s.fail(&undo, fmt.Errorf("insert detail for student %d: %w", st.ID, err))
		}
		detailID := created.ID
		undo.push(func() error {
			_, err := s.repo.DeleteDetail(detailID)
			return err
		})
		results = append(results, StudentResult{
			StudentID:       created.StudentID,
			Status:          created.Status,
			Confidence:      created.Confidence,
			Emotion:         created.Emotion,
			EstimatedAge:    created.EstimatedAge,
			EstimatedGender: created.EstimatedGender,
		})
	}

	sessionsCreated.Inc()
	s.publishCommitted(ctx, sessionID)

	return &Summary{
		SessionID:         sessionID,
		RecognizedCount:   len(matches),
		UnrecognizedCount: len(students) - len(matches),
		TotalStudents:     len(students),
		EmotionStatistics: emotionStats,
		PhotoPath:         photoURL,
		Results:           results,
	}, nil
}

// fail rolls back a partially-written session and converts the cause
// into the caller-facing persistence error.
func (s *Service) fail(undo *undoLog, cause error) (*Summary, error) {
	log.Printf("attendance: %v; rolling back", cause)
	undo.run()
	sessionsFailed.Inc()
	return nil, fmt.Errorf("%w: %v", ErrPersistence, cause)
}

func (s *Service) publishCommitted(ctx context.Context, sessionID int) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(SessionCommitted{SessionID: sessionID})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: queue.TypeSessionCommitted, Body: body}); err != nil {
		// The session is committed either way; the worker feed is
		// best-effort.
		log.Printf("attendance: publish session %d: %v", sessionID, err)
	}
}

// ManualUpdate sets one student's status in a session, creating the
// detail if recognition never produced one, and recomputes the
// session's aggregate counters from the stored details. Repeating the
// same call leaves the session unchanged.
func (s *Service) ManualUpdate(ctx context.Context, actor auth.Actor, sessionID, studentID int, status Status) (*Detail, *Session, bool, error) {
	session, err := s.repo.SessionByID(sessionID)
	if err != nil {
		return nil, nil, false, err
	}
	if session == nil {
		return nil, nil, false, fmt.Errorf("attendance session %d: %w", sessionID, ErrNotFound)
	}
	course, err := s.roster.CourseByID(session.CourseID)
	if err != nil {
		return nil, nil, false, err
	}
	if course == nil {
		return nil, nil, false, fmt.Errorf("course %d for session %d: %w", session.CourseID, sessionID, ErrNotFound)
	}
	if err := s.authorizeCourse(actor, course); err != nil {
		return nil, nil, false, err
	}
	student, err := s.roster.StudentByID(studentID)
	if err != nil {
		return nil, nil, false, err
	}
	if student == nil {
		return nil, nil, false, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	enrolled, err := s.roster.Enrolled(studentID, session.CourseID)
	if err != nil {
		return nil, nil, false, err
	}
	if !enrolled {
		return nil, nil, false, fmt.Errorf("%w: student %d is not enrolled in course %d", ErrValidation, studentID, session.CourseID)
	}

	now := time.Now().UTC()
	existing, err := s.repo.DetailFor(sessionID, studentID)
	if err != nil {
		return nil, nil, false, err
	}
	var detail *Detail
	created := false
	if existing != nil {
		detail, err = s.repo.UpdateDetail(existing.ID, func(d *Detail) {
			d.Status = status
			d.UpdatedAt = now
		})
		if err != nil {
			return nil, nil, false, err
		}
	} else {
		added, err := s.repo.InsertDetail(Detail{
			AttendanceID: sessionID,
			StudentID:    studentID,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return nil, nil, false, err
		}
		detail = &added
		created = true
	}

	details, err := s.repo.DetailsBySession(sessionID)
	if err != nil {
		return nil, nil, false, err
	}
	present := 0
	for _, d := range details {
		if d.Status == StatusPresent {
			present++
		}
	}
	total := session.TotalStudents
	if total < len(details) {
		total = len(details)
	}
	updated, err := s.repo.UpdateSession(sessionID, func(ses *Session) {
		ses.RecognizedStudents = present
		ses.UnrecognizedStudents = total - present
		ses.UpdatedAt = now
	})
	if err != nil {
		return nil, nil, false, err
	}
	return detail, updated, created, nil
}

// Get returns a session with its details, each annotated with the
// student's identity.
func (s *Service) Get(ctx context.Context, actor auth.Actor, sessionID int) (*SessionDetails, error) {
	session, err := s.repo.SessionByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("attendance session %d: %w", sessionID, ErrNotFound)
	}
	course, err := s.roster.CourseByID(session.CourseID)
	if err != nil {
		return nil, err
	}
	if course != nil {
		if err := s.authorizeCourse(actor, course); err != nil {
			return nil, err
		}
	}
	details, err := s.repo.DetailsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	out := &SessionDetails{Session: *session, Details: make([]DetailWithStudent, 0, len(details))}
	for _, d := range details {
		out.Details = append(out.Details, DetailWithStudent{Detail: d, Student: s.studentInfo(d.StudentID)})
	}
	return out, nil
}

// ListByCourse returns a course's sessions, newest first.
func (s *Service) ListByCourse(ctx context.Context, actor auth.Actor, courseID int) ([]Session, error) {
	course, err := s.roster.CourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if err := s.authorizeCourse(actor, course); err != nil {
		return nil, err
	}
	sessions, err := s.repo.SessionsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date > sessions[j].Date
		}
		return sessions[i].LessonNumber > sessions[j].LessonNumber
	})
	return sessions, nil
}

// StudentHistory returns one student's attendance within a course.
// Students may read their own history; course teachers and admins may
// read anyone's.
func (s *Service) StudentHistory(ctx context.Context, actor auth.Actor, courseID, studentID int) (*History, error) {
	course, err := s.roster.CourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	student, err := s.roster.StudentByID(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	if err := s.authorizeStudentRead(actor, course, studentID); err != nil {
		return nil, err
	}
	enrolled, err := s.roster.Enrolled(studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, fmt.Errorf("%w: student %d is not enrolled in course %d", ErrValidation, studentID, courseID)
	}

	sessions, err := s.repo.SessionsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	bySession := make(map[int]Session, len(sessions))
	for _, ses := range sessions {
		bySession[ses.ID] = ses
	}
	details, err := s.repo.DetailsByStudent(studentID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(details))
	for _, d := range details {
		ses, ok := bySession[d.AttendanceID]
		if !ok {
			continue
		}
		entries = append(entries, HistoryEntry{Detail: d, Date: ses.Date, LessonNumber: ses.LessonNumber})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return entries[i].LessonNumber > entries[j].LessonNumber
	})

	info := s.studentInfo(studentID)
	if info == nil {
		info = &StudentInfo{ID: studentID}
	}
	return &History{
		Course:  CourseInfo{ID: course.ID, Code: course.Code, Name: course.Name},
		Student: *info,
		Entries: entries,
	}, nil
}

// CourseReport computes per-student attendance rates over every session
// of the course. PRESENT and LATE both count as attended.
func (s *Service) CourseReport(ctx context.Context, actor auth.Actor, courseID int) (*Report, error) {
	course, err := s.roster.CourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if err := s.authorizeCourse(actor, course); err != nil {
		return nil, err
	}
	sessions, err := s.repo.SessionsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	sessionIDs := make(map[int]bool, len(sessions))
	for _, ses := range sessions {
		sessionIDs[ses.ID] = true
	}
	students, err := s.roster.EnrolledStudents(courseID)
	if err != nil {
		return nil, err
	}

	rows := make([]ReportRow, 0, len(students))
	for _, st := range students {
		details, err := s.repo.DetailsByStudent(st.ID)
		if err != nil {
			return nil, err
		}
		presentCount := 0
		for _, d := range details {
			if !sessionIDs[d.AttendanceID] {
				continue
			}
			if d.Status == StatusPresent || d.Status == StatusLate {
				presentCount++
			}
		}
		row := ReportRow{
			TotalSessions:   len(sessions),
			PresentSessions: presentCount,
		}
		if info := s.studentInfo(st.ID); info != nil {
			row.Student = *info
		} else {
			row.Student = StudentInfo{ID: st.ID, StudentNumber: st.StudentNumber}
		}
		if len(sessions) > 0 {
			rate := math.Round(float64(presentCount)/float64(len(sessions))*10000) / 100
			row.AttendanceRate = &rate
		}
		rows = append(rows, row)
	}
	return &Report{
		Course:   CourseInfo{ID: course.ID, Code: course.Code, Name: course.Name},
		Sessions: len(sessions),
		Rows:     rows,
	}, nil
}

// authorizeCourse admits admins and the course's own teacher.
func (s *Service) authorizeCourse(actor auth.Actor, course *roster.Course) error {
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	if actor.Role == auth.RoleTeacher {
		t, err := s.roster.TeacherByID(course.TeacherID)
		if err != nil {
			return err
		}
		if t != nil && t.UserID == actor.UserID {
			return nil
		}
	}
	return ErrForbidden
}

// authorizeStudentRead additionally admits a student reading their own
// record.
func (s *Service) authorizeStudentRead(actor auth.Actor, course *roster.Course, studentID int) error {
	if actor.Role == auth.RoleStudent {
		st, err := s.roster.StudentByUserID(actor.UserID)
		if err != nil {
			return err
		}
		if st != nil && st.ID == studentID {
			return nil
		}
		return ErrForbidden
	}
	return s.authorizeCourse(actor, course)
}

func (s *Service) studentInfo(studentID int) *StudentInfo {
	st, err := s.roster.StudentByID(studentID)
	if err != nil || st == nil {
		return nil
	}
	info := &StudentInfo{ID: st.ID, StudentNumber: st.StudentNumber}
	if u, err := s.roster.UserByID(st.UserID); err == nil && u != nil {
		info.FirstName = u.FirstName
		info.LastName = u.LastName
		info.Email = u.Email
	}
	return info
}
