package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/muhammetmertkus/face-recognition-backend/internal/attendance"
	"github.com/muhammetmertkus/face-recognition-backend/internal/auth"
	"github.com/muhammetmertkus/face-recognition-backend/internal/config"
	"github.com/muhammetmertkus/face-recognition-backend/internal/faceclient"
	"github.com/muhammetmertkus/face-recognition-backend/internal/facematch"
	"github.com/muhammetmertkus/face-recognition-backend/internal/photostore"
	"github.com/muhammetmertkus/face-recognition-backend/internal/roster"
)

type Handler struct {
	cfg      config.App
	roster   *roster.Repository
	svc      *attendance.Service
	photos   *photostore.Store
	detector faceclient.Detector
}

func New(cfg config.App, r *roster.Repository, svc *attendance.Service, photos *photostore.Store, detector faceclient.Detector) *Handler {
	return &Handler{cfg: cfg, roster: r, svc: svc, photos: photos, detector: detector}
}

// Routes mounts every endpoint on the engine.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("", auth.Middleware(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	protected.POST("/students/:id/face", h.RegisterFace)
	protected.POST("/attendance", h.CreateAttendance)
	protected.GET("/attendance/:id", h.GetAttendance)
	protected.POST("/attendance/:id/students/:sid", h.CorrectAttendance)
	protected.GET("/courses/:id/attendance", h.ListCourseAttendance)
	protected.GET("/courses/:id/students/:sid/attendance", h.StudentAttendance)
	protected.GET("/courses/:id/report", h.CourseReport)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------- Auth ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.roster.UserByEmail(req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	role, err := auth.ParseRole(user.Role)
	if err != nil {
		log.Printf("handler: user %d has unusable role: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	pair, err := auth.Issue(user.ID, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		log.Printf("handler: issue tokens: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       user.Role,
		},
		"tokens": pair,
	})
}

// ---------- Face Registration ----------

// RegisterFace enrolls a student's face profile from an uploaded photo.
// Expects multipart form with a "photo" file field. Allowed for the
// student themself, any teacher, or an admin.
func (h *Handler) RegisterFace(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	student, err := h.roster.StudentByID(studentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if !h.mayManageStudent(actor, student) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage this student"})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	if !photostore.AllowedFile(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only jpg, jpeg and png files are accepted"})
		return
	}
	photoBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
		return
	}

	boxes, err := h.detector.DetectFaces(c.Request.Context(), photoBytes)
	if err != nil {
		log.Printf("handler: detect faces for student %d: %v", studentID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "face service unavailable"})
		return
	}
	if len(boxes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in photo"})
		return
	}
	embeddings, err := h.detector.Embeddings(c.Request.Context(), photoBytes, boxes)
	if err != nil || len(embeddings) == 0 {
		log.Printf("handler: embed face for student %d: %v", studentID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "face service unavailable"})
		return
	}
	encodings, err := facematch.EncodeEmbeddings(embeddings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode face profile"})
		return
	}

	_, photoURL, err := h.photos.SaveFacePhoto(studentID, header.Filename, photoBytes)
	if err != nil {
		log.Printf("handler: save face photo for student %d: %v", studentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save photo"})
		return
	}
	updated, err := h.roster.SetFaceProfile(studentID, encodings, photoURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student":    updated,
		"face_count": len(embeddings),
		"photo_path": photoURL,
	})
}

func (h *Handler) mayManageStudent(actor auth.Actor, student *roster.Student) bool {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleTeacher:
		return true
	case auth.RoleStudent:
		return student.UserID == actor.UserID
	}
	return false
}

// ---------- Attendance ----------

type createAttendanceForm struct {
	CourseID     int    `form:"course_id" binding:"required"`
	Date         string `form:"date" binding:"required"`
	LessonNumber int    `form:"lesson_number" binding:"required"`
	Type         string `form:"type" binding:"required"`
}

// CreateAttendance runs the attendance transaction. Expects a multipart
// form with course_id, date, lesson_number, type, and a "file" photo.
func (h *Handler) CreateAttendance(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var form createAttendanceForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	if !photostore.AllowedFile(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only jpg, jpeg and png files are accepted"})
		return
	}
	photoBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
		return
	}

	summary, err := h.svc.Create(c.Request.Context(), actor, attendance.CreateRequest{
		CourseID:     form.CourseID,
		Date:         form.Date,
		LessonNumber: form.LessonNumber,
		Type:         form.Type,
		Filename:     header.Filename,
		Image:        photoBytes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (h *Handler) GetAttendance(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendance id"})
		return
	}
	session, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type correctionRequest struct {
	Status string `json:"status" binding:"required"`
}

// CorrectAttendance manually sets one student's status in a session.
func (h *Handler) CorrectAttendance(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendance id"})
		return
	}
	studentID, err := strconv.Atoi(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detail, session, created, err := h.svc.ManualUpdate(c.Request.Context(), actor, sessionID, studentID, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{"detail": detail, "session": session})
}

func (h *Handler) ListCourseAttendance(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	courseID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	sessions, err := h.svc.ListByCourse(c.Request.Context(), actor, courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	courseID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	studentID, err := strconv.Atoi(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	history, err := h.svc.StudentHistory(c.Request.Context(), actor, courseID, studentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// ---------- Reports ----------

func (h *Handler) CourseReport(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	courseID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	report, err := h.svc.CourseReport(c.Request.Context(), actor, courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ---------- Errors ----------

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation),
		errors.Is(err, attendance.ErrNoFaceDetected),
		errors.Is(err, attendance.ErrNoMatchableStudents):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": attendance.ErrPersistence.Error()})
	default:
		log.Printf("handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
