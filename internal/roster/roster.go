// Package roster holds the enrollment-side entities: users, teachers,
// students (with their stored face profiles), courses, and the
// student-course enrollment pairs.
package roster

import (
	"time"

	"github.com/muhammetmertkus/face-recognition-backend/internal/store"
)

// User is an account that can authenticate. Role is one of ADMIN,
// TEACHER, STUDENT.
type User struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) EntityID() int { return u.ID }

// Teacher links a teaching profile to its user account.
type Teacher struct {
	ID         int    `json:"id"`
	UserID     int    `json:"user_id"`
	Department string `json:"department,omitempty"`
}

func (t Teacher) EntityID() int { return t.ID }

// Student links a student profile to its user account and carries the
// stored face profile: FaceEncodings is the encoded embedding list
// (see facematch.EncodeEmbeddings), empty when no face is enrolled.
type Student struct {
	ID            int    `json:"id"`
	UserID        int    `json:"user_id"`
	StudentNumber string `json:"student_number"`
	FaceEncodings string `json:"face_encodings,omitempty"`
	FacePhotoPath string `json:"face_photo_path,omitempty"`
}

func (s Student) EntityID() int { return s.ID }

// Course is taught by one teacher.
type Course struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	TeacherID int    `json:"teacher_id"`
	Semester  string `json:"semester,omitempty"`
}

func (c Course) EntityID() int { return c.ID }

// Enrollment records that a student takes a course. The
// (student, course) pair is unique per course.
type Enrollment struct {
	ID        int `json:"id"`
	StudentID int `json:"student_id"`
	CourseID  int `json:"course_id"`
}

func (e Enrollment) EntityID() int { return e.ID }

// Repository reads and writes the roster collections.
type Repository struct {
	users       *store.Collection[User]
	teachers    *store.Collection[Teacher]
	students    *store.Collection[Student]
	courses     *store.Collection[Course]
	enrollments *store.Collection[Enrollment]
}

// NewRepository binds the roster collections within s.
func NewRepository(s *store.Store) *Repository {
	return &Repository{
		users:       store.NewCollection(s, "users", func(u *User, id int) { u.ID = id }),
		teachers:    store.NewCollection(s, "teachers", func(t *Teacher, id int) { t.ID = id }),
		students:    store.NewCollection(s, "students", func(st *Student, id int) { st.ID = id }),
		courses:     store.NewCollection(s, "courses", func(c *Course, id int) { c.ID = id }),
		enrollments: store.NewCollection(s, "student_course", func(e *Enrollment, id int) { e.ID = id }),
	}
}

// UserByID returns the user, or nil if absent.
func (r *Repository) UserByID(id int) (*User, error) {
	return r.users.Get(id)
}

// UserByEmail returns the user with the given email, or nil.
func (r *Repository) UserByEmail(email string) (*User, error) {
	return r.users.FindOne(func(u User) bool { return u.Email == email })
}

// CreateUser adds a user with a fresh id.
func (r *Repository) CreateUser(u User) (User, error) {
	return r.users.Add(u, true)
}

// CourseByID returns the course, or nil if absent.
func (r *Repository) CourseByID(id int) (*Course, error) {
	return r.courses.Get(id)
}

// CreateCourse adds a course with a fresh id.
func (r *Repository) CreateCourse(c Course) (Course, error) {
	return r.courses.Add(c, true)
}

// TeacherByID returns the teacher, or nil if absent.
func (r *Repository) TeacherByID(id int) (*Teacher, error) {
	return r.teachers.Get(id)
}

// TeacherByUserID returns the teacher profile owned by a user, or nil.
func (r *Repository) TeacherByUserID(userID int) (*Teacher, error) {
	return r.teachers.FindOne(func(t Teacher) bool { return t.UserID == userID })
}

// CreateTeacher adds a teacher with a fresh id.
func (r *Repository) CreateTeacher(t Teacher) (Teacher, error) {
	return r.teachers.Add(t, true)
}

// StudentByID returns the student, or nil if absent.
func (r *Repository) StudentByID(id int) (*Student, error) {
	return r.students.Get(id)
}

// StudentByUserID returns the student profile owned by a user, or nil.
func (r *Repository) StudentByUserID(userID int) (*Student, error) {
	return r.students.FindOne(func(s Student) bool { return s.UserID == userID })
}

// CreateStudent adds a student with a fresh id.
func (r *Repository) CreateStudent(s Student) (Student, error) {
	return r.students.Add(s, true)
}

// SetFaceProfile stores the encoded embeddings and photo path on a
// student, replacing any previous profile. Returns nil when the student
// does not exist.
func (r *Repository) SetFaceProfile(studentID int, encodings, photoPath string) (*Student, error) {
	return r.students.Update(studentID, func(s *Student) {
		s.FaceEncodings = encodings
		s.FacePhotoPath = photoPath
	})
}

// Enroll records a (student, course) pair, keeping the pair unique.
func (r *Repository) Enroll(studentID, courseID int) (Enrollment, error) {
	existing, err := r.enrollments.FindOne(func(e Enrollment) bool {
		return e.StudentID == studentID && e.CourseID == courseID
	})
	if err != nil {
		return Enrollment{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return r.enrollments.Add(Enrollment{StudentID: studentID, CourseID: courseID}, true)
}

// Unenroll removes the (student, course) pair. Reports whether it existed.
func (r *Repository) Unenroll(studentID, courseID int) (bool, error) {
	n, err := r.enrollments.DeleteMany(func(e Enrollment) bool {
		return e.StudentID == studentID && e.CourseID == courseID
	})
	return n > 0, err
}

// Enrolled reports whether the student takes the course.
func (r *Repository) Enrolled(studentID, courseID int) (bool, error) {
	e, err := r.enrollments.FindOne(func(e Enrollment) bool {
		return e.StudentID == studentID && e.CourseID == courseID
	})
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

// EnrolledStudents returns every student enrolled in the course, in
// enrollment order.
func (r *Repository) EnrolledStudents(courseID int) ([]Student, error) {
	enrollments, err := r.enrollments.FindMany(func(e Enrollment) bool {
		return e.CourseID == courseID
	})
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, nil
	}
	all, err := r.students.Read()
	if err != nil {
		return nil, err
	}
	byID := make(map[int]Student, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	students := make([]Student, 0, len(enrollments))
	for _, e := range enrollments {
		if s, ok := byID[e.StudentID]; ok {
			students = append(students, s)
		}
	}
	return students, nil
}
