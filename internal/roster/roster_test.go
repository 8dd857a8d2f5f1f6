package roster

import (
	"testing"

	"github.com/muhammetmertkus/face-recognition-backend/internal/store"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewRepository(st)
}

func TestEnrollIsIdempotent(t *testing.T) {
	r := newRepo(t)
	s, err := r.CreateStudent(Student{UserID: 1, StudentNumber: "2020001"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := r.CreateCourse(Course{Code: "CS101", Name: "Intro", TeacherID: 1})
	if err != nil {
		t.Fatal(err)
	}

	first, err := r.Enroll(s.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Enroll(s.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("re-enroll created a new row: %d vs %d", first.ID, second.ID)
	}

	students, err := r.EnrolledStudents(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 1 {
		t.Fatalf("enrolled students = %d, want 1", len(students))
	}

	removed, err := r.Unenroll(s.ID, c.ID)
	if err != nil || !removed {
		t.Fatalf("Unenroll = %v, %v", removed, err)
	}
	enrolled, err := r.Enrolled(s.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if enrolled {
		t.Error("still enrolled after Unenroll")
	}
}

func TestSetFaceProfileReplacesPrevious(t *testing.T) {
	r := newRepo(t)
	s, err := r.CreateStudent(Student{UserID: 1, StudentNumber: "2020001"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := r.SetFaceProfile(s.ID, "[[0.1]]", "/uploads/faces/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if updated.FaceEncodings != "[[0.1]]" {
		t.Errorf("encodings = %q", updated.FaceEncodings)
	}

	updated, err = r.SetFaceProfile(s.ID, "[[0.2]]", "/uploads/faces/b.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if updated.FaceEncodings != "[[0.2]]" || updated.FacePhotoPath != "/uploads/faces/b.jpg" {
		t.Errorf("profile not replaced: %+v", updated)
	}

	missing, err := r.SetFaceProfile(999, "[[0.3]]", "")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown student")
	}
}

func TestUserByEmail(t *testing.T) {
	r := newRepo(t)
	if _, err := r.CreateUser(User{Email: "ayse@example.com", Role: "TEACHER"}); err != nil {
		t.Fatal(err)
	}

	u, err := r.UserByEmail("ayse@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Role != "TEACHER" {
		t.Fatalf("user = %+v", u)
	}

	none, err := r.UserByEmail("nobody@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Error("expected nil for unknown email")
	}
}
