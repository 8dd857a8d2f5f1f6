package attendance

import (
	"github.com/muhammetmertkus/face-recognition-backend/internal/store"
)

// Repo is the persistence surface the coordinator writes through. It is
// an interface so tests can inject failures mid-transaction.
type Repo interface {
	NextSessionID() (int, error)
	InsertSession(s Session) (Session, error)
	DeleteSession(id int) (bool, error)
	SessionByID(id int) (*Session, error)
	SessionsByCourse(courseID int) ([]Session, error)
	UpdateSession(id int, fn func(*Session)) (*Session, error)

	InsertDetail(d Detail) (Detail, error)
	DeleteDetail(id int) (bool, error)
	DetailsBySession(sessionID int) ([]Detail, error)
	DetailsByStudent(studentID int) ([]Detail, error)
	DetailFor(sessionID, studentID int) (*Detail, error)
	UpdateDetail(id int, fn func(*Detail)) (*Detail, error)
}

// StoreRepo implements Repo over file-backed collections.
type StoreRepo struct {
	sessions *store.Collection[Session]
	details  *store.Collection[Detail]
	emotions *store.Collection[EmotionRecord]
}

func NewStoreRepo(s *store.Store) *StoreRepo {
	return &StoreRepo{
		sessions: store.NewCollection[Session](s, "attendance", func(v *Session, id int) { v.ID = id }),
		details:  store.NewCollection[Detail](s, "attendance_details", func(v *Detail, id int) { v.ID = id }),
		emotions: store.NewCollection[EmotionRecord](s, "emotion_history", func(v *EmotionRecord, id int) { v.ID = id }),
	}
}

func (r *StoreRepo) NextSessionID() (int, error) { return r.sessions.NextID() }

func (r *StoreRepo) InsertSession(s Session) (Session, error) {
	return r.sessions.Add(s, false)
}

func (r *StoreRepo) DeleteSession(id int) (bool, error) { return r.sessions.Delete(id) }

func (r *StoreRepo) SessionByID(id int) (*Session, error) { return r.sessions.Get(id) }

func (r *StoreRepo) SessionsByCourse(courseID int) ([]Session, error) {
	return r.sessions.FindMany(func(s Session) bool { return s.CourseID == courseID })
}

func (r *StoreRepo) UpdateSession(id int, fn func(*Session)) (*Session, error) {
	return r.sessions.Update(id, fn)
}

func (r *StoreRepo) InsertDetail(d Detail) (Detail, error) {
	return r.details.Add(d, true)
}

func (r *StoreRepo) DeleteDetail(id int) (bool, error) { return r.details.Delete(id) }

func (r *StoreRepo) DetailsBySession(sessionID int) ([]Detail, error) {
	return r.details.FindMany(func(d Detail) bool { return d.AttendanceID == sessionID })
}

func (r *StoreRepo) DetailsByStudent(studentID int) ([]Detail, error) {
	return r.details.FindMany(func(d Detail) bool { return d.StudentID == studentID })
}

func (r *StoreRepo) DetailFor(sessionID, studentID int) (*Detail, error) {
	return r.details.FindOne(func(d Detail) bool {
		return d.AttendanceID == sessionID && d.StudentID == studentID
	})
}

func (r *StoreRepo) UpdateDetail(id int, fn func(*Detail)) (*Detail, error) {
	return r.details.Update(id, fn)
}

// InsertEmotion appends one emotion-history record. Used by the worker,
// not the coordinator.
func (r *StoreRepo) InsertEmotion(e EmotionRecord) (EmotionRecord, error) {
	return r.emotions.Add(e, true)
}

// HasEmotionsFor reports whether the worker already processed a
// session, so redelivered events are no-ops.
func (r *StoreRepo) HasEmotionsFor(sessionID int) (bool, error) {
	rec, err := r.emotions.FindOne(func(e EmotionRecord) bool { return e.AttendanceID == sessionID })
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// EmotionsByStudent returns a student's emotion history, optionally
// scoped to one course (courseID <= 0 means all courses).
func (r *StoreRepo) EmotionsByStudent(studentID, courseID int) ([]EmotionRecord, error) {
	return r.emotions.FindMany(func(e EmotionRecord) bool {
		if e.StudentID != studentID {
			return false
		}
		return courseID <= 0 || e.CourseID == courseID
	})
}
