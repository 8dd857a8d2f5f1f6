package attendance

import "errors"

var (
	// ErrValidation marks malformed or semantically invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing session, course or student.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an actor operating on a course it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrNoFaceDetected is returned when the photo contains no faces.
	ErrNoFaceDetected = errors.New("no face detected in photo")
	// ErrNoMatchableStudents is returned when no enrolled student has a
	// usable face profile.
	ErrNoMatchableStudents = errors.New("no enrolled student has a face profile")
	// ErrPersistence is returned after a failed write; any partial
	// writes have been rolled back.
	ErrPersistence = errors.New("attendance could not be saved")
)
