// Package photostore keeps uploaded photos on local disk under an
// uploads root, split into attendance/ and faces/ subdirectories, and
// hands back both the stored path and the web-facing URL.
package photostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AllowedFile reports whether the filename carries a supported image
// extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Store writes photo files under root.
type Store struct {
	root string
}

// New prepares the uploads root and its subdirectories.
func New(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "attendance"), filepath.Join(root, "faces")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("photostore: create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// SaveAttendancePhoto stores a session photo. The name carries the
// course, date and lesson for operators, plus a short random suffix so
// retakes never collide.
func (s *Store) SaveAttendancePhoto(courseID int, date string, lesson int, filename string, data []byte) (path, url string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		ext = ".jpg"
	}
	name := fmt.Sprintf("attendance_%d_%s_%d_%s%s", courseID, date, lesson, shortID(), ext)
	return s.save("attendance", name, data)
}

// SaveFacePhoto stores a student's enrollment photo.
func (s *Store) SaveFacePhoto(studentID int, filename string, data []byte) (path, url string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		ext = ".jpg"
	}
	name := fmt.Sprintf("student_%d_face_%s_%s%s", studentID, time.Now().UTC().Format("20060102150405"), shortID(), ext)
	return s.save("faces", name, data)
}

func (s *Store) save(sub, name string, data []byte) (string, string, error) {
	path := filepath.Join(s.root, sub, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("photostore: write %s: %w", name, err)
	}
	return path, "/uploads/" + sub + "/" + name, nil
}

// Remove deletes a stored photo. Missing files are not an error; the
// rollback path may race an operator cleanup.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("photostore: remove %s: %w", path, err)
	}
	return nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
