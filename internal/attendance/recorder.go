package attendance

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/muhammetmertkus/face-recognition-backend/internal/queue"
)

// Recorder appends emotion-history records for committed sessions. It
// runs in the worker process, off the request path.
type Recorder struct {
	repo *StoreRepo
}

func NewRecorder(repo *StoreRepo) *Recorder {
	return &Recorder{repo: repo}
}

// HandleMessage processes one queue message. Unknown types are ignored.
func (r *Recorder) HandleMessage(msg queue.Message) error {
	if msg.Type != queue.TypeSessionCommitted {
		return nil
	}
	var evt SessionCommitted
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	return r.Record(evt.SessionID)
}

// Record writes one emotion-history row per present student with an
// observed emotion. Sessions already recorded are skipped, so a
// redelivered event is harmless.
func (r *Recorder) Record(sessionID int) error {
	done, err := r.repo.HasEmotionsFor(sessionID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	session, err := r.repo.SessionByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		log.Printf("recorder: session %d no longer exists, skipping", sessionID)
		return nil
	}
	details, err := r.repo.DetailsBySession(sessionID)
	if err != nil {
		return err
	}
	count := 0
	for _, d := range details {
		if d.Status != StatusPresent || d.Emotion == nil {
			continue
		}
		conf := 0.0
		if d.Confidence != nil {
			conf = *d.Confidence
		}
		if _, err := r.repo.InsertEmotion(EmotionRecord{
			AttendanceID: sessionID,
			StudentID:    d.StudentID,
			CourseID:     session.CourseID,
			Emotion:      *d.Emotion,
			Confidence:   conf,
			Timestamp:    session.CreatedAt,
		}); err != nil {
			return fmt.Errorf("record emotion for student %d: %w", d.StudentID, err)
		}
		count++
	}
	log.Printf("recorder: session %d: %d emotion records written", sessionID, count)
	return nil
}
