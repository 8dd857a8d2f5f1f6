package attendance

import "log"

// undoLog collects compensating actions during a creation attempt. On
// failure the actions run in reverse order of registration, so details
// go before the session and the session before the photo.
type undoLog struct {
	steps []func() error
}

func (u *undoLog) push(fn func() error) {
	u.steps = append(u.steps, fn)
}

// run executes every compensating step, newest first. Failures are
// logged and skipped; a partially-failed rollback must still attempt
// the remaining steps.
func (u *undoLog) run() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			log.Printf("attendance: rollback step %d failed: %v", i, err)
		}
	}
	u.steps = nil
}
