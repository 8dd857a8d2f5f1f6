package store

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned by Add when assignID is false and the record
// carries no id.
var ErrMissingID = errors.New("record must carry an id")

// DuplicateIDError reports an id collision inside a collection. It
// signals a broken invariant and is never expected in normal operation.
type DuplicateIDError struct {
	Collection string
	ID         int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("store: duplicate id %d in collection %s", e.ID, e.Collection)
}

// IsDuplicateID reports whether err is a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var d *DuplicateIDError
	return errors.As(err, &d)
}
