package uid

import (
	"github.com/google/uuid"
)

// UUIDV7 mints time-ordered UUIDs. It is the bus default.
type UUIDV7 struct{}

func NewUUIDV7() *UUIDV7 {
	return &UUIDV7{}
}

func (u *UUIDV7) New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
