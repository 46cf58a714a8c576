package utils

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered UUID (v7). Rows inserted later sort after rows
// inserted earlier, which keeps waitlist tie-breaks stable.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
