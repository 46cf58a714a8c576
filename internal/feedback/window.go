package feedback

import (
	"time"

	"campus-events/internal/apperr"
)

const DefaultWindowDays = 2

// Window is the closed interval in which attendees may submit feedback. It
// opens when the event starts, which is also treated as its end.
type Window struct {
	Opens  time.Time `json:"opens"`
	Closes time.Time `json:"closes"`
}

// NewWindow adds days as calendar days in loc, so a window that spans a DST
// change still closes at the same wall-clock time.
func NewWindow(end time.Time, days int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := end.In(loc)
	return Window{
		Opens:  end,
		Closes: local.AddDate(0, 0, days),
	}
}

func (w Window) Open(now time.Time) bool {
	return w.Check(now) == nil
}

func (w Window) Check(now time.Time) error {
	if now.Before(w.Opens) {
		return apperr.InvalidState("event has not ended yet")
	}
	if now.After(w.Closes) {
		return apperr.InvalidState("feedback window closed")
	}
	return nil
}
