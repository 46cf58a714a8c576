package feedback

import (
	"testing"
	"time"

	"campus-events/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_Boundaries(t *testing.T) {
	end := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	w := NewWindow(end, DefaultWindowDays, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		wantErr string
	}{
		{"one second before end", end.Add(-time.Second), "event has not ended yet"},
		{"at end", end, ""},
		{"one second after end", end.Add(time.Second), ""},
		{"at close", end.Add(48 * time.Hour), ""},
		{"one second after close", end.Add(48*time.Hour + time.Second), "feedback window closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Check(tt.now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.True(t, w.Open(tt.now))
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInvalidState))
			assert.Equal(t, tt.wantErr, apperr.Message(err))
			assert.False(t, w.Open(tt.now))
		})
	}
}

func TestWindow_CalendarDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-09 18:00 EST; DST starts the next morning.
	end := time.Date(2024, 3, 9, 18, 0, 0, 0, loc)
	w := NewWindow(end, 2, loc)

	assert.Equal(t, time.Date(2024, 3, 11, 18, 0, 0, 0, loc).Unix(), w.Closes.Unix())
	assert.Equal(t, 47*time.Hour, w.Closes.Sub(w.Opens))
}

func TestWindow_NilLocationIsUTC(t *testing.T) {
	end := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	w := NewWindow(end, 1, nil)
	assert.True(t, w.Closes.Equal(end.Add(24*time.Hour)))
}
