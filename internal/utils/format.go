package utils

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration renders a duration as a short human string, e.g. "1 min 5 s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(math.Round(d.Seconds()))
	if secs < 60 {
		return fmt.Sprintf("%d s", secs)
	}
	mins := secs / 60
	secs = secs % 60
	if mins < 60 {
		if secs == 0 {
			return fmt.Sprintf("%d min", mins)
		}
		return fmt.Sprintf("%d min %d s", mins, secs)
	}
	hours := mins / 60
	mins = mins % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}

// EstimateProcessing guesses the transcription wall-clock time for an audio
// duration. Roughly a quarter of the audio length, never under ten seconds.
func EstimateProcessing(audioSeconds float64) time.Duration {
	est := time.Duration(audioSeconds/4*float64(time.Second))
	if est < 10*time.Second {
		est = 10 * time.Second
	}
	return est
}
