package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// Probe returns the duration of the source in seconds.
// Both the slice engine and the transcription pipeline use it.
func Probe(src Source) (float64, error) {
	if len(src.Data) == 0 {
		return 0, fmt.Errorf("empty source '%s': %w", src.Name, ErrUnreadableMedia)
	}
	d := wav.NewDecoder(bytes.NewReader(src.Data))
	if !d.IsValidFile() {
		return 0, fmt.Errorf("'%s': %w", src.Name, ErrUnreadableMedia)
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("'%s': %v: %w", src.Name, err, ErrUnreadableMedia)
	}
	return dur.Seconds(), nil
}
