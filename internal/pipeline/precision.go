package pipeline

import (
	"path/filepath"
	"strings"
)

const (
	precisionLossless   = 95
	precisionCompressed = 85
	precisionStandard   = 75
	precisionUnknown    = 65
	precisionFloor      = 40

	inaudibleMarker  = "[inaudible]"
	inaudiblePenalty = 3
	minTokensForScan = 10
)

// PrecisionBaseline estimates transcription fidelity potential from the file
// extension alone.
func PrecisionBaseline(fileName string) int {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "wav", "flac", "aiff", "aif":
		return precisionLossless
	case "m4a", "aac", "ogg", "opus":
		return precisionCompressed
	case "mp3", "webm":
		return precisionStandard
	}
	return precisionUnknown
}

// RevisePrecision recomputes the live estimate from the fixed baseline and the
// accumulated raw transcript. Each inaudible marker costs a fixed penalty once
// the text is long enough to judge. The result never rises above the baseline
// and never falls below the floor.
func RevisePrecision(baseline int, rawTranscript string) int {
	if len(strings.Fields(rawTranscript)) <= minTokensForScan {
		return baseline
	}
	n := strings.Count(strings.ToLower(rawTranscript), inaudibleMarker)
	res := baseline - n*inaudiblePenalty
	if res < precisionFloor {
		return precisionFloor
	}
	return res
}
