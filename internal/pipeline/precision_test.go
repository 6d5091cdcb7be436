package pipeline

import (
	"strings"
	"testing"
)

func TestPrecisionBaseline(t *testing.T) {
	tests := []struct {
		name string
		file string
		want int
	}{
		{name: "wav", file: "a.wav", want: 95},
		{name: "flac", file: "a.flac", want: 95},
		{name: "upper case", file: "A.WAV", want: 95},
		{name: "m4a", file: "rec.m4a", want: 85},
		{name: "ogg", file: "rec.ogg", want: 85},
		{name: "mp3", file: "song.mp3", want: 75},
		{name: "webm", file: "clip.webm", want: 75},
		{name: "unknown ext", file: "file.xyz", want: 65},
		{name: "no ext", file: "file", want: 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrecisionBaseline(tt.file); got != tt.want {
				t.Errorf("PrecisionBaseline(%s) = %d, want %d", tt.file, got, tt.want)
			}
		})
	}
}

func TestRevisePrecision(t *testing.T) {
	long := strings.Repeat("word ", 11)
	tests := []struct {
		name     string
		baseline int
		text     string
		want     int
	}{
		{name: "short text keeps baseline", baseline: 95, text: "a [inaudible] b", want: 95},
		{name: "no markers", baseline: 95, text: long, want: 95},
		{name: "three markers", baseline: 95, text: long + "[inaudible] [inaudible] [inaudible]", want: 86},
		{name: "case insensitive", baseline: 95, text: long + "[Inaudible] [INAUDIBLE]", want: 89},
		{name: "floor", baseline: 65, text: long + strings.Repeat("[inaudible] ", 20), want: 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RevisePrecision(tt.baseline, tt.text); got != tt.want {
				t.Errorf("RevisePrecision() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRevisePrecision_Monotonic(t *testing.T) {
	chunks := []string{"one two three four five six seven eight nine ten eleven ",
		"[inaudible] ", "more words ", "[inaudible] [inaudible] ", "tail"}
	text := ""
	prev := 95
	for _, c := range chunks {
		text += c
		got := RevisePrecision(95, text)
		if got > prev {
			t.Fatalf("precision rose from %d to %d at %q", prev, got, text)
		}
		prev = got
	}
}
