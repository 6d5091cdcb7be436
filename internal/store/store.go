package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record or blob exists for the key.
var ErrNotFound = errors.New("not found")

// Record is one persisted transcription.
type Record struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	RawText         string    `json:"rawText,omitempty"`
	CleanedText     string    `json:"cleanedText,omitempty"`
	AdvancedText    string    `json:"advancedText,omitempty"`
	ContentType     string    `json:"contentType,omitempty"`
	OutputFormat    string    `json:"outputFormat,omitempty"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	Precision       int       `json:"precision,omitempty"`
	AudioID         string    `json:"audioId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Records is the durable mirror of completed sessions. It is written via
// discrete create/update calls, never polled for live sync.
type Records interface {
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	GetByAudioID(ctx context.Context, audioID string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// Blobs stores binary audio keyed by opaque identifiers.
type Blobs interface {
	Put(ctx context.Context, id string, data []byte, mime string) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
