package audio

import "errors"

var (
	// ErrInvalidSelection marks a selection that is empty after frame quantization
	// or has a negative start.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrSelectionOutOfBounds marks a selection ending past the last frame.
	ErrSelectionOutOfBounds = errors.New("selection out of bounds")
	// ErrDecodeFailure marks bytes that could not be decoded as audio.
	ErrDecodeFailure = errors.New("can't decode audio")
	// ErrReadFailure marks a failure reading the source bytes.
	ErrReadFailure = errors.New("can't read audio source")
	// ErrUnreadableMedia is returned by the duration probe on undecodable input.
	ErrUnreadableMedia = errors.New("unreadable media")
)
