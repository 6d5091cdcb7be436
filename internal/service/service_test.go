package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/skribas/audio-scribe/internal/audio"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    *Data
		wantErr bool
	}{
		{name: "ok", data: &Data{WSHandler: &WSSessionHandler{}, SliceEngine: audio.NewSliceEngine()}, wantErr: false},
		{name: "no ws handler", data: &Data{SliceEngine: audio.NewSliceEngine()}, wantErr: true},
		{name: "no slice engine", data: &Data{WSHandler: &WSSessionHandler{}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSliceErrCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid selection", err: audio.ErrInvalidSelection, want: http.StatusBadRequest},
		{name: "out of bounds", err: audio.ErrSelectionOutOfBounds, want: http.StatusBadRequest},
		{name: "decode failure", err: audio.ErrDecodeFailure, want: http.StatusBadRequest},
		{name: "wrapped", err: fmt.Errorf("slice: %w", audio.ErrInvalidSelection), want: http.StatusBadRequest},
		{name: "read failure", err: audio.ErrReadFailure, want: http.StatusInternalServerError},
		{name: "other", err: errors.New("olia"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sliceErrCode(tt.err); got != tt.want {
				t.Errorf("sliceErrCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
