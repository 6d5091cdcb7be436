package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/skribas/audio-scribe/internal/utils"
)

// Source is an immutable audio input. The engine only borrows it for the
// duration of one call.
type Source struct {
	Name string
	Mime string
	Data []byte
}

// decodedBuffer holds per-channel float samples of a decoded source.
// All channels have the same frame count, sample rate matches the source.
type decodedBuffer struct {
	sampleRate int
	channels   [][]float64
}

func (d *decodedBuffer) frames() int {
	if len(d.channels) == 0 {
		return 0
	}
	return len(d.channels[0])
}

// SliceResult is a self-contained WAV blob with exactly the requested frames.
type SliceResult struct {
	Data        []byte
	Mime        string
	Frames      int
	SampleRate  int
	NumChannels int
}

// SliceEngine extracts a sample-accurate sub-range of an audio source and
// re-encodes it as 16-bit PCM WAV.
type SliceEngine struct {
}

// NewSliceEngine creates an engine
func NewSliceEngine() *SliceEngine {
	res := &SliceEngine{}
	goapp.Log.Info().Msg("SliceEngine")
	return res
}

// Slice extracts [startSec, endSec) from src and returns it as a WAV blob.
//
// Offsets are quantized to frames with floor(sec * rate). A selection that is
// empty after quantization fails with ErrInvalidSelection, one past the end of
// the source with ErrSelectionOutOfBounds. The source is never mutated.
func (e *SliceEngine) Slice(ctx context.Context, src Source, startSec, endSec float64) (*SliceResult, error) {
	defer utils.MeasureTime("slice", time.Now())
	if startSec < 0 || endSec <= startSec {
		return nil, fmt.Errorf("start %.3f, end %.3f: %w", startSec, endSec, ErrInvalidSelection)
	}
	dec, err := decode(src)
	if err != nil {
		return nil, err
	}
	startFrames := int(math.Floor(startSec * float64(dec.sampleRate)))
	endFrames := int(math.Floor(endSec * float64(dec.sampleRate)))
	frameCount := endFrames - startFrames
	if frameCount <= 0 {
		return nil, fmt.Errorf("empty range after quantization: %w", ErrInvalidSelection)
	}
	if endFrames > dec.frames() {
		return nil, fmt.Errorf("end frame %d > total %d: %w", endFrames, dec.frames(), ErrSelectionOutOfBounds)
	}

	sliced := &decodedBuffer{sampleRate: dec.sampleRate, channels: make([][]float64, len(dec.channels))}
	for ch, samples := range dec.channels {
		out := make([]float64, frameCount)
		copy(out, samples[startFrames:endFrames])
		sliced.channels[ch] = out
	}

	rendered, err := renderOffline(ctx, sliced)
	if err != nil {
		return nil, err
	}

	data, err := encodeWAV(rendered)
	if err != nil {
		return nil, err
	}
	goapp.Log.Debug().Int("frames", frameCount).Int("rate", dec.sampleRate).
		Int("channels", len(dec.channels)).Msg("sliced")
	return &SliceResult{
		Data:        data,
		Mime:        "audio/wav",
		Frames:      frameCount,
		SampleRate:  dec.sampleRate,
		NumChannels: len(dec.channels),
	}, nil
}

func decode(src Source) (*decodedBuffer, error) {
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("empty source '%s': %w", src.Name, ErrReadFailure)
	}
	d := wav.NewDecoder(bytes.NewReader(src.Data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("'%s' is not a valid wav file: %w", src.Name, ErrDecodeFailure)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode '%s': %v: %w", src.Name, err, ErrDecodeFailure)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("'%s': no format info: %w", src.Name, ErrDecodeFailure)
	}
	return deinterleave(buf, int(d.BitDepth)), nil
}

// deinterleave splits the interleaved int samples into normalized per-channel
// float buffers in [-1, 1].
func deinterleave(buf *gaudio.IntBuffer, bitDepth int) *decodedBuffer {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	nc := buf.Format.NumChannels
	frames := len(buf.Data) / nc
	res := &decodedBuffer{sampleRate: buf.Format.SampleRate, channels: make([][]float64, nc)}
	for ch := 0; ch < nc; ch++ {
		res.channels[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < nc; ch++ {
			res.channels[ch][i] = float64(buf.Data[i*nc+ch]) / scale
		}
	}
	return res
}

// encodeWAV writes the buffer as canonical RIFF/WAVE, PCM, 16 bit.
func encodeWAV(dec *decodedBuffer) ([]byte, error) {
	nc := len(dec.channels)
	frames := dec.frames()
	data := make([]int, frames*nc)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < nc; ch++ {
			data[i*nc+ch] = toPCM16(dec.channels[ch][i])
		}
	}
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: nc,
			SampleRate:  dec.sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	wavBuf := &memWriter{buf: make([]byte, 0)}
	enc := wav.NewEncoder(wavBuf, dec.sampleRate, 16, nc, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}
	return wavBuf.Bytes(), nil
}

// toPCM16 clamps to [-1, 1] and scales asymmetrically so that exactly 1.0
// does not overflow int16.
func toPCM16(s float64) int {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int(s * 32768)
	}
	return int(s * 32767)
}

type memWriter struct {
	buf []byte
	pos int64
}

func (m *memWriter) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		newBuf := make([]byte, end)
		copy(newBuf, m.buf)
		m.buf = newBuf
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriter) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	}
	if newPos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	m.pos = newPos
	return newPos, nil
}

func (m *memWriter) Bytes() []byte {
	return m.buf
}
