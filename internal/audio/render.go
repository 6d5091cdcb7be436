package audio

import (
	"context"
	"fmt"
	"sync/atomic"
)

// renderCtx is an isolated rendering context acquired per slice call. It is
// not shared; live playback state can never leak into the rendered output.
type renderCtx struct {
	gain     float64
	released atomic.Bool
}

func acquireRenderCtx() *renderCtx {
	return &renderCtx{gain: 1.0}
}

func (rc *renderCtx) release() {
	rc.released.Store(true)
}

// renderOffline passes the sliced samples through a deterministic unit-gain
// stage into a fresh buffer. The context is released on every exit path.
func renderOffline(ctx context.Context, in *decodedBuffer) (*decodedBuffer, error) {
	rc := acquireRenderCtx()
	defer rc.release()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out := &decodedBuffer{sampleRate: in.sampleRate, channels: make([][]float64, len(in.channels))}
	for ch, samples := range in.channels {
		rendered := make([]float64, len(samples))
		for i, s := range samples {
			rendered[i] = s * rc.gain
		}
		out.channels[ch] = rendered
	}
	return out, nil
}
