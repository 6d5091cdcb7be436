package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"

	"github.com/skribas/audio-scribe/internal/api"
	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/pipeline"
)

// PipelineFactory creates a pipeline for one connection. The onChange callback
// receives a snapshot after every applied action.
type PipelineFactory func(onChange func(api.SessionSnapshot)) (*pipeline.Pipeline, error)

// WSSessionHandler serves the action-dispatch interface over one websocket
// connection. One pipeline, one session at a time per connection.
type WSSessionHandler struct {
	newPipeline PipelineFactory
}

// NewWSSessionHandler creates handler
func NewWSSessionHandler(factory PipelineFactory) *WSSessionHandler {
	res := &WSSessionHandler{newPipeline: factory}
	goapp.Log.Info().Msg("WS session handler")
	return res
}

// HandleConnection reads action messages until the connection closes and
// writes a session snapshot after every applied action.
func (h *WSSessionHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	var wLock sync.Mutex
	send := func(v interface{}) {
		wLock.Lock()
		defer wLock.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			goapp.Log.Error().Err(err).Msg("write error")
		}
	}

	p, err := h.newPipeline(func(s api.SessionSnapshot) { send(s) })
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) ||
				errors.Is(err, net.ErrClosed) {
				goapp.Log.Info().Msg("connection closed")
				return nil
			}
			goapp.Log.Error().Err(err).Send()
			return err
		}
		var am api.ActionMsg
		if err := json.Unmarshal(msg, &am); err != nil {
			send(api.ErrorMsg{Error: "bad message"})
			continue
		}
		goapp.Log.Debug().Str("action", am.Action).Send()
		if err := h.apply(ctx, p, &am); err != nil {
			goapp.Log.Warn().Err(err).Str("action", am.Action).Msg("rejected")
			send(api.ErrorMsg{Error: err.Error()})
		}
	}
}

func (h *WSSessionHandler) apply(ctx context.Context, p *pipeline.Pipeline, am *api.ActionMsg) error {
	switch am.Action {
	case api.ActionSetFile:
		data, err := base64.StdEncoding.DecodeString(am.AudioBase64)
		if err != nil {
			return fmt.Errorf("bad audio data: %w", err)
		}
		return p.SetFile(ctx, audio.Source{Name: am.FileName, Mime: am.MimeType, Data: data})
	case api.ActionSetLanguage:
		return p.SetLanguage(am.Language)
	case api.ActionStartProcessing:
		return p.StartProcessing(ctx)
	case api.ActionStartRefining:
		contentType, err := pipeline.ParseContentType(am.ContentType)
		if err != nil {
			return err
		}
		outputFormat, err := pipeline.ParseOutputFormat(am.OutputFormat)
		if err != nil {
			return err
		}
		return p.Refine(ctx, contentType, outputFormat)
	case api.ActionStartSaving:
		return p.Save(ctx, am.Title)
	case api.ActionReset:
		p.Reset()
		return nil
	}
	return fmt.Errorf("unknown action '%s'", am.Action)
}
