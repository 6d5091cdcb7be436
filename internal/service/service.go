package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/metrics"
)

// Data keeps data required for service work
type Data struct {
	Port        int
	WSHandler   *WSSessionHandler
	SliceEngine *audio.SliceEngine
	Ctx         context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting audio-scribe service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 60 * time.Second
	e.Server.WriteTimeout = 60 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("audio_scribe", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.GET("/client/ws/session", subscribe(data))
	e.POST("/slice", sliceAudio(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func validate(data *Data) error {
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	if data.SliceEngine == nil {
		return fmt.Errorf("no SliceEngine")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribe(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.WSHandler.HandleConnection(data.Ctx, ws)
	}
}

func sliceAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		metrics.Default.SlicesTotal.Inc()
		fh, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no file")
		}
		start, err := strconv.ParseFloat(c.FormValue("start"), 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad start")
		}
		end, err := strconv.ParseFloat(c.FormValue("end"), 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad end")
		}
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't open file")
		}
		defer f.Close()
		bytes, err := io.ReadAll(f)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't read file")
		}
		src := audio.Source{Name: fh.Filename, Mime: fh.Header.Get("Content-Type"), Data: bytes}

		res, err := data.SliceEngine.Slice(c.Request().Context(), src, start, end)
		if err != nil {
			metrics.Default.SlicesFailed.Inc()
			goapp.Log.Error().Err(err).Str("file", fh.Filename).Msg("slice failed")
			return echo.NewHTTPError(sliceErrCode(err), err.Error())
		}
		return c.Blob(http.StatusOK, res.Mime, res.Data)
	}
}

func sliceErrCode(err error) int {
	switch {
	case errors.Is(err, audio.ErrInvalidSelection),
		errors.Is(err, audio.ErrSelectionOutOfBounds),
		errors.Is(err, audio.ErrDecodeFailure):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
