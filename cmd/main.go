package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/gommon/color"

	"github.com/skribas/audio-scribe/internal/ai"
	"github.com/skribas/audio-scribe/internal/api"
	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/pipeline"
	"github.com/skribas/audio-scribe/internal/service"
	"github.com/skribas/audio-scribe/internal/store"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	gemini, err := ai.NewGemini(ctx, cfg.GetString("gemini.key"), cfg.GetString("gemini.model"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gemini")
	}

	records, err := newRecords()
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init record store")
	}
	blobs := newBlobs()

	pCfg := pipeline.Config{
		MaxUploadBytes:     cfg.GetInt64("limits.maxUploadBytes"),
		MaxDurationSeconds: cfg.GetFloat64("limits.maxDurationSeconds"),
		TargetLanguage:     cfg.GetString("targetLanguage"),
	}

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.SliceEngine = audio.NewSliceEngine()
	data.WSHandler = service.NewWSSessionHandler(func(onChange func(api.SessionSnapshot)) (*pipeline.Pipeline, error) {
		return pipeline.New(pipeline.Deps{
			Detector:    gemini,
			Transcriber: gemini,
			Cleaner:     gemini,
			Refiner:     gemini,
			Records:     records,
			Blobs:       blobs,
			OnChange:    onChange,
			Config:      pCfg,
		})
	})

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

func newRecords() (store.Records, error) {
	cfg := goapp.Config
	if url := cfg.GetString("redis.url"); url != "" {
		return store.NewRedisRecords(url, cfg.GetString("redis.encryptionKey"))
	}
	if dir := cfg.GetString("badger.dir"); dir != "" {
		return store.NewBadgerRecords(store.BadgerOptions{Dir: dir})
	}
	goapp.Log.Warn().Msg("no redis/badger configured, using in-memory record store")
	return store.NewMemoryRecords(), nil
}

func newBlobs() store.Blobs {
	cfg := goapp.Config
	bucket := cfg.GetString("s3.bucket")
	if bucket == "" {
		goapp.Log.Warn().Msg("no s3 configured, using in-memory blob store")
		return store.NewMemoryBlobs()
	}
	opts := s3.Options{Region: cfg.GetString("s3.region")}
	if url := cfg.GetString("s3.url"); url != "" {
		opts.BaseEndpoint = aws.String(url)
		opts.UsePathStyle = true
	}
	key, secret := cfg.GetString("s3.key"), cfg.GetString("s3.secret")
	if key != "" {
		opts.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: key, SecretAccessKey: secret}, nil
		})
	}
	return store.NewS3Blobs(s3.New(opts), bucket, cfg.GetString("s3.prefix"))
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    AUDIO SCRIBE v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/skribas/audio-scribe"))
}
