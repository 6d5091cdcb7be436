package pipeline

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/skribas/audio-scribe/internal/api"
	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/metrics"
	"github.com/skribas/audio-scribe/internal/store"
)

// Detector guesses the spoken language of an audio blob.
type Detector interface {
	Detect(ctx context.Context, data []byte, mime string) (string, error)
}

// Transcriber streams raw transcript chunks. The sequence is finite and
// non-restartable.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mime string) iter.Seq2[string, error]
}

// Cleaner streams formatted (HTML-bearing) text for a raw transcript.
type Cleaner interface {
	Clean(ctx context.Context, raw, srcLang, dstLang string) iter.Seq2[string, error]
}

// Refiner streams a structured document built from the raw transcript.
type Refiner interface {
	Refine(ctx context.Context, raw string, contentType ContentType, outputFormat OutputFormat, lang string) iter.Seq2[string, error]
}

// Config holds the pipeline's plan-dependent limits and defaults.
type Config struct {
	// MaxUploadBytes rejects larger files on attach. Zero disables the check.
	MaxUploadBytes int64
	// MaxDurationSeconds rejects longer recordings on constrained plans.
	// Zero disables the check.
	MaxDurationSeconds float64
	// TargetLanguage is the user's preferred output language for cleanup.
	TargetLanguage string
}

// Deps wires the pipeline's collaborators.
type Deps struct {
	Detector    Detector
	Transcriber Transcriber
	Cleaner     Cleaner
	Refiner     Refiner
	Records     store.Records
	Blobs       store.Blobs
	// OnChange receives a snapshot after every applied action. Optional.
	OnChange func(api.SessionSnapshot)
	Config   Config
}

// Pipeline drives one transcription session at a time through the
// detect → transcribe → clean → refine stages.
type Pipeline struct {
	deps Deps
	mts  *metrics.Metrics

	lock sync.Mutex
	sess Session
}

// New creates a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Detector == nil {
		return nil, fmt.Errorf("no detector")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber")
	}
	if deps.Cleaner == nil {
		return nil, fmt.Errorf("no cleaner")
	}
	if deps.Refiner == nil {
		return nil, fmt.Errorf("no refiner")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("no record store")
	}
	if deps.Blobs == nil {
		return nil, fmt.Errorf("no blob store")
	}
	return &Pipeline{deps: deps, mts: metrics.Default, sess: Session{Stage: Idle}}, nil
}

// dispatch applies one action and notifies the listener outside the lock.
func (p *Pipeline) dispatch(a Action) (Session, error) {
	p.lock.Lock()
	next, err := Apply(p.sess, a)
	if err != nil {
		p.lock.Unlock()
		return next, err
	}
	p.sess = next
	p.lock.Unlock()
	if p.deps.OnChange != nil {
		p.deps.OnChange(next.Snapshot())
	}
	return next, nil
}

// Snapshot returns the current read-only session view.
func (p *Pipeline) Snapshot() api.SessionSnapshot {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.sess.Snapshot()
}

// SetFile attaches a new audio source, probes its duration, and kicks off
// language detection in the background. A failed probe degrades the estimates
// but does not block processing.
func (p *Pipeline) SetFile(ctx context.Context, src audio.Source) error {
	if p.deps.Config.MaxUploadBytes > 0 && int64(len(src.Data)) > p.deps.Config.MaxUploadBytes {
		return fmt.Errorf("file is too big: %d > %d bytes", len(src.Data), p.deps.Config.MaxUploadBytes)
	}
	dur, err := audio.Probe(src)
	probeFailed := err != nil
	if probeFailed {
		goapp.Log.Warn().Err(err).Str("file", src.Name).Msg("duration probe failed")
	} else if p.deps.Config.MaxDurationSeconds > 0 && dur > p.deps.Config.MaxDurationSeconds {
		return fmt.Errorf("recording is too long: %.0f > %.0f s", dur, p.deps.Config.MaxDurationSeconds)
	}
	id := ulid.Make().String()
	if _, err := p.dispatch(Action{Kind: api.ActionSetFile, NewID: id, Source: &src,
		DurationSeconds: dur, ProbeFailed: probeFailed}); err != nil {
		return err
	}
	go p.detectLanguage(ctx, id, src)
	return nil
}

func (p *Pipeline) detectLanguage(ctx context.Context, id string, src audio.Source) {
	if _, err := p.dispatch(Action{Kind: api.ActionStartLanguageDetection, SessionID: id}); err != nil {
		goapp.Log.Error().Err(err).Msg("can't start language detection")
		return
	}
	lang, err := p.deps.Detector.Detect(ctx, src.Data, src.Mime)
	if err != nil {
		// Detection failure degrades to the sentinel label, never blocks.
		goapp.Log.Warn().Err(err).Msg("language detection failed")
		_, _ = p.dispatch(Action{Kind: api.ActionSetLanguage, SessionID: id,
			Language: LanguageUnknown, Warning: "language detection failed"})
		return
	}
	_, _ = p.dispatch(Action{Kind: api.ActionSetLanguage, SessionID: id, Language: strings.TrimSpace(lang)})
}

// SetLanguage overrides the detected language.
func (p *Pipeline) SetLanguage(lang string) error {
	_, err := p.dispatch(Action{Kind: api.ActionSetLanguage, Language: lang})
	return err
}

// StartProcessing begins the raw transcription stage. It is rejected while a
// stage is active or before a language (or the sentinel) is set.
func (p *Pipeline) StartProcessing(ctx context.Context) error {
	next, err := p.dispatch(Action{Kind: api.ActionStartProcessing})
	if err != nil {
		return err
	}
	p.mts.SessionsStarted.Inc()
	go p.runProcessing(ctx, next.ID, *next.Source, next.DetectedLanguage)
	return nil
}

func (p *Pipeline) runProcessing(ctx context.Context, id string, src audio.Source, lang string) {
	start := time.Now()
	for chunk, err := range p.deps.Transcriber.Transcribe(ctx, src.Data, src.Mime) {
		if err != nil {
			p.fail(id, "transcribing", err)
			return
		}
		p.mts.ChunksReceived.WithLabelValues("transcribing").Inc()
		_, _ = p.dispatch(Action{Kind: api.ActionUpdateRawTranscript, SessionID: id, Chunk: chunk})
	}
	p.mts.StageDuration.WithLabelValues("transcribing").Observe(time.Since(start).Seconds())

	next, _ := p.dispatch(Action{Kind: api.ActionFinalizeRawTranscript, SessionID: id})
	if next.ID != id || next.Stage != Cleaning {
		// Session replaced, or the raw text was empty and cleaning is skipped.
		return
	}

	dstLang := p.deps.Config.TargetLanguage
	if dstLang == "" {
		dstLang = lang
	}
	start = time.Now()
	for chunk, err := range p.deps.Cleaner.Clean(ctx, next.RawTranscript, lang, dstLang) {
		if err != nil {
			p.fail(id, "cleaning", err)
			return
		}
		p.mts.ChunksReceived.WithLabelValues("cleaning").Inc()
		_, _ = p.dispatch(Action{Kind: api.ActionUpdateCleanedTranscript, SessionID: id, Chunk: chunk})
	}
	p.mts.StageDuration.WithLabelValues("cleaning").Observe(time.Since(start).Seconds())
	_, _ = p.dispatch(Action{Kind: api.ActionFinalizeCleaned, SessionID: id})
	_, _ = p.dispatch(Action{Kind: api.ActionCompleteProcessing, SessionID: id})
}

func (p *Pipeline) fail(id, stage string, err error) {
	kind := Classify(err)
	goapp.Log.Error().Err(err).Str("stage", stage).Str("kind", kind.String()).Msg("pipeline failure")
	p.mts.SessionsFailed.WithLabelValues(kind.String()).Inc()
	_, _ = p.dispatch(Action{Kind: api.ActionProcessingError, SessionID: id, ErrMessage: kind.Message()})
}

// Refine starts an optional, repeatable refinement pass over the raw
// transcript.
func (p *Pipeline) Refine(ctx context.Context, contentType ContentType, outputFormat OutputFormat) error {
	next, err := p.dispatch(Action{Kind: api.ActionStartRefining, ContentType: contentType, OutputFormat: outputFormat})
	if err != nil {
		return err
	}
	go p.runRefining(ctx, next.ID, next.RawTranscript, next.DetectedLanguage, contentType, outputFormat)
	return nil
}

func (p *Pipeline) runRefining(ctx context.Context, id, raw, lang string, contentType ContentType, outputFormat OutputFormat) {
	start := time.Now()
	for chunk, err := range p.deps.Refiner.Refine(ctx, raw, contentType, outputFormat, lang) {
		if err != nil {
			kind := Classify(err)
			goapp.Log.Error().Err(err).Str("kind", kind.String()).Msg("refinement failure")
			_, _ = p.dispatch(Action{Kind: api.ActionRefiningError, SessionID: id, ErrMessage: kind.Message()})
			return
		}
		p.mts.ChunksReceived.WithLabelValues("refining").Inc()
		_, _ = p.dispatch(Action{Kind: api.ActionUpdateAdvanced, SessionID: id, Chunk: chunk})
	}
	p.mts.StageDuration.WithLabelValues("refining").Observe(time.Since(start).Seconds())
	next, _ := p.dispatch(Action{Kind: api.ActionFinishRefining, SessionID: id})
	if next.ID != id || next.PersistedID == "" {
		return
	}
	// Best-effort write-back for already persisted sessions.
	go p.persistRefinement(context.WithoutCancel(ctx), next.PersistedID, next.AdvancedTranscript, contentType, outputFormat)
}

func (p *Pipeline) persistRefinement(ctx context.Context, recID, advanced string, contentType ContentType, outputFormat OutputFormat) {
	rec, err := p.deps.Records.Get(ctx, recID)
	if err != nil {
		goapp.Log.Error().Err(err).Str("id", recID).Msg("can't load record for refinement write-back")
		return
	}
	rec.AdvancedText = advanced
	rec.ContentType = string(contentType)
	rec.OutputFormat = string(outputFormat)
	if err := p.deps.Records.Update(ctx, rec); err != nil {
		goapp.Log.Error().Err(err).Str("id", recID).Msg("refinement write-back failed")
	}
}

// uploadFailureNotice is prepended to the stored cleaned text when the
// background audio upload fails.
const uploadFailureNotice = "<p><em>Audio upload failed. The recording is not attached to this transcript.</em></p>\n"

// Save persists the session to the record store. The first call creates the
// record, later calls update it. The audio blob is uploaded in the background,
// decoupled from the text save.
func (p *Pipeline) Save(ctx context.Context, title string) error {
	next, err := p.dispatch(Action{Kind: api.ActionStartSaving})
	if err != nil {
		return err
	}
	p.mts.SavesTotal.Inc()

	firstSave := next.PersistedID == ""
	audioID := next.AudioID
	if audioID == "" {
		audioID = uuid.NewString()
	}
	rec := &store.Record{
		ID:              next.PersistedID,
		Title:           title,
		RawText:         next.RawTranscript,
		CleanedText:     next.CleanedTranscript,
		AdvancedText:    next.AdvancedTranscript,
		ContentType:     string(next.ContentType),
		OutputFormat:    string(next.OutputFormat),
		Language:        next.DetectedLanguage,
		DurationSeconds: next.EstimatedDurationSeconds,
		Precision:       next.PrecisionPotential,
		AudioID:         audioID,
	}
	if firstSave {
		rec.ID = uuid.NewString()
		err = p.deps.Records.Create(ctx, rec)
	} else {
		err = p.deps.Records.Update(ctx, rec)
	}
	if err != nil {
		goapp.Log.Error().Err(err).Msg("save failed")
		_, _ = p.dispatch(Action{Kind: api.ActionSavingError, SessionID: next.ID,
			ErrMessage: "Could not save the transcript."})
		return err
	}
	_, _ = p.dispatch(Action{Kind: api.ActionFinishSaving, SessionID: next.ID,
		PersistedID: rec.ID, AudioID: audioID})
	if firstSave && next.Source != nil {
		go p.uploadAudio(context.WithoutCancel(ctx), *next.Source, audioID, rec.ID)
	}
	return nil
}

func (p *Pipeline) uploadAudio(ctx context.Context, src audio.Source, audioID, recID string) {
	if err := p.deps.Blobs.Put(ctx, audioID, src.Data, src.Mime); err != nil {
		p.mts.UploadsFailed.Inc()
		goapp.Log.Error().Err(err).Str("audio", audioID).Msg("audio upload failed")
		rec, gerr := p.deps.Records.Get(ctx, recID)
		if gerr != nil {
			goapp.Log.Error().Err(gerr).Str("id", recID).Msg("can't load record for upload notice")
			return
		}
		rec.CleanedText = uploadFailureNotice + rec.CleanedText
		rec.AudioID = ""
		if uerr := p.deps.Records.Update(ctx, rec); uerr != nil {
			goapp.Log.Error().Err(uerr).Str("id", recID).Msg("can't amend record after failed upload")
		}
		return
	}
	goapp.Log.Info().Str("audio", audioID).Msg("audio uploaded")
}

// Reset discards the session. In-flight streams are not interrupted; their
// late chunks are dropped by the staleness guard.
func (p *Pipeline) Reset() {
	_, _ = p.dispatch(Action{Kind: api.ActionReset})
}
