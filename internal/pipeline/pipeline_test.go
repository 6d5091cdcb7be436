package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/skribas/audio-scribe/internal/api"
	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/store"
)

func wavBytes(t *testing.T) []byte {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	if err := enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           make([]int, 8000),
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

type fakeDetector struct {
	lang  string
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeDetector) Detect(ctx context.Context, data []byte, mime string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.lang, f.err
}

type fakeStreamer struct {
	chunks []string
	err    error
	gate   chan struct{}
	calls  atomic.Int32
}

func (f *fakeStreamer) seq() iter.Seq2[string, error] {
	f.calls.Add(1)
	return func(yield func(string, error) bool) {
		if f.gate != nil {
			<-f.gate
		}
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeStreamer) Transcribe(ctx context.Context, data []byte, mime string) iter.Seq2[string, error] {
	return f.seq()
}

func (f *fakeStreamer) Clean(ctx context.Context, raw, srcLang, dstLang string) iter.Seq2[string, error] {
	return f.seq()
}

func (f *fakeStreamer) Refine(ctx context.Context, raw string, contentType ContentType,
	outputFormat OutputFormat, lang string) iter.Seq2[string, error] {
	return f.seq()
}

type failingBlobs struct{}

func (failingBlobs) Put(ctx context.Context, id string, data []byte, mime string) error {
	return errors.New("bucket gone")
}
func (failingBlobs) Get(ctx context.Context, id string) ([]byte, error) { return nil, store.ErrNotFound }
func (failingBlobs) Delete(ctx context.Context, id string) error        { return nil }

type testEnv struct {
	p           *Pipeline
	detector    *fakeDetector
	transcriber *fakeStreamer
	cleaner     *fakeStreamer
	refiner     *fakeStreamer
	records     *store.MemoryRecords
	blobs       store.Blobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		detector:    &fakeDetector{lang: "English"},
		transcriber: &fakeStreamer{chunks: []string{"Hello ", "world"}},
		cleaner:     &fakeStreamer{chunks: []string{"<p>Hello ", "world</p>"}},
		refiner:     &fakeStreamer{chunks: []string{"<ul><li>hello</li></ul>"}},
		records:     store.NewMemoryRecords(),
		blobs:       store.NewMemoryBlobs(),
	}
	return env
}

func (env *testEnv) build(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(Deps{
		Detector:    env.detector,
		Transcriber: env.transcriber,
		Cleaner:     env.cleaner,
		Refiner:     env.refiner,
		Records:     env.records,
		Blobs:       env.blobs,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	env.p = p
	return p
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	for i := 0; i < 300; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

func (env *testEnv) attachAndWaitLanguage(t *testing.T, data []byte) {
	t.Helper()
	if err := env.p.SetFile(context.Background(), audio.Source{Name: "take.wav", Mime: "audio/wav", Data: data}); err != nil {
		t.Fatalf("SetFile() failed: %v", err)
	}
	waitFor(t, "language", func() bool { return env.p.Snapshot().DetectedLanguage != "" })
}

func (env *testEnv) processAndWait(t *testing.T) {
	t.Helper()
	if err := env.p.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() failed: %v", err)
	}
	waitFor(t, "completion", func() bool { return env.p.Snapshot().Stage == api.StageCompleted })
}

func TestPipeline_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))

	snap := env.p.Snapshot()
	if snap.DetectedLanguage != "English" {
		t.Errorf("language = %s", snap.DetectedLanguage)
	}
	if snap.EstimatedDurationSeconds < 0.9 || snap.EstimatedDurationSeconds > 1.1 {
		t.Errorf("duration = %v", snap.EstimatedDurationSeconds)
	}
	if snap.PrecisionPotential != 95 {
		t.Errorf("precision = %d", snap.PrecisionPotential)
	}

	env.processAndWait(t)
	snap = env.p.Snapshot()
	if snap.RawTranscript != "Hello world" {
		t.Errorf("raw = %q", snap.RawTranscript)
	}
	if snap.CleanedTranscript != "<p>Hello world</p>" {
		t.Errorf("cleaned = %q", snap.CleanedTranscript)
	}
	if snap.ElapsedTime == "" {
		t.Error("no elapsed time")
	}
}

func TestPipeline_ProbeFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.build(t)
	env.attachAndWaitLanguage(t, []byte("not really audio"))
	snap := env.p.Snapshot()
	if len(snap.Warnings) == 0 {
		t.Error("want degraded-mode warning")
	}
	// Processing still works.
	env.processAndWait(t)
}

func TestPipeline_SizeCeiling(t *testing.T) {
	env := newTestEnv(t)
	p, err := New(Deps{
		Detector: env.detector, Transcriber: env.transcriber, Cleaner: env.cleaner,
		Refiner: env.refiner, Records: env.records, Blobs: env.blobs,
		Config: Config{MaxUploadBytes: 10},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	err = p.SetFile(context.Background(), audio.Source{Name: "a.wav", Data: wavBytes(t)})
	if err == nil {
		t.Fatal("SetFile() succeeded unexpectedly")
	}
}

func TestPipeline_DurationCeiling(t *testing.T) {
	env := newTestEnv(t)
	p, err := New(Deps{
		Detector: env.detector, Transcriber: env.transcriber, Cleaner: env.cleaner,
		Refiner: env.refiner, Records: env.records, Blobs: env.blobs,
		Config: Config{MaxDurationSeconds: 0.5},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	err = p.SetFile(context.Background(), audio.Source{Name: "a.wav", Data: wavBytes(t)})
	if err == nil {
		t.Fatal("SetFile() succeeded unexpectedly")
	}
}

func TestPipeline_StartBeforeLanguage(t *testing.T) {
	env := newTestEnv(t)
	env.detector.gate = make(chan struct{})
	env.build(t)
	if err := env.p.SetFile(context.Background(), audio.Source{Name: "a.wav", Data: wavBytes(t)}); err != nil {
		t.Fatalf("SetFile() failed: %v", err)
	}
	if err := env.p.StartProcessing(context.Background()); err == nil {
		t.Fatal("StartProcessing() succeeded before language detection")
	}
	close(env.detector.gate)
	waitFor(t, "language", func() bool { return env.p.Snapshot().DetectedLanguage != "" })
	if err := env.p.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() after detection failed: %v", err)
	}
}

func TestPipeline_DetectionFailureUsesSentinel(t *testing.T) {
	env := newTestEnv(t)
	env.detector.err = errors.New("boom")
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	snap := env.p.Snapshot()
	if snap.DetectedLanguage != LanguageUnknown {
		t.Errorf("language = %s, want sentinel", snap.DetectedLanguage)
	}
	if len(snap.Warnings) == 0 {
		t.Error("want warning")
	}
	if snap.Stage == api.StageError {
		t.Error("detection failure must not be fatal")
	}
}

func TestPipeline_EmptyTranscriptSkipsCleaning(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.chunks = []string{"  ", "\n"}
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	env.processAndWait(t)
	if env.cleaner.calls.Load() != 0 {
		t.Error("cleaner called for an empty transcript")
	}
}

func TestPipeline_TranscriberErrorClassified(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.chunks = []string{"part"}
	env.transcriber.err = errors.New("googleapi: Error 429: Quota exceeded")
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	if err := env.p.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() failed: %v", err)
	}
	waitFor(t, "error stage", func() bool { return env.p.Snapshot().Stage == api.StageError })
	snap := env.p.Snapshot()
	if snap.ErrorMessage != QuotaExhausted.Message() {
		t.Errorf("message = %q", snap.ErrorMessage)
	}
	if strings.Contains(snap.ErrorMessage, "googleapi") {
		t.Error("raw error leaked to the user")
	}
}

func TestPipeline_StaleStreamAfterReset(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.gate = make(chan struct{})
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	if err := env.p.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() failed: %v", err)
	}
	env.p.Reset()
	close(env.transcriber.gate)
	// The abandoned stream finishes against a reset session.
	time.Sleep(50 * time.Millisecond)
	snap := env.p.Snapshot()
	if snap.RawTranscript != "" {
		t.Errorf("stale chunks mutated the session: %q", snap.RawTranscript)
	}
	if snap.Stage != api.StageIdle {
		t.Errorf("stage = %s, want idle", snap.Stage)
	}
}

func TestPipeline_SaveCreatesThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	env.processAndWait(t)

	if err := env.p.Save(context.Background(), "Standup"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	first := env.p.Snapshot().PersistedID
	if first == "" {
		t.Fatal("no persisted ID")
	}
	if err := env.p.Save(context.Background(), "Standup v2"); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	second := env.p.Snapshot().PersistedID
	if second != first {
		t.Errorf("second save created a new record: %s != %s", second, first)
	}
	rec, err := env.records.Get(context.Background(), first)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rec.Title != "Standup v2" {
		t.Errorf("title = %s", rec.Title)
	}
	if rec.RawText != "Hello world" {
		t.Errorf("raw = %q", rec.RawText)
	}
	waitFor(t, "audio upload", func() bool {
		_, err := env.blobs.Get(context.Background(), rec.AudioID)
		return err == nil
	})
	byAudio, err := env.records.GetByAudioID(context.Background(), rec.AudioID)
	if err != nil || byAudio.ID != first {
		t.Errorf("GetByAudioID() = %v, %v", byAudio, err)
	}
}

func TestPipeline_UploadFailureAmendsRecord(t *testing.T) {
	env := newTestEnv(t)
	env.blobs = failingBlobs{}
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	env.processAndWait(t)

	if err := env.p.Save(context.Background(), "Notes"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	id := env.p.Snapshot().PersistedID
	waitFor(t, "amended record", func() bool {
		rec, err := env.records.Get(context.Background(), id)
		return err == nil && strings.HasPrefix(rec.CleanedText, uploadFailureNotice)
	})
	// The in-memory result stays untouched.
	if strings.HasPrefix(env.p.Snapshot().CleanedTranscript, uploadFailureNotice) {
		t.Error("notice leaked into the session")
	}
}

func TestPipeline_RefineAndWriteBack(t *testing.T) {
	env := newTestEnv(t)
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	env.processAndWait(t)
	if err := env.p.Save(context.Background(), "Meet"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	id := env.p.Snapshot().PersistedID

	if err := env.p.Refine(context.Background(), ContentMeeting, FormatKeyPoints); err != nil {
		t.Fatalf("Refine() failed: %v", err)
	}
	waitFor(t, "refinement", func() bool {
		s := env.p.Snapshot()
		return s.Stage == api.StageCompleted && s.AdvancedTranscript != ""
	})
	if env.p.Snapshot().AdvancedTranscript != "<ul><li>hello</li></ul>" {
		t.Errorf("advanced = %q", env.p.Snapshot().AdvancedTranscript)
	}
	waitFor(t, "write-back", func() bool {
		rec, err := env.records.Get(context.Background(), id)
		return err == nil && rec.AdvancedText != "" && rec.ContentType == "meeting" && rec.OutputFormat == "key-points"
	})
}

func TestPipeline_SecondProcessingRejected(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.gate = make(chan struct{})
	env.build(t)
	env.attachAndWaitLanguage(t, wavBytes(t))
	if err := env.p.StartProcessing(context.Background()); err != nil {
		t.Fatalf("StartProcessing() failed: %v", err)
	}
	if err := env.p.StartProcessing(context.Background()); err == nil {
		t.Fatal("second StartProcessing() succeeded while active")
	}
	close(env.transcriber.gate)
}
