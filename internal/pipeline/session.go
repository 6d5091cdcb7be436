package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/skribas/audio-scribe/internal/api"
	"github.com/skribas/audio-scribe/internal/audio"
	"github.com/skribas/audio-scribe/internal/utils"
)

type Stage int

const (
	Idle Stage = iota
	DetectingLanguage
	Transcribing
	Cleaning
	Refining
	Completed
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return api.StageIdle
	case DetectingLanguage:
		return api.StageDetecting
	case Transcribing:
		return api.StageTranscribing
	case Cleaning:
		return api.StageCleaning
	case Refining:
		return api.StageRefining
	case Completed:
		return api.StageCompleted
	case Failed:
		return api.StageError
	}
	return "unknown"
}

// LanguageUnknown is substituted when language detection fails. Detection
// failure never blocks the pipeline.
const LanguageUnknown = "indeterminate"

type ContentType string

const (
	ContentMeeting   ContentType = "meeting"
	ContentSermon    ContentType = "sermon"
	ContentInterview ContentType = "interview"
	ContentLecture   ContentType = "lecture"
	ContentNote      ContentType = "note"
)

type OutputFormat string

const (
	FormatReport        OutputFormat = "report"
	FormatArticle       OutputFormat = "article"
	FormatKeyPoints     OutputFormat = "key-points"
	FormatActionItems   OutputFormat = "action-items"
	FormatMeetingReport OutputFormat = "meeting-report"
)

// ParseContentType validates a refinement content classifier.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentMeeting, ContentSermon, ContentInterview, ContentLecture, ContentNote:
		return ContentType(s), nil
	}
	return "", fmt.Errorf("unknown content type '%s'", s)
}

// ParseOutputFormat validates a refinement output classifier.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatReport, FormatArticle, FormatKeyPoints, FormatActionItems, FormatMeetingReport:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format '%s'", s)
}

// Session is the single mutable record of one audio-to-transcript job.
// All mutation goes through Apply.
type Session struct {
	ID     string
	Source *audio.Source
	Stage  Stage

	DetectedLanguage   string
	RawTranscript      string
	CleanedTranscript  string
	AdvancedTranscript string

	EstimatedDurationSeconds float64
	EstimatedProcessingTime  string
	PrecisionBaseline        int
	PrecisionPotential       int

	ContentType  ContentType
	OutputFormat OutputFormat

	ErrorMessage string
	Warnings     []string

	PersistedID string
	AudioID     string
	Saving      bool

	ProcessingStartedAt time.Time
	ElapsedTime         string

	rawFinal     bool
	cleanedFinal bool
}

// Action is one named transition request. Chunk-bearing actions carry the
// session ID they were subscribed under; a mismatch makes them a no-op.
type Action struct {
	Kind      string
	SessionID string

	NewID           string
	Source          *audio.Source
	Language        string
	Chunk           string
	ErrMessage      string
	Warning         string
	DurationSeconds float64
	ProbeFailed     bool
	ContentType     ContentType
	OutputFormat    OutputFormat
	PersistedID     string
	AudioID         string
	At              time.Time
}

func (a Action) at() time.Time {
	if a.At.IsZero() {
		return time.Now()
	}
	return a.At
}

// Apply is the pure transition function. It returns the next session value, or
// the unchanged one plus an error when the action is rejected by a stage guard.
// Stale chunk and finalize actions are silently dropped.
func Apply(s Session, a Action) (Session, error) {
	if a.SessionID != "" && a.SessionID != s.ID {
		return s, nil
	}
	switch a.Kind {
	case api.ActionSetFile:
		if a.Source == nil {
			return s, fmt.Errorf("no source")
		}
		next := Session{ID: a.NewID, Source: a.Source, Stage: Idle}
		next.EstimatedDurationSeconds = a.DurationSeconds
		if a.ProbeFailed {
			next.Warnings = append(next.Warnings, "duration probe failed, estimates degraded")
			next.PrecisionBaseline = precisionUnknown
		} else {
			next.EstimatedProcessingTime = utils.FormatDuration(utils.EstimateProcessing(a.DurationSeconds))
			next.PrecisionBaseline = PrecisionBaseline(a.Source.Name)
		}
		next.PrecisionPotential = next.PrecisionBaseline
		return next, nil
	case api.ActionStartLanguageDetection:
		if s.Source == nil {
			return s, fmt.Errorf("no file attached")
		}
		s.Stage = DetectingLanguage
		return s, nil
	case api.ActionSetLanguage:
		s.DetectedLanguage = a.Language
		if a.Warning != "" {
			s.Warnings = append(s.Warnings, a.Warning)
		}
		// Detection is decoupled from processing, the session stays ready.
		if s.Stage == DetectingLanguage {
			s.Stage = Idle
		}
		return s, nil
	case api.ActionStartProcessing:
		if s.Source == nil {
			return s, fmt.Errorf("no file attached")
		}
		if s.DetectedLanguage == "" {
			return s, fmt.Errorf("language not detected yet")
		}
		if s.Stage != Idle && s.Stage != Completed && s.Stage != Failed {
			return s, fmt.Errorf("already processing (stage %s)", s.Stage)
		}
		s.Stage = Transcribing
		s.RawTranscript = ""
		s.CleanedTranscript = ""
		s.AdvancedTranscript = ""
		s.ErrorMessage = ""
		s.ElapsedTime = ""
		s.rawFinal = false
		s.cleanedFinal = false
		s.PrecisionPotential = s.PrecisionBaseline
		s.ProcessingStartedAt = a.at()
		return s, nil
	case api.ActionUpdateRawTranscript:
		if s.Stage != Transcribing || s.rawFinal {
			return s, nil
		}
		s.RawTranscript += a.Chunk
		s.PrecisionPotential = RevisePrecision(s.PrecisionBaseline, s.RawTranscript)
		return s, nil
	case api.ActionFinalizeRawTranscript:
		if s.Stage != Transcribing {
			return s, nil
		}
		s.rawFinal = true
		if strings.TrimSpace(s.RawTranscript) == "" {
			s.Stage = Completed
			s.ElapsedTime = utils.FormatDuration(a.at().Sub(s.ProcessingStartedAt))
		} else {
			s.Stage = Cleaning
		}
		return s, nil
	case api.ActionUpdateCleanedTranscript:
		if s.Stage != Cleaning || s.cleanedFinal {
			return s, nil
		}
		s.CleanedTranscript += a.Chunk
		return s, nil
	case api.ActionFinalizeCleaned:
		if s.Stage != Cleaning {
			return s, nil
		}
		s.cleanedFinal = true
		return s, nil
	case api.ActionCompleteProcessing:
		if s.Stage != Cleaning && s.Stage != Transcribing {
			return s, nil
		}
		s.Stage = Completed
		s.ElapsedTime = utils.FormatDuration(a.at().Sub(s.ProcessingStartedAt))
		return s, nil
	case api.ActionProcessingError:
		s.Stage = Failed
		s.ErrorMessage = a.ErrMessage
		return s, nil
	case api.ActionStartSaving:
		if s.Stage != Completed && s.Stage != Refining {
			return s, fmt.Errorf("nothing to save (stage %s)", s.Stage)
		}
		s.Saving = true
		return s, nil
	case api.ActionFinishSaving:
		s.Saving = false
		s.PersistedID = a.PersistedID
		if a.AudioID != "" {
			s.AudioID = a.AudioID
		}
		return s, nil
	case api.ActionSavingError:
		s.Saving = false
		s.ErrorMessage = a.ErrMessage
		return s, nil
	case api.ActionStartRefining:
		if s.Stage != Completed {
			return s, fmt.Errorf("can refine only a completed transcript (stage %s)", s.Stage)
		}
		s.Stage = Refining
		s.AdvancedTranscript = ""
		s.ContentType = a.ContentType
		s.OutputFormat = a.OutputFormat
		return s, nil
	case api.ActionUpdateAdvanced:
		if s.Stage != Refining {
			return s, nil
		}
		s.AdvancedTranscript += a.Chunk
		return s, nil
	case api.ActionFinishRefining:
		if s.Stage != Refining {
			return s, nil
		}
		s.Stage = Completed
		return s, nil
	case api.ActionRefiningError:
		if s.Stage != Refining {
			return s, nil
		}
		// Refinement failure returns to completed, it never loses the session.
		s.Stage = Completed
		s.Warnings = append(s.Warnings, a.ErrMessage)
		return s, nil
	case api.ActionReset:
		return Session{Stage: Idle}, nil
	}
	return s, fmt.Errorf("unknown action '%s'", a.Kind)
}

// Snapshot builds the read-only caller view.
func (s Session) Snapshot() api.SessionSnapshot {
	res := api.SessionSnapshot{
		ID:                       s.ID,
		Stage:                    s.Stage.String(),
		DetectedLanguage:         s.DetectedLanguage,
		RawTranscript:            s.RawTranscript,
		CleanedTranscript:        s.CleanedTranscript,
		AdvancedTranscript:       s.AdvancedTranscript,
		EstimatedDurationSeconds: s.EstimatedDurationSeconds,
		EstimatedProcessingTime:  s.EstimatedProcessingTime,
		PrecisionPotential:       s.PrecisionPotential,
		ElapsedTime:              s.ElapsedTime,
		ErrorMessage:             s.ErrorMessage,
		PersistedID:              s.PersistedID,
		Warnings:                 append([]string(nil), s.Warnings...),
	}
	if s.Source != nil {
		res.FileName = s.Source.Name
	}
	return res
}
