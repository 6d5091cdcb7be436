package api

// Action kinds accepted by the session dispatch interface.
const (
	ActionSetFile                 = "SET_FILE"
	ActionStartLanguageDetection  = "START_LANGUAGE_DETECTION"
	ActionSetLanguage             = "SET_LANGUAGE"
	ActionStartProcessing         = "START_PROCESSING"
	ActionUpdateRawTranscript     = "UPDATE_RAW_TRANSCRIPT"
	ActionFinalizeRawTranscript   = "FINALIZE_RAW_TRANSCRIPT"
	ActionUpdateCleanedTranscript = "UPDATE_CLEANED_TRANSCRIPT"
	ActionFinalizeCleaned         = "FINALIZE_CLEANED_TRANSCRIPT"
	ActionCompleteProcessing      = "COMPLETE_PROCESSING"
	ActionProcessingError         = "PROCESSING_ERROR"
	ActionStartSaving             = "START_SAVING"
	ActionFinishSaving            = "FINISH_SAVING"
	ActionSavingError             = "SAVING_ERROR"
	ActionStartRefining           = "START_REFINING"
	ActionUpdateAdvanced          = "UPDATE_ADVANCED_TRANSCRIPT"
	ActionFinishRefining          = "FINISH_REFINING"
	ActionRefiningError           = "REFINING_ERROR"
	ActionReset                   = "RESET"
)

// Stage values reported in session snapshots.
const (
	StageIdle         = "idle"
	StageDetecting    = "detecting-language"
	StageTranscribing = "transcribing"
	StageCleaning     = "cleaning"
	StageRefining     = "refining"
	StageCompleted    = "completed"
	StageError        = "error"
)

// ActionMsg is one client request on the session websocket.
type ActionMsg struct {
	Action       string  `json:"action"`
	FileName     string  `json:"fileName,omitempty"`
	MimeType     string  `json:"mimeType,omitempty"`
	AudioBase64  string  `json:"audioBase64,omitempty"`
	Language     string  `json:"language,omitempty"`
	Title        string  `json:"title,omitempty"`
	ContentType  string  `json:"contentType,omitempty"`
	OutputFormat string  `json:"outputFormat,omitempty"`
	Start        float64 `json:"start,omitempty"`
	End          float64 `json:"end,omitempty"`
}

// SessionSnapshot is the read-only session view sent after every applied action.
type SessionSnapshot struct {
	ID                       string   `json:"id"`
	Stage                    string   `json:"stage"`
	FileName                 string   `json:"fileName,omitempty"`
	DetectedLanguage         string   `json:"detectedLanguage,omitempty"`
	RawTranscript            string   `json:"rawTranscript,omitempty"`
	CleanedTranscript        string   `json:"cleanedTranscript,omitempty"`
	AdvancedTranscript       string   `json:"advancedTranscript,omitempty"`
	EstimatedDurationSeconds float64  `json:"estimatedDurationSeconds,omitempty"`
	EstimatedProcessingTime  string   `json:"estimatedProcessingTime,omitempty"`
	PrecisionPotential       int      `json:"precisionPotential,omitempty"`
	ElapsedTime              string   `json:"elapsedTime,omitempty"`
	ErrorMessage             string   `json:"errorMessage,omitempty"`
	PersistedID              string   `json:"persistedId,omitempty"`
	Warnings                 []string `json:"warnings,omitempty"`
}

// ErrorMsg is sent when an action cannot be applied at all.
type ErrorMsg struct {
	Error string `json:"error"`
}
