package pipeline

import "strings"

// FailureKind is the user-facing category of a collaborator failure.
type FailureKind int

const (
	UnknownFailure FailureKind = iota
	QuotaExhausted
	InvalidCredentials
	SafetyRejected
	NetworkFailure
	MalformedInput
	ModelUnavailable
	Timeout
)

func (k FailureKind) String() string {
	switch k {
	case QuotaExhausted:
		return "quota"
	case InvalidCredentials:
		return "credentials"
	case SafetyRejected:
		return "safety"
	case NetworkFailure:
		return "network"
	case MalformedInput:
		return "malformed"
	case ModelUnavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// classRules are checked in order, first hit wins. Matching is a heuristic
// case-insensitive substring scan of the raw error text; the upstream service
// does not publish a stable error vocabulary.
var classRules = []struct {
	kind    FailureKind
	matches []string
}{
	{Timeout, []string{"TIMEOUT", "TIMED OUT", "DEADLINE"}},
	{QuotaExhausted, []string{"QUOTA", "RESOURCE_EXHAUSTED", "RESOURCE EXHAUSTED", "429"}},
	{InvalidCredentials, []string{"API KEY", "API_KEY", "UNAUTHENTICATED", "PERMISSION", "401", "403"}},
	{SafetyRejected, []string{"SAFETY", "BLOCKED", "PROHIBITED"}},
	{MalformedInput, []string{"INVALID ARGUMENT", "INVALID_ARGUMENT", "MALFORMED", "UNSUPPORTED", "400"}},
	{ModelUnavailable, []string{"NOT FOUND", "NOT_FOUND", "UNAVAILABLE", "OVERLOADED", "503"}},
	{NetworkFailure, []string{"NETWORK", "CONNECTION", "DIAL", "EOF", "BROKEN PIPE"}},
}

// Classify maps a collaborator error to a failure category.
// Deterministic and case-insensitive.
func Classify(err error) FailureKind {
	if err == nil {
		return UnknownFailure
	}
	msg := strings.ToUpper(err.Error())
	for _, r := range classRules {
		for _, m := range r.matches {
			if strings.Contains(msg, m) {
				return r.kind
			}
		}
	}
	return UnknownFailure
}

// Message returns the single human-readable description of the category. The
// raw error is logged separately and never shown verbatim.
func (k FailureKind) Message() string {
	switch k {
	case QuotaExhausted:
		return "Service quota is exhausted. Try again later."
	case InvalidCredentials:
		return "Service credentials are invalid or missing."
	case SafetyRejected:
		return "The recording was rejected by the service safety filter."
	case NetworkFailure:
		return "Network failure while talking to the transcription service."
	case MalformedInput:
		return "The audio could not be understood by the transcription service."
	case ModelUnavailable:
		return "The transcription model is currently unavailable."
	case Timeout:
		return "The transcription service took too long to answer."
	}
	return "Transcription failed for an unknown reason."
}
