package orchestrator

// ErrKind identifies a failure stage and cause. Kinds are stable identifiers
// for clients; Messages holds the human-readable text spoken or shown for
// each one.
type ErrKind string

const (
	ErrKindCaptureUnsupported      ErrKind = "capture_unsupported"
	ErrKindCapturePermissionDenied ErrKind = "capture_permission_denied"
	ErrKindCaptureNoSpeech         ErrKind = "capture_no_speech"
	ErrKindCaptureFailed           ErrKind = "capture_failed"
	ErrKindSessionBusy             ErrKind = "session_busy"
	ErrKindInterpreterUnavailable  ErrKind = "interpreter_unavailable"
	ErrKindInterpreterTimeout      ErrKind = "interpreter_timeout"
	ErrKindMissingField            ErrKind = "missing_required_field"
	ErrKindUnknownDestination      ErrKind = "unknown_destination"
	ErrKindStoreFailure            ErrKind = "store_failure"
)

// Messages maps each error kind to its user-facing text.
var Messages = map[ErrKind]string{
	ErrKindCaptureUnsupported:      "Speech recognition is not supported on this device.",
	ErrKindCapturePermissionDenied: "Microphone access was denied. Please allow microphone access and try again.",
	ErrKindCaptureNoSpeech:         "I didn't catch that. Please try again.",
	ErrKindCaptureFailed:           "Something went wrong while listening. Please try again.",
	ErrKindSessionBusy:             "Still working on your last command. One moment.",
	ErrKindInterpreterUnavailable:  "The command service is unavailable right now. Please try again shortly.",
	ErrKindInterpreterTimeout:      "That took too long to process. Please try again.",
	ErrKindMissingField:            "I couldn't work out all the details for that. Please try rephrasing.",
	ErrKindUnknownDestination:      "I don't know that screen. Try dashboard, calendar, tasks, projects, notes, analytics, profile, or automations.",
	ErrKindStoreFailure:            "Saving that didn't work. Please try again.",
}

// MessageFor returns the user-facing text for kind, with a generic fallback.
func MessageFor(kind ErrKind) string {
	if msg, ok := Messages[kind]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}
