// Package command defines the interpreted-command model and the dispatch
// router that turns a command into exactly one store call.
package command

// Intent is the classified purpose of a spoken command.
type Intent string

const (
	IntentCreateTask  Intent = "create_task"
	IntentCreateNote  Intent = "create_note"
	IntentCreateEvent Intent = "create_event"
	IntentSearch      Intent = "search"
	IntentNavigate    Intent = "navigate"
	IntentGeneral     Intent = "general"
)

// ParseIntent maps a processor-supplied type string to an Intent.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentCreateTask, IntentCreateNote, IntentCreateEvent,
		IntentSearch, IntentNavigate, IntentGeneral:
		return Intent(s), true
	}
	return "", false
}

// Interpreted is the structured command produced from one utterance.
// Immutable once built; consumed at most once by the router.
type Interpreted struct {
	Intent       Intent         `json:"intent"`
	Data         map[string]any `json:"data,omitempty"`
	Confidence   float64        `json:"confidence"`
	OriginalText string         `json:"original_text"`
	// Response is the processor's conversational reply, used for spoken
	// feedback and for general-chat commands.
	Response string `json:"response,omitempty"`
}

// ErrorKind classifies router failures.
type ErrorKind string

const (
	ErrKindMissingField       ErrorKind = "missing_required_field"
	ErrKindUnknownDestination ErrorKind = "unknown_destination"
	ErrKindStoreFailure       ErrorKind = "store_failure"
)

// Result is the outcome of executing one interpreted command.
type Result struct {
	Intent  Intent    `json:"intent"`
	Success bool      `json:"success"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	// Field names the offending field for missing_required_field results.
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
	// SideEffectRef identifies the created record or resolved route.
	SideEffectRef string      `json:"side_effect_ref,omitempty"`
	Hits          []SearchHit `json:"hits,omitempty"`
}

// SearchHit is one read-side match returned by the store collaborator.
type SearchHit struct {
	Kind  string `json:"kind"`
	Ref   string `json:"ref"`
	Title string `json:"title"`
}
