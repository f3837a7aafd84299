// Package interpret maps finalized utterances to structured commands by way
// of an external command-processor service. All linguistic reasoning lives in
// the processor; this package owns the request payload, defensive response
// parsing, and the degrade-to-general fallback.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sera-labs/voicekit/internal/capture"
	"github.com/sera-labs/voicekit/internal/command"
	"github.com/sera-labs/voicekit/internal/metrics"
)

// Request is the payload sent to the command processor. NowISO lets the
// processor resolve relative dates like "tomorrow".
type Request struct {
	Transcript string `json:"transcript"`
	NowISO     string `json:"now_iso"`
}

// Processor produces a raw model response for one request. The response is
// expected to contain a JSON command payload but may wrap it in prose or
// Markdown code fences.
type Processor interface {
	Process(ctx context.Context, req Request) (string, error)
}

// Typed interpreter failures.
var (
	ErrUnavailable = errors.New("command processor unavailable")
	ErrTimeout     = errors.New("command processor timeout")
)

// DefaultSystemPrompt instructs the processor to answer with a single JSON
// command object.
const DefaultSystemPrompt = `You convert one spoken request from a personal productivity app into a single JSON object and nothing else: {"type": one of "create_task","create_note","create_event","search","navigate","general", "data": object, "confidence": number between 0 and 1, "response": short spoken confirmation}. For create_task use data keys title, description, priority (high|medium|low), deadline, gtd_status (NOW|NEXT|LATER). For create_note use title, content. For create_event use title, date, time; resolve relative dates against the provided now_iso timestamp. For search use query, scope. For navigate use destination. Anything conversational is "general".`

// Config configures an Interpreter.
type Config struct {
	Processors *Registry[Processor]
	// Engine selects the processor backend.
	Engine string
	// Timeout bounds one processor call.
	Timeout time.Duration
}

// Interpreter turns one Utterance into one Interpreted command.
type Interpreter struct {
	cfg Config
}

// New creates an interpreter.
func New(cfg Config) *Interpreter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Interpreter{cfg: cfg}
}

// Interpret sends the utterance to the command processor and parses the
// reply. Service failures come back as ErrUnavailable or ErrTimeout; a
// malformed response never fails — it degrades to a general intent at 0.5
// confidence so a parse hiccup cannot block the user.
func (i *Interpreter) Interpret(ctx context.Context, utt capture.Utterance) (*command.Interpreted, error) {
	proc, err := i.cfg.Processors.Resolve(i.cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := proc.Process(ctx, Request{
		Transcript: utt.Text,
		NowISO:     utt.CapturedAt.Format(time.RFC3339),
	})
	metrics.StageDuration.WithLabelValues("interpret").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.Errors.WithLabelValues("interpret", "timeout").Inc()
			return nil, fmt.Errorf("%w: %s", ErrTimeout, err)
		}
		metrics.Errors.WithLabelValues("interpret", "unavailable").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return i.parse(raw, utt), nil
}

// processorReply is the expected shape of the processor's JSON payload.
type processorReply struct {
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	Confidence *float64       `json:"confidence"`
	Response   string         `json:"response"`
}

func (i *Interpreter) parse(raw string, utt capture.Utterance) *command.Interpreted {
	payload := stripWrappers(raw)

	var reply processorReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return i.degrade(raw, utt, "invalid json")
	}

	intent, ok := command.ParseIntent(reply.Type)
	if !ok {
		return i.degrade(raw, utt, "missing or unknown type")
	}

	confidence := 0.5
	if reply.Confidence != nil {
		confidence = clampConfidence(*reply.Confidence, utt.Text)
	}

	return &command.Interpreted{
		Intent:       intent,
		Data:         reply.Data,
		Confidence:   confidence,
		OriginalText: utt.Text,
		Response:     reply.Response,
	}
}

// degrade recovers a malformed processor response locally instead of failing
// the pipeline. The raw text is kept as the conversational response.
func (i *Interpreter) degrade(raw string, utt capture.Utterance, reason string) *command.Interpreted {
	slog.Warn("malformed processor response, degrading to general",
		"reason", reason,
		"transcript", utt.Text,
	)
	metrics.InterpreterDegraded.Inc()
	return &command.Interpreted{
		Intent:       command.IntentGeneral,
		Confidence:   0.5,
		OriginalText: utt.Text,
		Response:     strings.TrimSpace(raw),
	}
}

// clampConfidence validates the processor-supplied confidence to [0,1].
// Out-of-range values are a processor anomaly, clamped and logged.
func clampConfidence(c float64, transcript string) float64 {
	if c >= 0 && c <= 1 {
		return c
	}
	slog.Warn("processor confidence out of range", "confidence", c, "transcript", transcript)
	metrics.Errors.WithLabelValues("interpret", "confidence_range").Inc()
	if c < 0 {
		return 0
	}
	return 1
}

// stripWrappers removes Markdown code fences and surrounding prose from the
// processor output, leaving the innermost JSON object.
func stripWrappers(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		// Tolerate a language tag after the opening fence.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{}") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
