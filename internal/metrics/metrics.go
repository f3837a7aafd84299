package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_sessions_active",
		Help: "Currently active voice capture sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_sessions_total",
		Help: "Total voice capture sessions opened",
	})

	UtterancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_utterances_total",
		Help: "Finalized utterances handed to the interpreter",
	})

	TranscriptsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_transcripts_discarded_total",
		Help: "Empty or whitespace-only final transcripts dropped before interpretation",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_commands_total",
		Help: "Commands executed by intent and outcome",
	}, []string{"intent", "outcome"})

	AutoExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_commands_auto_executed_total",
		Help: "Commands auto-executed vs surfaced for manual confirmation",
	}, []string{"mode"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_e2e_duration_seconds",
		Help:    "End-to-end latency from finalized utterance to execution result",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	InterpreterDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_interpreter_degraded_total",
		Help: "Malformed processor responses recovered as general/low-confidence",
	})

	SilenceAutoStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_silence_auto_stops_total",
		Help: "Capture sessions finalized by the silence timeout",
	})
)
