// Package worker implements the message-protocol orchestrator (spec §4.9):
// a single entry point that turns one user-supplied prompt into one
// validated JSON Schema, wiring together sanitize, promptguard, schemagen,
// execguard, jsonsafe, schemavalidate, engine, and retry. It emits a
// sequence of typed Events a caller can forward to a client, the way a
// websocket handler forwards status/token/error/done events over the
// wire.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schemaforge/schemaforge/internal/engine"
	"github.com/schemaforge/schemaforge/internal/execguard"
	"github.com/schemaforge/schemaforge/internal/jsonsafe"
	"github.com/schemaforge/schemaforge/internal/metrics"
	"github.com/schemaforge/schemaforge/internal/promptguard"
	"github.com/schemaforge/schemaforge/internal/retry"
	"github.com/schemaforge/schemaforge/internal/sanitize"
	"github.com/schemaforge/schemaforge/internal/schemagen"
	"github.com/schemaforge/schemaforge/internal/schemavalidate"
	"github.com/schemaforge/schemaforge/internal/store"
	"github.com/schemaforge/schemaforge/internal/telemetry"
)

// EventType names the kind of Event emitted over the course of a
// generate session.
type EventType string

const (
	EventProgress EventType = "progress"
	EventAttempt  EventType = "attempt"
	EventResult   EventType = "result"
	EventMemory   EventType = "memory"
	EventError    EventType = "error"
)

// Event is the single message shape the orchestrator emits. Only the
// fields relevant to Type are populated; the rest are zero values.
type Event struct {
	Type EventType

	// EventProgress
	Percent int
	Message string

	// EventAttempt
	Attempt     int
	MaxAttempts int

	// EventResult
	Schema string

	// EventMemory
	MemoryOK bool
	FreeMB   int64

	// EventError
	ErrKind string
	Err     string
}

// EventSink receives Events in emission order. Implementations must be
// safe to call from the goroutine ExecuteWithRetry runs on.
type EventSink func(Event)

// Error kinds (spec §7), used as Event.ErrKind so a caller can render or
// log without string-matching Err.
const (
	ErrKindGeneration        = "generation_failed"
	ErrKindSecurityViolation = "security_violation"
	ErrKindEvaluationFailed  = "evaluation_failed"
	ErrKindValidationFailed  = "validation_failed"
	ErrKindTimeout           = "timeout"
	ErrKindCancelled         = "cancelled"
	ErrKindOutOfMemory       = "out_of_memory"
	ErrKindModelRejected     = "model_source_rejected"
	ErrKindRateLimited       = "rate_limited"
)

// Options configures an Orchestrator. Every field beyond MinFreeMB is
// optional and nil-safe: an Orchestrator built with the zero Options
// still runs the full pipeline, just without metrics or a result cache.
// Tracing spans are started through internal/telemetry either way.
type Options struct {
	// MinFreeMB is the memory gate threshold (spec §4.7).
	MinFreeMB int64

	// RunEvaluation enables the evaluation-prompt pass after a candidate
	// schema is extracted (spec §4.4).
	RunEvaluation bool

	// MaxAttempts bounds the Retry Manager's session (spec §4.8). Zero
	// falls back to retry.DefaultMaxAttempts.
	MaxAttempts int

	// Backend labels this Orchestrator's generation-duration metric,
	// e.g. "ollama" or "openai".
	Backend string

	// Metrics, when non-nil, records attempts, retries, security
	// rejections, validation failures, generation duration, and active
	// session count.
	Metrics *metrics.Metrics

	// Cache, when non-nil, is consulted before generating and updated
	// after a fresh schema validates (spec's domain-stack expansion). A
	// cache hit still runs the full security/validation gauntlet before
	// being trusted.
	Cache *store.Store
}

// Orchestrator drives the generate/cancel/checkMemory message protocol
// against one Engine. It holds no session state of its own beyond what
// Engine and the retry.Manager already track, so reentrancy is enforced
// by retry.Manager.ExecuteWithRetry's own single-session guard.
type Orchestrator struct {
	eng           engine.Engine
	retryMgr      *retry.Manager
	minFreeMB     int64
	runEvaluation bool
	backend       string
	metrics       *metrics.Metrics
	cache         *store.Store
}

// New returns an Orchestrator bound to eng, configured by opts.
func New(eng engine.Engine, opts Options) *Orchestrator {
	return &Orchestrator{
		eng:           eng,
		retryMgr:      retry.New(opts.MaxAttempts),
		minFreeMB:     opts.MinFreeMB,
		runEvaluation: opts.RunEvaluation,
		backend:       opts.Backend,
		metrics:       opts.Metrics,
		cache:         opts.Cache,
	}
}

// HandleGenerate runs one full generate session: ensure the engine is
// loaded, then retry up to the configured MaxAttempts times across
// sanitize → promptguard → prompt build → engine.Generate → extract →
// execguard → jsonsafe → (optional evaluation) → schemavalidate,
// emitting Events as it goes. A reentrant call while a session is
// already active returns retry.ErrSessionActive and reports it as an
// error Event.
func (o *Orchestrator) HandleGenerate(ctx context.Context, userInput string, emit EventSink) error {
	if emit == nil {
		emit = func(Event) {}
	}

	if o.metrics != nil {
		o.metrics.SessionStarted()
		defer o.metrics.SessionEnded()
	}

	if !o.eng.State().IsLoaded() {
		emit(Event{Type: EventProgress, Percent: 0, Message: "loading model"})
		err := o.eng.LoadModel(ctx, func(percent int, message string) {
			emit(Event{Type: EventProgress, Percent: percent, Message: message})
		})
		if err != nil {
			o.emitError(emit, err)
			return err
		}
	}

	sanitizeCtx, sanitizeSpan := telemetry.StartSpan(ctx, telemetry.StageSanitize)
	clean := sanitize.Sanitize(userInput)
	sanitizeSpan.End()

	_, guardSpan := telemetry.StartSpan(sanitizeCtx, telemetry.StageGuard)
	if promptguard.DetectInjectionPatterns(clean) {
		emit(Event{Type: EventProgress, Percent: 10, Message: "neutralizing suspicious input"})
	}
	neutralized := promptguard.SanitizeUserInput(clean)
	guardSpan.End()

	prompt := schemagen.BuildGenerationPrompt(neutralized)

	var cacheKey string
	if o.cache != nil {
		cacheKey = store.Key(neutralized)
		if cached, ok := o.cache.Get(cacheKey); ok && o.validateCandidate(cached) {
			emit(Event{Type: EventResult, Schema: cached})
			return nil
		}
	}

	var finalSchema string
	result, err := o.retryMgr.ExecuteWithRetry(
		func(current, max int) retry.AttemptOutcome {
			if o.metrics != nil && current > 1 {
				o.metrics.RecordRetry()
			}
			schema, attemptErr := o.attempt(ctx, prompt, neutralized, emit)
			if attemptErr != nil {
				if o.metrics != nil {
					o.metrics.RecordAttempt(false)
				}
				if errors.Is(attemptErr, engine.ErrCancelled) || errors.Is(attemptErr, context.Canceled) {
					return retry.AttemptOutcome{Cancelled: true}
				}
				emit(Event{Type: EventError, ErrKind: classify(attemptErr), Err: attemptErr.Error()})
				return retry.AttemptOutcome{Success: false}
			}
			if o.metrics != nil {
				o.metrics.RecordAttempt(true)
			}
			finalSchema = schema
			return retry.AttemptOutcome{Success: true}
		},
		func(current, max int) {
			emit(Event{Type: EventAttempt, Attempt: current, MaxAttempts: max})
		},
	)
	if err != nil {
		o.emitError(emit, err)
		return err
	}

	switch {
	case result.Cancelled:
		emit(Event{Type: EventError, ErrKind: ErrKindCancelled, Err: retry.ErrCancelled.Error()})
		return retry.ErrCancelled
	case result.Success:
		if o.cache != nil {
			o.cache.Put(cacheKey, finalSchema)
		}
		emit(Event{Type: EventResult, Schema: finalSchema})
		return nil
	default:
		o.emitError(emit, result.Err)
		return result.Err
	}
}

// attempt runs a single generate→extract→guard→validate pass and
// returns the validated schema text on success.
func (o *Orchestrator) attempt(ctx context.Context, prompt, neutralizedInput string, emit EventSink) (string, error) {
	genCtx, genSpan := telemetry.StartSpan(ctx, telemetry.StageGenerate)
	start := time.Now()
	raw, err := o.eng.Generate(genCtx, prompt, engine.GenerationParams{
		MaxNewTokens: 1024,
		Temperature:  0.2,
		TopP:         0.9,
		DoSample:     true,
	})
	if o.metrics != nil {
		o.metrics.RecordGenerationDuration(o.backend, time.Since(start).Seconds())
	}
	genSpan.End()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrKindGeneration, err)
	}

	candidate, ok := schemagen.ExtractSchema(raw)
	if !ok {
		return "", fmt.Errorf("%s: model response contained no extractable JSON object", ErrKindGeneration)
	}

	_, detectSpan := telemetry.StartSpan(genCtx, telemetry.StageDetect)
	if !execguard.IsSecure(candidate) {
		detectSpan.End()
		o.recordSecurityRejection("executable_content")
		return "", fmt.Errorf("%s: candidate schema contains executable content", ErrKindSecurityViolation)
	}

	parsed := jsonsafe.Parse(candidate)
	if parsed == nil {
		detectSpan.End()
		return "", fmt.Errorf("%s: candidate schema failed to parse as a JSON object", ErrKindGeneration)
	}
	if jsonsafe.ContainsDangerousKeys(parsed) {
		detectSpan.End()
		o.recordSecurityRejection("dangerous_key")
		return "", fmt.Errorf("%s: candidate schema contains a prototype-pollution key", ErrKindSecurityViolation)
	}
	detectSpan.End()

	if o.runEvaluation {
		evalPrompt := schemagen.BuildEvaluationPrompt(neutralizedInput, candidate)
		evalRaw, err := o.eng.Generate(ctx, evalPrompt, engine.GenerationParams{MaxNewTokens: 64, Temperature: 0})
		if err != nil {
			return "", fmt.Errorf("%s: %w", ErrKindEvaluationFailed, err)
		}
		if !schemagen.ParseEvaluation(evalRaw) {
			return "", fmt.Errorf("%s: model evaluation rejected the candidate schema", ErrKindEvaluationFailed)
		}
	}

	_, validateSpan := telemetry.StartSpan(genCtx, telemetry.StageValidate)
	validation := schemavalidate.ValidateDraft07(parsed)
	validateSpan.End()
	if !validation.Valid {
		if o.metrics != nil {
			o.metrics.RecordValidationFailure()
		}
		return "", fmt.Errorf("%s: %v", ErrKindValidationFailed, validation.Errors)
	}

	emit(Event{Type: EventProgress, Percent: 100, Message: "schema validated"})
	return candidate, nil
}

// validateCandidate re-runs the same security/validation gauntlet
// attempt() applies to a freshly generated schema, against a candidate
// pulled from the cache. A cache hit is only ever trusted after passing
// this in full.
func (o *Orchestrator) validateCandidate(candidate string) bool {
	if !execguard.IsSecure(candidate) {
		return false
	}
	parsed := jsonsafe.Parse(candidate)
	if parsed == nil || jsonsafe.ContainsDangerousKeys(parsed) {
		return false
	}
	return schemavalidate.ValidateDraft07(parsed).Valid
}

func (o *Orchestrator) recordSecurityRejection(reason string) {
	if o.metrics != nil {
		o.metrics.RecordSecurityRejection(reason)
	}
}

// HandleCancel requests cooperative cancellation of the in-flight
// session, if any, aborts the engine's in-flight call so the model
// doesn't keep running to completion, and emits a cancellation progress
// event (spec §2, §4.9). Idempotent: calling it with no session active,
// or calling it twice, is a no-op beyond the abort/emit themselves.
func (o *Orchestrator) HandleCancel(emit EventSink) {
	o.retryMgr.Cancel()
	o.eng.Abort()
	if emit != nil {
		emit(Event{Type: EventProgress, Message: "cancelling"})
	}
}

// HandleCheckMemory reports the current memory gate status without
// starting a generate session.
func (o *Orchestrator) HandleCheckMemory(emit EventSink) {
	if emit == nil {
		return
	}
	status := engine.QueryMemoryStatus()
	emit(Event{Type: EventMemory, MemoryOK: !status.HardSignal || status.FreeMB >= o.minFreeMB, FreeMB: status.FreeMB})
}

func (o *Orchestrator) emitError(emit EventSink, err error) {
	emit(Event{Type: EventError, ErrKind: classify(err), Err: err.Error()})
}

// classify maps an error to the spec §7 error-kind taxonomy, falling
// back to generation_failed when nothing more specific applies.
func classify(err error) string {
	switch {
	case errors.Is(err, engine.ErrOutOfMemory):
		return ErrKindOutOfMemory
	case errors.Is(err, engine.ErrModelSourceRejected):
		return ErrKindModelRejected
	case errors.Is(err, engine.ErrTimeout):
		return ErrKindTimeout
	case errors.Is(err, engine.ErrCancelled), errors.Is(err, retry.ErrCancelled):
		return ErrKindCancelled
	case errors.Is(err, retry.ErrRetriesExhausted):
		return ErrKindGeneration
	default:
		return errKindFromPrefix(err.Error())
	}
}

// errKindFromPrefix recovers the "<kind>: ..." prefix attempt() wraps
// errors with, since those are fmt.Errorf-wrapped strings rather than
// sentinel values.
func errKindFromPrefix(msg string) string {
	for _, kind := range []string{
		ErrKindSecurityViolation,
		ErrKindEvaluationFailed,
		ErrKindValidationFailed,
		ErrKindGeneration,
	} {
		if len(msg) >= len(kind) && msg[:len(kind)] == kind {
			return kind
		}
	}
	return ErrKindGeneration
}
