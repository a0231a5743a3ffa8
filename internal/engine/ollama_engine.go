package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/schemaforge/schemaforge/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var ollamaTracer = otel.Tracer("schemaforge.engine.ollama")

// OllamaEngine runs generation against a local Ollama server through
// langchaingo's model abstraction.
type OllamaEngine struct {
	stateMachine

	cfg     config.EngineConfig
	model   llms.Model
	limiter *rate.Limiter

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewOllamaEngine constructs an engine bound to cfg but does not load the
// model; callers must call LoadModel before Generate.
func NewOllamaEngine(cfg config.EngineConfig) *OllamaEngine {
	return &OllamaEngine{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (e *OllamaEngine) State() State { return e.current() }

// LoadModel validates the model identifier and trusted origin, checks the
// memory gate, then instantiates the langchaingo Ollama client. Ollama
// itself lazily pulls/loads the model on first Call; this step validates
// and establishes the client, and is a no-op on subsequent calls once
// Loaded.
func (e *OllamaEngine) LoadModel(ctx context.Context, onProgress ProgressFunc) error {
	if e.beginLoad() {
		return nil
	}

	if err := ValidateModelIdentifier(e.cfg.ModelID); err != nil {
		e.transition(StateFailed)
		return err
	}
	if e.cfg.TrustedOrigin == "" {
		e.transition(StateFailed)
		return fmt.Errorf("%w: no trusted origin configured", ErrModelSourceRejected)
	}
	if err := checkMemoryGate(int64(e.cfg.MinFreeMemoryMB), onProgress); err != nil {
		e.transition(StateFailed)
		return err
	}

	if onProgress != nil {
		onProgress(10, "connecting to ollama")
	}

	model, err := ollama.New(
		ollama.WithModel(modelNameOnly(e.cfg.ModelID)),
		ollama.WithServerURL(e.cfg.TrustedOrigin),
	)
	if err != nil {
		e.transition(StateFailed)
		return fmt.Errorf("schemaforge: failed to initialize ollama client: %w", err)
	}
	e.model = model

	if onProgress != nil {
		onProgress(100, "model ready")
	}
	e.transition(StateIdle)
	return nil
}

// modelNameOnly strips the "org/" prefix the wire-level identifier
// carries (spec §6) since Ollama addresses models by tag alone.
func modelNameOnly(identifier string) string {
	if idx := strings.LastIndex(identifier, "/"); idx >= 0 {
		return identifier[idx+1:]
	}
	return identifier
}

// Generate calls the model with a hard per-call timeout, honoring
// cooperative cancellation via Abort.
func (e *OllamaEngine) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := e.beginGenerate(); err != nil {
		return "", err
	}

	ctx, span := ollamaTracer.Start(ctx, "engine.generate")
	defer span.End()

	timeout := e.cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	e.setCancel(cancel)
	defer func() {
		e.setCancel(nil)
		cancel()
	}()

	if err := e.limiter.Wait(genCtx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.endGenerate(false)
		return "", classifyGenerationError(err)
	}

	opts := []llms.CallOption{
		llms.WithTemperature(float64(params.Temperature)),
		llms.WithTopP(float64(params.TopP)),
	}
	if params.MaxNewTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxNewTokens))
	}

	result, err := llms.GenerateFromSinglePrompt(genCtx, e.model, prompt, opts...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.endGenerate(false)
		return "", classifyGenerationError(err)
	}

	out := NewSecureOutput()
	defer out.Destroy()
	if err := out.Set(result); err != nil {
		e.endGenerate(false)
		return "", err
	}
	text, err := out.Extract()
	e.endGenerate(false)
	return text, err
}

// Abort cancels the in-flight generation, if any. Safe when idle.
func (e *OllamaEngine) Abort() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *OllamaEngine) setCancel(cancel context.CancelFunc) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancel = cancel
}

func classifyGenerationError(err error) error {
	if err == context.DeadlineExceeded {
		return ErrTimeout
	}
	if err == context.Canceled {
		return ErrCancelled
	}
	return err
}
