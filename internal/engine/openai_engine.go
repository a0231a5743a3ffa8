package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/schemaforge/schemaforge/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var openaiTracer = otel.Tracer("schemaforge.engine.openai")

// OpenAIEngine runs generation against the OpenAI chat completion API.
type OpenAIEngine struct {
	stateMachine

	cfg     config.EngineConfig
	client  *openai.Client
	limiter *rate.Limiter

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewOpenAIEngine constructs an engine bound to cfg but does not load the
// client; callers must call LoadModel before Generate.
func NewOpenAIEngine(cfg config.EngineConfig) *OpenAIEngine {
	return &OpenAIEngine{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (e *OpenAIEngine) State() State { return e.current() }

// LoadModel validates the model identifier, checks the memory gate, and
// builds the OpenAI client from OPENAI_API_KEY. OpenAI has no local model
// weights to download, so "loading" here means "ready to call" — the
// contract is still idempotent once Loaded.
func (e *OpenAIEngine) LoadModel(ctx context.Context, onProgress ProgressFunc) error {
	if e.beginLoad() {
		return nil
	}

	if err := ValidateModelIdentifier(e.cfg.ModelID); err != nil {
		e.transition(StateFailed)
		return err
	}
	if err := checkMemoryGate(int64(e.cfg.MinFreeMemoryMB), onProgress); err != nil {
		e.transition(StateFailed)
		return err
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		e.transition(StateFailed)
		return fmt.Errorf("schemaforge: OPENAI_API_KEY environment variable not set")
	}

	if onProgress != nil {
		onProgress(50, "connecting to openai")
	}
	e.client = openai.NewClient(apiKey)

	if onProgress != nil {
		onProgress(100, "model ready")
	}
	e.transition(StateIdle)
	return nil
}

// Generate calls the chat completion API with a hard per-call timeout.
func (e *OpenAIEngine) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := e.beginGenerate(); err != nil {
		return "", err
	}

	ctx, span := openaiTracer.Start(ctx, "engine.generate")
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

	req := openai.ChatCompletionRequest{
		Model: modelNameOnly(e.cfg.ModelID),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(params.Temperature),
		TopP:        float32(params.TopP),
	}
	if params.MaxNewTokens > 0 {
		req.MaxTokens = params.MaxNewTokens
	}

	resp, err := e.client.CreateChatCompletion(genCtx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.endGenerate(false)
		return "", classifyGenerationError(err)
	}
	if len(resp.Choices) == 0 {
		e.endGenerate(false)
		return "", fmt.Errorf("schemaforge: openai returned no choices")
	}

	out := NewSecureOutput()
	defer out.Destroy()
	if err := out.Set(resp.Choices[0].Message.Content); err != nil {
		e.endGenerate(false)
		return "", err
	}
	text, err := out.Extract()
	e.endGenerate(false)
	return text, err
}

// Abort cancels the in-flight generation, if any. Safe when idle.
func (e *OpenAIEngine) Abort() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *OpenAIEngine) setCancel(cancel context.CancelFunc) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancel = cancel
}
