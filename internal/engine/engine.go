// Package engine implements the LLM Engine (spec §4.7): model loading with
// a trusted-origin whitelist and memory gate, bounded generation with hard
// timeouts and cooperative cancellation, and the state machine that gates
// which calls are legal at any moment.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// State is a position in the engine's lifecycle:
// Unloaded → Loading → Loaded → (Idle ⇄ Generating) → (Idle | Failed).
// Loaded is represented here as the union of Idle and Generating: once a
// model has loaded, the engine alternates between those two without
// returning to Loading.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateIdle
	StateGenerating
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsLoaded reports whether the engine has a model ready, i.e. admits a new
// Generate call.
func (s State) IsLoaded() bool {
	return s == StateIdle
}

// Sentinel errors distinguished at the worker boundary (spec §7).
var (
	ErrModelSourceRejected = errors.New("model source rejected")
	ErrOutOfMemory         = errors.New("insufficient free memory to load model")
	ErrTimeout             = errors.New("generation timed out")
	ErrCancelled           = errors.New("generation cancelled")
	ErrAlreadyLoaded       = errors.New("model already loaded")
	ErrNotLoaded           = errors.New("engine is not loaded")
	ErrGenerationInFlight  = errors.New("a generation is already in flight")
)

// GenerationParams mirrors the sampling knobs the spec names for
// generate(). MaxNewTokens, Temperature, and TopP are model-dependent in
// magnitude; the spec fixes the shape, not the numbers (spec §9).
type GenerationParams struct {
	MaxNewTokens int
	Temperature  float32
	DoSample     bool
	TopP         float32
}

// ProgressFunc reports load progress. percent is 0..100; message is a
// short human-readable status, not raw model output.
type ProgressFunc func(percent int, message string)

// Engine is the contract every backend (Ollama, OpenAI, ...) implements.
type Engine interface {
	// LoadModel loads the configured model. Second and later calls are
	// no-ops once the engine is already loaded.
	LoadModel(ctx context.Context, onProgress ProgressFunc) error

	// Generate produces text continuing prompt. Only legal when State()
	// reports Idle; callers get ErrNotLoaded or ErrGenerationInFlight
	// otherwise.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Abort signals the in-flight generation, if any. Safe to call while
	// idle.
	Abort()

	// State reports the current lifecycle position.
	State() State
}

// modelIDPattern enforces the spec's "org/model-name" identifier shape.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// ValidateModelIdentifier rejects identifiers carrying a URI scheme and
// identifiers that don't match the required "org/model-name" shape
// (spec §6, §4.7).
func ValidateModelIdentifier(identifier string) error {
	if strings.Contains(identifier, "://") {
		return fmt.Errorf("%w: identifier %q must not contain a scheme", ErrModelSourceRejected, identifier)
	}
	if !modelIDPattern.MatchString(identifier) {
		return fmt.Errorf("%w: identifier %q must be of the form org/model-name", ErrModelSourceRejected, identifier)
	}
	return nil
}

// ValidateOrigin checks a resolved download origin against the single
// trusted origin configured for this deployment, by substring match
// (spec §4.7: "whitelisted by substring match").
func ValidateOrigin(origin, trustedOrigin string) error {
	if trustedOrigin == "" || !strings.Contains(origin, trustedOrigin) {
		return fmt.Errorf("%w: origin %q is not the trusted origin", ErrModelSourceRejected, origin)
	}
	return nil
}

// stateMachine is embedded by backend implementations to share the
// lifecycle bookkeeping instead of each reimplementing it.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) transition(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = to
}

// beginLoad reports whether a model is already loaded (Idle or
// Generating), in which case it changes nothing; otherwise it moves the
// engine to Loading and returns false.
func (m *stateMachine) beginLoad() (alreadyLoaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle || m.state == StateGenerating {
		return true
	}
	m.state = StateLoading
	return false
}

// beginGenerate transitions Idle → Generating, or reports why it can't.
func (m *stateMachine) beginGenerate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateGenerating:
		return ErrGenerationInFlight
	case StateIdle:
		m.state = StateGenerating
		return nil
	default:
		return ErrNotLoaded
	}
}

func (m *stateMachine) endGenerate(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failed {
		m.state = StateFailed
		return
	}
	m.state = StateIdle
}
