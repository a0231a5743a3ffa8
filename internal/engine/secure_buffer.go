package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// SecureBufferSize bounds one in-flight generation result. 256 KB covers
// any realistic JSON Schema document with room to spare.
const SecureBufferSize = 256 * 1024

// MinMlockLimitKB is the smallest mlock resource limit this package will
// trust to hold a generation result without falling back to plain memory.
const MinMlockLimitKB = 256

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("schemaforge: secure memory available", "mlock_limit_kb", currentMlockLimitKB)
		} else {
			slog.Warn("schemaforge: mlock limit below requirement; raw model output will not be mlocked",
				"mlock_limit_kb", currentMlockLimitKB, "required_kb", MinMlockLimitKB)
		}
	})
}

func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("schemaforge: could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// SecureOutput holds exactly one untrusted generation result defensively:
// mlocked while in memory, explicitly wiped once the caller is done. This
// adapts the teacher's streaming token accumulator to a single-shot
// result, since the engine's Generate returns one complete string rather
// than a token stream.
type SecureOutput struct {
	id        string
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	fallback  []byte
	length    int
	destroyed bool
}

// NewSecureOutput allocates a holder for one generation result. If the
// system's mlock limit is insufficient, it falls back to plain memory and
// logs a warning rather than failing the generation outright — losing the
// mlock guarantee is not worth failing a user-visible request over.
func NewSecureOutput() *SecureOutput {
	initMemguard()

	id := uuid.New().String()
	if !mlockSufficient {
		return &SecureOutput{id: id, fallback: make([]byte, 0, SecureBufferSize)}
	}

	buf := memguard.NewBuffer(SecureBufferSize)
	if buf == nil {
		slog.Warn("schemaforge: failed to allocate mlocked buffer, falling back to plain memory")
		return &SecureOutput{id: id, fallback: make([]byte, 0, SecureBufferSize)}
	}
	buf.Melt()
	return &SecureOutput{id: id, buffer: buf}
}

// Set copies the raw generation output into the buffer. It may be called
// only once per SecureOutput.
func (s *SecureOutput) Set(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return fmt.Errorf("secure output %s already destroyed", s.id)
	}
	if s.length != 0 {
		return fmt.Errorf("secure output %s already set", s.id)
	}

	raw := []byte(text)
	if len(raw) > SecureBufferSize {
		return fmt.Errorf("generation result too large: %d bytes exceeds %d byte limit", len(raw), SecureBufferSize)
	}

	if s.buffer != nil {
		copy(s.buffer.Bytes(), raw)
	} else {
		s.fallback = append(s.fallback, raw...)
	}
	s.length = len(raw)
	return nil
}

// Extract returns a copy of the held text. It does not destroy the
// buffer; callers still must call Destroy when finished.
func (s *SecureOutput) Extract() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return "", fmt.Errorf("secure output %s already destroyed", s.id)
	}
	if s.buffer != nil {
		return string(s.buffer.Bytes()[:s.length]), nil
	}
	return string(s.fallback[:s.length]), nil
}

// Destroy wipes the held text from memory. Idempotent.
func (s *SecureOutput) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	if s.buffer != nil {
		s.buffer.Destroy()
	} else {
		for i := range s.fallback {
			s.fallback[i] = 0
		}
		s.fallback = nil
	}
	s.destroyed = true
}

// PurgeAllSecureMemory wipes every memguard-allocated buffer. Intended
// for graceful shutdown.
func PurgeAllSecureMemory() {
	memguard.Purge()
}
