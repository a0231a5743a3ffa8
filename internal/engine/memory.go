package engine

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// MemoryStatus reports what the platform told us about free memory.
// HardSignal distinguishes a kernel-reported figure (trustworthy enough
// to refuse a load on) from the absence of one (spec §4.7: "if only soft
// signals are available, proceed but surface a warning").
type MemoryStatus struct {
	HardSignal bool
	FreeMB     int64
}

// readMemoryStatus queries Sysinfo for free RAM. Sysinfo failing (or
// returning on a kernel that doesn't populate Freeram) degrades to "no
// hard signal" rather than an error: the spec treats that as the soft
// case, not a load failure.
func readMemoryStatus() MemoryStatus {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		slog.Warn("schemaforge: could not query system memory", "error", err)
		return MemoryStatus{HardSignal: false}
	}
	freeBytes := uint64(info.Freeram) * uint64(info.Unit)
	return MemoryStatus{HardSignal: true, FreeMB: int64(freeBytes / (1024 * 1024))}
}

// QueryMemoryStatus exposes the platform memory query to callers outside
// this package (the worker orchestrator's checkMemory message, spec
// §4.9), without exposing the gate decision itself.
func QueryMemoryStatus() MemoryStatus {
	return readMemoryStatus()
}

// checkMemoryGate implements the spec's memory pre-check: a hard signal
// below minFreeMB refuses the load outright; a soft (absent) signal lets
// the load proceed with a warning surfaced through onProgress.
func checkMemoryGate(minFreeMB int64, onProgress ProgressFunc) error {
	return decideMemoryGate(readMemoryStatus(), minFreeMB, onProgress)
}

// decideMemoryGate is the pure decision the gate makes once it has a
// MemoryStatus, split out from the platform query so it can be tested
// without depending on the host's actual memory.
func decideMemoryGate(status MemoryStatus, minFreeMB int64, onProgress ProgressFunc) error {
	if !status.HardSignal {
		if onProgress != nil {
			onProgress(0, "unable to verify free memory before loading; proceeding anyway")
		}
		return nil
	}
	if status.FreeMB < minFreeMB {
		return fmt.Errorf("%w: %d MB free, need at least %d MB — close other applications and try again",
			ErrOutOfMemory, status.FreeMB, minFreeMB)
	}
	return nil
}
