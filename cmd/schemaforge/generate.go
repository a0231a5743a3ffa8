package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schemaforge/schemaforge/internal/worker"
)

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Run one generate request and print the resulting schema",
	Long: `generate runs a single description through the full pipeline —
sanitize, guard, generate, validate — and prints the resulting JSON
Schema to stdout. The description is taken from the positional
argument, or from stdin when none is given.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cfg.Engine)
	if err != nil {
		return err
	}

	input, err := readInput(args)
	if err != nil {
		return err
	}

	orchestrator := worker.New(eng, worker.Options{
		MinFreeMB:     int64(cfg.Engine.MinFreeMemoryMB),
		RunEvaluation: cfg.Evaluation.Enabled,
		MaxAttempts:   cfg.Retry.MaxAttempts,
		Backend:       cfg.Engine.Backend,
	})

	var result string
	var genErr error

	emit := func(e worker.Event) {
		switch e.Type {
		case worker.EventProgress:
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", e.Percent, e.Message)
		case worker.EventAttempt:
			fmt.Fprintf(os.Stderr, "attempt %d/%d\n", e.Attempt, e.MaxAttempts)
		case worker.EventResult:
			result = e.Schema
		case worker.EventError:
			genErr = fmt.Errorf("%s: %s", e.ErrKind, e.Err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.GenerationTimeout)
	defer cancel()

	if err := orchestrator.HandleGenerate(ctx, input, emit); err != nil {
		if genErr == nil {
			genErr = err
		}
	}

	if genErr != nil {
		return genErr
	}

	fmt.Println(result)
	return nil
}

func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read description from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
