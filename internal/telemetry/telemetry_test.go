package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartSpanReturnsUsableContextAndSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), StageSanitize)
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestStageConstantsAreDistinct(t *testing.T) {
	stages := []Stage{StageSanitize, StageGuard, StageGenerate, StageDetect, StageValidate}
	seen := make(map[Stage]bool)
	for _, s := range stages {
		assert.False(t, seen[s], "duplicate stage constant %q", s)
		seen[s] = true
	}
}
