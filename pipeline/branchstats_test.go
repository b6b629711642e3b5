package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A taken branch resolving once at a fresh site misses: the neutral
// counter's standing prediction is not-taken.
func TestBranchStats_FirstTakenMissesNeutralCounter(t *testing.T) {
	eng := newEngine(t, `
		MOVC R1,#0
		CMP  R1,R1
		BZ   #8
		MOVC R2,#1
		HALT
	`)
	runToHalt(t, eng)

	assert.Equal(t, 1, eng.Branches.Resolved())
	assert.InDelta(t, 0.0, eng.Branches.Accuracy(), 1e-9, "neutral counter starts biased not-taken, so a single taken branch always misses once")
}

// A not-taken branch matches the neutral counter's standing prediction
// immediately.
func TestBranchStats_NotTakenMatchesNeutralBias(t *testing.T) {
	eng := newEngine(t, `
		MOVC R1,#1
		CMP  R1,R1
		BNZ  #8
		MOVC R2,#77
		HALT
	`)
	runToHalt(t, eng)

	assert.Equal(t, 1, eng.Branches.Resolved())
	assert.Equal(t, 1.0, eng.Branches.Accuracy())
}
