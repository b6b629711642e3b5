package pipeline

import "github.com/apex-sim/apexcpu/isa"

// Latch is a stage latch: the structured record that flows between
// pipeline stages, carrying the instruction plus whichever per-stage
// fields have been computed so far (§3 "Stage latch fields").
//
// A latch is "owned" by its producing stage for the duration of a cycle.
// A successful stage transition copies the latch into the next stage's
// latch and marks the producing stage empty (Valid = false). A stall
// leaves the latch intact for re-examination next cycle. A flush marks
// the target latch invalid directly.
type Latch struct {
	Valid bool

	PC     int32
	Opcode isa.Opcode
	Rd     int
	Rs1    int
	Rs2    int
	Rs3    int
	Imm    int32

	Rs1Value int32
	Rs2Value int32
	Rs3Value int32

	ResultBuffer  int32
	MemoryAddress int32
}

// fromInstruction builds a fresh, valid latch from a decoded instruction
// at the given fetch PC. Operand values, result buffer and memory address
// are filled in by later stages.
func fromInstruction(pc int32, in isa.Instruction) Latch {
	return Latch{
		Valid:  true,
		PC:     pc,
		Opcode: in.Opcode,
		Rd:     in.Rd,
		Rs1:    in.Rs1,
		Rs2:    in.Rs2,
		Rs3:    in.Rs3,
		Imm:    in.Imm,
	}
}
