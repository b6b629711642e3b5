// Package pipeline implements the APEX five-stage in-order pipeline: the
// stage latches, the hazard-detection and stalling logic in decode, the
// arithmetic/address computation and branch resolution in execute, the
// memory access in mem, the writeback/commit, and the cycle orchestration
// that steps all five stages per clock tick. This is the exclusive
// subject of the specification this package implements — the loader, the
// CLI driver, and human-readable trace formatting are deliberately kept
// in sibling packages.
package pipeline

import (
	"github.com/apex-sim/apexcpu/isa"
	"github.com/apex-sim/apexcpu/trace"
)

const (
	// NumRegisters is the fixed size of the architectural register file.
	NumRegisters = isa.NumRegisters
	// DataMemorySize is the fixed size of the data memory, in 32-bit words.
	DataMemorySize = 4096
	// CodeBasePC is the program counter value of the first instruction.
	CodeBasePC = 4000
	// InstructionBytes is the fixed size of one instruction slot.
	InstructionBytes = 4
)

const (
	stageFetch     = trace.StageFetch
	stageDecode    = trace.StageDecode
	stageExecute   = trace.StageExecute
	stageMemory    = trace.StageMemory
	stageWriteback = trace.StageWriteback
)

// Engine holds the complete architectural and microarchitectural state of
// one APEX core: the register file, the busy-counter hazard ledger, the
// zero flag, data memory, the five stage latches, and the bookkeeping the
// cycle loop needs (§2 "Architectural State", "Stage Latch").
//
// There is no package-level mutable state (§9's design note on the
// source's module-global stall/trace flags): everything lives on Engine.
type Engine struct {
	PC   int32
	Regs [NumRegisters]int32
	Busy [NumRegisters]int
	Zero bool

	DataMemory [DataMemorySize]int32

	code []isa.Instruction

	fetch      Latch
	decode     Latch
	execute    Latch
	memory     Latch
	writeback  Latch

	fetchEnabled        bool
	fetchFromNextCycle  bool

	Clock   int
	Retired int
	Halted  bool
	Fault   *Fault

	Sink     trace.Sink
	Branches *BranchStats
}

// New constructs an Engine over an already-decoded instruction stream
// (§1: the core consumes an already-decoded instruction stream; the
// assembler/loader is an external collaborator). PC starts at CodeBasePC
// and all registers, the busy ledger, and data memory are zero-initialized
// (§3 "Architectural state invariants").
func New(code []isa.Instruction, sink trace.Sink) *Engine {
	if sink == nil {
		sink = trace.DiscardSink{}
	}
	return &Engine{
		PC:           CodeBasePC,
		code:         code,
		fetchEnabled: true,
		Clock:        1,
		Sink:         sink,
		Branches:     newBranchStats(),
	}
}

// codeIndex converts a program counter into a code-memory index (§3:
// "code memory index = (pc − 4000) / 4").
func codeIndex(pc int32) int {
	return int(pc-CodeBasePC) / InstructionBytes
}

// inBounds reports whether pc addresses a fetchable instruction slot
// (§8 invariant 6: code-memory reads never occur for pc outside
// [4000, 4000+4N)).
func (e *Engine) inBounds(pc int32) bool {
	if pc < CodeBasePC {
		return false
	}
	idx := codeIndex(pc)
	return idx >= 0 && idx < len(e.code)
}

// Step advances the engine by exactly one clock cycle, running all five
// stages in reverse order (WB -> MEM -> EX -> DEC -> IF, §4.6). It returns
// a non-nil error only when a stage traps a Fault (§7); a retired HALT is
// signaled via Engine.Halted, not an error.
//
// The clock counter is not advanced on the cycle that halts the engine,
// matching the reference behavior where the simulation loop breaks before
// reaching the per-cycle increment.
func (e *Engine) Step() error {
	if e.Halted {
		return nil
	}

	if halted := e.writebackStage(); halted {
		e.Halted = true
		return nil
	}

	if err := e.memoryStage(); err != nil {
		e.Halted = true
		e.Fault = err
		return err
	}
	if err := e.executeStage(); err != nil {
		e.Halted = true
		e.Fault = err
		return err
	}
	stalled := e.decodeStage()
	e.fetchStage(stalled)

	e.Clock++
	return nil
}

// Run steps the engine until it halts (HALT retires or a Fault traps) or
// the cycle budget is exhausted, whichever happens first. budget <= 0
// means unbounded (run to halt).
func (e *Engine) Run(budget int) error {
	for budget <= 0 || e.Clock <= budget {
		if e.Halted {
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(stage trace.Stage, lat Latch) {
	ev := trace.StageEvent{
		Cycle: e.Clock,
		Stage: stage,
		Valid: lat.Valid,
	}
	if lat.Valid {
		ev.PC = int(lat.PC)
		ev.Opcode = lat.Opcode
		ev.Rd = lat.Rd
		ev.Rs1 = lat.Rs1
		ev.Rs2 = lat.Rs2
		ev.Rs3 = lat.Rs3
		ev.Imm = lat.Imm
	}
	e.Sink.Emit(ev)
}
