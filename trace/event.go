// Package trace defines the structured per-cycle events the pipeline core
// emits and a sink interface for rendering them. The core never formats
// text itself; it hands a Sink at most one StageEvent per stage per cycle and lets
// the caller decide what, if anything, to do with it (§6's "human-readable
// trace formatting beyond the structured events the core emits" is
// deliberately kept outside pipeline.Engine).
package trace

import (
	"fmt"
	"strings"

	"github.com/apex-sim/apexcpu/isa"
)

// Stage names an APEX pipeline stage. The constants run in program order
// (IF, DEC, EX, MEM, WB); within a cycle the engine visits the stages in
// the reverse order (§4.6): WB, MEM, EX, DEC, IF.
type Stage int

const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback
)

// Name returns the display label used in the trace line format (§6).
func (s Stage) Name() string {
	switch s {
	case StageFetch:
		return "FETCH_STAGE"
	case StageDecode:
		return "DECODE_RF_STAGE"
	case StageExecute:
		return "EX_STAGE"
	case StageMemory:
		return "MEMORY_STAGE"
	case StageWriteback:
		return "WRITEBACK_STAGE"
	default:
		return "UNKNOWN_STAGE"
	}
}

// StageEvent is the structured record of what one stage did (or didn't
// do) in one cycle. Valid is false for an empty stage latch.
type StageEvent struct {
	Cycle   int
	Stage   Stage
	PC      int
	Valid   bool
	Opcode  isa.Opcode
	Rd      int
	Rs1     int
	Rs2     int
	Rs3     int
	Imm     int32
}

// Sink receives one StageEvent for each stage that runs in a cycle. On the
// cycle a taken branch redirects fetch, fetch emits nothing; on the cycle
// HALT retires, only writeback emits; on the cycle a stage traps a fault,
// that stage and the ones after it emit nothing. A nil-safe no-op sink is
// used for the silent "simulate"/"show_mem" control-surface verbs;
// LineSink implements the "display" textual format.
type Sink interface {
	Emit(StageEvent)
}

// DiscardSink implements Sink by dropping every event. Used when tracing
// is disabled (§6 "simulate <n>" / "show_mem <addr>").
type DiscardSink struct{}

func (DiscardSink) Emit(StageEvent) {}

// SliceSink collects events in memory. "single_step" renders each cycle's
// lines from it, and tests use it to assert on the per-cycle trace shape
// rather than parsing printed text.
type SliceSink struct {
	Events []StageEvent
}

func (s *SliceSink) Emit(e StageEvent) {
	s.Events = append(s.Events, e)
}

// operands renders the per-opcode operand text exactly as specified in
// §6: three-register opcodes as "R<rd>,R<rs1>,R<rs2>"; immediate-ALU/LOAD
// as "R<rd>,R<rs1>,#<imm>"; STORE as "R<rs1>,R<rs2>,#<imm>" (display order
// only — the semantic mapping rs1_value -> mem[rs2+imm] is unaffected);
// STR as "R<rs3>,R<rs1>,R<rs2>"; MOVC as "R<rd>,#<imm>"; branches as
// "#<imm>"; CMP as "R<rs1>,R<rs2>"; NOP/HALT as the empty string. Line puts
// the mnemonic and a comma in front of any non-empty operand text.
func operands(e StageEvent) string {
	switch e.Opcode {
	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.AND, isa.OR, isa.XOR:
		return fmt.Sprintf("R%d,R%d,R%d", e.Rd, e.Rs1, e.Rs2)
	case isa.ADDL, isa.SUBL, isa.LOAD:
		return fmt.Sprintf("R%d,R%d,#%d", e.Rd, e.Rs1, e.Imm)
	case isa.LDR:
		return fmt.Sprintf("R%d,R%d,R%d", e.Rd, e.Rs1, e.Rs2)
	case isa.STORE:
		return fmt.Sprintf("R%d,R%d,#%d", e.Rs1, e.Rs2, e.Imm)
	case isa.STR:
		return fmt.Sprintf("R%d,R%d,R%d", e.Rs3, e.Rs1, e.Rs2)
	case isa.MOVC:
		return fmt.Sprintf("R%d,#%d", e.Rd, e.Imm)
	case isa.BZ, isa.BNZ:
		return fmt.Sprintf("#%d", e.Imm)
	case isa.CMP:
		return fmt.Sprintf("R%d,R%d", e.Rs1, e.Rs2)
	case isa.NOP, isa.HALT:
		return ""
	default:
		return ""
	}
}

// Line renders a single event in the "Instruction at <STAGE> ---> ..."
// format (§6), or the EMPTY form when the stage latch held nothing.
func Line(e StageEvent) string {
	if !e.Valid {
		return fmt.Sprintf("Instruction at %s ---> EMPTY", e.Stage.Name())
	}
	ops := operands(e)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Instruction at %s ---> pc(%d) %s", e.Stage.Name(), e.PC, e.Opcode.String())
	if ops != "" {
		sb.WriteByte(',')
		sb.WriteString(ops)
	}
	return sb.String()
}

// LineSink writes one rendered Line per event to an io.Writer-like
// appender. It is the concrete sink used by "display".
type LineSink struct {
	Write func(string)
}

func (s LineSink) Emit(e StageEvent) {
	if s.Write != nil {
		s.Write(Line(e))
	}
}
