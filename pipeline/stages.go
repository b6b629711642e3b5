package pipeline

import "github.com/apex-sim/apexcpu/isa"

// fetchStage implements §4.1. stalled is the signal decode asserted this
// same cycle (decode runs immediately before fetch in the reverse
// visitation order, so the signal is always fresh).
func (e *Engine) fetchStage(stalled bool) {
	if e.fetchFromNextCycle {
		// A taken branch resolved in EX this same cycle. Produce
		// nothing this cycle; the next cycle fetches from the new PC.
		e.fetchFromNextCycle = false
		return
	}

	if !e.fetchEnabled {
		e.emit(stageFetch, Latch{})
		return
	}

	in := e.code[codeIndex(e.PC)]
	lat := fromInstruction(e.PC, in)

	if stalled {
		// Leave PC unchanged and re-present the same instruction next
		// cycle; do not copy into decode.
		e.emit(stageFetch, lat)
		return
	}

	e.PC += InstructionBytes
	e.decode = lat
	e.emit(stageFetch, lat)

	if in.Opcode == isa.HALT {
		e.fetchEnabled = false
	}
}

// decodeStage implements §4.2. It returns whether it asserted the stall
// signal, which fetchStage consumes in the same cycle.
func (e *Engine) decodeStage() bool {
	if !e.decode.Valid {
		e.emit(stageDecode, Latch{})
		return false
	}

	lat := e.decode
	cls := lat.Opcode.Class()

	if e.sourceBusy(lat, cls) {
		e.emit(stageDecode, lat)
		return true
	}

	if cls.ReadsRS1 {
		lat.Rs1Value = e.Regs[lat.Rs1]
	}
	if cls.ReadsRS2 {
		lat.Rs2Value = e.Regs[lat.Rs2]
	}
	if cls.ReadsRS3 {
		lat.Rs3Value = e.Regs[lat.Rs3]
	}
	if cls.WritesRD {
		e.Busy[lat.Rd]++
	}

	e.execute = lat
	e.decode = Latch{}
	e.emit(stageDecode, lat)
	return false
}

// sourceBusy reports whether any register this instruction reads has a
// nonzero busy count (§4.2 stall rule).
func (e *Engine) sourceBusy(lat Latch, cls isa.OperandClass) bool {
	if cls.ReadsRS1 && e.Busy[lat.Rs1] > 0 {
		return true
	}
	if cls.ReadsRS2 && e.Busy[lat.Rs2] > 0 {
		return true
	}
	if cls.ReadsRS3 && e.Busy[lat.Rs3] > 0 {
		return true
	}
	return false
}

// executeStage implements §4.3: ALU, effective-address computation, and
// branch resolution.
func (e *Engine) executeStage() *Fault {
	if !e.execute.Valid {
		e.emit(stageExecute, Latch{})
		return nil
	}

	lat := e.execute

	switch lat.Opcode {
	case isa.ADD:
		lat.ResultBuffer = lat.Rs1Value + lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.SUB:
		lat.ResultBuffer = lat.Rs1Value - lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.MUL:
		lat.ResultBuffer = lat.Rs1Value * lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.DIV:
		if lat.Rs2Value == 0 {
			return &Fault{Kind: DivideByZero, Cycle: e.Clock, PC: lat.PC, Value: lat.Rs2Value}
		}
		lat.ResultBuffer = lat.Rs1Value / lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.AND:
		lat.ResultBuffer = lat.Rs1Value & lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.OR:
		lat.ResultBuffer = lat.Rs1Value | lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.XOR:
		lat.ResultBuffer = lat.Rs1Value ^ lat.Rs2Value
		e.Zero = lat.ResultBuffer == 0
	case isa.ADDL:
		lat.ResultBuffer = lat.Rs1Value + lat.Imm
		e.Zero = lat.ResultBuffer == 0
	case isa.SUBL:
		lat.ResultBuffer = lat.Rs1Value - lat.Imm
		e.Zero = lat.ResultBuffer == 0
	case isa.MOVC:
		lat.ResultBuffer = lat.Imm
		e.Zero = lat.ResultBuffer == 0
	case isa.CMP:
		e.Zero = lat.Rs1Value == lat.Rs2Value
	case isa.LOAD:
		lat.MemoryAddress = lat.Rs1Value + lat.Imm
	case isa.LDR:
		lat.MemoryAddress = lat.Rs1Value + lat.Rs2Value
	case isa.STORE:
		lat.MemoryAddress = lat.Rs2Value + lat.Imm
	case isa.STR:
		lat.MemoryAddress = lat.Rs1Value + lat.Rs2Value
	case isa.BZ:
		taken := e.Zero
		e.Branches.record(lat.PC, taken)
		if taken {
			if err := e.takeBranch(lat); err != nil {
				return err
			}
		}
	case isa.BNZ:
		taken := !e.Zero
		e.Branches.record(lat.PC, taken)
		if taken {
			if err := e.takeBranch(lat); err != nil {
				return err
			}
		}
	case isa.NOP, isa.HALT:
		// no-op
	}

	e.memory = lat
	e.execute = Latch{}
	e.emit(stageExecute, lat)
	return nil
}

// takeBranch implements the taken-branch side effects common to BZ/BNZ
// (§4.3). The target is relative to the branch's own fetched PC, not the
// following instruction — a deliberate replication of the original
// source's ex.pc + imm formula (§9 Design Notes).
func (e *Engine) takeBranch(lat Latch) *Fault {
	target := lat.PC + lat.Imm
	if !e.inBounds(target) {
		return &Fault{Kind: OutOfRangeBranchTarget, Cycle: e.Clock, PC: lat.PC, Value: target}
	}
	e.PC = target
	e.fetchFromNextCycle = true
	e.decode = Latch{}
	e.fetchEnabled = true
	return nil
}

// memoryStage implements §4.4: single-cycle data-memory access.
func (e *Engine) memoryStage() *Fault {
	if !e.memory.Valid {
		e.emit(stageMemory, Latch{})
		return nil
	}

	lat := e.memory

	switch lat.Opcode {
	case isa.LOAD, isa.LDR:
		addr := lat.MemoryAddress
		if addr < 0 || int(addr) >= DataMemorySize {
			return &Fault{Kind: OutOfRangeMemory, Cycle: e.Clock, PC: lat.PC, Value: addr}
		}
		lat.ResultBuffer = e.DataMemory[addr]
	case isa.STORE:
		addr := lat.MemoryAddress
		if addr < 0 || int(addr) >= DataMemorySize {
			return &Fault{Kind: OutOfRangeMemory, Cycle: e.Clock, PC: lat.PC, Value: addr}
		}
		e.DataMemory[addr] = lat.Rs1Value
	case isa.STR:
		addr := lat.MemoryAddress
		if addr < 0 || int(addr) >= DataMemorySize {
			return &Fault{Kind: OutOfRangeMemory, Cycle: e.Clock, PC: lat.PC, Value: addr}
		}
		e.DataMemory[addr] = lat.Rs3Value
	}

	e.writeback = lat
	e.memory = Latch{}
	e.emit(stageMemory, lat)
	return nil
}

// writebackStage implements §4.5. It returns true when the retiring
// instruction is HALT, signaling simulation complete.
func (e *Engine) writebackStage() bool {
	if !e.writeback.Valid {
		e.emit(stageWriteback, Latch{})
		return false
	}

	lat := e.writeback
	cls := lat.Opcode.Class()

	if cls.WritesRD {
		e.Regs[lat.Rd] = lat.ResultBuffer
		e.Busy[lat.Rd]--
	}

	e.Retired++
	e.writeback = Latch{}
	e.emit(stageWriteback, lat)

	return lat.Opcode == isa.HALT
}
