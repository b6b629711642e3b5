// Package loader parses an APEX assembly source file into a decoded
// instruction stream. This corresponds to create_code_memory in the
// original source: an external collaborator from the pipeline core's
// point of view (spec §1), kept in its own package so pipeline.Engine
// never has to know about text syntax.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apex-sim/apexcpu/isa"
)

// ParseError reports a malformed line. The core treats well-formedness as
// the loader's responsibility (spec §7); callers surface this to the user
// rather than letting it reach the engine.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("apex: line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// operand field kinds, used to describe each opcode's textual operand
// order below. This mirrors the fixed shapes spec §6 prescribes for
// trace rendering; the loader accepts the same order it later prints.
const (
	fieldRd  = "rd"
	fieldRs1 = "rs1"
	fieldRs2 = "rs2"
	fieldRs3 = "rs3"
	fieldImm = "imm"
)

// operandOrder gives, for each opcode, the operand fields expected on the
// source line, in order. STORE's printed/parsed order is rs1,rs2 even
// though the semantic store target is rs2+imm (spec §9) — the loader
// only fixes textual order; pipeline.executeStage keeps the real mapping.
var operandOrder = map[isa.Opcode][]string{
	isa.ADD:   {fieldRd, fieldRs1, fieldRs2},
	isa.SUB:   {fieldRd, fieldRs1, fieldRs2},
	isa.MUL:   {fieldRd, fieldRs1, fieldRs2},
	isa.DIV:   {fieldRd, fieldRs1, fieldRs2},
	isa.AND:   {fieldRd, fieldRs1, fieldRs2},
	isa.OR:    {fieldRd, fieldRs1, fieldRs2},
	isa.XOR:   {fieldRd, fieldRs1, fieldRs2},
	isa.ADDL:  {fieldRd, fieldRs1, fieldImm},
	isa.SUBL:  {fieldRd, fieldRs1, fieldImm},
	isa.LOAD:  {fieldRd, fieldRs1, fieldImm},
	isa.LDR:   {fieldRd, fieldRs1, fieldRs2},
	isa.STORE: {fieldRs1, fieldRs2, fieldImm},
	isa.STR:   {fieldRs3, fieldRs1, fieldRs2},
	isa.MOVC:  {fieldRd, fieldImm},
	isa.CMP:   {fieldRs1, fieldRs2},
	isa.BZ:    {fieldImm},
	isa.BNZ:   {fieldImm},
	isa.NOP:   {},
	isa.HALT:  {},
}

// Load reads a program from filename. An empty filename or a missing file
// is an initialization failure (spec §7: "report to stderr and exit" is
// the caller's job; Load just returns the error).
func Load(filename string) ([]isa.Instruction, error) {
	if filename == "" {
		return nil, fmt.Errorf("apex: no input file given")
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("apex: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one instruction per non-blank, non-comment line from r.
// Grammar: "OPCODE operands...", mnemonics case-insensitive, registers as
// R<n>, immediates as #<n>, ';' starts a line comment.
func Parse(r io.Reader) ([]isa.Instruction, error) {
	var code []isa.Instruction
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}
		in, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: raw, Err: err}
		}
		code = append(code, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("apex: reading program: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("apex: program is empty")
	}
	return code, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseLine(line string) (isa.Instruction, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return isa.Instruction{}, fmt.Errorf("empty instruction")
	}

	mnemonic := strings.ToUpper(fields[0])
	op, ok := isa.Lookup(mnemonic)
	if !ok {
		return isa.Instruction{}, fmt.Errorf("unknown opcode %q", fields[0])
	}

	want := operandOrder[op]
	operands := fields[1:]
	if len(operands) != len(want) {
		return isa.Instruction{}, fmt.Errorf("%s expects %d operand(s), got %d", mnemonic, len(want), len(operands))
	}

	in := isa.Instruction{Opcode: op}
	for i, kind := range want {
		tok := operands[i]
		switch kind {
		case fieldRd, fieldRs1, fieldRs2, fieldRs3:
			v, err := parseRegister(tok)
			if err != nil {
				return isa.Instruction{}, err
			}
			switch kind {
			case fieldRd:
				in.Rd = v
			case fieldRs1:
				in.Rs1 = v
			case fieldRs2:
				in.Rs2 = v
			case fieldRs3:
				in.Rs3 = v
			}
		case fieldImm:
			v, err := parseImmediate(tok)
			if err != nil {
				return isa.Instruction{}, err
			}
			in.Imm = v
		}
	}

	return in, nil
}

func parseRegister(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if len(tok) < 2 || (tok[0] != 'R' && tok[0] != 'r') {
		return 0, fmt.Errorf("expected register operand, got %q", tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil {
		return 0, fmt.Errorf("invalid register %q: %w", tok, err)
	}
	if n < 0 || n >= isa.NumRegisters {
		return 0, fmt.Errorf("register index %d out of range [0,%d)", n, isa.NumRegisters)
	}
	return n, nil
}

func parseImmediate(tok string) (int32, error) {
	tok = strings.TrimSpace(tok)
	tok = strings.TrimPrefix(tok, "#")
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate %q: %w", tok, err)
	}
	return int32(n), nil
}
