package loader_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-sim/apexcpu/isa"
	"github.com/apex-sim/apexcpu/loader"
)

func TestParse_BasicProgram(t *testing.T) {
	code, err := loader.Parse(strings.NewReader(`
		MOVC R1,#10
		MOVC R2,#20
		ADD  R3,R1,R2
		HALT
	`))
	require.NoError(t, err)
	require.Len(t, code, 4)

	assert.Equal(t, isa.MOVC, code[0].Opcode)
	assert.Equal(t, 1, code[0].Rd)
	assert.Equal(t, int32(10), code[0].Imm)

	assert.Equal(t, isa.ADD, code[2].Opcode)
	assert.Equal(t, 3, code[2].Rd)
	assert.Equal(t, 1, code[2].Rs1)
	assert.Equal(t, 2, code[2].Rs2)

	assert.Equal(t, isa.HALT, code[3].Opcode)
}

func TestParse_CaseInsensitiveMnemonic(t *testing.T) {
	code, err := loader.Parse(strings.NewReader("movc r1,#5\nhalt"))
	require.NoError(t, err)
	require.Len(t, code, 2)
	assert.Equal(t, isa.MOVC, code[0].Opcode)
	assert.Equal(t, isa.HALT, code[1].Opcode)
}

func TestParse_CommentsAndBlankLinesIgnored(t *testing.T) {
	code, err := loader.Parse(strings.NewReader(`
		; this whole program just halts
		HALT  ; trailing comment

		; another comment line
	`))
	require.NoError(t, err)
	require.Len(t, code, 1)
	assert.Equal(t, isa.HALT, code[0].Opcode)
}

// STORE's textual operand order is rs1,rs2,imm even though the semantic
// store target is rs2+imm — the loader only fixes the surface grammar.
func TestParse_StoreOperandOrder(t *testing.T) {
	code, err := loader.Parse(strings.NewReader("STORE R1,R2,#4\nHALT"))
	require.NoError(t, err)
	require.Len(t, code, 2)
	assert.Equal(t, isa.STORE, code[0].Opcode)
	assert.Equal(t, 1, code[0].Rs1)
	assert.Equal(t, 2, code[0].Rs2)
	assert.Equal(t, int32(4), code[0].Imm)
}

func TestParse_STRUsesThreeRegisters(t *testing.T) {
	code, err := loader.Parse(strings.NewReader("STR R3,R1,R2\nHALT"))
	require.NoError(t, err)
	assert.Equal(t, isa.STR, code[0].Opcode)
	assert.Equal(t, 3, code[0].Rs3)
	assert.Equal(t, 1, code[0].Rs1)
	assert.Equal(t, 2, code[0].Rs2)
}

func TestParse_ZeroOperandOpcodes(t *testing.T) {
	code, err := loader.Parse(strings.NewReader("NOP\nHALT"))
	require.NoError(t, err)
	require.Len(t, code, 2)
	assert.Equal(t, isa.NOP, code[0].Opcode)
}

func TestParse_UnknownMnemonicIsParseError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("FROBNICATE R1,R2"))
	require.Error(t, err)

	var perr *loader.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
}

func TestParse_WrongOperandCountIsParseError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("ADD R1,R2\nHALT"))
	require.Error(t, err)

	var perr *loader.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
}

func TestParse_RegisterOutOfRangeIsParseError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("MOVC R99,#1\nHALT"))
	require.Error(t, err)

	var perr *loader.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParse_MalformedRegisterTokenIsParseError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("MOVC X1,#1\nHALT"))
	require.Error(t, err)
}

func TestParse_MalformedImmediateIsParseError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("MOVC R1,#abc\nHALT"))
	require.Error(t, err)
}

func TestParse_EmptyProgramIsError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("; nothing but comments\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParse_ParseErrorIncludesLineNumberAndText(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("HALT\nNOP\nBOGUS R1"))
	require.Error(t, err)

	var perr *loader.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "BOGUS R1", perr.Text)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := loader.Load("/nonexistent/path/to/program.asm")
	require.Error(t, err)
}

func TestLoad_EmptyFilenameIsError(t *testing.T) {
	_, err := loader.Load("")
	require.Error(t, err)
}
