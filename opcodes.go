// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package flint

// Opcode represents a single byte operation code.
type Opcode = byte

// List of opcodes (spec.md §4.3's instruction table).
const (
	OpConst Opcode = iota
	OpLoadGlobal
	OpStoreGlobal
	OpLoadLocal
	OpStoreLocal
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpJump
	OpJumpIfFalse
	OpCallName
	OpRet
	OpHalt
	OpArrayNew
	OpArrayGet
	OpArraySet
	OpPrint
)

// OpcodeNames are the disassembler's mnemonics for each opcode.
var OpcodeNames = [...]string{
	OpConst:       "CONST",
	OpLoadGlobal:  "LOAD_GLOBAL",
	OpStoreGlobal: "STORE_GLOBAL",
	OpLoadLocal:   "LOAD_LOCAL",
	OpStoreLocal:  "STORE_LOCAL",
	OpPop:         "POP",
	OpAdd:         "ADD",
	OpSub:         "SUB",
	OpMul:         "MUL",
	OpDiv:         "DIV",
	OpMod:         "MOD",
	OpNeg:         "NEG",
	OpNot:         "NOT",
	OpEq:          "EQ",
	OpNe:          "NE",
	OpLt:          "LT",
	OpLe:          "LE",
	OpGt:          "GT",
	OpGe:          "GE",
	OpJump:        "JMP",
	OpJumpIfFalse: "JMP_IF_FALSE",
	OpCallName:    "CALL_NAME",
	OpRet:         "RET",
	OpHalt:        "HALT",
	OpArrayNew:    "ARRAY_NEW",
	OpArrayGet:    "ARRAY_GET",
	OpArraySet:    "ARRAY_SET",
	OpPrint:       "PRINT",
}

// OpcodeOperands lists the byte-widths of each opcode's inline
// operands, in order. All multi-byte operands are big-endian.
var OpcodeOperands = [...][]int{
	OpConst:       {2}, // constant index
	OpLoadGlobal:  {2}, // global index
	OpStoreGlobal: {2}, // global index
	OpLoadLocal:   {2}, // local index
	OpStoreLocal:  {2}, // local index
	OpPop:         {},
	OpAdd:         {},
	OpSub:         {},
	OpMul:         {},
	OpDiv:         {},
	OpMod:         {},
	OpNeg:         {},
	OpNot:         {},
	OpEq:          {},
	OpNe:          {},
	OpLt:          {},
	OpLe:          {},
	OpGt:          {},
	OpGe:          {},
	OpJump:        {2}, // absolute code offset
	OpJumpIfFalse: {2}, // absolute code offset
	OpCallName:    {2, 1}, // name constant index, argc
	OpRet:         {},
	OpHalt:        {},
	OpArrayNew:    {2}, // element count
	OpArrayGet:    {},
	OpArraySet:    {},
	OpPrint:       {},
}

// OpcodeName returns op's disassembler mnemonic.
func OpcodeName(op Opcode) string {
	if int(op) < len(OpcodeNames) && OpcodeNames[op] != "" {
		return OpcodeNames[op]
	}
	return "UNKNOWN"
}

// ReadOperands decodes the operands described by widths out of ins,
// reusing operands' backing array, and returns the number of bytes
// consumed.
func ReadOperands(widths []int, ins []byte, operands []int) ([]int, int) {
	operands = operands[:0]
	var offset int
	for _, width := range widths {
		switch width {
		case 1:
			operands = append(operands, int(ins[offset]))
		case 2:
			operands = append(operands, int(ins[offset])<<8|int(ins[offset+1]))
		}
		offset += width
	}
	return operands, offset
}
