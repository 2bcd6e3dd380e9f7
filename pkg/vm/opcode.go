package vm

import "fmt"

// Opcode is a RandomX VM instruction. SuperscalarHash programs reuse a
// subset of these names.
type Opcode int

const (
	IAddRS Opcode = iota
	IAddM
	ISubR
	ISubM
	IMulR
	IMulM
	IMulhR
	IMulhM
	ISmulhR
	ISmulhM
	IMulRcp
	INegR
	IXorR
	IXorM
	IRorR
	IRolR
	ISwapR
	FSwapR
	FAddR
	FAddM
	FSubR
	FSubM
	FScalR
	FMulR
	FDivM
	FSqrtR
	CBranch
	CFround
	IStore

	OpcodeCount = iota
)

type Category int

const (
	CategoryInteger Category = iota
	CategoryFloat
	CategoryControl
	CategoryStore
)

func (c Category) String() string {
	switch c {
	case CategoryInteger:
		return "integer"
	case CategoryFloat:
		return "floating point"
	case CategoryControl:
		return "control"
	case CategoryStore:
		return "store"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

func (o Opcode) String() string {
	switch o {
	case IAddRS:
		return "IADD_RS"
	case IAddM:
		return "IADD_M"
	case ISubR:
		return "ISUB_R"
	case ISubM:
		return "ISUB_M"
	case IMulR:
		return "IMUL_R"
	case IMulM:
		return "IMUL_M"
	case IMulhR:
		return "IMULH_R"
	case IMulhM:
		return "IMULH_M"
	case ISmulhR:
		return "ISMULH_R"
	case ISmulhM:
		return "ISMULH_M"
	case IMulRcp:
		return "IMUL_RCP"
	case INegR:
		return "INEG_R"
	case IXorR:
		return "IXOR_R"
	case IXorM:
		return "IXOR_M"
	case IRorR:
		return "IROR_R"
	case IRolR:
		return "IROL_R"
	case ISwapR:
		return "ISWAP_R"
	case FSwapR:
		return "FSWAP_R"
	case FAddR:
		return "FADD_R"
	case FAddM:
		return "FADD_M"
	case FSubR:
		return "FSUB_R"
	case FSubM:
		return "FSUB_M"
	case FScalR:
		return "FSCAL_R"
	case FMulR:
		return "FMUL_R"
	case FDivM:
		return "FDIV_M"
	case FSqrtR:
		return "FSQRT_R"
	case CBranch:
		return "CBRANCH"
	case CFround:
		return "CFROUND"
	case IStore:
		return "ISTORE"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

func (o Opcode) Category() Category {
	switch {
	case o <= ISwapR:
		return CategoryInteger
	case o <= FSqrtR:
		return CategoryFloat
	case o <= CFround:
		return CategoryControl
	}
	return CategoryStore
}

// Frequency is the number of the 256 opcode byte values that decode to o.
func (o Opcode) Frequency() int {
	if o < 0 || int(o) >= OpcodeCount {
		return 0
	}
	return frequencies[o]
}

var frequencies = [OpcodeCount]int{
	IAddRS:  16,
	IAddM:   7,
	ISubR:   16,
	ISubM:   7,
	IMulR:   16,
	IMulM:   4,
	IMulhR:  4,
	IMulhM:  1,
	ISmulhR: 4,
	ISmulhM: 1,
	IMulRcp: 8,
	INegR:   2,
	IXorR:   15,
	IXorM:   5,
	IRorR:   8,
	IRolR:   2,
	ISwapR:  4,
	FSwapR:  4,
	FAddR:   16,
	FAddM:   5,
	FSubR:   16,
	FSubM:   5,
	FScalR:  6,
	FMulR:   32,
	FDivM:   4,
	FSqrtR:  6,
	CBranch: 25,
	CFround: 1,
	IStore:  16,
}

// decodeTable maps an opcode byte to its instruction; opcodes occupy
// consecutive byte ranges in enumeration order.
var decodeTable = func() [256]Opcode {
	var table [256]Opcode
	b := 0
	for o := Opcode(0); int(o) < OpcodeCount; o++ {
		for i := 0; i < frequencies[o]; i++ {
			table[b] = o
			b++
		}
	}
	if b != len(table) {
		panic(fmt.Sprintf("opcode frequencies sum to %d", b))
	}
	return table
}()

// Decode returns the instruction selected by the opcode byte of an 8-byte
// VM instruction word.
func Decode(opcode byte) Opcode {
	return decodeTable[opcode]
}
