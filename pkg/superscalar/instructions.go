package superscalar

import "mythra/pkg/vm"

// InstructionType is a SuperscalarHash instruction. The numeric values are
// the opcodes written into generated programs.
type InstructionType int8

const (
	ISubR   InstructionType = iota // r[dst] -= r[src]
	IXorR                          // r[dst] ^= r[src]
	IAddRS                         // r[dst] += r[src] << shift
	IMulR                          // r[dst] *= r[src]
	IRorC                          // r[dst] = rotr(r[dst], imm32)
	IAddC7                         // r[dst] += sx(imm32)
	IXorC7                         // r[dst] ^= sx(imm32)
	IAddC8                         // IAddC7 padded to 8 bytes
	IXorC8                         // IXorC7 padded to 8 bytes
	IAddC9                         // IAddC7 padded to 9 bytes
	IXorC9                         // IXorC7 padded to 9 bytes
	IMulhR                         // r[dst] = (r[dst] * r[src]) >> 64
	ISmulhR                        // signed (r[dst] * r[src]) >> 64
	IMulRcp                        // r[dst] *= Reciprocal(imm32)

	InstructionTypeCount = iota

	Invalid InstructionType = -1
)

var instructionNames = [InstructionTypeCount]string{
	"ISUB_R", "IXOR_R", "IADD_RS", "IMUL_R", "IROR_C",
	"IADD_C7", "IXOR_C7", "IADD_C8", "IXOR_C8", "IADD_C9", "IXOR_C9",
	"IMULH_R", "ISMULH_R", "IMUL_RCP",
}

func (t InstructionType) String() string {
	if t < 0 || int(t) >= InstructionTypeCount {
		return "NOP"
	}
	return instructionNames[t]
}

// IsMultiplication reports whether t occupies the multiplier (port P1).
func (t InstructionType) IsMultiplication() bool {
	switch t {
	case IMulR, IMulhR, ISmulhR, IMulRcp:
		return true
	}
	return false
}

// VMOpcode returns the VM instruction t shares its semantics with. The
// immediate forms (rotations, constant adds and xors) have no VM twin.
func (t InstructionType) VMOpcode() (vm.Opcode, bool) {
	switch t {
	case ISubR:
		return vm.ISubR, true
	case IXorR:
		return vm.IXorR, true
	case IAddRS:
		return vm.IAddRS, true
	case IMulR:
		return vm.IMulR, true
	case IMulhR:
		return vm.IMulhR, true
	case ISmulhR:
		return vm.ISmulhR, true
	case IMulRcp:
		return vm.IMulRcp, true
	}
	return 0, false
}

// InstructionInfo describes how an instruction decodes into macro-ops and
// which of them read the source, read the destination, and write the result.
type InstructionInfo struct {
	Name     string
	Type     InstructionType
	Ops      []MacroOp
	Latency  int
	ResultOp int
	DstOp    int
	SrcOp    int // -1 when the instruction takes an immediate
}

func singleOp(t InstructionType, op MacroOp, srcOp int) InstructionInfo {
	return InstructionInfo{
		Name:    t.String(),
		Type:    t,
		Ops:     []MacroOp{op},
		Latency: op.Latency,
		SrcOp:   srcOp,
	}
}

func multiOp(t InstructionType, ops []MacroOp, resultOp, dstOp, srcOp int) InstructionInfo {
	info := InstructionInfo{
		Name:     t.String(),
		Type:     t,
		Ops:      ops,
		ResultOp: resultOp,
		DstOp:    dstOp,
		SrcOp:    srcOp,
	}
	for _, op := range ops {
		info.Latency += op.Latency
	}
	return info
}

// Instructions is indexed by InstructionType.
var Instructions = [InstructionTypeCount]InstructionInfo{
	ISubR:   singleOp(ISubR, MacroOpSubRR, 0),
	IXorR:   singleOp(IXorR, MacroOpXorRR, 0),
	IAddRS:  singleOp(IAddRS, MacroOpLeaSIB, 0),
	IMulR:   singleOp(IMulR, MacroOpImulRR, 0),
	IRorC:   singleOp(IRorC, MacroOpRorRI, -1),
	IAddC7:  singleOp(IAddC7, MacroOpAddRI, -1),
	IXorC7:  singleOp(IXorC7, MacroOpXorRI, -1),
	IAddC8:  singleOp(IAddC8, MacroOpAddRI, -1),
	IXorC8:  singleOp(IXorC8, MacroOpXorRI, -1),
	IAddC9:  singleOp(IAddC9, MacroOpAddRI, -1),
	IXorC9:  singleOp(IXorC9, MacroOpXorRI, -1),
	IMulhR:  multiOp(IMulhR, []MacroOp{MacroOpMovRR, MacroOpMulR, MacroOpMovRR}, 1, 0, 1),
	ISmulhR: multiOp(ISmulhR, []MacroOp{MacroOpMovRR, MacroOpImulR, MacroOpMovRR}, 1, 0, 1),
	IMulRcp: multiOp(IMulRcp, []MacroOp{MacroOpMovRI64, MacroOpImulRR.dependent()}, 1, 1, -1),
}

// nopInfo stands in for "no current instruction"; it has no macro-ops.
var nopInfo = InstructionInfo{Name: "NOP", Type: Invalid, SrcOp: -1, DstOp: -1, ResultOp: -1}

// Slot tables: the candidates for a decoder slot of a given size. The
// selector byte indexes them with a mask of len-1.
var (
	slot3     = []InstructionType{ISubR, IXorR}
	slot3Last = []InstructionType{ISubR, IXorR, IMulhR, ISmulhR}
	slot4     = []InstructionType{IRorC, IAddRS}
	slot7     = []InstructionType{IXorC7, IAddC7}
	slot8     = []InstructionType{IXorC8, IAddC8}
	slot9     = []InstructionType{IXorC9, IAddC9}
	slot10    = IMulRcp
)
