package superscalar

import (
	"fmt"
	"strings"

	"mythra/pkg/constants"
)

// Instruction is one generated SuperscalarHash instruction. For instructions
// with an immediate operand Src equals Dst.
type Instruction struct {
	Opcode InstructionType
	Dst    uint8
	Src    uint8
	Mod    uint8
	Imm32  uint32
}

// ModShift is the IADD_RS shift amount.
func (ins Instruction) ModShift() uint {
	return uint(ins.Mod>>2) % 4
}

func (ins Instruction) String() string {
	switch ins.Opcode {
	case IRorC:
		return fmt.Sprintf("%s r%d, %d", ins.Opcode, ins.Dst, ins.Imm32)
	case IAddC7, IXorC7, IAddC8, IXorC8, IAddC9, IXorC9, IMulRcp:
		return fmt.Sprintf("%s r%d, %#x", ins.Opcode, ins.Dst, ins.Imm32)
	case IAddRS:
		return fmt.Sprintf("%s r%d, r%d, SHFT %d", ins.Opcode, ins.Dst, ins.Src, ins.ModShift())
	}
	return fmt.Sprintf("%s r%d, r%d", ins.Opcode, ins.Dst, ins.Src)
}

// ScheduledOp is one macro-op placed in a decoder slot and an execution cycle.
type ScheduledOp struct {
	Instruction InstructionType
	Op          MacroOp
	SlotSize    int
	Cycle       int           // execution cycle, the decode cycle for eliminated ops
	Ports       ExecutionPort // physical ports occupied, PortNull if eliminated
}

// DecodeCycle is one 16-byte fetch window with the macro-ops decoded in it.
// Slots past len(Ops) are padding.
type DecodeCycle struct {
	Buffer *DecoderBuffer
	Ops    []ScheduledOp
}

// Program is a generated SuperscalarHash program with the metrics of the
// simulated schedule.
type Program struct {
	Instructions    []Instruction
	AddressRegister int

	CPULatency    int // retire cycle of the last result
	ASICLatency   int // critical path length with 1-cycle ops
	CPULatencies  [constants.RegisterCount]int
	ASICLatencies [constants.RegisterCount]int
	CodeSize      int
	MacroOps      int
	DecodeCycles  int
	MulCount      int
	IPC           float64

	Schedule []DecodeCycle
}

// Size returns the number of instructions.
func (p *Program) Size() int {
	return len(p.Instructions)
}

// MaxRegisterLatency returns the latest cycle at which any register
// becomes ready.
func (p *Program) MaxRegisterLatency() int {
	m := 0
	for _, l := range p.CPULatencies {
		m = max(m, l)
	}
	return m
}

// ComputeASICLatencies recomputes ASICLatencies, ASICLatency and
// AddressRegister from the instructions, assuming 1-cycle latency for every
// instruction and unlimited parallelism. The address register is the one
// with the longest dependency chain (lowest index on ties).
func (p *Program) ComputeASICLatencies() {
	p.ASICLatencies = [constants.RegisterCount]int{}
	for _, ins := range p.Instructions {
		latDst := p.ASICLatencies[ins.Dst] + 1
		latSrc := 0
		if ins.Dst != ins.Src {
			latSrc = p.ASICLatencies[ins.Src] + 1
		}
		p.ASICLatencies[ins.Dst] = max(latDst, latSrc)
	}

	p.ASICLatency = 0
	p.AddressRegister = 0
	for reg, lat := range p.ASICLatencies {
		if lat > p.ASICLatency {
			p.ASICLatency = lat
			p.AddressRegister = reg
		}
	}
}

// String renders the program listing followed by its metrics.
func (p *Program) String() string {
	var sb strings.Builder
	for i, ins := range p.Instructions {
		fmt.Fprintf(&sb, "%4d: %s\n", i, ins)
	}
	fmt.Fprintf(&sb, "; size %d, macro-ops %d, code %d bytes, decode cycles %d, multiplications %d\n",
		p.Size(), p.MacroOps, p.CodeSize, p.DecodeCycles, p.MulCount)
	fmt.Fprintf(&sb, "; cpu latency %d, asic latency %d, ipc %.3f, address register r%d\n",
		p.CPULatency, p.ASICLatency, p.IPC, p.AddressRegister)
	return sb.String()
}
