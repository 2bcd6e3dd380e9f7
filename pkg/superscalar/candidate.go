package superscalar

import (
	"mythra/pkg/constants"
	"mythra/pkg/errors"
)

// ByteSource is the random stream consumed by the generator.
type ByteSource interface {
	GetByte() byte
	GetUint32() uint32
}

// registerInfo is the simulated state of one register.
type registerInfo struct {
	latency     int             // cycle at which the value is ready
	lastOpGroup InstructionType // last operation group applied
	lastOpPar   int             // its parameter: source register, -1 for constants
}

func newRegisterFile() [constants.RegisterCount]registerInfo {
	var regs [constants.RegisterCount]registerInfo
	for i := range regs {
		regs[i] = registerInfo{lastOpGroup: Invalid, lastOpPar: -1}
	}
	return regs
}

// candidate is the instruction currently being decoded.
type candidate struct {
	info             *InstructionInfo
	src              int
	dst              int
	mod              uint8
	imm32            uint32
	opGroup          InstructionType
	opGroupPar       int
	canReuse         bool
	groupParIsSource bool
}

func nopCandidate() candidate {
	return candidate{info: &nopInfo, src: -1, dst: -1, opGroup: Invalid, opGroupPar: -1}
}

func (c *candidate) kind() InstructionType {
	return c.info.Type
}

// createForSlot selects an instruction whose first macro-op fits a slot of
// slotSize bytes in the decoder buffer with the given index.
func (c *candidate) createForSlot(gen ByteSource, slotSize, bufferIndex int, isLast bool) {
	switch slotSize {
	case 3:
		// the last slot may take the 2-uop high multiplications
		if isLast {
			c.create(slot3Last[gen.GetByte()&3], gen)
		} else {
			c.create(slot3[gen.GetByte()&1], gen)
		}
	case 4:
		// 4-4-4-4 issues multiplications in its first three slots
		if bufferIndex == Decoder4444.Index && !isLast {
			c.create(IMulR, gen)
		} else {
			c.create(slot4[gen.GetByte()&1], gen)
		}
	case 7:
		c.create(slot7[gen.GetByte()&1], gen)
	case 8:
		c.create(slot8[gen.GetByte()&1], gen)
	case 9:
		c.create(slot9[gen.GetByte()&1], gen)
	case 10:
		c.create(slot10, gen)
	default:
		errors.Assert(false, "no instruction fits a %d-byte slot", slotSize)
	}
}

// create resets c to a fresh instruction of type t and draws its operands.
func (c *candidate) create(t InstructionType, gen ByteSource) {
	c.info = &Instructions[t]
	c.src, c.dst = -1, -1
	c.canReuse, c.groupParIsSource = false, false

	switch t {
	case ISubR:
		c.mod, c.imm32 = 0, 0
		c.opGroup = IAddRS
		c.groupParIsSource = true
	case IXorR:
		c.mod, c.imm32 = 0, 0
		c.opGroup = IXorR
		c.groupParIsSource = true
	case IAddRS:
		c.mod = gen.GetByte()
		c.imm32 = 0
		c.opGroup = IAddRS
		c.groupParIsSource = true
	case IMulR:
		c.mod, c.imm32 = 0, 0
		c.opGroup = IMulR
		c.groupParIsSource = true
	case IRorC:
		c.mod = 0
		for c.imm32 = 0; c.imm32 == 0; {
			c.imm32 = uint32(gen.GetByte() & 63)
		}
		c.opGroup = IRorC
		c.opGroupPar = -1
	case IAddC7, IAddC8, IAddC9:
		c.mod = 0
		c.imm32 = gen.GetUint32()
		c.opGroup = IAddC7
		c.opGroupPar = -1
	case IXorC7, IXorC8, IXorC9:
		c.mod = 0
		c.imm32 = gen.GetUint32()
		c.opGroup = IXorC7
		c.opGroupPar = -1
	case IMulhR, ISmulhR:
		c.canReuse = true
		c.mod, c.imm32 = 0, 0
		c.opGroup = t
		c.opGroupPar = int(gen.GetUint32())
	case IMulRcp:
		c.mod = 0
		for c.imm32 = gen.GetUint32(); isZeroOrPowerOf2(c.imm32); {
			c.imm32 = gen.GetUint32()
		}
		c.opGroup = IMulRcp
		c.opGroupPar = -1
	}
}

// selectSource picks a register that is ready at cycle.
func (c *candidate) selectSource(cycle int, regs *[constants.RegisterCount]registerInfo, gen ByteSource) bool {
	var available []int
	for i := range regs {
		if regs[i].latency <= cycle {
			available = append(available, i)
		}
	}

	// r5 cannot be the lea destination, so with two candidates it must be
	// the source.
	if len(available) == 2 && c.kind() == IAddRS {
		if available[0] == constants.RegisterNeedsDisplacement || available[1] == constants.RegisterNeedsDisplacement {
			c.src = constants.RegisterNeedsDisplacement
			c.opGroupPar = c.src
			return true
		}
	}

	reg, ok := selectRegister(available, gen)
	if !ok {
		return false
	}
	c.src = reg
	if c.groupParIsSource {
		c.opGroupPar = reg
	}
	return true
}

// selectDestination picks a register that is ready at cycle and does not
// make the instruction trivially optimizable:
//   - it is not the source, unless the instruction allows it (no xor r,r)
//   - it was not just multiplied, unless allowChainedMul (trailing zeroes)
//   - its last operation differs in group or parameter (no add C1; add C2)
//   - it is not r5 for IADD_RS (lea encoding)
func (c *candidate) selectDestination(cycle int, allowChainedMul bool, regs *[constants.RegisterCount]registerInfo, gen ByteSource) bool {
	var available []int
	for i := range regs {
		ri := &regs[i]
		if ri.latency > cycle {
			continue
		}
		if !c.canReuse && i == c.src {
			continue
		}
		if !allowChainedMul && c.opGroup == IMulR && ri.lastOpGroup == IMulR {
			continue
		}
		if ri.lastOpGroup == c.opGroup && ri.lastOpPar == c.opGroupPar {
			continue
		}
		if c.kind() == IAddRS && i == constants.RegisterNeedsDisplacement {
			continue
		}
		available = append(available, i)
	}

	reg, ok := selectRegister(available, gen)
	if !ok {
		return false
	}
	c.dst = reg
	return true
}

// toInstruction converts a fully decoded candidate to its program form.
func (c *candidate) toInstruction() Instruction {
	errors.Assert(c.dst >= 0 && c.dst < constants.RegisterCount, "destination register %d out of range", c.dst)
	src := c.src
	if src < 0 {
		src = c.dst
	}
	return Instruction{
		Opcode: c.kind(),
		Dst:    uint8(c.dst),
		Src:    uint8(src),
		Mod:    c.mod,
		Imm32:  c.imm32,
	}
}

func selectRegister(available []int, gen ByteSource) (int, bool) {
	switch len(available) {
	case 0:
		return 0, false
	case 1:
		return available[0], true
	}
	return available[gen.GetUint32()%uint32(len(available))], true
}

func isZeroOrPowerOf2(x uint32) bool {
	return x&(x-1) == 0
}
