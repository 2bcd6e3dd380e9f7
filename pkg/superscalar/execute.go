package superscalar

import (
	"math/bits"

	"mythra/pkg/constants"
)

// Execute runs the program over the register file r.
func (p *Program) Execute(r *[constants.RegisterCount]uint64) {
	for i := range p.Instructions {
		ins := &p.Instructions[i]
		dst, src := ins.Dst, ins.Src

		switch ins.Opcode {
		case ISubR:
			r[dst] -= r[src]
		case IXorR:
			r[dst] ^= r[src]
		case IAddRS:
			r[dst] += r[src] << ins.ModShift()
		case IMulR:
			r[dst] *= r[src]
		case IRorC:
			r[dst] = bits.RotateLeft64(r[dst], -int(ins.Imm32))
		case IAddC7, IAddC8, IAddC9:
			r[dst] += signExtend(ins.Imm32)
		case IXorC7, IXorC8, IXorC9:
			r[dst] ^= signExtend(ins.Imm32)
		case IMulhR:
			r[dst], _ = bits.Mul64(r[dst], r[src])
		case ISmulhR:
			r[dst] = smulh(r[dst], r[src])
		case IMulRcp:
			r[dst] *= Reciprocal(ins.Imm32)
		}
	}
}

// Reciprocal returns floor(2^x / divisor) for the largest x such that the
// quotient fits in 64 bits. divisor must not be zero or a power of two.
func Reciprocal(divisor uint32) uint64 {
	if divisor == 0 {
		panic("Reciprocal: zero divisor")
	}
	d := uint64(divisor)
	const p2exp63 = uint64(1) << 63

	quotient, remainder := p2exp63/d, p2exp63%d
	for shift := 0; shift < bits.Len64(d); shift++ {
		if remainder >= d-remainder {
			quotient = quotient*2 + 1
			remainder = remainder*2 - d
		} else {
			quotient = quotient * 2
			remainder = remainder * 2
		}
	}
	return quotient
}

func signExtend(imm uint32) uint64 {
	return uint64(int64(int32(imm)))
}

// smulh is the high half of the signed 128-bit product.
func smulh(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if int64(a) < 0 {
		hi -= b
	}
	if int64(b) < 0 {
		hi -= a
	}
	return hi
}
