package serializer

import (
	"errors"
	"fmt"

	"mythra/pkg/constants"
	"mythra/pkg/superscalar"

	"golang.org/x/crypto/blake2b"
)

// HeaderSize is the encoded size of the program header:
// E4(size) ‖ E1(address register) ‖ E4(cpu latency) ‖ E4(asic latency).
const HeaderSize = 13

// InstructionSize is the encoded size of one instruction:
// opcode ‖ dst ‖ src ‖ mod ‖ E4(imm32).
const InstructionSize = 8

var ErrInvalidProgram = errors.New("invalid program encoding")

func EncodeInstruction(ins superscalar.Instruction) []byte {
	buf := make([]byte, 0, InstructionSize)
	buf = append(buf, byte(ins.Opcode), ins.Dst, ins.Src, ins.Mod)
	return append(buf, EncodeLittleEndian(4, uint64(ins.Imm32))...)
}

func EncodeProgram(p *superscalar.Program) []byte {
	buf := make([]byte, 0, HeaderSize+InstructionSize*p.Size())
	buf = append(buf, EncodeLittleEndian(4, uint64(p.Size()))...)
	buf = append(buf, EncodeLittleEndian(1, uint64(p.AddressRegister))...)
	buf = append(buf, EncodeLittleEndian(4, uint64(p.CPULatency))...)
	buf = append(buf, EncodeLittleEndian(4, uint64(p.ASICLatency))...)
	return append(buf, encodeInstructions(p)...)
}

func encodeInstructions(p *superscalar.Program) []byte {
	buf := make([]byte, 0, InstructionSize*p.Size())
	for _, ins := range p.Instructions {
		buf = append(buf, EncodeInstruction(ins)...)
	}
	return buf
}

func decodeInstruction(b []byte) (superscalar.Instruction, error) {
	ins := superscalar.Instruction{
		Opcode: superscalar.InstructionType(b[0]),
		Dst:    b[1],
		Src:    b[2],
		Mod:    b[3],
		Imm32:  uint32(DecodeLittleEndian(b[4:8])),
	}
	if b[0] >= superscalar.InstructionTypeCount {
		return ins, fmt.Errorf("%w: unknown opcode %d", ErrInvalidProgram, b[0])
	}
	if int(ins.Dst) >= constants.RegisterCount || int(ins.Src) >= constants.RegisterCount {
		return ins, fmt.Errorf("%w: register out of range (dst r%d, src r%d)", ErrInvalidProgram, ins.Dst, ins.Src)
	}
	return ins, nil
}

// DecodeProgram parses an encoded program. The ASIC metrics are recomputed
// from the instructions and must agree with the header; the remaining
// schedule metrics are not part of the encoding and stay zero apart from
// CPULatency.
func DecodeProgram(data []byte) (*superscalar.Program, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidProgram, len(data))
	}
	size := int(DecodeLittleEndian(data[0:4]))
	addressRegister := int(DecodeLittleEndian(data[4:5]))
	cpuLatency := int(DecodeLittleEndian(data[5:9]))
	asicLatency := int(DecodeLittleEndian(data[9:13]))

	if size > constants.SuperscalarMaxSize {
		return nil, fmt.Errorf("%w: size %d exceeds %d", ErrInvalidProgram, size, constants.SuperscalarMaxSize)
	}
	body := data[HeaderSize:]
	if len(body) != size*InstructionSize {
		return nil, fmt.Errorf("%w: %d instruction bytes for %d instructions", ErrInvalidProgram, len(body), size)
	}

	p := &superscalar.Program{
		Instructions: make([]superscalar.Instruction, size),
		CPULatency:   cpuLatency,
	}
	for i := range p.Instructions {
		ins, err := decodeInstruction(body[i*InstructionSize : (i+1)*InstructionSize])
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		p.Instructions[i] = ins
	}

	p.ComputeASICLatencies()
	if p.AddressRegister != addressRegister || p.ASICLatency != asicLatency {
		return nil, fmt.Errorf("%w: header says address register r%d latency %d, instructions give r%d latency %d",
			ErrInvalidProgram, addressRegister, asicLatency, p.AddressRegister, p.ASICLatency)
	}
	return p, nil
}

// ProgramHash is the Blake2b-256 fingerprint of the instruction encoding.
func ProgramHash(p *superscalar.Program) [32]byte {
	return blake2b.Sum256(encodeInstructions(p))
}
